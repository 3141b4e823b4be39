package main

import (
	"context"
	"flag"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (a *app) cmdWatch(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	delay := flags.Duration("delay", 250*time.Millisecond, "Quiet period before converting a changed file")
	initial := flags.Bool("initial", false, "Convert every source once before watching")
	if err := flags.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	if flags.NArg() < 1 {
		return errors.Wrap(errUsage, "watch needs at least one file or directory")
	}
	if *delay <= 0 {
		return errors.Wrap(errUsage, "watch -delay must be positive")
	}

	// Rewriting outputs is the point of watching.
	a.cfg.Output.Overwrite = true

	if *initial {
		files, err := sources(flags.Args())
		if err != nil {
			return err
		}
		for _, f := range files {
			if _, err := a.convertFile(f); err != nil {
				a.log.Error("conversion failed", zap.String("source", f), zap.Error(err))
			}
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	for _, arg := range flags.Args() {
		if err := addWatch(w, arg); err != nil {
			return err
		}
	}
	return a.watch(ctx, w, *delay)
}

// addWatch watches a file's directory, or a directory and all its subdirectories.
func addWatch(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "watch")
	}
	if !info.IsDir() {
		return errors.Wrapf(w.Add(filepath.Dir(path)), "watch %s", path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				return errors.Wrapf(err, "watch %s", p)
			}
		}
		return nil
	})
}

// watch converts sources once they have been quiet for delay. It returns when ctx is done.
func (a *app) watch(ctx context.Context, w *fsnotify.Watcher, delay time.Duration) error {
	pending := make(map[string]time.Time)
	tick := time.NewTicker(delay / 2)
	defer tick.Stop()

	a.log.Info("watching for changes", zap.Strings("paths", w.WatchList()))
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addWatch(w, ev.Name); err != nil {
						a.log.Warn("cannot watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if ev.Has(fsnotify.Create|fsnotify.Write) && isSource(ev.Name) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Error("watcher error", zap.Error(err))

		case now := <-tick.C:
			for path, at := range pending {
				if now.Sub(at) < delay {
					continue
				}
				delete(pending, path)
				if _, err := a.convertFile(path); err != nil {
					a.log.Error("conversion failed", zap.String("source", path), zap.Error(err))
				}
			}
		}
	}
}
