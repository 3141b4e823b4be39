package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/convert"
)

func isSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return true
	}
	return false
}

// sources expands arguments into source files. Directories are searched recursively.
func sources(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrap(err, "source")
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSource(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", arg)
		}
	}
	return files, nil
}

// convertFile converts one source and writes its package. It returns the package path.
func (a *app) convertFile(src string) (string, error) {
	dst := a.cfg.Output.Path(src)
	if !a.cfg.Output.Overwrite {
		if _, err := os.Stat(dst); err == nil {
			return "", errors.Errorf("%s exists, use -overwrite to replace it", dst)
		}
	}

	c := convert.NewConverter(a.cfg.Convert.Options())
	c.Log = a.log.Named("convert")
	out, err := c.ProcessFile(src)
	if err != nil {
		return "", errors.Wrapf(err, "convert %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	if err := out.Serialize(dst, asset.WithChecksum(a.cfg.Output.Checksum)); err != nil {
		return "", errors.Wrapf(err, "write %s", dst)
	}

	st := out.Metadata.Stats
	fmt.Fprintf(a.out, "%s -> %s (%d meshes, %d vertices, %d joints, %d animations, %d warnings)\n",
		src, dst, st.Meshes, st.Vertices, st.Joints, st.Animations, len(out.Warnings))
	return dst, nil
}

func (a *app) cmdConvert(args []string) error {
	flags := flag.NewFlagSet("convert", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	keepGoing := flags.Bool("k", false, "Keep going after a failed file")
	if err := flags.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	if flags.NArg() < 1 {
		return errors.Wrap(errUsage, "convert needs at least one file or directory")
	}

	files, err := sources(flags.Args())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no .gltf or .glb files found")
	}

	failed := 0
	for _, f := range files {
		if _, err := a.convertFile(f); err != nil {
			if !*keepGoing {
				return err
			}
			a.log.Error("conversion failed", zap.String("source", f), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
