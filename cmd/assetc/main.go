// assetc converts glTF scenes into asset packages and inspects existing packages.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/internal/config"
	"github.com/Faultbox/assetpak/internal/logger"
)

// errUsage marks errors caused by bad command-line arguments.
var errUsage = errors.New("usage")

// app carries what every command needs.
type app struct {
	cfg *config.Config
	out io.Writer
	log *zap.Logger
}

func main() {
	// Parse CLI flags first
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.InitWithFileConfig(cfg.Logging.Level, cfg.Logging.FileConfig(), true); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{cfg: cfg, out: os.Stdout, log: logger.Named("assetc")}
	err = a.run(ctx, args[0], args[1:])
	stop()
	logger.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "convert", "c":
		return a.cmdConvert(args)
	case "info":
		return a.cmdInfo(args)
	case "dump":
		return a.cmdDump(args)
	case "validate", "check":
		return a.cmdValidate(args)
	case "watch":
		return a.cmdWatch(ctx, args)
	case "help", "-h", "--help":
		printUsage(a.out)
		return nil
	default:
		return errors.Wrapf(errUsage, "unknown command %q", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `assetc - glTF to asset package converter

Usage:
  assetc [flags] <command> [options]

Commands:
  convert [-k] <file|dir>...           Convert .gltf/.glb files to packages
  info <file.apak>...                  Show header, chunk table and statistics
  dump [-only section] <file.apak>     Dump the decoded package
  validate <file.apak>...              Decode and validate packages
  watch [-delay d] <file|dir>...       Re-convert sources when they change

Flags:
  -config path   config file (.yaml or .toml)
  -out dir       output directory (default: next to the source)
  -bake -rate n  resample skeletal animation at n Hz
  -overwrite -no-checksum -no-tangents -no-optimize
  -no-animations -no-materials -no-embed -debug -log-file path

Examples:
  assetc convert models/hero.gltf
  assetc -out build -bake -rate 60 convert models/
  assetc info build/hero.apak
  assetc watch models/`)
}
