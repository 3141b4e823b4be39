// Package config handles converter configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/assetpak/internal/logger"
	"github.com/Faultbox/assetpak/pkg/convert"
)

// Config holds all converter settings.
type Config struct {
	Convert ConvertConfig `yaml:"convert" toml:"convert"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ConvertConfig mirrors the conversion options.
type ConvertConfig struct {
	OptimizeVertexCache  bool    `yaml:"optimize_vertex_cache" toml:"optimize_vertex_cache"`
	GenerateTangents     bool    `yaml:"generate_tangents" toml:"generate_tangents"`
	BakeAnimations       bool    `yaml:"bake_animations" toml:"bake_animations"`
	SampleRate           float32 `yaml:"sample_rate" toml:"sample_rate"` // Hz
	PromoteAnimatedNodes bool    `yaml:"promote_animated_nodes" toml:"promote_animated_nodes"`
	ImportAnimations     bool    `yaml:"import_animations" toml:"import_animations"`
	ImportMaterials      bool    `yaml:"import_materials" toml:"import_materials"`
	EmbedTextures        bool    `yaml:"embed_textures" toml:"embed_textures"`
}

// OutputConfig controls where packages are written.
type OutputConfig struct {
	Directory string `yaml:"directory" toml:"directory"` // empty: next to the source
	Extension string `yaml:"extension" toml:"extension"`
	Overwrite bool   `yaml:"overwrite" toml:"overwrite"`
	Checksum  bool   `yaml:"checksum" toml:"checksum"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	LogFile    string `yaml:"log_file" toml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	opts := convert.DefaultOptions()
	file := logger.DefaultFileConfig("")
	return &Config{
		Convert: ConvertConfig{
			OptimizeVertexCache:  opts.OptimizeVertexCache,
			GenerateTangents:     opts.GenerateTangents,
			BakeAnimations:       opts.BakeAnimations,
			SampleRate:           opts.SampleRate,
			PromoteAnimatedNodes: opts.PromoteAnimatedNodes,
			ImportAnimations:     opts.ImportAnimations,
			ImportMaterials:      opts.ImportMaterials,
			EmbedTextures:        opts.EmbedTextures,
		},
		Output: OutputConfig{
			Extension: ".apak",
			Checksum:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
	}
}

// Options returns the conversion options.
func (c ConvertConfig) Options() convert.Options {
	return convert.Options{
		OptimizeVertexCache:  c.OptimizeVertexCache,
		GenerateTangents:     c.GenerateTangents,
		BakeAnimations:       c.BakeAnimations,
		SampleRate:           c.SampleRate,
		PromoteAnimatedNodes: c.PromoteAnimatedNodes,
		ImportAnimations:     c.ImportAnimations,
		ImportMaterials:      c.ImportMaterials,
		EmbedTextures:        c.EmbedTextures,
	}
}

// Path returns the package path for a source file.
func (o OutputConfig) Path(source string) string {
	dir := o.Directory
	if dir == "" {
		dir = filepath.Dir(source)
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+o.Extension)
}

// FileConfig returns the rotation settings for the log file.
func (l LoggingConfig) FileConfig() logger.FileConfig {
	return logger.FileConfig{
		Path:       l.LogFile,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Validate reports settings the converter cannot work with.
func (c *Config) Validate() error {
	if c.Convert.SampleRate <= 0 {
		return fmt.Errorf("convert.sample_rate must be positive, got %v", c.Convert.SampleRate)
	}
	if !strings.HasPrefix(c.Output.Extension, ".") {
		return fmt.Errorf("output.extension %q must start with a dot", c.Output.Extension)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
