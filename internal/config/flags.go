package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile      = flag.String("log-file", "", "Also log to this file")
	flagOut          = flag.String("out", "", "Output directory")
	flagOverwrite    = flag.Bool("overwrite", false, "Overwrite existing packages")
	flagNoChecksum   = flag.Bool("no-checksum", false, "Write packages without a payload checksum")
	flagBake         = flag.Bool("bake", false, "Resample skeletal animation at a fixed rate")
	flagRate         = flag.Float64("rate", 0, "Baking sample rate in Hz")
	flagNoTangents   = flag.Bool("no-tangents", false, "Do not synthesize tangents")
	flagNoOptimize   = flag.Bool("no-optimize", false, "Skip vertex cache optimization")
	flagNoAnimations = flag.Bool("no-animations", false, "Skip animations")
	flagNoMaterials  = flag.Bool("no-materials", false, "Skip materials and textures")
	flagNoEmbed      = flag.Bool("no-embed", false, "Do not embed images stored in the document")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagOut != "" {
		cfg.Output.Directory = *flagOut
	}
	if *flagOverwrite {
		cfg.Output.Overwrite = true
	}
	if *flagNoChecksum {
		cfg.Output.Checksum = false
	}
	if *flagBake {
		cfg.Convert.BakeAnimations = true
	}
	if *flagRate > 0 {
		cfg.Convert.SampleRate = float32(*flagRate)
	}
	if *flagNoTangents {
		cfg.Convert.GenerateTangents = false
	}
	if *flagNoOptimize {
		cfg.Convert.OptimizeVertexCache = false
	}
	if *flagNoAnimations {
		cfg.Convert.ImportAnimations = false
	}
	if *flagNoMaterials {
		cfg.Convert.ImportMaterials = false
	}
	if *flagNoEmbed {
		cfg.Convert.EmbedTextures = false
	}
}
