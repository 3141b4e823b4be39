package convert

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/internal/logger"
	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

// Generator is recorded in the metadata of every converted asset.
const Generator = "assetpak"

// ProgressFunc is called synchronously at fixed milestones with a fraction in [0, 1].
type ProgressFunc func(fraction float32, stage string)

// Progress milestones.
const (
	StageLoading    = "loading"
	StageParsed     = "parsed"
	StageMaterials  = "materials"
	StageMeshes     = "meshes"
	StageSkeleton   = "skeleton"
	StageRebinding  = "rebinding"
	StageAnimations = "animations"
	StageScene      = "scene"
	StageFinalizing = "finalizing"
	StageDone       = "done"
)

// Converter converts documents into assets. A Converter must not be used by several
// goroutines at once; separate Converters are independent.
type Converter struct {
	Options  Options
	Progress ProgressFunc
	Builder  Builder
	Log      *zap.Logger

	// now is stubbed in tests.
	now func() time.Time

	lastErr  string
	warnings []string
}

// NewConverter returns a converter with the given options, the default skeleton builder and
// the global logger.
func NewConverter(opts Options) *Converter {
	return &Converter{
		Options: opts,
		Builder: skelanim.Library{},
		Log:     logger.Named("convert"),
		now:     time.Now,
	}
}

// ProcessFile converts a glTF or GLB file with default options.
func ProcessFile(path string) (*asset.ProcessedAsset, error) {
	return NewConverter(DefaultOptions()).ProcessFile(path)
}

// LastError returns the message of the last failed conversion, or "" after a success.
func (c *Converter) LastError() string { return c.lastErr }

// Warnings returns the warnings of the last conversion.
func (c *Converter) Warnings() []string { return c.warnings }

func (c *Converter) progress(fraction float32, stage string) {
	c.Log.Debug("progress", zap.String("stage", stage), zap.Float32("fraction", fraction))
	if c.Progress != nil {
		c.Progress(fraction, stage)
	}
}

func (c *Converter) fail(err error) error {
	c.lastErr = err.Error()
	c.Log.Error("conversion failed", zap.Error(err))
	return err
}

// ProcessFile loads and converts a glTF or GLB file.
func (c *Converter) ProcessFile(path string) (*asset.ProcessedAsset, error) {
	c.lastErr = ""
	c.warnings = nil
	c.progress(0, StageLoading)

	doc, err := document.Load(path)
	if err != nil {
		return nil, c.fail(err)
	}
	return c.convert(doc, path)
}

// Process converts an already loaded document. source is recorded in the metadata.
func (c *Converter) Process(doc *document.Document, source string) (*asset.ProcessedAsset, error) {
	c.lastErr = ""
	c.warnings = nil
	c.progress(0, StageLoading)
	return c.convert(doc, source)
}

func (c *Converter) convert(doc *document.Document, source string) (*asset.ProcessedAsset, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
		c.Log = log
	}
	if c.Builder == nil {
		c.Builder = skelanim.Library{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	log = log.With(zap.String("source", source))

	p := newPipeline(doc, c.Options, c.Builder, log)
	c.progress(0.1, StageParsed)

	stages := []struct {
		fraction float32
		stage    string
		run      func() error
	}{
		{0.2, StageMaterials, func() error { p.processMaterials(); return nil }},
		{0.3, StageMeshes, p.processMeshes},
		{0.5, StageSkeleton, p.unifySkeleton},
		{0.6, StageRebinding, p.rebindMeshes},
		{0.7, StageAnimations, p.processAnimations},
		{0.85, StageScene, func() error { p.processNodes(); return nil }},
	}
	for _, s := range stages {
		if err := s.run(); err != nil {
			c.warnings = p.warnings
			return nil, c.fail(fmt.Errorf("%s: %w", s.stage, err))
		}
		c.progress(s.fraction, s.stage)
	}

	out := p.out
	out.Warnings = p.warnings
	c.warnings = p.warnings
	out.Metadata = asset.Metadata{
		Name:       strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)),
		SourcePath: source,
		Generator:  Generator,
		AssetID:    assetID(source),
		CreatedAt:  c.now().Unix(),
	}
	out.ComputeStats()
	if err := out.Validate(); err != nil {
		return nil, c.fail(fmt.Errorf("%s: %w", StageFinalizing, err))
	}
	c.progress(0.95, StageFinalizing)

	st := out.Metadata.Stats
	log.Info("conversion complete",
		zap.Uint32("meshes", st.Meshes),
		zap.Uint32("vertices", st.Vertices),
		zap.Uint32("triangles", st.Triangles),
		zap.Uint32("joints", st.Joints),
		zap.Uint32("animations", st.Animations),
		zap.Int("warnings", len(p.warnings)))
	c.progress(1, StageDone)
	return out, nil
}

// assetID derives a stable identifier from the source path.
func assetID(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(source))).String()
}
