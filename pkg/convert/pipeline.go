package convert

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

// Builder builds runtime skeletons and animations from raw descriptions.
type Builder interface {
	BuildSkeleton(raw *skelanim.RawSkeleton) (*skelanim.Skeleton, error)
	BuildAnimation(raw *skelanim.RawAnimation, numJoints int) (*skelanim.Animation, error)
}

// pipeline is the per-conversion state shared by every stage. A fresh one is created for
// each call.
type pipeline struct {
	doc     *document.Document
	out     *asset.ProcessedAsset
	opts    Options
	builder Builder
	log     *zap.Logger

	parents  []int
	warnings []string

	textures  []asset.TextureHandle  // by document texture
	materials []asset.MaterialHandle // by document material
	meshes    []asset.MeshHandle     // by document mesh

	skeleton *UnifiedSkeleton

	// animated marks nodes targeted by at least one imported transform channel.
	animated map[int]bool

	// scene maps document nodes to scene node indices once nodes are emitted.
	scene map[int]int
}

func newPipeline(doc *document.Document, opts Options, builder Builder, log *zap.Logger) *pipeline {
	return &pipeline{
		doc:       doc,
		out:       asset.New(),
		opts:      opts,
		builder:   builder,
		log:       log,
		parents:   doc.Parents(),
		textures:  make([]asset.TextureHandle, len(doc.Textures)),
		materials: make([]asset.MaterialHandle, len(doc.Materials)),
		meshes:    make([]asset.MeshHandle, len(doc.Meshes)),
		animated:  make(map[int]bool),
	}
}

// warn records a recoverable problem. Warnings never stop the conversion.
func (p *pipeline) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.warnings = append(p.warnings, msg)
	p.log.Warn(msg)
}

func (p *pipeline) validNode(i int) bool { return i >= 0 && i < len(p.doc.Nodes) }

// nodeName returns the node's source name or a synthesized one.
func (p *pipeline) nodeName(i int) string {
	if name := p.doc.Nodes[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("node_%d", i)
}
