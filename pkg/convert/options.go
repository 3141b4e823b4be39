// Package convert turns a parsed scene document into a ProcessedAsset: it canonicalizes and
// optimizes vertex data, merges every skin into one skeleton, builds skeletal and node
// animation tracks and extracts materials, textures and the node forest.
package convert

// Options controls a conversion.
type Options struct {
	// OptimizeVertexCache reorders triangles for post-transform cache locality.
	OptimizeVertexCache bool
	// GenerateTangents synthesizes tangents for meshes that lack them.
	GenerateTangents bool
	// BakeAnimations resamples skeletal animation at SampleRate instead of copying keys.
	BakeAnimations bool
	// SampleRate is the baking rate in samples per second.
	SampleRate float32
	// PromoteAnimatedNodes adds animated non-joint nodes to the skeleton as attachments.
	PromoteAnimatedNodes bool
	ImportAnimations     bool
	ImportMaterials      bool
	// EmbedTextures copies images stored inside the document into the asset.
	EmbedTextures bool
}

// DefaultSampleRate is the baking rate used when Options.SampleRate is not positive.
const DefaultSampleRate = 30

// DefaultOptions returns the options used by ProcessFile.
func DefaultOptions() Options {
	return Options{
		OptimizeVertexCache:  true,
		GenerateTangents:     true,
		SampleRate:           DefaultSampleRate,
		PromoteAnimatedNodes: true,
		ImportAnimations:     true,
		ImportMaterials:      true,
		EmbedTextures:        true,
	}
}

func (o Options) sampleRate() float32 {
	if o.SampleRate > 0 {
		return o.SampleRate
	}
	return DefaultSampleRate
}
