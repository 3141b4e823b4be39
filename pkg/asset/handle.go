package asset

import (
	"errors"
	"fmt"
)

var (
	ErrStaleHandle   = errors.New("stale handle")
	ErrUnknownHandle = errors.New("unknown handle")
)

// Handle identifies a resource of kind T inside one ProcessedAsset.
// The zero handle is invalid and means "none".
type Handle[T any] struct {
	ID         uint32
	Generation uint32
}

// IsValid reports whether the handle refers to something.
func (h Handle[T]) IsValid() bool { return h.ID != 0 }

// String formats the handle as id@generation.
func (h Handle[T]) String() string {
	if !h.IsValid() {
		return "none"
	}
	return fmt.Sprintf("%d@%d", h.ID, h.Generation)
}

type (
	MeshHandle      = Handle[MeshData]
	MaterialHandle  = Handle[MaterialData]
	TextureHandle   = Handle[TextureData]
	SkeletonHandle  = Handle[SkeletonData]
	AnimationHandle = Handle[AnimationData]
)

// HandleGenerator issues monotonically increasing ids stamped with the current generation
// and remembers which id is live under which generation.
type HandleGenerator struct {
	next       uint32
	generation uint32
	live       map[uint32]uint32
}

// NewHandleGenerator returns a generator at generation 1.
func NewHandleGenerator() *HandleGenerator {
	return &HandleGenerator{next: 1, generation: 1, live: make(map[uint32]uint32)}
}

// Generation returns the generation new handles are stamped with.
func (g *HandleGenerator) Generation() uint32 { return g.generation }

// Live returns the number of live handles.
func (g *HandleGenerator) Live() int { return len(g.live) }

func (g *HandleGenerator) issue() (uint32, uint32) {
	id := g.next
	g.next++
	g.live[id] = g.generation
	return id, g.generation
}

// NewHandle issues a fresh handle of kind T.
func NewHandle[T any](g *HandleGenerator) Handle[T] {
	id, gen := g.issue()
	return Handle[T]{ID: id, Generation: gen}
}

// Check resolves a handle against the live set.
func (g *HandleGenerator) Check(id, generation uint32) error {
	live, ok := g.live[id]
	switch {
	case ok && live == generation:
		return nil
	case ok, generation < g.generation:
		return fmt.Errorf("%w: %d@%d", ErrStaleHandle, id, generation)
	default:
		return fmt.Errorf("%w: %d@%d", ErrUnknownHandle, id, generation)
	}
}

// Release forgets a live id. The id is never issued again.
func (g *HandleGenerator) Release(id uint32) {
	delete(g.live, id)
}

// Reset drops every live handle and moves to a new generation. Ids keep increasing.
func (g *HandleGenerator) Reset() {
	g.live = make(map[uint32]uint32)
	g.generation++
}

// adopt registers a handle read from a container so that later issues never reuse its id
// and are stamped with a newer generation.
func (g *HandleGenerator) adopt(id, generation uint32) {
	g.live[id] = generation
	if id >= g.next {
		g.next = id + 1
	}
	if generation >= g.generation {
		g.generation = generation + 1
	}
}
