// Package asset holds the processed asset graph and its chunked binary container format.
package asset

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Faultbox/assetpak/pkg/math"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

var (
	ErrEmptyMesh        = errors.New("mesh has no vertices or indices")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrSubmeshRange     = errors.New("submesh range outside index buffer")
	ErrInvalidDuration  = errors.New("animation duration must be positive")
	ErrNodeHierarchy    = errors.New("invalid node hierarchy")
	ErrMissingSkeleton  = errors.New("skeleton handle not found")
	ErrInverseBindCount = errors.New("inverse bind matrix count mismatch")
	ErrTrackTarget      = errors.New("node track targets a missing scene node")
)

// Submesh is a contiguous index range sharing one material.
type Submesh struct {
	IndexOffset uint32
	IndexCount  uint32
	BaseVertex  uint32 // first vertex of the source primitive; indices are already absolute
	Material    MaterialHandle
	Min, Max    math.Vec3
}

// MeshData is an interleaved vertex buffer with a 32-bit index buffer.
type MeshData struct {
	Name        string
	Format      VertexFormat
	Vertices    []byte
	VertexCount uint32
	Indices     []uint32
	Submeshes   []Submesh

	// Skeleton is set when the mesh is skinned; InverseBindMatrices then holds one matrix
	// per skeleton joint.
	Skeleton            SkeletonHandle
	InverseBindMatrices []math.Mat4
}

// AlphaMode mirrors the PBR alpha modes.
type AlphaMode uint8

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

// MaterialData is a PBR metallic-roughness material.
type MaterialData struct {
	Name            string
	BaseColorFactor [4]float32
	MetallicFactor  float32
	RoughnessFactor float32
	EmissiveFactor  [3]float32
	AlphaMode       AlphaMode
	AlphaCutoff     float32
	DoubleSided     bool

	BaseColorTexture         TextureHandle
	MetallicRoughnessTexture TextureHandle
	NormalTexture            TextureHandle
	OcclusionTexture         TextureHandle
	EmissiveTexture          TextureHandle
}

// TextureData references an image, embedded or external, with its sampler state.
type TextureData struct {
	Name      string
	URI       string
	MimeType  string
	MagFilter uint32
	MinFilter uint32
	WrapS     uint32
	WrapT     uint32
	Data      []byte
}

// SkeletonData owns a runtime skeleton and its archived bytes.
type SkeletonData struct {
	Name    string
	Runtime *skelanim.Skeleton
	Blob    []byte
}

// Interpolation is a keyframe interpolation mode.
type Interpolation uint8

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

func (i Interpolation) String() string {
	switch i {
	case InterpolationStep:
		return "step"
	case InterpolationCubicSpline:
		return "cubicspline"
	default:
		return "linear"
	}
}

// NodeTrack is one keyframed component. For cubic-spline tracks Values holds three entries
// per key: in-tangent, value, out-tangent.
type NodeTrack[V any] struct {
	Interpolation Interpolation
	Times         []float32
	Values        []V
}

// Len returns the number of keys.
func (t *NodeTrack[V]) Len() int { return len(t.Times) }

// NodeTransformData holds independent keyframe arrays for one animated node.
type NodeTransformData struct {
	Translation NodeTrack[math.Vec3]
	Rotation    NodeTrack[math.Quat]
	Scale       NodeTrack[math.Vec3]
}

// AnimationData holds a skeletal animation, node tracks for nodes outside the skeleton, or
// both.
type AnimationData struct {
	Name     string
	Duration float32

	Skeleton        SkeletonHandle
	TargetNode      int32
	TargetMesh      MeshHandle
	RootMotionJoint int32

	Skeletal *skelanim.Animation
	Blob     []byte

	// NodeTracks is keyed by scene node index, as is TargetNode.
	NodeTracks map[int]*NodeTransformData
}

// SceneNode is one node of the output forest.
type SceneNode struct {
	Name        string
	Parent      int32
	Children    []uint32
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3

	Mesh     MeshHandle
	Skeleton SkeletonHandle
	Camera   int32
	Light    int32
	Joint    int32 // unified joint index, -1 when the node is not a joint

	AnimationTarget bool
}

// Stats summarizes an asset.
type Stats struct {
	Meshes     uint32
	Vertices   uint32
	Triangles  uint32
	Materials  uint32
	Textures   uint32
	Joints     uint32
	Animations uint32
	Nodes      uint32
}

// Metadata describes where an asset came from.
type Metadata struct {
	Name       string
	SourcePath string
	Generator  string
	AssetID    string
	CreatedAt  int64 // unix seconds
	Stats      Stats
}

// ProcessedAsset owns every resource of one converted asset. Handles are only meaningful
// relative to the asset that issued them.
type ProcessedAsset struct {
	Metadata Metadata

	Meshes     map[MeshHandle]*MeshData
	Materials  map[MaterialHandle]*MaterialData
	Textures   map[TextureHandle]*TextureData
	Skeletons  map[SkeletonHandle]*SkeletonData
	Animations map[AnimationHandle]*AnimationData

	Nodes []SceneNode
	Roots []uint32

	Warnings []string

	// Runtime archives and restores skeleton and animation objects.
	Runtime Runtime

	handles *HandleGenerator
	lastErr string
}

// New returns an empty asset backed by the default runtime.
func New() *ProcessedAsset {
	a := &ProcessedAsset{Runtime: skelanim.Library{}, handles: NewHandleGenerator()}
	a.resetMaps()
	return a
}

func (a *ProcessedAsset) resetMaps() {
	a.Meshes = make(map[MeshHandle]*MeshData)
	a.Materials = make(map[MaterialHandle]*MaterialData)
	a.Textures = make(map[TextureHandle]*TextureData)
	a.Skeletons = make(map[SkeletonHandle]*SkeletonData)
	a.Animations = make(map[AnimationHandle]*AnimationData)
}

// Clear drops every resource and moves the handle generator to a new generation, so handles
// issued before the call resolve as stale.
func (a *ProcessedAsset) Clear() {
	a.Metadata = Metadata{}
	a.resetMaps()
	a.Nodes = nil
	a.Roots = nil
	a.Warnings = nil
	if a.handles == nil {
		a.handles = NewHandleGenerator()
	} else {
		a.handles.Reset()
	}
}

// Handles exposes the asset's generator.
func (a *ProcessedAsset) Handles() *HandleGenerator { return a.handles }

// LastError returns the message of the last failed Serialize, Deserialize or Validate.
func (a *ProcessedAsset) LastError() string { return a.lastErr }

func (a *ProcessedAsset) fail(err error) error {
	if err != nil {
		a.lastErr = err.Error()
	}
	return err
}

// AddMesh stores a mesh and returns its handle.
func (a *ProcessedAsset) AddMesh(m *MeshData) MeshHandle {
	h := NewHandle[MeshData](a.handles)
	a.Meshes[h] = m
	return h
}

// AddMaterial stores a material and returns its handle.
func (a *ProcessedAsset) AddMaterial(m *MaterialData) MaterialHandle {
	h := NewHandle[MaterialData](a.handles)
	a.Materials[h] = m
	return h
}

// AddTexture stores a texture and returns its handle.
func (a *ProcessedAsset) AddTexture(t *TextureData) TextureHandle {
	h := NewHandle[TextureData](a.handles)
	a.Textures[h] = t
	return h
}

// AddSkeleton stores a skeleton and returns its handle.
func (a *ProcessedAsset) AddSkeleton(s *SkeletonData) SkeletonHandle {
	h := NewHandle[SkeletonData](a.handles)
	a.Skeletons[h] = s
	return h
}

// AddAnimation stores an animation and returns its handle.
func (a *ProcessedAsset) AddAnimation(anim *AnimationData) AnimationHandle {
	h := NewHandle[AnimationData](a.handles)
	a.Animations[h] = anim
	return h
}

func lookup[T any](a *ProcessedAsset, m map[Handle[T]]*T, h Handle[T]) (*T, error) {
	if v, ok := m[h]; ok {
		return v, nil
	}
	if !h.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if err := a.handles.Check(h.ID, h.Generation); err != nil {
		return nil, err
	}
	// Live id of another kind.
	return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
}

// Mesh resolves a mesh handle.
func (a *ProcessedAsset) Mesh(h MeshHandle) (*MeshData, error) { return lookup(a, a.Meshes, h) }

// Material resolves a material handle.
func (a *ProcessedAsset) Material(h MaterialHandle) (*MaterialData, error) {
	return lookup(a, a.Materials, h)
}

// Texture resolves a texture handle.
func (a *ProcessedAsset) Texture(h TextureHandle) (*TextureData, error) {
	return lookup(a, a.Textures, h)
}

// Skeleton resolves a skeleton handle.
func (a *ProcessedAsset) Skeleton(h SkeletonHandle) (*SkeletonData, error) {
	return lookup(a, a.Skeletons, h)
}

// Animation resolves an animation handle.
func (a *ProcessedAsset) Animation(h AnimationHandle) (*AnimationData, error) {
	return lookup(a, a.Animations, h)
}

// sortedHandles returns map keys in id order so encoding is deterministic.
func sortedHandles[T any, V any](m map[Handle[T]]V) []Handle[T] {
	return slices.SortedFunc(maps.Keys(m), func(x, y Handle[T]) int {
		return cmp.Compare(x.ID, y.ID)
	})
}

// MeshHandles returns mesh handles in issue order.
func (a *ProcessedAsset) MeshHandles() []MeshHandle { return sortedHandles(a.Meshes) }

// MaterialHandles returns material handles in issue order.
func (a *ProcessedAsset) MaterialHandles() []MaterialHandle { return sortedHandles(a.Materials) }

// TextureHandles returns texture handles in issue order.
func (a *ProcessedAsset) TextureHandles() []TextureHandle { return sortedHandles(a.Textures) }

// SkeletonHandles returns skeleton handles in issue order.
func (a *ProcessedAsset) SkeletonHandles() []SkeletonHandle { return sortedHandles(a.Skeletons) }

// AnimationHandles returns animation handles in issue order.
func (a *ProcessedAsset) AnimationHandles() []AnimationHandle {
	return sortedHandles(a.Animations)
}

// RemoveAnimation drops an animation and releases its handle.
func (a *ProcessedAsset) RemoveAnimation(h AnimationHandle) {
	if _, ok := a.Animations[h]; !ok {
		return
	}
	delete(a.Animations, h)
	a.handles.Release(h.ID)
}

// ComputeStats refreshes Metadata.Stats from the current contents.
func (a *ProcessedAsset) ComputeStats() {
	st := Stats{
		Meshes:     uint32(len(a.Meshes)),
		Materials:  uint32(len(a.Materials)),
		Textures:   uint32(len(a.Textures)),
		Animations: uint32(len(a.Animations)),
		Nodes:      uint32(len(a.Nodes)),
	}
	for _, m := range a.Meshes {
		st.Vertices += m.VertexCount
		st.Triangles += uint32(len(m.Indices) / 3)
	}
	for _, s := range a.Skeletons {
		if s.Runtime != nil {
			st.Joints += uint32(s.Runtime.NumJoints())
		}
	}
	a.Metadata.Stats = st
}

// Validate checks that every mesh has in-range indices, every animation a positive duration
// and in-range node tracks, and the node graph forms a forest matching Roots.
func (a *ProcessedAsset) Validate() error {
	return a.fail(a.validate())
}

func (a *ProcessedAsset) validate() error {
	for _, h := range a.MeshHandles() {
		m := a.Meshes[h]
		if m.VertexCount == 0 || len(m.Indices) == 0 {
			return fmt.Errorf("mesh %q: %w", m.Name, ErrEmptyMesh)
		}
		if uint64(len(m.Vertices)) != uint64(m.VertexCount)*uint64(m.Format.Stride) {
			return fmt.Errorf("mesh %q: vertex buffer is %d bytes, want %d", m.Name, len(m.Vertices), m.VertexCount*m.Format.Stride)
		}
		for i, idx := range m.Indices {
			if idx >= m.VertexCount {
				return fmt.Errorf("mesh %q: %w: index %d = %d, %d vertices", m.Name, ErrIndexOutOfRange, i, idx, m.VertexCount)
			}
		}
		for i, sm := range m.Submeshes {
			if uint64(sm.IndexOffset)+uint64(sm.IndexCount) > uint64(len(m.Indices)) {
				return fmt.Errorf("mesh %q submesh %d: %w", m.Name, i, ErrSubmeshRange)
			}
		}
		if m.Skeleton.IsValid() {
			skel, ok := a.Skeletons[m.Skeleton]
			if !ok {
				return fmt.Errorf("mesh %q: %w: %s", m.Name, ErrMissingSkeleton, m.Skeleton)
			}
			if skel.Runtime != nil && len(m.InverseBindMatrices) != skel.Runtime.NumJoints() {
				return fmt.Errorf("mesh %q: %w: %d matrices, %d joints", m.Name, ErrInverseBindCount,
					len(m.InverseBindMatrices), skel.Runtime.NumJoints())
			}
		}
	}

	for _, h := range a.AnimationHandles() {
		anim := a.Animations[h]
		if !(anim.Duration > 0) {
			return fmt.Errorf("animation %q: %w: %v", anim.Name, ErrInvalidDuration, anim.Duration)
		}
		if int(anim.TargetNode) >= len(a.Nodes) {
			return fmt.Errorf("animation %q: %w: target %d of %d", anim.Name, ErrTrackTarget, anim.TargetNode, len(a.Nodes))
		}
		for node := range anim.NodeTracks {
			if node < 0 || node >= len(a.Nodes) {
				return fmt.Errorf("animation %q: %w: %d of %d", anim.Name, ErrTrackTarget, node, len(a.Nodes))
			}
		}
	}

	return a.validateNodes()
}

func (a *ProcessedAsset) validateNodes() error {
	n := len(a.Nodes)
	seen := make([]bool, n)
	for _, r := range a.Roots {
		if int(r) >= n || a.Nodes[r].Parent != -1 {
			return fmt.Errorf("%w: root %d", ErrNodeHierarchy, r)
		}
	}
	for i := range a.Nodes {
		for _, c := range a.Nodes[i].Children {
			if int(c) >= n || a.Nodes[c].Parent != int32(i) {
				return fmt.Errorf("%w: node %d child %d", ErrNodeHierarchy, i, c)
			}
		}
	}

	stack := slices.Clone(a.Roots)
	visited := 0
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[idx] {
			return fmt.Errorf("%w: node %d reached twice", ErrNodeHierarchy, idx)
		}
		seen[idx] = true
		visited++
		stack = append(stack, a.Nodes[idx].Children...)
	}
	if visited != n {
		return fmt.Errorf("%w: %d of %d nodes reachable from roots", ErrNodeHierarchy, visited, n)
	}
	return nil
}
