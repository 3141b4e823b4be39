// Package doctest builds in-memory documents for tests.
package doctest

import (
	"encoding/binary"
	"math"

	"github.com/Faultbox/assetpak/pkg/document"
	amath "github.com/Faultbox/assetpak/pkg/math"
)

// Builder packs typed data into a single buffer and appends accessors for it.
type Builder struct {
	doc *document.Document
	buf []byte
}

// New returns a builder for an empty document with one buffer and no scene.
func New() *Builder {
	return &Builder{
		doc: &document.Document{
			Buffers: []document.Buffer{{Name: "data"}},
			Scene:   -1,
		},
	}
}

// Doc returns the document under construction. The buffer is synced on every call.
func (b *Builder) Doc() *document.Document {
	b.doc.Buffers[0].Data = b.buf
	return b.doc
}

func (b *Builder) align() {
	for len(b.buf)%4 != 0 {
		b.buf = append(b.buf, 0)
	}
}

// Raw appends raw bytes as a buffer view and returns the view index.
func (b *Builder) Raw(data []byte, stride int) int {
	b.align()
	off := len(b.buf)
	b.buf = append(b.buf, data...)
	b.doc.BufferViews = append(b.doc.BufferViews, document.BufferView{
		Buffer:     0,
		ByteOffset: off,
		ByteLength: len(data),
		ByteStride: stride,
	})
	return len(b.doc.BufferViews) - 1
}

// Accessor appends an accessor over a view and returns its index.
func (b *Builder) Accessor(acc document.Accessor) int {
	b.doc.Accessors = append(b.doc.Accessors, acc)
	return len(b.doc.Accessors) - 1
}

func (b *Builder) floats(t document.AccessorType, vals []float32) int {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	view := b.Raw(data, 0)
	return b.Accessor(document.Accessor{
		BufferView:    view,
		ComponentType: document.ComponentFloat,
		Count:         len(vals) / t.Components(),
		Type:          t,
	})
}

// Scalars appends a float SCALAR accessor.
func (b *Builder) Scalars(vals ...float32) int {
	return b.floats(document.AccessorScalar, vals)
}

// Vec2s appends a float VEC2 accessor.
func (b *Builder) Vec2s(vals ...[2]float32) int {
	flat := make([]float32, 0, len(vals)*2)
	for _, v := range vals {
		flat = append(flat, v[:]...)
	}
	return b.floats(document.AccessorVec2, flat)
}

// Vec3s appends a float VEC3 accessor.
func (b *Builder) Vec3s(vals ...amath.Vec3) int {
	flat := make([]float32, 0, len(vals)*3)
	for _, v := range vals {
		flat = append(flat, v.X, v.Y, v.Z)
	}
	return b.floats(document.AccessorVec3, flat)
}

// Vec4s appends a float VEC4 accessor.
func (b *Builder) Vec4s(vals ...[4]float32) int {
	flat := make([]float32, 0, len(vals)*4)
	for _, v := range vals {
		flat = append(flat, v[:]...)
	}
	return b.floats(document.AccessorVec4, flat)
}

// Mat4s appends a float MAT4 accessor.
func (b *Builder) Mat4s(vals ...amath.Mat4) int {
	flat := make([]float32, 0, len(vals)*16)
	for _, v := range vals {
		flat = append(flat, v[:]...)
	}
	return b.floats(document.AccessorMat4, flat)
}

// Indices appends an UNSIGNED_SHORT SCALAR accessor.
func (b *Builder) Indices(vals ...uint16) int {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	view := b.Raw(data, 0)
	return b.Accessor(document.Accessor{
		BufferView:    view,
		ComponentType: document.ComponentUshort,
		Count:         len(vals),
		Type:          document.AccessorScalar,
	})
}

// Joints appends an UNSIGNED_SHORT VEC4 accessor.
func (b *Builder) Joints(vals ...[4]uint16) int {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		for c := 0; c < 4; c++ {
			binary.LittleEndian.PutUint16(data[i*8+c*2:], v[c])
		}
	}
	view := b.Raw(data, 0)
	return b.Accessor(document.Accessor{
		BufferView:    view,
		ComponentType: document.ComponentUshort,
		Count:         len(vals),
		Type:          document.AccessorVec4,
	})
}

// Node appends a node and returns its index. A non-negative parent gets it as a child.
func (b *Builder) Node(parent int, n document.Node) int {
	b.doc.Nodes = append(b.doc.Nodes, n)
	idx := len(b.doc.Nodes) - 1
	if parent >= 0 {
		b.doc.Nodes[parent].Children = append(b.doc.Nodes[parent].Children, idx)
	}
	return idx
}

// Mesh appends a mesh and returns its index.
func (b *Builder) Mesh(m document.Mesh) int {
	b.doc.Meshes = append(b.doc.Meshes, m)
	return len(b.doc.Meshes) - 1
}

// Triangle appends a one-triangle mesh with positions only.
func (b *Builder) Triangle(name string) int {
	pos := b.Vec3s(
		amath.Vec3{X: 0, Y: 0, Z: 0},
		amath.Vec3{X: 1, Y: 0, Z: 0},
		amath.Vec3{X: 0, Y: 1, Z: 0},
	)
	idx := b.Indices(0, 1, 2)
	return b.Mesh(document.Mesh{
		Name: name,
		Primitives: []document.Primitive{{
			Attributes: map[string]int{document.AttrPosition: pos},
			Indices:    idx,
			Material:   -1,
			Mode:       document.ModeTriangles,
		}},
	})
}

// Skin appends a skin and returns its index.
func (b *Builder) Skin(s document.Skin) int {
	b.doc.Skins = append(b.doc.Skins, s)
	return len(b.doc.Skins) - 1
}

// Animation appends an animation and returns its index.
func (b *Builder) Animation(a document.Animation) int {
	b.doc.Animations = append(b.doc.Animations, a)
	return len(b.doc.Animations) - 1
}

// Channel adds a linear channel with a new sampler to an animation.
func (b *Builder) Channel(anim, node int, path document.Path, times []float32, values int) {
	a := &b.doc.Animations[anim]
	a.Samplers = append(a.Samplers, document.AnimationSampler{
		Input:         b.Scalars(times...),
		Output:        values,
		Interpolation: document.InterpolationLinear,
	})
	a.Channels = append(a.Channels, document.Channel{
		Sampler: len(a.Samplers) - 1,
		Node:    node,
		Path:    path,
	})
}

// Material appends a material and returns its index.
func (b *Builder) Material(m document.Material) int {
	b.doc.Materials = append(b.doc.Materials, m)
	return len(b.doc.Materials) - 1
}
