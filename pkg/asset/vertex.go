package asset

import "math"

// VertexBuffer is a typed view over an interleaved vertex byte buffer.
type VertexBuffer struct {
	Format VertexFormat
	Data   []byte
}

// NewVertexBuffer allocates a zeroed buffer for count vertices.
func NewVertexBuffer(format VertexFormat, count int) VertexBuffer {
	return VertexBuffer{Format: format, Data: make([]byte, count*int(format.Stride))}
}

// Len returns the number of vertices in the buffer.
func (b VertexBuffer) Len() int {
	if b.Format.Stride == 0 {
		return 0
	}
	return len(b.Data) / int(b.Format.Stride)
}

func (b VertexBuffer) slot(vertex int, a Attribute) []byte {
	desc := b.Format.Attributes[a]
	start := vertex*int(b.Format.Stride) + int(desc.Offset)
	return b.Data[start : start+int(desc.Size())]
}

// Floats reads a float attribute of one vertex into dst and returns it. Missing attributes
// read as zeros.
func (b VertexBuffer) Floats(vertex int, a Attribute, dst []float32) []float32 {
	if !b.Format.Has(a) || b.Format.Attributes[a].Type != ComponentFloat32 {
		clear(dst)
		return dst
	}
	p := b.slot(vertex, a)
	for i := range dst {
		if 4*i+4 > len(p) {
			dst[i] = 0
			continue
		}
		dst[i] = math.Float32frombits(byteOrder.Uint32(p[4*i:]))
	}
	return dst
}

// SetFloats writes a float attribute of one vertex. Extra values are ignored.
func (b VertexBuffer) SetFloats(vertex int, a Attribute, v ...float32) {
	if !b.Format.Has(a) || b.Format.Attributes[a].Type != ComponentFloat32 {
		return
	}
	p := b.slot(vertex, a)
	for i, f := range v {
		if 4*i+4 > len(p) {
			break
		}
		byteOrder.PutUint32(p[4*i:], math.Float32bits(f))
	}
}

// Joints reads the joint indices of one vertex.
func (b VertexBuffer) Joints(vertex int) [4]uint16 {
	var j [4]uint16
	if !b.Format.Has(AttrJoints0) {
		return j
	}
	p := b.slot(vertex, AttrJoints0)
	for i := range j {
		j[i] = byteOrder.Uint16(p[2*i:])
	}
	return j
}

// SetJoints writes the joint indices of one vertex.
func (b VertexBuffer) SetJoints(vertex int, j [4]uint16) {
	if !b.Format.Has(AttrJoints0) {
		return
	}
	p := b.slot(vertex, AttrJoints0)
	for i, v := range j {
		byteOrder.PutUint16(p[2*i:], v)
	}
}

// Relayout copies the buffer into format to. Attributes present in both formats are copied
// byte for byte; attributes new in to are left zeroed.
func (b VertexBuffer) Relayout(to VertexFormat) VertexBuffer {
	n := b.Len()
	out := NewVertexBuffer(to, n)
	for a := Attribute(0); a < AttributeCount; a++ {
		if !b.Format.Has(a) || !to.Has(a) {
			continue
		}
		for v := 0; v < n; v++ {
			copy(out.slot(v, a), b.slot(v, a))
		}
	}
	return out
}

// VertexBuffer returns a view over the mesh's vertices.
func (m *MeshData) VertexBuffer() VertexBuffer {
	return VertexBuffer{Format: m.Format, Data: m.Vertices}
}

// SetVertexBuffer replaces the mesh's format and vertices.
func (m *MeshData) SetVertexBuffer(b VertexBuffer) {
	m.Format = b.Format
	m.Vertices = b.Data
	m.VertexCount = uint32(b.Len())
}
