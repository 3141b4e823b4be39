package asset

import "fmt"

// Attribute is a vertex attribute kind. The numeric order is the canonical layout order.
type Attribute uint8

const (
	AttrPosition Attribute = iota
	AttrNormal
	AttrTangent
	AttrUV0
	AttrUV1
	AttrColor0
	AttrJoints0
	AttrWeights0

	AttributeCount
)

var attributeNames = [AttributeCount]string{
	"position", "normal", "tangent", "uv0", "uv1", "color0", "joints0", "weights0",
}

func (a Attribute) String() string {
	if a < AttributeCount {
		return attributeNames[a]
	}
	return fmt.Sprintf("attribute(%d)", uint8(a))
}

// Bit returns the attribute's bit in a format mask.
func (a Attribute) Bit() uint32 { return 1 << a }

// ComponentType is the storage type of one attribute component.
type ComponentType uint8

const (
	ComponentFloat32 ComponentType = iota
	ComponentUint16
)

// Size returns the byte size of one component.
func (c ComponentType) Size() uint32 {
	if c == ComponentUint16 {
		return 2
	}
	return 4
}

// AttributeDesc locates one attribute inside an interleaved vertex.
type AttributeDesc struct {
	Offset     uint32
	Components uint8
	Type       ComponentType
	Normalized bool
}

// Size returns the attribute's byte size.
func (d AttributeDesc) Size() uint32 { return uint32(d.Components) * d.Type.Size() }

var attributeLayout = [AttributeCount]AttributeDesc{
	AttrPosition: {Components: 3, Type: ComponentFloat32},
	AttrNormal:   {Components: 3, Type: ComponentFloat32},
	AttrTangent:  {Components: 4, Type: ComponentFloat32},
	AttrUV0:      {Components: 2, Type: ComponentFloat32},
	AttrUV1:      {Components: 2, Type: ComponentFloat32},
	AttrColor0:   {Components: 4, Type: ComponentFloat32},
	AttrJoints0:  {Components: 4, Type: ComponentUint16},
	AttrWeights0: {Components: 4, Type: ComponentFloat32},
}

// VertexFormat describes an interleaved vertex layout.
type VertexFormat struct {
	Mask       uint32
	Attributes [AttributeCount]AttributeDesc
	Stride     uint32
}

// NewVertexFormat lays out the attributes in mask in canonical order.
func NewVertexFormat(mask uint32) VertexFormat {
	f := VertexFormat{Mask: mask & (1<<AttributeCount - 1)}
	for a := Attribute(0); a < AttributeCount; a++ {
		if !f.Has(a) {
			continue
		}
		desc := attributeLayout[a]
		desc.Offset = f.Stride
		f.Attributes[a] = desc
		f.Stride += desc.Size()
	}
	return f
}

// FormatMask builds a mask from attributes.
func FormatMask(attrs ...Attribute) uint32 {
	var mask uint32
	for _, a := range attrs {
		mask |= a.Bit()
	}
	return mask
}

// Has reports whether the format contains a.
func (f VertexFormat) Has(a Attribute) bool { return f.Mask&a.Bit() != 0 }

// With returns the format extended with attrs.
func (f VertexFormat) With(attrs ...Attribute) VertexFormat {
	return NewVertexFormat(f.Mask | FormatMask(attrs...))
}

// String lists the attributes present.
func (f VertexFormat) String() string {
	s := ""
	for a := Attribute(0); a < AttributeCount; a++ {
		if f.Has(a) {
			if s != "" {
				s += "|"
			}
			s += a.String()
		}
	}
	return fmt.Sprintf("%s (stride %d)", s, f.Stride)
}
