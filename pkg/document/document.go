// Package document defines the read-only in-memory scene document consumed by the converter.
// It mirrors the glTF 2.0 object model with plain int indices (-1 = absent) and provides
// bounds-checked accessor reads over the document's buffers.
package document

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Faultbox/assetpak/pkg/math"
)

// Standard vertex attribute semantics.
const (
	AttrPosition  = "POSITION"
	AttrNormal    = "NORMAL"
	AttrTangent   = "TANGENT"
	AttrTexcoord0 = "TEXCOORD_0"
	AttrTexcoord1 = "TEXCOORD_1"
	AttrColor0    = "COLOR_0"
	AttrJoints0   = "JOINTS_0"
	AttrWeights0  = "WEIGHTS_0"
)

// ComponentType is the scalar storage type of an accessor (glTF enum values).
type ComponentType uint32

const (
	ComponentByte   ComponentType = 5120
	ComponentUbyte  ComponentType = 5121
	ComponentShort  ComponentType = 5122
	ComponentUshort ComponentType = 5123
	ComponentUint   ComponentType = 5125
	ComponentFloat  ComponentType = 5126
)

// Size returns the byte size of one component, or 0 for unknown types.
func (c ComponentType) Size() int {
	switch c {
	case ComponentByte, ComponentUbyte:
		return 1
	case ComponentShort, ComponentUshort:
		return 2
	case ComponentUint, ComponentFloat:
		return 4
	default:
		return 0
	}
}

// String returns a human-readable component type name.
func (c ComponentType) String() string {
	switch c {
	case ComponentByte:
		return "BYTE"
	case ComponentUbyte:
		return "UNSIGNED_BYTE"
	case ComponentShort:
		return "SHORT"
	case ComponentUshort:
		return "UNSIGNED_SHORT"
	case ComponentUint:
		return "UNSIGNED_INT"
	case ComponentFloat:
		return "FLOAT"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(c))
	}
}

// AccessorType is the element shape of an accessor.
type AccessorType uint8

const (
	AccessorScalar AccessorType = iota
	AccessorVec2
	AccessorVec3
	AccessorVec4
	AccessorMat2
	AccessorMat3
	AccessorMat4
)

// Components returns the number of components per element.
func (t AccessorType) Components() int {
	switch t {
	case AccessorScalar:
		return 1
	case AccessorVec2:
		return 2
	case AccessorVec3:
		return 3
	case AccessorVec4, AccessorMat2:
		return 4
	case AccessorMat3:
		return 9
	case AccessorMat4:
		return 16
	default:
		return 0
	}
}

// Accessor describes a typed view into a buffer view.
type Accessor struct {
	Name          string
	BufferView    int // -1 when the accessor is all zeros (optionally sparse)
	ByteOffset    int
	ComponentType ComponentType
	Normalized    bool
	Count         int
	Type          AccessorType
	Sparse        *Sparse
}

// Sparse holds sparse substitution data for an accessor.
type Sparse struct {
	Count         int
	IndicesView   int
	IndicesOffset int
	IndicesType   ComponentType
	ValuesView    int
	ValuesOffset  int
}

// BufferView is a byte range of a buffer.
type BufferView struct {
	Buffer     int
	ByteOffset int
	ByteLength int
	ByteStride int // 0 = tightly packed
}

// Buffer holds raw binary data.
type Buffer struct {
	Name string
	Data []byte
}

// Node is a scene graph node.
type Node struct {
	Name        string
	Children    []int
	Matrix      *math.Mat4 // set when the source used a matrix instead of TRS
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
	Mesh        int
	Skin        int
	Camera      int
	Light       int
}

// NewNode returns a node with identity TRS and no attachments.
func NewNode(name string) Node {
	return Node{
		Name:     name,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Mesh:     -1,
		Skin:     -1,
		Camera:   -1,
		Light:    -1,
	}
}

// LocalMatrix returns the node's local transform.
func (n *Node) LocalMatrix() math.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return math.Compose(n.Translation, n.Rotation, n.Scale)
}

// LocalTRS returns the node's local transform as translation, rotation and scale.
func (n *Node) LocalTRS() (math.Vec3, math.Quat, math.Vec3) {
	if n.Matrix != nil {
		return math.Decompose(*n.Matrix)
	}
	return n.Translation, n.Rotation, n.Scale
}

// PrimitiveMode is the topology of a primitive.
type PrimitiveMode uint8

const (
	ModePoints PrimitiveMode = iota
	ModeLines
	ModeLineLoop
	ModeLineStrip
	ModeTriangles
	ModeTriangleStrip
	ModeTriangleFan
)

// Primitive is one draw call's worth of geometry.
type Primitive struct {
	Attributes map[string]int
	Indices    int
	Material   int
	Mode       PrimitiveMode
}

// Mesh is a list of primitives.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Skin lists the joints deforming a mesh.
type Skin struct {
	Name                string
	Joints              []int
	InverseBindMatrices int
	Skeleton            int
}

// Path is the node property targeted by an animation channel.
type Path string

const (
	PathTranslation Path = "translation"
	PathRotation    Path = "rotation"
	PathScale       Path = "scale"
	PathWeights     Path = "weights"
)

// Interpolation is the keyframe interpolation mode of a sampler.
type Interpolation string

const (
	InterpolationLinear      Interpolation = "LINEAR"
	InterpolationStep        Interpolation = "STEP"
	InterpolationCubicSpline Interpolation = "CUBICSPLINE"
)

// Channel binds a sampler to a node property.
type Channel struct {
	Sampler int
	Node    int
	Path    Path
}

// AnimationSampler pairs keyframe times with values.
type AnimationSampler struct {
	Input         int
	Output        int
	Interpolation Interpolation
}

// Animation is a named set of channels.
type Animation struct {
	Name     string
	Channels []Channel
	Samplers []AnimationSampler
}

// AlphaMode is a material's alpha rendering mode.
type AlphaMode uint8

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

// Material is a PBR metallic-roughness material.
type Material struct {
	Name                     string
	BaseColorFactor          [4]float32
	MetallicFactor           float32
	RoughnessFactor          float32
	EmissiveFactor           [3]float32
	AlphaMode                AlphaMode
	AlphaCutoff              float32
	DoubleSided              bool
	BaseColorTexture         int
	MetallicRoughnessTexture int
	NormalTexture            int
	OcclusionTexture         int
	EmissiveTexture          int
}

// NewMaterial returns a material with glTF default factors and no textures.
func NewMaterial(name string) Material {
	return Material{
		Name:                     name,
		BaseColorFactor:          [4]float32{1, 1, 1, 1},
		MetallicFactor:           1,
		RoughnessFactor:          1,
		AlphaCutoff:              0.5,
		BaseColorTexture:         -1,
		MetallicRoughnessTexture: -1,
		NormalTexture:            -1,
		OcclusionTexture:         -1,
		EmissiveTexture:          -1,
	}
}

// Texture references an image and a sampler.
type Texture struct {
	Name    string
	Source  int
	Sampler int
}

// Image is an encoded image, either external (URI) or inside a buffer view.
type Image struct {
	Name       string
	URI        string
	MimeType   string
	BufferView int
	Data       []byte // decoded data URI payload
}

// TextureSampler holds filtering and wrapping state (glTF enum values, 0 = unset).
type TextureSampler struct {
	MagFilter uint32
	MinFilter uint32
	WrapS     uint32
	WrapT     uint32
}

// Camera is a camera definition referenced by nodes.
type Camera struct {
	Name string
	Type string
}

// Scene lists root nodes.
type Scene struct {
	Name  string
	Nodes []int
}

// Document is a parsed scene document. It is treated as read-only by consumers.
type Document struct {
	Nodes       []Node
	Meshes      []Mesh
	Skins       []Skin
	Animations  []Animation
	Accessors   []Accessor
	BufferViews []BufferView
	Buffers     []Buffer
	Materials   []Material
	Textures    []Texture
	Images      []Image
	Samplers    []TextureSampler
	Cameras     []Camera
	Scenes      []Scene
	Scene       int

	// BaseDir resolves relative image URIs.
	BaseDir string
}

// Parents returns the parent index of every node (-1 for roots), derived from child lists.
func (d *Document) Parents() []int {
	parents := make([]int, len(d.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i := range d.Nodes {
		for _, c := range d.Nodes[i].Children {
			if c >= 0 && c < len(parents) && parents[c] < 0 && c != i {
				parents[c] = i
			}
		}
	}
	return parents
}

// RootNodes returns the root nodes of the active scene, or every parentless node when the
// document has no scene.
func (d *Document) RootNodes() []int {
	if d.Scene >= 0 && d.Scene < len(d.Scenes) {
		var roots []int
		for _, n := range d.Scenes[d.Scene].Nodes {
			if n >= 0 && n < len(d.Nodes) {
				roots = append(roots, n)
			}
		}
		return roots
	}

	var roots []int
	for i, p := range d.Parents() {
		if p < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// HasAnimation reports whether any animation channel targets a node transform.
func (d *Document) HasAnimation() bool {
	for i := range d.Animations {
		for _, ch := range d.Animations[i].Channels {
			if ch.Path != PathWeights && ch.Node >= 0 {
				return true
			}
		}
	}
	return false
}

// ImageData returns the encoded bytes of an image from its data URI payload, its buffer
// view, or its external file relative to BaseDir.
func (d *Document) ImageData(index int) ([]byte, error) {
	if index < 0 || index >= len(d.Images) {
		return nil, fmt.Errorf("image index %d out of range", index)
	}
	img := d.Images[index]
	switch {
	case img.Data != nil:
		return img.Data, nil
	case img.BufferView >= 0:
		_, data, err := d.viewRange(img.BufferView)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", index, err)
		}
		return data, nil
	case img.URI != "":
		name, err := url.PathUnescape(img.URI)
		if err != nil {
			name = img.URI
		}
		data, err := os.ReadFile(filepath.Join(d.BaseDir, filepath.FromSlash(name)))
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", index, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("image %d has no data", index)
}
