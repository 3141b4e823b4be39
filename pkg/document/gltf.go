package document

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/Faultbox/assetpak/pkg/math"
)

const extLightsPunctual = "KHR_lights_punctual"

// Load opens a .gltf or .glb file and converts it to a Document.
// External buffers are resolved relative to the file.
func Load(path string) (*Document, error) {
	src, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	doc, err := FromGLTF(src)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to convert %q", path)
	}
	doc.BaseDir = filepath.Dir(path)
	return doc, nil
}

func index(p *uint32) int {
	if p == nil {
		return -1
	}
	return int(*p)
}

func indices(src []uint32) []int {
	if len(src) == 0 {
		return nil
	}
	out := make([]int, len(src))
	for i, v := range src {
		out[i] = int(v)
	}
	return out
}

// FromGLTF converts a decoded glTF document. Buffers must already be loaded.
func FromGLTF(src *gltf.Document) (*Document, error) {
	if src == nil {
		return nil, errors.New("nil gltf document")
	}
	doc := &Document{Scene: index(src.Scene)}

	for i, b := range src.Buffers {
		if b == nil {
			return nil, errors.Errorf("buffer %d is nil", i)
		}
		if len(b.Data) < int(b.ByteLength) {
			return nil, errors.Errorf("buffer %d has %d bytes, declared %d", i, len(b.Data), b.ByteLength)
		}
		doc.Buffers = append(doc.Buffers, Buffer{Name: b.Name, Data: b.Data})
	}

	for _, v := range src.BufferViews {
		doc.BufferViews = append(doc.BufferViews, BufferView{
			Buffer:     int(v.Buffer),
			ByteOffset: int(v.ByteOffset),
			ByteLength: int(v.ByteLength),
			ByteStride: int(v.ByteStride),
		})
	}

	for i, a := range src.Accessors {
		acc, err := convertAccessor(a)
		if err != nil {
			return nil, errors.Wrapf(err, "accessor %d", i)
		}
		doc.Accessors = append(doc.Accessors, acc)
	}

	for _, n := range src.Nodes {
		doc.Nodes = append(doc.Nodes, convertNode(n))
	}

	for _, m := range src.Meshes {
		mesh := Mesh{Name: m.Name}
		for _, p := range m.Primitives {
			prim := Primitive{
				Attributes: make(map[string]int, len(p.Attributes)),
				Indices:    index(p.Indices),
				Material:   index(p.Material),
				Mode:       convertMode(p.Mode),
			}
			for name, acc := range p.Attributes {
				prim.Attributes[name] = int(acc)
			}
			mesh.Primitives = append(mesh.Primitives, prim)
		}
		doc.Meshes = append(doc.Meshes, mesh)
	}

	for _, s := range src.Skins {
		doc.Skins = append(doc.Skins, Skin{
			Name:                s.Name,
			Joints:              indices(s.Joints),
			InverseBindMatrices: index(s.InverseBindMatrices),
			Skeleton:            index(s.Skeleton),
		})
	}

	for _, a := range src.Animations {
		anim := Animation{Name: a.Name}
		for _, s := range a.Samplers {
			anim.Samplers = append(anim.Samplers, AnimationSampler{
				Input:         index(s.Input),
				Output:        index(s.Output),
				Interpolation: convertInterpolation(s.Interpolation),
			})
		}
		for _, c := range a.Channels {
			anim.Channels = append(anim.Channels, Channel{
				Sampler: index(c.Sampler),
				Node:    index(c.Target.Node),
				Path:    convertPath(c.Target.Path),
			})
		}
		doc.Animations = append(doc.Animations, anim)
	}

	for _, m := range src.Materials {
		doc.Materials = append(doc.Materials, convertMaterial(m))
	}

	for _, t := range src.Textures {
		doc.Textures = append(doc.Textures, Texture{
			Name:    t.Name,
			Source:  index(t.Source),
			Sampler: index(t.Sampler),
		})
	}

	for i, img := range src.Images {
		image := Image{
			Name:       img.Name,
			URI:        img.URI,
			MimeType:   img.MimeType,
			BufferView: index(img.BufferView),
		}
		if strings.HasPrefix(img.URI, "data:") {
			data, err := img.MarshalData()
			if err != nil {
				return nil, errors.Wrapf(err, "image %d", i)
			}
			image.Data = data
			image.URI = ""
		}
		doc.Images = append(doc.Images, image)
	}

	for _, s := range src.Samplers {
		doc.Samplers = append(doc.Samplers, convertSampler(s))
	}

	for _, c := range src.Cameras {
		cam := Camera{Name: c.Name, Type: "perspective"}
		if c.Orthographic != nil {
			cam.Type = "orthographic"
		}
		doc.Cameras = append(doc.Cameras, cam)
	}

	for _, s := range src.Scenes {
		doc.Scenes = append(doc.Scenes, Scene{Name: s.Name, Nodes: indices(s.Nodes)})
	}

	return doc, nil
}

func convertComponent(ct gltf.ComponentType) ComponentType {
	switch ct {
	case gltf.ComponentByte:
		return ComponentByte
	case gltf.ComponentUbyte:
		return ComponentUbyte
	case gltf.ComponentShort:
		return ComponentShort
	case gltf.ComponentUshort:
		return ComponentUshort
	case gltf.ComponentUint:
		return ComponentUint
	case gltf.ComponentFloat:
		return ComponentFloat
	default:
		return 0
	}
}

func convertAccessor(a *gltf.Accessor) (Accessor, error) {
	acc := Accessor{
		Name:          a.Name,
		BufferView:    index(a.BufferView),
		ByteOffset:    int(a.ByteOffset),
		ComponentType: convertComponent(a.ComponentType),
		Normalized:    a.Normalized,
		Count:         int(a.Count),
	}
	switch a.Type {
	case gltf.AccessorScalar:
		acc.Type = AccessorScalar
	case gltf.AccessorVec2:
		acc.Type = AccessorVec2
	case gltf.AccessorVec3:
		acc.Type = AccessorVec3
	case gltf.AccessorVec4:
		acc.Type = AccessorVec4
	case gltf.AccessorMat2:
		acc.Type = AccessorMat2
	case gltf.AccessorMat3:
		acc.Type = AccessorMat3
	case gltf.AccessorMat4:
		acc.Type = AccessorMat4
	default:
		return Accessor{}, errors.Errorf("unknown accessor type %v", a.Type)
	}
	if a.Sparse != nil {
		acc.Sparse = &Sparse{
			Count:         int(a.Sparse.Count),
			IndicesView:   int(a.Sparse.Indices.BufferView),
			IndicesOffset: int(a.Sparse.Indices.ByteOffset),
			IndicesType:   convertComponent(a.Sparse.Indices.ComponentType),
			ValuesView:    int(a.Sparse.Values.BufferView),
			ValuesOffset:  int(a.Sparse.Values.ByteOffset),
		}
	}
	return acc, nil
}

func convertNode(n *gltf.Node) Node {
	node := NewNode(n.Name)
	node.Children = indices(n.Children)
	node.Mesh = index(n.Mesh)
	node.Skin = index(n.Skin)
	node.Camera = index(n.Camera)
	node.Light = lightIndex(n.Extensions)

	var m math.Mat4
	for i, v := range n.MatrixOrDefault() {
		m[i] = float32(v)
	}
	if !m.ApproxEqual(math.Identity(), 0) {
		node.Matrix = &m
		node.Translation, node.Rotation, node.Scale = math.Decompose(m)
		return node
	}

	t := n.Translation
	node.Translation = math.Vec3{X: float32(t[0]), Y: float32(t[1]), Z: float32(t[2])}
	r := n.RotationOrDefault()
	node.Rotation = math.Quat{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}
	s := n.ScaleOrDefault()
	node.Scale = math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])}
	return node
}

// lightIndex extracts the KHR_lights_punctual light index from node extensions.
func lightIndex(ext gltf.Extensions) int {
	if ext == nil {
		return -1
	}
	raw, ok := ext[extLightsPunctual]
	if !ok {
		return -1
	}
	var payload []byte
	switch v := raw.(type) {
	case json.RawMessage:
		payload = v
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return -1
		}
		payload = b
	}
	var light struct {
		Light *int `json:"light"`
	}
	if err := json.Unmarshal(payload, &light); err != nil || light.Light == nil {
		// Some decoders store the bare index.
		var idx int
		if json.Unmarshal(payload, &idx) == nil {
			return idx
		}
		return -1
	}
	return *light.Light
}

func convertMode(m gltf.PrimitiveMode) PrimitiveMode {
	switch m {
	case gltf.PrimitivePoints:
		return ModePoints
	case gltf.PrimitiveLines:
		return ModeLines
	case gltf.PrimitiveLineLoop:
		return ModeLineLoop
	case gltf.PrimitiveLineStrip:
		return ModeLineStrip
	case gltf.PrimitiveTriangleStrip:
		return ModeTriangleStrip
	case gltf.PrimitiveTriangleFan:
		return ModeTriangleFan
	default:
		return ModeTriangles
	}
}

func convertInterpolation(i gltf.Interpolation) Interpolation {
	switch i {
	case gltf.InterpolationStep:
		return InterpolationStep
	case gltf.InterpolationCubicSpline:
		return InterpolationCubicSpline
	default:
		return InterpolationLinear
	}
}

func convertPath(p gltf.TRSProperty) Path {
	switch p {
	case gltf.TRSRotation:
		return PathRotation
	case gltf.TRSScale:
		return PathScale
	case gltf.TRSWeights:
		return PathWeights
	default:
		return PathTranslation
	}
}

func convertMaterial(m *gltf.Material) Material {
	mat := NewMaterial(m.Name)
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		for i, v := range pbr.BaseColorFactorOrDefault() {
			mat.BaseColorFactor[i] = float32(v)
		}
		mat.MetallicFactor = float32(pbr.MetallicFactorOrDefault())
		mat.RoughnessFactor = float32(pbr.RoughnessFactorOrDefault())
		if pbr.BaseColorTexture != nil {
			mat.BaseColorTexture = int(pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			mat.MetallicRoughnessTexture = int(pbr.MetallicRoughnessTexture.Index)
		}
	}
	for i, v := range m.EmissiveFactor {
		mat.EmissiveFactor[i] = float32(v)
	}
	if m.NormalTexture != nil {
		mat.NormalTexture = index(m.NormalTexture.Index)
	}
	if m.OcclusionTexture != nil {
		mat.OcclusionTexture = index(m.OcclusionTexture.Index)
	}
	if m.EmissiveTexture != nil {
		mat.EmissiveTexture = int(m.EmissiveTexture.Index)
	}
	switch m.AlphaMode {
	case gltf.AlphaMask:
		mat.AlphaMode = AlphaMask
	case gltf.AlphaBlend:
		mat.AlphaMode = AlphaBlend
	default:
		mat.AlphaMode = AlphaOpaque
	}
	mat.AlphaCutoff = float32(m.AlphaCutoffOrDefault())
	mat.DoubleSided = m.DoubleSided
	return mat
}

func convertSampler(s *gltf.Sampler) TextureSampler {
	var out TextureSampler
	switch s.MagFilter {
	case gltf.MagNearest:
		out.MagFilter = 9728
	case gltf.MagLinear:
		out.MagFilter = 9729
	}
	switch s.MinFilter {
	case gltf.MinNearest:
		out.MinFilter = 9728
	case gltf.MinLinear:
		out.MinFilter = 9729
	case gltf.MinNearestMipMapNearest:
		out.MinFilter = 9984
	case gltf.MinLinearMipMapNearest:
		out.MinFilter = 9985
	case gltf.MinNearestMipMapLinear:
		out.MinFilter = 9986
	case gltf.MinLinearMipMapLinear:
		out.MinFilter = 9987
	}
	out.WrapS = wrapCode(s.WrapS)
	out.WrapT = wrapCode(s.WrapT)
	return out
}

func wrapCode(w gltf.WrappingMode) uint32 {
	switch w {
	case gltf.WrapClampToEdge:
		return 33071
	case gltf.WrapMirroredRepeat:
		return 33648
	default:
		return 10497
	}
}
