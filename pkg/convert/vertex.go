package convert

import (
	"errors"
	"fmt"
	stdmath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/math"
)

var (
	ErrMissingAttribute = errors.New("missing required vertex attribute")
	ErrAttributeCount   = errors.New("attribute count differs from position count")
)

const (
	// DedupEpsilon is the per-component tolerance for merging vertices.
	DedupEpsilon = 1e-6
	// dedupCell is the edge of one spatial hash cell; it must not be smaller than DedupEpsilon.
	dedupCell = 1e-3
)

// vertex is one canonical vertex before interleaving.
type vertex struct {
	pos     math.Vec3
	normal  math.Vec3
	tangent [4]float32
	uv0     [2]float32
	uv1     [2]float32
	color   [4]float32
	joints  [4]uint16
	weights [4]float32
}

func defaultVertex() vertex {
	return vertex{
		normal:  math.Vec3{Y: 1},
		tangent: [4]float32{1, 0, 0, 1},
		color:   [4]float32{1, 1, 1, 1},
		weights: [4]float32{1, 0, 0, 0},
	}
}

var sourceAttributes = []struct {
	name string
	attr asset.Attribute
}{
	{document.AttrPosition, asset.AttrPosition},
	{document.AttrNormal, asset.AttrNormal},
	{document.AttrTangent, asset.AttrTangent},
	{document.AttrTexcoord0, asset.AttrUV0},
	{document.AttrTexcoord1, asset.AttrUV1},
	{document.AttrColor0, asset.AttrColor0},
	{document.AttrJoints0, asset.AttrJoints0},
	{document.AttrWeights0, asset.AttrWeights0},
}

// primitiveMask returns the format mask of the attributes a primitive provides. Joints and
// weights always travel together.
func primitiveMask(prim *document.Primitive) uint32 {
	var mask uint32
	for _, sa := range sourceAttributes {
		if idx, ok := prim.Attributes[sa.name]; ok && idx >= 0 {
			mask |= sa.attr.Bit()
		}
	}
	skin := asset.FormatMask(asset.AttrJoints0, asset.AttrWeights0)
	if mask&skin != 0 {
		mask |= skin
	}
	return mask
}

func attributeIndex(prim *document.Primitive, name string) (int, bool) {
	idx, ok := prim.Attributes[name]
	return idx, ok && idx >= 0
}

// extractPrimitive reads one triangle primitive into canonical vertices and a triangle list.
func (p *pipeline) extractPrimitive(mesh string, prim *document.Primitive) ([]vertex, []uint32, error) {
	doc := p.doc
	posIdx, ok := attributeIndex(prim, document.AttrPosition)
	if !ok {
		return nil, nil, fmt.Errorf("mesh %q: %w: %s", mesh, ErrMissingAttribute, document.AttrPosition)
	}
	positions, err := doc.ReadVec3(posIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("mesh %q positions: %w", mesh, err)
	}
	n := len(positions)
	verts := make([]vertex, n)
	for i := range verts {
		verts[i] = defaultVertex()
		verts[i].pos = positions[i]
	}

	checkCount := func(name string, got int) error {
		if got != n {
			return fmt.Errorf("mesh %q %s: %w: %d vs %d", mesh, name, ErrAttributeCount, got, n)
		}
		return nil
	}

	if idx, ok := attributeIndex(prim, document.AttrNormal); ok {
		normals, err := doc.ReadVec3(idx)
		if err == nil {
			err = checkCount(document.AttrNormal, len(normals))
		}
		if err != nil {
			return nil, nil, err
		}
		for i, nv := range normals {
			verts[i].normal = nv
		}
	}
	if idx, ok := attributeIndex(prim, document.AttrTangent); ok {
		tangents, err := doc.ReadVec4(idx)
		if err == nil {
			err = checkCount(document.AttrTangent, len(tangents))
		}
		if err != nil {
			return nil, nil, err
		}
		for i, t := range tangents {
			verts[i].tangent = t
		}
	}
	for _, uv := range []struct {
		name string
		set  func(v *vertex, uv [2]float32)
	}{
		{document.AttrTexcoord0, func(v *vertex, uv [2]float32) { v.uv0 = uv }},
		{document.AttrTexcoord1, func(v *vertex, uv [2]float32) { v.uv1 = uv }},
	} {
		idx, ok := attributeIndex(prim, uv.name)
		if !ok {
			continue
		}
		uvs, err := doc.ReadVec2(idx)
		if err == nil {
			err = checkCount(uv.name, len(uvs))
		}
		if err != nil {
			return nil, nil, err
		}
		for i := range uvs {
			uv.set(&verts[i], uvs[i])
		}
	}
	if idx, ok := attributeIndex(prim, document.AttrColor0); ok {
		colors, err := doc.ReadColors(idx)
		if err == nil {
			err = checkCount(document.AttrColor0, len(colors))
		}
		if err != nil {
			return nil, nil, err
		}
		for i, c := range colors {
			verts[i].color = c
		}
	}
	if idx, ok := attributeIndex(prim, document.AttrJoints0); ok {
		joints, err := doc.ReadJoints(idx)
		if err == nil {
			err = checkCount(document.AttrJoints0, len(joints))
		}
		if err != nil {
			return nil, nil, err
		}
		for i, j := range joints {
			verts[i].joints = j
		}
	}
	if idx, ok := attributeIndex(prim, document.AttrWeights0); ok {
		weights, err := doc.ReadVec4(idx)
		if err == nil {
			err = checkCount(document.AttrWeights0, len(weights))
		}
		if err != nil {
			return nil, nil, err
		}
		for i, w := range weights {
			verts[i].weights = normalizeWeights(w)
		}
	}

	var indices []uint32
	if prim.Indices >= 0 {
		if indices, err = doc.ReadIndices(prim.Indices); err != nil {
			return nil, nil, fmt.Errorf("mesh %q indices: %w", mesh, err)
		}
	} else {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if rem := len(indices) % 3; rem != 0 {
		p.warn("mesh %q: dropping %d trailing indices of an incomplete triangle", mesh, rem)
		indices = indices[:len(indices)-rem]
	}
	for i, idx := range indices {
		if int(idx) >= n {
			return nil, nil, fmt.Errorf("mesh %q: %w: index %d = %d, %d vertices", mesh, asset.ErrIndexOutOfRange, i, idx, n)
		}
	}
	return verts, indices, nil
}

// normalizeWeights scales w to sum to 1. All-zero weights are left as they are.
func normalizeWeights(w [4]float32) [4]float32 {
	sum := w[0] + w[1] + w[2] + w[3]
	if sum <= 0 {
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func near(a, b float32) bool {
	return stdmath.Abs(float64(a-b)) < DedupEpsilon
}

func nearVec3(a, b math.Vec3) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z)
}

// sameVertex compares the dedup key: position, normal, uv0, joints and weights.
func sameVertex(a, b *vertex) bool {
	if a.joints != b.joints {
		return false
	}
	if !nearVec3(a.pos, b.pos) || !nearVec3(a.normal, b.normal) {
		return false
	}
	if !near(a.uv0[0], b.uv0[0]) || !near(a.uv0[1], b.uv0[1]) {
		return false
	}
	for i := range a.weights {
		if !near(a.weights[i], b.weights[i]) {
			return false
		}
	}
	return true
}

type cell [3]int64

func cellOf(v math.Vec3) cell {
	return cell{
		int64(stdmath.Floor(float64(v.X) / dedupCell)),
		int64(stdmath.Floor(float64(v.Y) / dedupCell)),
		int64(stdmath.Floor(float64(v.Z) / dedupCell)),
	}
}

// dedupVertices merges equal vertices, keeping the first of each, and rewrites indices to the
// merged set. Candidates are looked up in the 27 cells around each position.
func dedupVertices(verts []vertex, indices []uint32) ([]vertex, []uint32) {
	grid := make(map[cell][]uint32, len(verts))
	remap := make([]uint32, len(verts))
	unique := make([]vertex, 0, len(verts))

	for i := range verts {
		v := &verts[i]
		c := cellOf(v.pos)
		found := -1
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, u := range grid[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
						if sameVertex(&unique[u], v) {
							found = int(u)
							break search
						}
					}
				}
			}
		}
		if found < 0 {
			found = len(unique)
			unique = append(unique, *v)
			grid[c] = append(grid[c], uint32(found))
		}
		remap[i] = uint32(found)
	}

	out := make([]uint32, len(indices))
	for i, idx := range indices {
		out[i] = remap[idx]
	}
	return unique, out
}

func bounds(verts []vertex) (math.Vec3, math.Vec3) {
	if len(verts) == 0 {
		return math.Vec3{}, math.Vec3{}
	}
	lo, hi := verts[0].pos, verts[0].pos
	for i := 1; i < len(verts); i++ {
		p := verts[i].pos
		lo = math.Vec3{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = math.Vec3{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi
}

// packVertices interleaves vertices in format's canonical layout.
func packVertices(format asset.VertexFormat, verts []vertex) asset.VertexBuffer {
	buf := asset.NewVertexBuffer(format, len(verts))
	for i := range verts {
		v := &verts[i]
		buf.SetFloats(i, asset.AttrPosition, v.pos.X, v.pos.Y, v.pos.Z)
		buf.SetFloats(i, asset.AttrNormal, v.normal.X, v.normal.Y, v.normal.Z)
		buf.SetFloats(i, asset.AttrTangent, v.tangent[:]...)
		buf.SetFloats(i, asset.AttrUV0, v.uv0[:]...)
		buf.SetFloats(i, asset.AttrUV1, v.uv1[:]...)
		buf.SetFloats(i, asset.AttrColor0, v.color[:]...)
		buf.SetJoints(i, v.joints)
		buf.SetFloats(i, asset.AttrWeights0, v.weights[:]...)
	}
	return buf
}

func (p *pipeline) materialHandle(mesh string, index int) asset.MaterialHandle {
	if index < 0 {
		return asset.MaterialHandle{}
	}
	if index >= len(p.materials) {
		p.warn("mesh %q: material %d out of range", mesh, index)
		return asset.MaterialHandle{}
	}
	return p.materials[index]
}

// processMesh converts one document mesh. Primitives become submeshes of a single vertex and
// index buffer; a mesh without triangle primitives is skipped with a warning.
func (p *pipeline) processMesh(index int) (asset.MeshHandle, error) {
	src := &p.doc.Meshes[index]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", index)
	}

	mask := asset.AttrPosition.Bit()
	var prims []*document.Primitive
	for i := range src.Primitives {
		prim := &src.Primitives[i]
		if prim.Mode != document.ModeTriangles {
			p.warn("mesh %q primitive %d: unsupported topology %d, skipped", name, i, prim.Mode)
			continue
		}
		mask |= primitiveMask(prim)
		prims = append(prims, prim)
	}
	if len(prims) == 0 {
		p.warn("mesh %q has no triangle primitives, skipped", name)
		return asset.MeshHandle{}, nil
	}
	format := asset.NewVertexFormat(mask)

	var (
		all       []vertex
		indices   []uint32
		submeshes []asset.Submesh
		inputs    int
	)
	for _, prim := range prims {
		verts, idx, err := p.extractPrimitive(name, prim)
		if err != nil {
			return asset.MeshHandle{}, err
		}
		inputs += len(verts)
		unique, remapped := dedupVertices(verts, idx)

		base := uint32(len(all))
		offset := len(indices)
		for _, i := range remapped {
			indices = append(indices, i+base)
		}
		all = append(all, unique...)
		if p.opts.OptimizeVertexCache {
			copy(indices[offset:], OptimizeVertexCache(indices[offset:], len(all)))
		}

		sm := asset.Submesh{
			IndexOffset: uint32(offset),
			IndexCount:  uint32(len(remapped)),
			BaseVertex:  base,
			Material:    p.materialHandle(name, prim.Material),
		}
		sm.Min, sm.Max = bounds(unique)
		submeshes = append(submeshes, sm)
	}

	if len(all) == 0 || len(indices) == 0 {
		p.warn("mesh %q has no triangles, skipped", name)
		return asset.MeshHandle{}, nil
	}

	mesh := &asset.MeshData{Name: name, Indices: indices, Submeshes: submeshes}
	mesh.SetVertexBuffer(packVertices(format, all))

	needNormals := !format.Has(asset.AttrNormal)
	needTangents := p.opts.GenerateTangents && !format.Has(asset.AttrTangent)
	if needNormals || needTangents {
		synthesizeTangentFrame(mesh, needNormals, needTangents)
	}

	p.log.Debug("mesh processed",
		zap.String("mesh", name),
		zap.Int("input_vertices", inputs),
		zap.Uint32("vertices", mesh.VertexCount),
		zap.Int("triangles", len(indices)/3),
		zap.Stringer("format", mesh.Format))
	return p.out.AddMesh(mesh), nil
}

// processMeshes converts every document mesh.
func (p *pipeline) processMeshes() error {
	for i := range p.doc.Meshes {
		h, err := p.processMesh(i)
		if err != nil {
			return err
		}
		p.meshes[i] = h
	}
	return nil
}
