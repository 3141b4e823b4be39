package convert

import (
	"testing"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/document/doctest"
	"github.com/Faultbox/assetpak/pkg/math"
)

func tangentMesh(t *testing.T, positions []math.Vec3, uvs [][2]float32, indices []uint16) *asset.MeshData {
	t.Helper()
	b := doctest.New()
	attrs := map[string]int{document.AttrPosition: b.Vec3s(positions...)}
	if uvs != nil {
		attrs[document.AttrTexcoord0] = b.Vec2s(uvs...)
	}
	b.Mesh(document.Mesh{Name: "surface", Primitives: []document.Primitive{{
		Attributes: attrs, Indices: b.Indices(indices...), Material: -1, Mode: document.ModeTriangles,
	}}})

	p := newTestPipeline(b.Doc(), DefaultOptions())
	if err := p.processMeshes(); err != nil {
		t.Fatalf("processMeshes: %v", err)
	}
	mesh, err := p.out.Mesh(p.meshes[0])
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	return mesh
}

// checkFrames verifies unit normals and unit tangents orthogonal to them.
func checkFrames(t *testing.T, mesh *asset.MeshData) []float32 {
	t.Helper()
	if !mesh.Format.Has(asset.AttrNormal) || !mesh.Format.Has(asset.AttrTangent) {
		t.Fatalf("format %v lacks a tangent frame", mesh.Format)
	}
	buf := mesh.VertexBuffer()
	signs := make([]float32, buf.Len())
	var tmp [4]float32
	for v := 0; v < buf.Len(); v++ {
		n := readVec3(buf, v, asset.AttrNormal)
		tan := buf.Floats(v, asset.AttrTangent, tmp[:])
		tv := math.Vec3{X: tan[0], Y: tan[1], Z: tan[2]}

		if abs32(n.Length()-1) > 1e-3 {
			t.Errorf("vertex %d: |normal| = %v", v, n.Length())
		}
		if abs32(tv.Length()-1) > 1e-3 {
			t.Errorf("vertex %d: |tangent| = %v", v, tv.Length())
		}
		if d := abs32(n.Dot(tv)); d > 1e-3 {
			t.Errorf("vertex %d: normal . tangent = %v", v, d)
		}
		if tan[3] != 1 && tan[3] != -1 {
			t.Errorf("vertex %d: handedness = %v", v, tan[3])
		}
		signs[v] = tan[3]
	}
	return signs
}

func TestTangentFrameWithUVs(t *testing.T) {
	// A tent: two slopes meeting at a ridge.
	positions := []math.Vec3{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1},
		{X: 0, Y: 2, Z: 0}, {X: 1, Y: 2, Z: 0},
	}
	uvs := [][2]float32{{0, 0}, {1, 0}, {0, 0.5}, {1, 0.5}, {0, 1}, {1, 1}}
	mesh := tangentMesh(t, positions, uvs, []uint16{0, 1, 3, 0, 3, 2, 2, 3, 5, 2, 5, 4})
	checkFrames(t, mesh)

	buf := mesh.VertexBuffer()
	var tmp [4]float32
	for v := 0; v < buf.Len(); v++ {
		tan := buf.Floats(v, asset.AttrTangent, tmp[:])
		if !vec3Near(math.Vec3{X: tan[0], Y: tan[1], Z: tan[2]}, math.Vec3{X: 1}, 1e-3) {
			t.Errorf("vertex %d: tangent = %v, want +X along u", v, tan)
		}
	}
}

func TestTangentFrameHandedness(t *testing.T) {
	positions := []math.Vec3{{}, {X: 1}, {Y: 1}}
	tests := []struct {
		name string
		uvs  [][2]float32
		want float32
	}{
		{"right handed", [][2]float32{{0, 0}, {1, 0}, {0, 1}}, 1},
		{"mirrored u", [][2]float32{{1, 0}, {0, 0}, {1, 1}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signs := checkFrames(t, tangentMesh(t, positions, tt.uvs, []uint16{0, 1, 2}))
			for v, s := range signs {
				if s != tt.want {
					t.Errorf("vertex %d: handedness = %v, want %v", v, s, tt.want)
				}
			}
		})
	}
}

func TestTangentFrameWithoutUVs(t *testing.T) {
	positions := []math.Vec3{{}, {X: 1}, {X: 1, Y: 1, Z: 0.5}, {Y: 1, Z: 0.5}}
	mesh := tangentMesh(t, positions, nil, []uint16{0, 1, 2, 0, 2, 3})
	for v, s := range checkFrames(t, mesh) {
		if s != 1 {
			t.Errorf("vertex %d: handedness = %v, want 1", v, s)
		}
	}
}

func TestOrthogonalTangent(t *testing.T) {
	for _, n := range []math.Vec3{
		{X: 1}, {Y: 1}, {Z: 1}, {X: -1}, math.Vec3{X: 1, Y: 1, Z: 1}.Normalize(), math.Vec3{X: 0.1, Y: -0.9, Z: 0.3}.Normalize(),
	} {
		tv := orthogonalTangent(n)
		if abs32(tv.Length()-1) > 1e-4 || abs32(tv.Dot(n)) > 1e-4 {
			t.Errorf("orthogonalTangent(%v) = %v", n, tv)
		}
	}
}
