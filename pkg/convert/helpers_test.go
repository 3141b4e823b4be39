package convert

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/document/doctest"
	"github.com/Faultbox/assetpak/pkg/math"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

func newTestPipeline(doc *document.Document, opts Options) *pipeline {
	return newPipeline(doc, opts, skelanim.Library{}, zap.NewNop())
}

// runPipeline runs every stage in conversion order.
func runPipeline(t *testing.T, doc *document.Document, opts Options) *pipeline {
	t.Helper()
	p := newTestPipeline(doc, opts)
	p.processMaterials()
	for _, stage := range []struct {
		name string
		run  func() error
	}{
		{"meshes", p.processMeshes},
		{"skeleton", p.unifySkeleton},
		{"rebind", p.rebindMeshes},
		{"animations", p.processAnimations},
	} {
		if err := stage.run(); err != nil {
			t.Fatalf("%s: %v", stage.name, err)
		}
	}
	p.processNodes()
	return p
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

// rig is a small character: root > hips > spine, a skinned body under root, a sword held by
// the spine and a camera.
type rig struct {
	b *doctest.Builder

	root, hips, spine, body, sword, camera int
	bodyMesh, swordMesh                    int
	skin                                   int
	hipsIBM, spineIBM                      math.Mat4
}

func newRig(withIBM bool) *rig {
	b := doctest.New()
	r := &rig{b: b}

	r.root = b.Node(-1, document.NewNode("root"))
	hips := document.NewNode("hips")
	hips.Translation = math.Vec3{Y: 1}
	r.hips = b.Node(r.root, hips)
	spine := document.NewNode("spine")
	spine.Translation = math.Vec3{Y: 0.5}
	r.spine = b.Node(r.hips, spine)

	pos := b.Vec3s(math.Vec3{}, math.Vec3{X: 1}, math.Vec3{Y: 1})
	joints := b.Joints([4]uint16{0, 1, 0, 0}, [4]uint16{0, 1, 0, 0}, [4]uint16{1, 0, 0, 0})
	weights := b.Vec4s([4]float32{0.5, 0.5, 0, 0}, [4]float32{1, 3, 0, 0}, [4]float32{1, 0, 0, 0})
	r.bodyMesh = b.Mesh(document.Mesh{
		Name: "body",
		Primitives: []document.Primitive{{
			Attributes: map[string]int{
				document.AttrPosition: pos,
				document.AttrJoints0:  joints,
				document.AttrWeights0: weights,
			},
			Indices:  b.Indices(0, 1, 2),
			Material: -1,
			Mode:     document.ModeTriangles,
		}},
	})

	r.hipsIBM = math.Translate(0, -1, 0)
	r.spineIBM = math.Translate(0, -1.5, 0)
	skin := document.Skin{Name: "rig", Joints: []int{r.spine, r.hips}, InverseBindMatrices: -1, Skeleton: -1}
	if withIBM {
		skin.InverseBindMatrices = b.Mat4s(r.spineIBM, r.hipsIBM)
	}
	r.skin = b.Skin(skin)

	body := document.NewNode("body")
	body.Mesh = r.bodyMesh
	body.Skin = r.skin
	r.body = b.Node(r.root, body)

	r.swordMesh = b.Triangle("sword")
	sword := document.NewNode("sword")
	sword.Mesh = r.swordMesh
	r.sword = b.Node(r.spine, sword)

	cam := document.NewNode("camera")
	cam.Camera = 0
	r.camera = b.Node(r.root, cam)
	b.Doc().Cameras = []document.Camera{{Name: "main", Type: "perspective"}}
	return r
}

func (r *rig) doc() *document.Document { return r.b.Doc() }

func vec3Near(a, b math.Vec3, eps float32) bool {
	return abs32(a.X-b.X) < eps && abs32(a.Y-b.Y) < eps && abs32(a.Z-b.Z) < eps
}

func readVec3(buf asset.VertexBuffer, v int, attr asset.Attribute) math.Vec3 {
	var tmp [3]float32
	return math.V3([3]float32(buf.Floats(v, attr, tmp[:])))
}
