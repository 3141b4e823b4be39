package document

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/qmuntal/gltf"
)

func TestFromGLTF(t *testing.T) {
	data := make([]byte, 36)
	for i, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	src := &gltf.Document{
		Buffers:     []*gltf.Buffer{{ByteLength: 36, Data: data}},
		BufferViews: []*gltf.BufferView{{Buffer: 0, ByteLength: 36}},
		Accessors: []*gltf.Accessor{{
			BufferView:    gltf.Index(0),
			ComponentType: gltf.ComponentFloat,
			Count:         3,
			Type:          gltf.AccessorVec3,
		}},
		Meshes: []*gltf.Mesh{{
			Name: "tri",
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{"POSITION": 0},
			}},
		}},
		Nodes: []*gltf.Node{
			{Name: "root", Children: []uint32{1}, Translation: [3]float32{1, 2, 3}},
			{
				Name: "lamp",
				Mesh: gltf.Index(0),
				Extensions: gltf.Extensions{
					extLightsPunctual: json.RawMessage(`{"light":2}`),
				},
			},
		},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
		Scene:  gltf.Index(0),
	}

	doc, err := FromGLTF(src)
	if err != nil {
		t.Fatalf("FromGLTF: %v", err)
	}

	if len(doc.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(doc.Nodes))
	}
	root := doc.Nodes[0]
	if root.Translation.X != 1 || root.Translation.Z != 3 {
		t.Errorf("root translation = %v", root.Translation)
	}
	if root.Rotation.W != 1 || root.Scale.X != 1 {
		t.Errorf("root rotation/scale defaults not applied: %v %v", root.Rotation, root.Scale)
	}
	if root.Matrix != nil {
		t.Error("TRS node should not carry a matrix")
	}

	lamp := doc.Nodes[1]
	if lamp.Mesh != 0 || lamp.Skin != -1 || lamp.Camera != -1 {
		t.Errorf("lamp attachments = mesh %d skin %d camera %d", lamp.Mesh, lamp.Skin, lamp.Camera)
	}
	if lamp.Light != 2 {
		t.Errorf("lamp light = %d, want 2", lamp.Light)
	}

	prim := doc.Meshes[0].Primitives[0]
	if prim.Mode != ModeTriangles || prim.Indices != -1 || prim.Material != -1 {
		t.Errorf("primitive = %+v", prim)
	}
	pos, err := doc.ReadVec3(prim.Attributes[AttrPosition])
	if err != nil {
		t.Fatalf("ReadVec3: %v", err)
	}
	if pos[2].Y != 1 {
		t.Errorf("third position = %v", pos[2])
	}

	if roots := doc.RootNodes(); len(roots) != 1 || roots[0] != 0 {
		t.Errorf("roots = %v", roots)
	}
}

func TestFromGLTFShortBuffer(t *testing.T) {
	src := &gltf.Document{
		Buffers: []*gltf.Buffer{{ByteLength: 16, Data: make([]byte, 4)}},
	}
	if _, err := FromGLTF(src); err == nil {
		t.Error("expected error for buffer shorter than declared length")
	}
}

func TestLightIndex(t *testing.T) {
	tests := []struct {
		name string
		ext  gltf.Extensions
		want int
	}{
		{"nil", nil, -1},
		{"absent", gltf.Extensions{"OTHER": json.RawMessage(`{}`)}, -1},
		{"object", gltf.Extensions{extLightsPunctual: json.RawMessage(`{"light":0}`)}, 0},
		{"decoded map", gltf.Extensions{extLightsPunctual: map[string]any{"light": 3}}, 3},
		{"malformed", gltf.Extensions{extLightsPunctual: json.RawMessage(`"x"`)}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lightIndex(tt.ext); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
