package convert

import (
	"encoding/binary"
	stdmath "math"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
)

// dressedRig adds two textures, one embedded and one external, and a material to the rig.
func dressedRig() *rig {
	r := newRig(true)
	r.walk()
	doc := r.doc()
	doc.Images = []document.Image{
		{Name: "skin", MimeType: "image/png", BufferView: -1, Data: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "wood", URI: "textures/wood.jpg", BufferView: -1},
	}
	doc.Samplers = []document.TextureSampler{{MagFilter: 9729, MinFilter: 9987, WrapS: 10497, WrapT: 33071}}
	doc.Textures = []document.Texture{
		{Name: "skin", Source: 0, Sampler: 0},
		{Source: 1, Sampler: -1},
	}
	mat := document.NewMaterial("body")
	mat.BaseColorTexture = 0
	mat.NormalTexture = 1
	mat.AlphaMode = document.AlphaMask
	doc.Materials = []document.Material{mat}
	doc.Meshes[r.bodyMesh].Primitives[0].Material = 0
	return r
}

func testConverter(opts Options) *Converter {
	c := NewConverter(opts)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestConverterProgress(t *testing.T) {
	c := testConverter(DefaultOptions())
	var fractions []float32
	var stages []string
	c.Progress = func(f float32, stage string) {
		fractions = append(fractions, f)
		stages = append(stages, stage)
	}

	if _, err := c.Process(dressedRig().doc(), "rig.gltf"); err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []float32{0, 0.1, 0.2, 0.3, 0.5, 0.6, 0.7, 0.85, 0.95, 1}
	if !slices.Equal(fractions, want) {
		t.Errorf("fractions = %v, want %v", fractions, want)
	}
	if stages[0] != StageLoading || stages[len(stages)-1] != StageDone {
		t.Errorf("stages = %v", stages)
	}
}

func TestConverterProcess(t *testing.T) {
	c := testConverter(DefaultOptions())
	out, err := c.Process(dressedRig().doc(), filepath.Join("models", "rig.gltf"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	md := out.Metadata
	if md.Name != "rig" || md.Generator != Generator || md.CreatedAt != 1700000000 {
		t.Errorf("metadata = %+v", md)
	}
	if md.AssetID == "" || md.AssetID != assetID(filepath.Join("models", "rig.gltf")) {
		t.Errorf("AssetID = %q", md.AssetID)
	}
	want := asset.Stats{Meshes: 2, Vertices: 6, Triangles: 2, Materials: 1, Textures: 2, Joints: 3, Animations: 1, Nodes: 6}
	if md.Stats != want {
		t.Errorf("stats = %+v, want %+v", md.Stats, want)
	}

	textures := out.TextureHandles()
	skin, _ := out.Texture(textures[0])
	wood, _ := out.Texture(textures[1])
	if string(skin.Data) != "\x89PNG" || skin.URI != "" || skin.MagFilter != 9729 || skin.WrapT != 33071 {
		t.Errorf("embedded texture = %+v", skin)
	}
	if wood.Data != nil || wood.URI != "textures/wood.jpg" || wood.MimeType != "image/jpeg" || wood.Name != "texture_1" {
		t.Errorf("external texture = %+v", wood)
	}

	mat, err := out.Material(out.MaterialHandles()[0])
	if err != nil {
		t.Fatalf("Material: %v", err)
	}
	if mat.BaseColorTexture != textures[0] || mat.NormalTexture != textures[1] || mat.AlphaMode != asset.AlphaMask {
		t.Errorf("material = %+v", mat)
	}

	// Preorder: root, hips, spine, sword, body, camera.
	if len(out.Nodes) != 6 || !slices.Equal(out.Roots, []uint32{0}) {
		t.Fatalf("nodes = %d, roots = %v", len(out.Nodes), out.Roots)
	}
	names := make([]string, len(out.Nodes))
	for i, n := range out.Nodes {
		names[i] = n.Name
	}
	if want := []string{"root", "hips", "spine", "sword", "body", "camera"}; !slices.Equal(names, want) {
		t.Errorf("node order = %v, want %v", names, want)
	}
	sword, body, camera := out.Nodes[3], out.Nodes[4], out.Nodes[5]
	if sword.Parent != 2 || !sword.Mesh.IsValid() || !sword.Skeleton.IsValid() || sword.Joint != -1 {
		t.Errorf("sword = %+v", sword)
	}
	if !body.Skeleton.IsValid() || body.Joint != -1 {
		t.Errorf("body = %+v", body)
	}
	if camera.Camera != 0 || camera.Light != -1 {
		t.Errorf("camera = %+v", camera)
	}
	if out.Nodes[1].Joint != 1 || !out.Nodes[1].AnimationTarget {
		t.Errorf("hips = %+v", out.Nodes[1])
	}
}

func TestConverterRoundTrip(t *testing.T) {
	out, err := testConverter(DefaultOptions()).Process(dressedRig().doc(), "rig.gltf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	path := filepath.Join(t.TempDir(), "rig.apak")
	if err := out.Serialize(path); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	back := asset.New()
	if err := back.Deserialize(path); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if back.Metadata != out.Metadata {
		t.Errorf("metadata = %+v, want %+v", back.Metadata, out.Metadata)
	}
	back.ComputeStats()
	if back.Metadata.Stats != out.Metadata.Stats {
		t.Errorf("recomputed stats = %+v", back.Metadata.Stats)
	}
	if err := back.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	anim, _ := back.Animation(back.AnimationHandles()[0])
	if anim.Skeletal == nil || anim.Skeletal.Name() != "walk" || anim.Duration != 1.5 {
		t.Errorf("animation = %+v", anim)
	}
}

func TestConverterLastError(t *testing.T) {
	c := testConverter(DefaultOptions())
	if _, err := c.ProcessFile(filepath.Join(t.TempDir(), "missing.glb")); err == nil {
		t.Fatal("ProcessFile of a missing file succeeded")
	}
	if c.LastError() == "" {
		t.Error("LastError empty after a failure")
	}

	b := newRig(true).b
	b.Mesh(document.Mesh{Name: "broken", Primitives: []document.Primitive{{
		Attributes: map[string]int{}, Indices: -1, Material: -1, Mode: document.ModeTriangles,
	}}})
	if _, err := c.Process(b.Doc(), "broken.gltf"); err == nil {
		t.Fatal("Process of a mesh without positions succeeded")
	}
	if c.LastError() == "" {
		t.Error("LastError empty after a failure")
	}

	if _, err := c.Process(newRig(true).doc(), "rig.gltf"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if c.LastError() != "" {
		t.Errorf("LastError = %q after a success", c.LastError())
	}
}

func TestConverterImportFlags(t *testing.T) {
	opts := DefaultOptions()
	opts.ImportMaterials = false
	opts.ImportAnimations = false
	out, err := testConverter(opts).Process(dressedRig().doc(), "rig.gltf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out.Materials) != 0 || len(out.Textures) != 0 || len(out.Animations) != 0 {
		t.Errorf("imported %d materials, %d textures, %d animations", len(out.Materials), len(out.Textures), len(out.Animations))
	}
	for _, h := range out.MeshHandles() {
		m, _ := out.Mesh(h)
		for _, sm := range m.Submeshes {
			if sm.Material.IsValid() {
				t.Errorf("mesh %q references a material", m.Name)
			}
		}
	}
}

func TestConverterEmbedTexturesDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.EmbedTextures = false
	out, err := testConverter(opts).Process(dressedRig().doc(), "rig.gltf")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, h := range out.TextureHandles() {
		tex, _ := out.Texture(h)
		if tex.Data != nil {
			t.Errorf("texture %q embedded", tex.Name)
		}
	}
}

func TestAssetID(t *testing.T) {
	a := assetID("models/rig.gltf")
	if a != assetID("models/rig.gltf") {
		t.Error("asset id not stable")
	}
	if a == assetID("models/other.gltf") {
		t.Error("different sources share an asset id")
	}
}

func TestProcessFileGLB(t *testing.T) {
	data := make([]byte, 42)
	for i, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.LittleEndian.PutUint32(data[i*4:], stdmath.Float32bits(v))
	}
	for i, v := range []uint16{0, 1, 2} {
		binary.LittleEndian.PutUint16(data[36+i*2:], v)
	}
	src := &gltf.Document{
		Buffers: []*gltf.Buffer{{ByteLength: 42, Data: data}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteLength: 36},
			{Buffer: 0, ByteOffset: 36, ByteLength: 6},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Count: 3, Type: gltf.AccessorVec3},
			{BufferView: gltf.Index(1), ComponentType: gltf.ComponentUshort, Count: 3, Type: gltf.AccessorScalar},
		},
		Meshes: []*gltf.Mesh{{
			Name: "tri",
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{"POSITION": 0},
				Indices:    gltf.Index(1),
			}},
		}},
		Nodes:  []*gltf.Node{{Name: "tri", Mesh: gltf.Index(0)}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
		Scene:  gltf.Index(0),
	}
	path := filepath.Join(t.TempDir(), "tri.glb")
	if err := gltf.SaveBinary(src, path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}

	out, err := ProcessFile(path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Metadata.Name != "tri" || out.Metadata.SourcePath != path {
		t.Errorf("metadata = %+v", out.Metadata)
	}
	if st := out.Metadata.Stats; st.Meshes != 1 || st.Vertices != 3 || st.Triangles != 1 || st.Nodes != 1 {
		t.Errorf("stats = %+v", st)
	}
}
