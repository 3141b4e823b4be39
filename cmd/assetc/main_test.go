package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/internal/config"
	"github.com/Faultbox/assetpak/pkg/asset"
)

// writeTriangle saves a one-triangle GLB scene to path.
func writeTriangle(t *testing.T, path string) {
	t.Helper()
	data := make([]byte, 42)
	for i, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	for i, v := range []uint16{0, 1, 2} {
		binary.LittleEndian.PutUint16(data[36+i*2:], v)
	}
	doc := &gltf.Document{
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
			Name:       "tri",
			Primitives: []*gltf.Primitive{{Attributes: map[string]uint32{"POSITION": 0}, Indices: gltf.Index(1)}},
		}},
		Nodes:  []*gltf.Node{{Name: "tri", Mesh: gltf.Index(0)}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
		Scene:  gltf.Index(0),
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}
}

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Output.Directory = filepath.Join(t.TempDir(), "out")
	return &app{cfg: cfg, out: &out, log: zap.NewNop()}, &out
}

func TestConvertAndInspect(t *testing.T) {
	a, out := testApp(t)
	src := filepath.Join(t.TempDir(), "models")
	if err := os.MkdirAll(filepath.Join(src, "props"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTriangle(t, filepath.Join(src, "props", "tri.glb"))
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := a.run(ctx, "convert", []string{src}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	pkg := filepath.Join(a.cfg.Output.Directory, "tri.apak")
	if !strings.Contains(out.String(), "-> "+pkg) {
		t.Errorf("convert output = %q", out.String())
	}

	out.Reset()
	if err := a.run(ctx, "info", []string{pkg}); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"METADATA", "STRING_TABLE", "Name:      tri", "Vertices: 3", "Generator: assetpak"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := a.run(ctx, "validate", []string{pkg}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.HasPrefix(out.String(), "ok ") {
		t.Errorf("validate output = %q", out.String())
	}

	out.Reset()
	if err := a.run(ctx, "dump", []string{"-only", "meshes", pkg}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), `"tri"`) || strings.Contains(out.String(), "==") {
		t.Errorf("dump output = %q", out.String())
	}
}

func TestConvertRefusesOverwrite(t *testing.T) {
	a, _ := testApp(t)
	src := filepath.Join(t.TempDir(), "tri.glb")
	writeTriangle(t, src)

	if _, err := a.convertFile(src); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	if _, err := a.convertFile(src); err == nil {
		t.Fatal("second convert overwrote the package")
	}
	a.cfg.Output.Overwrite = true
	if _, err := a.convertFile(src); err != nil {
		t.Fatalf("convert with overwrite: %v", err)
	}
}

func TestConvertWithoutChecksum(t *testing.T) {
	a, _ := testApp(t)
	a.cfg.Output.Checksum = false
	src := filepath.Join(t.TempDir(), "tri.glb")
	writeTriangle(t, src)

	dst, err := a.convertFile(src)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	hdr, _, err := asset.ReadHeader(data)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Flags&asset.FlagChecksum != 0 {
		t.Errorf("flags = %b, checksum flag set", hdr.Flags)
	}
}

func TestValidateReportsCorruptPackage(t *testing.T) {
	a, out := testApp(t)
	bad := filepath.Join(t.TempDir(), "bad.apak")
	if err := os.WriteFile(bad, []byte("not a package"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := a.run(context.Background(), "validate", []string{bad}); err == nil {
		t.Fatal("validate accepted a corrupt package")
	}
	if !strings.HasPrefix(out.String(), "FAIL ") {
		t.Errorf("validate output = %q", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"unknown command", "explode", nil},
		{"convert without sources", "convert", nil},
		{"info without packages", "info", nil},
		{"dump with two packages", "dump", []string{"a.apak", "b.apak"}},
		{"bad flag", "convert", []string{"-nope", "x.glb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := testApp(t)
			err := a.run(context.Background(), tt.cmd, tt.args)
			if !errors.Is(err, errUsage) {
				t.Errorf("run() error = %v, want usage error", err)
			}
		})
	}
}

func TestDumpUnknownSection(t *testing.T) {
	a, _ := testApp(t)
	src := filepath.Join(t.TempDir(), "tri.glb")
	writeTriangle(t, src)
	dst, err := a.convertFile(src)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := a.run(context.Background(), "dump", []string{"-only", "lights", dst}); !errors.Is(err, errUsage) {
		t.Errorf("dump error = %v, want usage error", err)
	}
}

func TestWatchConvertsChangedSources(t *testing.T) {
	a, _ := testApp(t)
	a.cfg.Output.Overwrite = true
	dir := t.TempDir()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := addWatch(w, dir); err != nil {
		t.Fatalf("addWatch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, w, 50*time.Millisecond) }()

	writeTriangle(t, filepath.Join(dir, "tri.glb"))
	pkg := filepath.Join(a.cfg.Output.Directory, "tri.apak")

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(pkg); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("package not written after source change")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch: %v", err)
	}
}
