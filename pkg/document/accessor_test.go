package document_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/document/doctest"
	amath "github.com/Faultbox/assetpak/pkg/math"
)

func TestReadVec3(t *testing.T) {
	b := doctest.New()
	acc := b.Vec3s(amath.Vec3{X: 1, Y: 2, Z: 3}, amath.Vec3{X: 4, Y: 5, Z: 6})
	doc := b.Doc()

	got, err := doc.ReadVec3(acc)
	if err != nil {
		t.Fatalf("ReadVec3: %v", err)
	}
	want := []amath.Vec3{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	if len(got) != len(want) {
		t.Fatalf("got %d elements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReadInterleaved(t *testing.T) {
	// Two VEC3 elements interleaved with a 4-byte pad: stride 16.
	data := make([]byte, 32)
	for i, v := range []float32{1, 2, 3} {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	for i, v := range []float32{7, 8, 9} {
		binary.LittleEndian.PutUint32(data[16+i*4:], math.Float32bits(v))
	}

	b := doctest.New()
	view := b.Raw(data, 16)
	acc := b.Accessor(document.Accessor{
		BufferView:    view,
		ComponentType: document.ComponentFloat,
		Count:         2,
		Type:          document.AccessorVec3,
	})

	got, err := b.Doc().ReadVec3(acc)
	if err != nil {
		t.Fatalf("ReadVec3: %v", err)
	}
	if got[1] != (amath.Vec3{X: 7, Y: 8, Z: 9}) {
		t.Errorf("second element = %v, want (7,8,9)", got[1])
	}
}

func TestReadNormalized(t *testing.T) {
	tests := []struct {
		name string
		ct   document.ComponentType
		data []byte
		want float32
	}{
		{"ubyte max", document.ComponentUbyte, []byte{255}, 1},
		{"ubyte zero", document.ComponentUbyte, []byte{0}, 0},
		{"byte min clamps", document.ComponentByte, []byte{0x80}, -1},
		{"ushort max", document.ComponentUshort, []byte{0xFF, 0xFF}, 1},
		{"short max", document.ComponentShort, []byte{0xFF, 0x7F}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := doctest.New()
			view := b.Raw(tt.data, 0)
			acc := b.Accessor(document.Accessor{
				BufferView:    view,
				ComponentType: tt.ct,
				Normalized:    true,
				Count:         1,
				Type:          document.AccessorScalar,
			})
			got, err := b.Doc().ReadScalars(acc)
			if err != nil {
				t.Fatalf("ReadScalars: %v", err)
			}
			if got[0] != tt.want {
				t.Errorf("got %v, want %v", got[0], tt.want)
			}
		})
	}
}

func TestReadBounds(t *testing.T) {
	tests := []struct {
		name    string
		acc     func(b *doctest.Builder) int
		wantErr error
	}{
		{
			name: "count exceeds view",
			acc: func(b *doctest.Builder) int {
				view := b.Raw(make([]byte, 12), 0)
				return b.Accessor(document.Accessor{
					BufferView: view, ComponentType: document.ComponentFloat,
					Count: 2, Type: document.AccessorVec3,
				})
			},
			wantErr: document.ErrAccessorRange,
		},
		{
			name: "offset past view",
			acc: func(b *doctest.Builder) int {
				view := b.Raw(make([]byte, 12), 0)
				return b.Accessor(document.Accessor{
					BufferView: view, ByteOffset: 4, ComponentType: document.ComponentFloat,
					Count: 1, Type: document.AccessorVec3,
				})
			},
			wantErr: document.ErrAccessorRange,
		},
		{
			name: "stride smaller than element",
			acc: func(b *doctest.Builder) int {
				view := b.Raw(make([]byte, 24), 8)
				return b.Accessor(document.Accessor{
					BufferView: view, ComponentType: document.ComponentFloat,
					Count: 2, Type: document.AccessorVec3,
				})
			},
			wantErr: document.ErrAccessorStride,
		},
		{
			name: "missing buffer view",
			acc: func(b *doctest.Builder) int {
				return b.Accessor(document.Accessor{
					BufferView: 42, ComponentType: document.ComponentFloat,
					Count: 1, Type: document.AccessorVec3,
				})
			},
			wantErr: document.ErrBufferViewIndex,
		},
		{
			name:    "missing accessor",
			acc:     func(b *doctest.Builder) int { return 99 },
			wantErr: document.ErrAccessorIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := doctest.New()
			acc := tt.acc(b)
			_, err := b.Doc().ReadVec3(acc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadViewPastBuffer(t *testing.T) {
	b := doctest.New()
	view := b.Raw(make([]byte, 12), 0)
	acc := b.Accessor(document.Accessor{
		BufferView: view, ComponentType: document.ComponentFloat,
		Count: 1, Type: document.AccessorVec3,
	})
	doc := b.Doc()
	doc.BufferViews[view].ByteLength = 64

	if _, err := doc.ReadVec3(acc); !errors.Is(err, document.ErrBufferViewRange) {
		t.Errorf("got error %v, want %v", err, document.ErrBufferViewRange)
	}
}

func TestReadShapeMismatch(t *testing.T) {
	b := doctest.New()
	acc := b.Vec2s([2]float32{1, 2})
	if _, err := b.Doc().ReadVec3(acc); !errors.Is(err, document.ErrAccessorShape) {
		t.Errorf("got error %v, want %v", err, document.ErrAccessorShape)
	}
}

func TestReadSparse(t *testing.T) {
	b := doctest.New()
	base := b.Scalars(0, 0, 0, 0)

	idx := make([]byte, 4)
	binary.LittleEndian.PutUint16(idx[0:], 1)
	binary.LittleEndian.PutUint16(idx[2:], 3)
	vals := make([]byte, 8)
	binary.LittleEndian.PutUint32(vals[0:], math.Float32bits(5))
	binary.LittleEndian.PutUint32(vals[4:], math.Float32bits(9))

	doc := b.Doc()
	doc.Accessors[base].Sparse = &document.Sparse{
		Count:       2,
		IndicesView: b.Raw(idx, 0),
		IndicesType: document.ComponentUshort,
		ValuesView:  b.Raw(vals, 0),
	}
	doc = b.Doc()

	got, err := doc.ReadScalars(base)
	if err != nil {
		t.Fatalf("ReadScalars: %v", err)
	}
	want := []float32{0, 5, 0, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReadSparseWithoutView(t *testing.T) {
	b := doctest.New()
	idx := make([]byte, 2)
	binary.LittleEndian.PutUint16(idx, 7)
	vals := make([]byte, 4)
	binary.LittleEndian.PutUint32(vals, math.Float32bits(1))

	acc := b.Accessor(document.Accessor{
		BufferView:    -1,
		ComponentType: document.ComponentFloat,
		Count:         3,
		Type:          document.AccessorScalar,
		Sparse: &document.Sparse{
			Count:       1,
			IndicesView: b.Raw(idx, 0),
			IndicesType: document.ComponentUshort,
			ValuesView:  b.Raw(vals, 0),
		},
	})

	if _, err := b.Doc().ReadScalars(acc); !errors.Is(err, document.ErrSparseIndex) {
		t.Errorf("got error %v, want %v", err, document.ErrSparseIndex)
	}
}

func TestReadIndices(t *testing.T) {
	b := doctest.New()
	acc := b.Indices(0, 1, 2, 2, 1, 3)
	got, err := b.Doc().ReadIndices(acc)
	if err != nil {
		t.Fatalf("ReadIndices: %v", err)
	}
	if len(got) != 6 || got[5] != 3 {
		t.Errorf("got %v", got)
	}

	floats := b.Scalars(1, 2, 3)
	if _, err := b.Doc().ReadIndices(floats); !errors.Is(err, document.ErrIndexComponent) {
		t.Errorf("float indices: got error %v, want %v", err, document.ErrIndexComponent)
	}
}

func TestReadJoints(t *testing.T) {
	b := doctest.New()
	acc := b.Joints([4]uint16{1, 2, 3, 4})
	got, err := b.Doc().ReadJoints(acc)
	if err != nil {
		t.Fatalf("ReadJoints: %v", err)
	}
	if got[0] != [4]uint16{1, 2, 3, 4} {
		t.Errorf("got %v", got[0])
	}
}

func TestReadColors(t *testing.T) {
	b := doctest.New()
	acc := b.Vec3s(amath.Vec3{X: 0.5, Y: 0.25, Z: 1})
	got, err := b.Doc().ReadColors(acc)
	if err != nil {
		t.Fatalf("ReadColors: %v", err)
	}
	if got[0] != [4]float32{0.5, 0.25, 1, 1} {
		t.Errorf("got %v, want alpha filled with 1", got[0])
	}
}
