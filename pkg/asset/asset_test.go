package asset

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *ProcessedAsset)
		wantErr error
	}{
		{"valid", func(*ProcessedAsset) {}, nil},
		{"index out of range", func(a *ProcessedAsset) {
			for _, m := range a.Meshes {
				m.Indices[2] = m.VertexCount
			}
		}, ErrIndexOutOfRange},
		{"empty mesh", func(a *ProcessedAsset) {
			for _, m := range a.Meshes {
				m.Indices = nil
			}
		}, ErrEmptyMesh},
		{"submesh range", func(a *ProcessedAsset) {
			for _, m := range a.Meshes {
				m.Submeshes[0].IndexOffset = 1
			}
		}, ErrSubmeshRange},
		{"missing skeleton", func(a *ProcessedAsset) {
			for h := range a.Skeletons {
				delete(a.Skeletons, h)
			}
		}, ErrMissingSkeleton},
		{"inverse bind count", func(a *ProcessedAsset) {
			for _, m := range a.Meshes {
				m.InverseBindMatrices = m.InverseBindMatrices[:1]
			}
		}, ErrInverseBindCount},
		{"zero duration", func(a *ProcessedAsset) {
			for _, anim := range a.Animations {
				anim.Duration = 0
			}
		}, ErrInvalidDuration},
		{"track past nodes", func(a *ProcessedAsset) {
			for _, anim := range a.Animations {
				if tr, ok := anim.NodeTracks[1]; ok {
					delete(anim.NodeTracks, 1)
					anim.NodeTracks[len(a.Nodes)] = tr
				}
			}
		}, ErrTrackTarget},
		{"target past nodes", func(a *ProcessedAsset) {
			for _, anim := range a.Animations {
				if anim.TargetNode >= 0 {
					anim.TargetNode = int32(len(a.Nodes))
				}
			}
		}, ErrTrackTarget},
		{"orphan node", func(a *ProcessedAsset) {
			a.Nodes[0].Children = nil
		}, ErrNodeHierarchy},
		{"bad root", func(a *ProcessedAsset) {
			a.Roots = []uint32{1}
		}, ErrNodeHierarchy},
		{"cycle", func(a *ProcessedAsset) {
			a.Nodes[0].Parent = 1
			a.Nodes[1].Children = []uint32{0}
		}, ErrNodeHierarchy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := sampleAsset(t)
			tt.mutate(a)
			err := a.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantErr)
			}
			if err != nil && a.LastError() != err.Error() {
				t.Errorf("LastError = %q, want %q", a.LastError(), err.Error())
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	a := sampleAsset(t)
	st := a.Metadata.Stats
	want := Stats{Meshes: 1, Vertices: 3, Triangles: 1, Materials: 1, Textures: 1, Joints: 2, Animations: 2, Nodes: 2}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}

func TestRemoveAnimation(t *testing.T) {
	a := sampleAsset(t)
	handles := a.AnimationHandles()
	a.RemoveAnimation(handles[1])

	if len(a.Animations) != 1 {
		t.Fatalf("animations = %d, want 1", len(a.Animations))
	}
	if _, err := a.Animation(handles[1]); err == nil {
		t.Error("removed animation still resolves")
	}
	if _, err := a.Animation(handles[0]); err != nil {
		t.Errorf("remaining animation: %v", err)
	}
	a.RemoveAnimation(handles[1])
	if len(a.Animations) != 1 {
		t.Error("second removal changed the asset")
	}
}
