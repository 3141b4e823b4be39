package convert

import (
	stdmath "math"
	"slices"
	"testing"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/document/doctest"
	"github.com/Faultbox/assetpak/pkg/math"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

// walk adds an animation moving the hips and bending the spine.
func (r *rig) walk() int {
	b := r.b
	anim := b.Animation(document.Animation{Name: "walk"})
	bend := math.QuatFromAxisAngle(math.Vec3{Z: 1}, stdmath.Pi/2)
	b.Channel(anim, r.spine, document.PathRotation, []float32{0, 0.5},
		b.Vec4s(math.QuatIdentity().Array(), bend.Array()))
	b.Channel(anim, r.hips, document.PathTranslation, []float32{0, 1.5},
		b.Vec3s(math.Vec3{Y: 1}, math.Vec3{Y: 1, Z: 3}))
	b.Channel(anim, r.spine, document.PathTranslation, []float32{0, 1},
		b.Vec3s(math.Vec3{Y: 0.5}, math.Vec3{Y: 0.75}))
	return anim
}

func onlyAnimation(t *testing.T, p *pipeline) *asset.AnimationData {
	t.Helper()
	handles := p.out.AnimationHandles()
	if len(handles) != 1 {
		t.Fatalf("animations = %d, want 1 (warnings %q)", len(handles), p.warnings)
	}
	anim, err := p.out.Animation(handles[0])
	if err != nil {
		t.Fatalf("Animation: %v", err)
	}
	return anim
}

type keyCounts struct{ t, r, s int }

func counts(a *skelanim.Animation, track int) keyCounts {
	t, r, s := a.KeyCounts(track)
	return keyCounts{t, r, s}
}

func TestSkeletalAnimation(t *testing.T) {
	r := newRig(true)
	r.walk()
	p := runPipeline(t, r.doc(), DefaultOptions())
	anim := onlyAnimation(t, p)
	u := p.skeleton
	rootJ, _ := u.Joint(r.root)
	hipsJ, _ := u.Joint(r.hips)
	spineJ, _ := u.Joint(r.spine)

	if anim.Skeletal == nil || anim.Skeleton != u.Handle {
		t.Fatalf("animation not skeletal: %+v", anim)
	}
	if anim.Duration != 1.5 {
		t.Errorf("Duration = %v, want 1.5", anim.Duration)
	}
	if anim.RootMotionJoint != int32(hipsJ) {
		t.Errorf("RootMotionJoint = %d, want %d", anim.RootMotionJoint, hipsJ)
	}
	if anim.Skeletal.NumTracks() != u.NumJoints() {
		t.Fatalf("tracks = %d, want %d", anim.Skeletal.NumTracks(), u.NumJoints())
	}

	for joint, want := range map[int]keyCounts{
		rootJ:  {1, 1, 1},
		hipsJ:  {2, 1, 1},
		spineJ: {2, 2, 1},
	} {
		if got := counts(anim.Skeletal, joint); got != want {
			t.Errorf("joint %d keys = %+v, want %+v", joint, got, want)
		}
	}
	if len(anim.NodeTracks) != 0 {
		t.Errorf("node tracks = %d, want none", len(anim.NodeTracks))
	}
	if !p.animated[r.hips] || !p.animated[r.spine] || p.animated[r.root] {
		t.Errorf("animated = %v", p.animated)
	}
	if err := p.out.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBakedAnimation(t *testing.T) {
	r := newRig(true)
	r.walk()
	opts := DefaultOptions()
	opts.BakeAnimations = true
	opts.SampleRate = 10
	p := runPipeline(t, r.doc(), opts)
	anim := onlyAnimation(t, p)
	u := p.skeleton
	rootJ, _ := u.Joint(r.root)
	hipsJ, _ := u.Joint(r.hips)

	if got := counts(anim.Skeletal, hipsJ); got != (keyCounts{16, 16, 16}) {
		t.Errorf("baked hips keys = %+v, want 16 of each", got)
	}
	if got := counts(anim.Skeletal, rootJ); got != (keyCounts{1, 1, 1}) {
		t.Errorf("root keys = %+v, want bind pose only", got)
	}

	pose := make([]skelanim.Transform, u.NumJoints())
	if err := anim.Skeletal.Sample(0.75, pose); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got := pose[hipsJ].Translation; !vec3Near(got, math.Vec3{Y: 1, Z: 1.5}, 1e-4) {
		t.Errorf("hips at 0.75 = %v", got)
	}
	if got := pose[hipsJ].Scale; !vec3Near(got, math.Vec3{X: 1, Y: 1, Z: 1}, 1e-4) {
		t.Errorf("hips scale = %v, want bind scale", got)
	}
}

func TestOrphanChannels(t *testing.T) {
	r := newRig(true)
	b := r.b
	anim := b.Animation(document.Animation{Name: "wave"})
	b.Channel(anim, r.hips, document.PathRotation, []float32{0, 1},
		b.Vec4s(math.QuatIdentity().Array(), math.QuatIdentity().Array()))
	b.Channel(anim, r.sword, document.PathTranslation, []float32{0, 1}, b.Vec3s(math.Vec3{}, math.Vec3{X: 1}))
	b.Channel(anim, r.camera, document.PathTranslation, []float32{0, 2}, b.Vec3s(math.Vec3{}, math.Vec3{Z: 1}))

	opts := DefaultOptions()
	opts.PromoteAnimatedNodes = false
	p := runPipeline(t, r.doc(), opts)
	out := onlyAnimation(t, p)

	if out.Skeletal == nil {
		t.Fatal("animation should stay skeletal")
	}
	if !hasWarning(p.warnings, "has no skeleton joint") {
		t.Errorf("warnings = %q, want orphan warning", p.warnings)
	}
	if len(out.NodeTracks) != 1 {
		t.Errorf("node tracks = %d, want only the camera", len(out.NodeTracks))
	}
	camera := p.scene[r.camera]
	cam, ok := out.NodeTracks[camera]
	if !ok || cam.Translation.Len() != 2 {
		t.Fatalf("camera track = %+v", cam)
	}
	if out.TargetNode != int32(camera) || p.out.Nodes[camera].Name != "camera" {
		t.Errorf("TargetNode = %d, want camera", out.TargetNode)
	}
	if out.Duration != 2 {
		t.Errorf("Duration = %v, want 2", out.Duration)
	}
}

func TestNodeAnimationWithoutSkins(t *testing.T) {
	b := doctest.New()
	box := document.NewNode("box")
	box.Mesh = b.Triangle("box")
	node := b.Node(-1, box)

	anim := b.Animation(document.Animation{Name: "bob"})
	doc := b.Doc()
	a := &doc.Animations[anim]
	a.Samplers = append(a.Samplers, document.AnimationSampler{
		Input: b.Scalars(0, 2),
		Output: b.Vec3s(
			math.Vec3{}, math.Vec3{Y: 1}, math.Vec3{X: 1},
			math.Vec3{X: -1}, math.Vec3{Y: 2}, math.Vec3{},
		),
		Interpolation: document.InterpolationCubicSpline,
	})
	a.Channels = append(a.Channels, document.Channel{Sampler: 0, Node: node, Path: document.PathTranslation})
	b.Channel(anim, node, document.PathRotation, []float32{0, 1},
		b.Vec4s(math.QuatIdentity().Array(), math.QuatIdentity().Array()))

	p := runPipeline(t, b.Doc(), DefaultOptions())
	out := onlyAnimation(t, p)

	if out.Skeletal != nil || out.Skeleton.IsValid() {
		t.Error("skeletal animation without skins")
	}
	if out.Duration != 2 || out.RootMotionJoint != -1 {
		t.Errorf("Duration = %v, RootMotionJoint = %d", out.Duration, out.RootMotionJoint)
	}
	tr := out.NodeTracks[p.scene[node]]
	if tr == nil {
		t.Fatal("no track for the animated node")
	}
	if tr.Translation.Interpolation != asset.InterpolationCubicSpline || len(tr.Translation.Values) != 6 {
		t.Errorf("translation = %v with %d values, want cubic triplets", tr.Translation.Interpolation, len(tr.Translation.Values))
	}
	if tr.Translation.Values[1] != (math.Vec3{Y: 1}) {
		t.Errorf("first value = %v", tr.Translation.Values[1])
	}
	if tr.Rotation.Interpolation != asset.InterpolationLinear || tr.Rotation.Len() != 2 {
		t.Errorf("rotation = %+v", tr.Rotation)
	}
	if tr.Scale.Len() != 0 {
		t.Errorf("scale keys = %d, want none", tr.Scale.Len())
	}
	if out.TargetNode != int32(p.scene[node]) || out.TargetMesh != p.meshes[box.Mesh] {
		t.Errorf("target = node %d mesh %v", out.TargetNode, out.TargetMesh)
	}
	if !p.out.Nodes[0].AnimationTarget {
		t.Error("scene node not marked as animation target")
	}
}

func TestNodeTracksFollowSceneOrder(t *testing.T) {
	// Document order a, b, animated; depth-first order a, animated, b.
	b := doctest.New()
	a := b.Node(-1, document.NewNode("a"))
	b.Node(-1, document.NewNode("b"))
	animated := b.Node(a, document.NewNode("animated"))
	loose := b.Node(-1, document.NewNode("loose"))

	doc := b.Doc()
	doc.Scenes = []document.Scene{{Nodes: []int{0, 1}}}
	doc.Scene = 0

	slide := b.Animation(document.Animation{Name: "slide"})
	b.Channel(slide, animated, document.PathTranslation, []float32{0, 1}, b.Vec3s(math.Vec3{}, math.Vec3{X: 1}))
	drift := b.Animation(document.Animation{Name: "drift"})
	b.Channel(drift, loose, document.PathTranslation, []float32{0, 1}, b.Vec3s(math.Vec3{}, math.Vec3{Y: 1}))

	p := runPipeline(t, b.Doc(), DefaultOptions())
	names := make([]string, len(p.out.Nodes))
	for i, n := range p.out.Nodes {
		names[i] = n.Name
	}
	if want := []string{"a", "animated", "b"}; !slices.Equal(names, want) {
		t.Fatalf("node order = %v, want %v", names, want)
	}

	out := onlyAnimation(t, p)
	if out.Name != "slide" {
		t.Fatalf("kept animation %q", out.Name)
	}
	for node := range out.NodeTracks {
		if got := p.out.Nodes[node].Name; got != "animated" {
			t.Errorf("track key %d resolves to %q", node, got)
		}
		if !p.out.Nodes[node].AnimationTarget {
			t.Errorf("node %d not marked as animation target", node)
		}
	}
	if out.TargetNode != 1 {
		t.Errorf("TargetNode = %d, want 1", out.TargetNode)
	}
	if !hasWarning(p.warnings, "not in the scene") {
		t.Errorf("warnings = %q, want dropped track warning", p.warnings)
	}
	if err := p.out.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAnimationEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		skinned  bool
		build    func(b *doctest.Builder, anim, node int)
		opts     func(o *Options)
		wantAnim bool
		duration float32
		warning  string
	}{
		{
			name: "single key falls back to default duration",
			build: func(b *doctest.Builder, anim, node int) {
				b.Channel(anim, node, document.PathScale, []float32{0}, b.Vec3s(math.Vec3{X: 2, Y: 2, Z: 2}))
			},
			wantAnim: true,
			duration: defaultDuration,
		},
		{
			name:     "empty animation with skeleton is bind pose",
			skinned:  true,
			build:    func(b *doctest.Builder, anim, node int) {},
			wantAnim: true,
			duration: defaultDuration,
		},
		{
			name:    "empty animation without skeleton",
			build:   func(b *doctest.Builder, anim, node int) {},
			warning: "no usable channels",
		},
		{
			name: "weights channel",
			build: func(b *doctest.Builder, anim, node int) {
				b.Channel(anim, node, document.PathWeights, []float32{0, 1}, b.Scalars(0, 1))
			},
			warning: "not supported",
		},
		{
			name: "key count mismatch",
			build: func(b *doctest.Builder, anim, node int) {
				b.Channel(anim, node, document.PathTranslation, []float32{0, 1, 2}, b.Vec3s(math.Vec3{}, math.Vec3{X: 1}))
			},
			warning: "3 keys and 2 values",
		},
		{
			name: "bad target node",
			build: func(b *doctest.Builder, anim, node int) {
				b.Channel(anim, 99, document.PathTranslation, []float32{0, 1}, b.Vec3s(math.Vec3{}, math.Vec3{X: 1}))
			},
			warning: "out of range",
		},
		{
			name: "import disabled",
			build: func(b *doctest.Builder, anim, node int) {
				b.Channel(anim, node, document.PathTranslation, []float32{0, 1}, b.Vec3s(math.Vec3{}, math.Vec3{X: 1}))
			},
			opts: func(o *Options) { o.ImportAnimations = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b *doctest.Builder
			node := 0
			if tt.skinned {
				r := newRig(true)
				b, node = r.b, r.hips
			} else {
				b = doctest.New()
				node = b.Node(-1, document.NewNode("thing"))
			}
			anim := b.Animation(document.Animation{Name: "clip"})
			tt.build(b, anim, node)

			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			p := runPipeline(t, b.Doc(), opts)

			if tt.warning != "" && !hasWarning(p.warnings, tt.warning) {
				t.Errorf("warnings = %q, want %q", p.warnings, tt.warning)
			}
			if !tt.wantAnim {
				if n := len(p.out.Animations); n != 0 {
					t.Errorf("animations = %d, want none", n)
				}
				return
			}
			out := onlyAnimation(t, p)
			if out.Duration != tt.duration {
				t.Errorf("Duration = %v, want %v", out.Duration, tt.duration)
			}
			if tt.skinned {
				for j := 0; j < out.Skeletal.NumTracks(); j++ {
					if got := counts(out.Skeletal, j); got != (keyCounts{1, 1, 1}) {
						t.Errorf("joint %d keys = %+v, want bind pose", j, got)
					}
				}
			}
		})
	}
}

func TestSampleTimes(t *testing.T) {
	tests := []struct {
		duration, rate float32
		want           []float32
	}{
		{1, 4, []float32{0, 0.25, 0.5, 0.75, 1}},
		{0.25, 10, []float32{0, 0.1, 0.2, 0.25}},
		{0.05, 10, []float32{0, 0.05}},
	}
	for _, tt := range tests {
		got := sampleTimes(tt.duration, tt.rate)
		if len(got) != len(tt.want) {
			t.Errorf("sampleTimes(%v, %v) = %v, want %v", tt.duration, tt.rate, got, tt.want)
			continue
		}
		for i := range got {
			if abs32(got[i]-tt.want[i]) > 1e-6 {
				t.Errorf("sampleTimes(%v, %v) = %v, want %v", tt.duration, tt.rate, got, tt.want)
				break
			}
		}
	}
}

func TestChannelSampling(t *testing.T) {
	linear := &channel{
		interp: asset.InterpolationLinear,
		times:  []float32{0, 1, 3},
		vecs:   []math.Vec3{{}, {X: 2}, {X: 2, Y: 4}},
	}
	step := &channel{interp: asset.InterpolationStep, times: linear.times, vecs: linear.vecs}
	cubic := &channel{
		interp: asset.InterpolationCubicSpline,
		times:  []float32{0, 1},
		vecs:   []math.Vec3{{}, {X: 1}, {}, {}, {X: 3}, {}},
	}

	tests := []struct {
		name string
		c    *channel
		at   float32
		want math.Vec3
	}{
		{"linear before start", linear, -1, math.Vec3{}},
		{"linear midpoint", linear, 0.5, math.Vec3{X: 1}},
		{"linear second span", linear, 2, math.Vec3{X: 2, Y: 2}},
		{"linear after end", linear, 5, math.Vec3{X: 2, Y: 4}},
		{"step holds", step, 0.9, math.Vec3{}},
		{"cubic start", cubic, 0, math.Vec3{X: 1}},
		{"cubic end", cubic, 1, math.Vec3{X: 3}},
		{"cubic midpoint", cubic, 0.5, math.Vec3{X: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.sampleVec3(tt.at); !vec3Near(got, tt.want, 1e-5) {
				t.Errorf("sampleVec3(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}

	if keys := cubic.keyVecs(); len(keys) != 2 || keys[0] != (math.Vec3{X: 1}) || keys[1] != (math.Vec3{X: 3}) {
		t.Errorf("keyVecs = %v", keys)
	}
}
