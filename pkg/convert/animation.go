package convert

import (
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/math"
	"github.com/Faultbox/assetpak/pkg/skelanim"
)

// defaultDuration is used when an animation has no keys after time zero.
const defaultDuration = 1.0

// jointChannels groups the channels driving one joint.
type jointChannels struct {
	translation, rotation, scale *channel
}

func (jc *jointChannels) set(c *channel) {
	switch c.path {
	case document.PathTranslation:
		jc.translation = c
	case document.PathRotation:
		jc.rotation = c
	case document.PathScale:
		jc.scale = c
	}
}

// processAnimations converts every document animation. An animation whose channels reach at
// least one unified joint becomes skeletal; otherwise its channels become node tracks.
func (p *pipeline) processAnimations() error {
	if !p.opts.ImportAnimations {
		return nil
	}
	for i := range p.doc.Animations {
		if err := p.processAnimation(i); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) processAnimation(index int) error {
	src := &p.doc.Animations[index]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("animation_%d", index)
	}

	var channels []*channel
	for _, ch := range src.Channels {
		c, err := p.readChannel(name, src, ch)
		if err != nil {
			return err
		}
		if c != nil {
			channels = append(channels, c)
		}
	}

	duration := float32(0)
	for _, c := range channels {
		duration = max(duration, c.maxTime())
	}
	if duration <= 0 {
		duration = defaultDuration
	}

	skeletal := false
	for _, c := range channels {
		if _, ok := p.skeleton.Joint(c.node); ok {
			skeletal = true
			break
		}
	}
	if len(src.Channels) == 0 && p.skeleton != nil {
		skeletal = true
	}

	out := &asset.AnimationData{Name: name, Duration: duration, TargetNode: -1, RootMotionJoint: -1}
	byJoint := make(map[int]*jointChannels)
	var nodeChannels []*channel
	for _, c := range channels {
		j, ok := p.skeleton.Joint(c.node)
		switch {
		case skeletal && ok:
			jc := byJoint[j]
			if jc == nil {
				jc = &jointChannels{}
				byJoint[j] = jc
			}
			jc.set(c)
			if out.RootMotionJoint < 0 && c.path == document.PathTranslation {
				out.RootMotionJoint = int32(j)
			}
		case skeletal && !hostsCameraOrLight(&p.doc.Nodes[c.node]):
			p.warn("animation %q: node %d (%s) has no skeleton joint, channel skipped", name, c.node, p.nodeName(c.node))
			continue
		default:
			nodeChannels = append(nodeChannels, c)
		}
		p.animated[c.node] = true
	}

	if skeletal {
		anim, err := p.buildSkeletal(name, duration, byJoint)
		if err != nil {
			p.warn("animation %q rejected: %v", name, err)
			out.RootMotionJoint = -1
		} else {
			out.Skeletal = anim
			out.Skeleton = p.skeleton.Handle
		}
	}
	if len(nodeChannels) > 0 {
		out.NodeTracks = nodeTracks(nodeChannels)
		if len(out.NodeTracks) == 1 {
			for node := range out.NodeTracks {
				out.TargetNode = int32(node)
				if m := p.doc.Nodes[node].Mesh; m >= 0 && m < len(p.meshes) {
					out.TargetMesh = p.meshes[m]
				}
			}
		}
	}
	if out.Skeletal == nil && len(out.NodeTracks) == 0 {
		p.warn("animation %q has no usable channels, skipped", name)
		return nil
	}

	p.out.AddAnimation(out)
	p.log.Debug("animation processed",
		zap.String("animation", name),
		zap.Float32("duration", duration),
		zap.Int("joint_channels", len(byJoint)),
		zap.Int("node_tracks", len(out.NodeTracks)),
		zap.Int32("root_motion_joint", out.RootMotionJoint))
	return nil
}

// buildSkeletal fills one track per joint, either by copying keys or by resampling, completes
// every track and hands the result to the runtime builder.
func (p *pipeline) buildSkeletal(name string, duration float32, byJoint map[int]*jointChannels) (*skelanim.Animation, error) {
	skel := p.skeleton.Runtime
	raw := &skelanim.RawAnimation{
		Name:     name,
		Duration: duration,
		Tracks:   make([]skelanim.JointTrack, skel.NumJoints()),
	}

	for _, j := range slices.Sorted(maps.Keys(byJoint)) {
		if p.opts.BakeAnimations {
			raw.Tracks[j] = bakeTrack(byJoint[j], skel.BindPose(j), duration, p.opts.sampleRate())
		} else {
			raw.Tracks[j] = copyTrack(byJoint[j])
		}
	}
	for j := range raw.Tracks {
		completeTrack(&raw.Tracks[j], skel.BindPose(j))
	}
	return p.builder.BuildAnimation(raw, skel.NumJoints())
}

// copyTrack copies keys verbatim. Cubic-spline channels contribute their value elements.
func copyTrack(jc *jointChannels) skelanim.JointTrack {
	var track skelanim.JointTrack
	if c := jc.translation; c != nil {
		for k, v := range c.keyVecs() {
			track.Translations = append(track.Translations, skelanim.TranslationKey{Time: c.times[k], Value: v})
		}
	}
	if c := jc.rotation; c != nil {
		for k, v := range c.keyQuats() {
			track.Rotations = append(track.Rotations, skelanim.RotationKey{Time: c.times[k], Value: v})
		}
	}
	if c := jc.scale; c != nil {
		for k, v := range c.keyVecs() {
			track.Scales = append(track.Scales, skelanim.ScaleKey{Time: c.times[k], Value: v})
		}
	}
	return track
}

// sampleTimes returns evenly spaced times over [0, duration] at rate, always ending at
// duration.
func sampleTimes(duration, rate float32) []float32 {
	n := int(duration * rate)
	times := make([]float32, 0, n+2)
	for i := 0; i <= n; i++ {
		t := min(float32(i)/rate, duration)
		if len(times) > 0 && t <= times[len(times)-1] {
			continue
		}
		times = append(times, t)
	}
	if last := times[len(times)-1]; duration-last > 1e-5 {
		times = append(times, duration)
	}
	return times
}

// bakeTrack resamples a joint's local transform at a fixed rate. Components without a channel
// hold the bind pose; the composed matrix is decomposed back into keys.
func bakeTrack(jc *jointChannels, bind skelanim.Transform, duration, rate float32) skelanim.JointTrack {
	times := sampleTimes(duration, rate)
	track := skelanim.JointTrack{
		Translations: make([]skelanim.TranslationKey, 0, len(times)),
		Rotations:    make([]skelanim.RotationKey, 0, len(times)),
		Scales:       make([]skelanim.ScaleKey, 0, len(times)),
	}
	for _, t := range times {
		tr, rot, sc := bind.Translation, bind.Rotation, bind.Scale
		if jc.translation != nil {
			tr = jc.translation.sampleVec3(t)
		}
		if jc.rotation != nil {
			rot = jc.rotation.sampleQuat(t)
		}
		if jc.scale != nil {
			sc = jc.scale.sampleVec3(t)
		}
		tr, rot, sc = math.Decompose(math.Compose(tr, rot, sc))
		track.Translations = append(track.Translations, skelanim.TranslationKey{Time: t, Value: tr})
		track.Rotations = append(track.Rotations, skelanim.RotationKey{Time: t, Value: rot})
		track.Scales = append(track.Scales, skelanim.ScaleKey{Time: t, Value: sc})
	}
	return track
}

// completeTrack gives every empty component a single bind-pose key at time zero.
func completeTrack(track *skelanim.JointTrack, bind skelanim.Transform) {
	if len(track.Translations) == 0 {
		track.Translations = []skelanim.TranslationKey{{Time: 0, Value: bind.Translation}}
	}
	if len(track.Rotations) == 0 {
		track.Rotations = []skelanim.RotationKey{{Time: 0, Value: bind.Rotation}}
	}
	if len(track.Scales) == 0 {
		track.Scales = []skelanim.ScaleKey{{Time: 0, Value: bind.Scale}}
	}
}

// nodeTracks stores channels per source node with their declared interpolation. Cubic-spline
// values keep their tangents.
func nodeTracks(channels []*channel) map[int]*asset.NodeTransformData {
	tracks := make(map[int]*asset.NodeTransformData)
	for _, c := range channels {
		tr := tracks[c.node]
		if tr == nil {
			tr = &asset.NodeTransformData{}
			tracks[c.node] = tr
		}
		switch c.path {
		case document.PathTranslation:
			tr.Translation = asset.NodeTrack[math.Vec3]{Interpolation: c.interp, Times: c.times, Values: c.vecs}
		case document.PathRotation:
			tr.Rotation = asset.NodeTrack[math.Quat]{Interpolation: c.interp, Times: c.times, Values: c.quats}
		case document.PathScale:
			tr.Scale = asset.NodeTrack[math.Vec3]{Interpolation: c.interp, Times: c.times, Values: c.vecs}
		}
	}
	return tracks
}
