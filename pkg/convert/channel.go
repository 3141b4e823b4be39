package convert

import (
	"fmt"
	"sort"

	"github.com/Faultbox/assetpak/pkg/asset"
	"github.com/Faultbox/assetpak/pkg/document"
	"github.com/Faultbox/assetpak/pkg/math"
)

// channel is one decoded animation channel. Cubic-spline channels keep three values per key:
// in-tangent, value, out-tangent.
type channel struct {
	node   int
	path   document.Path
	interp asset.Interpolation
	times  []float32
	vecs   []math.Vec3 // translation and scale
	quats  []math.Quat // rotation
}

func convertInterpolation(i document.Interpolation) asset.Interpolation {
	switch i {
	case document.InterpolationStep:
		return asset.InterpolationStep
	case document.InterpolationCubicSpline:
		return asset.InterpolationCubicSpline
	default:
		return asset.InterpolationLinear
	}
}

// readChannel decodes a channel's sampler. It returns nil without error when the channel is
// skipped with a warning.
func (p *pipeline) readChannel(name string, anim *document.Animation, ch document.Channel) (*channel, error) {
	if ch.Path != document.PathTranslation && ch.Path != document.PathRotation && ch.Path != document.PathScale {
		p.warn("animation %q: %s channel on node %d not supported, skipped", name, ch.Path, ch.Node)
		return nil, nil
	}
	if !p.validNode(ch.Node) {
		p.warn("animation %q: channel targets node %d out of range, skipped", name, ch.Node)
		return nil, nil
	}
	if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
		p.warn("animation %q: channel on node %d uses sampler %d out of range, skipped", name, ch.Node, ch.Sampler)
		return nil, nil
	}
	s := anim.Samplers[ch.Sampler]

	times, err := p.doc.ReadScalars(s.Input)
	if err != nil {
		return nil, fmt.Errorf("animation %q sampler %d input: %w", name, ch.Sampler, err)
	}
	c := &channel{node: ch.Node, path: ch.Path, interp: convertInterpolation(s.Interpolation), times: times}

	var values int
	if ch.Path == document.PathRotation {
		raw, err := p.doc.ReadVec4(s.Output)
		if err != nil {
			return nil, fmt.Errorf("animation %q sampler %d output: %w", name, ch.Sampler, err)
		}
		c.quats = make([]math.Quat, len(raw))
		for i, v := range raw {
			c.quats[i] = math.Q4(v)
		}
		values = len(raw)
	} else {
		if c.vecs, err = p.doc.ReadVec3(s.Output); err != nil {
			return nil, fmt.Errorf("animation %q sampler %d output: %w", name, ch.Sampler, err)
		}
		values = len(c.vecs)
	}

	want := len(times)
	if c.interp == asset.InterpolationCubicSpline {
		want *= 3
	}
	if len(times) == 0 || values != want {
		p.warn("animation %q: node %d %s has %d keys and %d values, skipped", name, ch.Node, ch.Path, len(times), values)
		return nil, nil
	}
	return c, nil
}

// valueIndex maps a key to its value slot.
func (c *channel) valueIndex(k int) int {
	if c.interp == asset.InterpolationCubicSpline {
		return 3*k + 1
	}
	return k
}

func (c *channel) maxTime() float32 { return c.times[len(c.times)-1] }

// bracket returns the keys around t and the blend factor between them.
func (c *channel) bracket(t float32) (int, int, float32) {
	n := len(c.times)
	if t <= c.times[0] {
		return 0, 0, 0
	}
	if t >= c.times[n-1] {
		return n - 1, n - 1, 0
	}
	hi := sort.Search(n, func(i int) bool { return c.times[i] > t })
	lo := hi - 1
	span := c.times[hi] - c.times[lo]
	if span <= 0 {
		return lo, lo, 0
	}
	return lo, hi, (t - c.times[lo]) / span
}

func hermite(p0, m0, p1, m1, s float32) float32 {
	s2 := s * s
	s3 := s2 * s
	return (2*s3-3*s2+1)*p0 + (s3-2*s2+s)*m0 + (-2*s3+3*s2)*p1 + (s3-s2)*m1
}

func (c *channel) sampleVec3(t float32) math.Vec3 {
	lo, hi, s := c.bracket(t)
	if lo == hi || c.interp == asset.InterpolationStep {
		return c.vecs[c.valueIndex(lo)]
	}
	if c.interp == asset.InterpolationCubicSpline {
		dt := c.times[hi] - c.times[lo]
		p0, m0 := c.vecs[3*lo+1], c.vecs[3*lo+2].Scale(dt)
		p1, m1 := c.vecs[3*hi+1], c.vecs[3*hi].Scale(dt)
		return math.Vec3{
			X: hermite(p0.X, m0.X, p1.X, m1.X, s),
			Y: hermite(p0.Y, m0.Y, p1.Y, m1.Y, s),
			Z: hermite(p0.Z, m0.Z, p1.Z, m1.Z, s),
		}
	}
	return c.vecs[lo].Lerp(c.vecs[hi], s)
}

func (c *channel) sampleQuat(t float32) math.Quat {
	lo, hi, s := c.bracket(t)
	if lo == hi || c.interp == asset.InterpolationStep {
		return c.quats[c.valueIndex(lo)].Normalize()
	}
	if c.interp == asset.InterpolationCubicSpline {
		dt := c.times[hi] - c.times[lo]
		p0, m0 := c.quats[3*lo+1].Array(), c.quats[3*lo+2].Array()
		p1, m1 := c.quats[3*hi+1].Array(), c.quats[3*hi].Array()
		var out [4]float32
		for i := range out {
			out[i] = hermite(p0[i], m0[i]*dt, p1[i], m1[i]*dt, s)
		}
		return math.Q4(out).Normalize()
	}
	return c.quats[lo].Normalize().Slerp(c.quats[hi].Normalize(), s)
}

// keyVecs returns the channel's key values, dropping cubic-spline tangents.
func (c *channel) keyVecs() []math.Vec3 {
	out := make([]math.Vec3, len(c.times))
	for k := range out {
		out[k] = c.vecs[c.valueIndex(k)]
	}
	return out
}

func (c *channel) keyQuats() []math.Quat {
	out := make([]math.Quat, len(c.times))
	for k := range out {
		out[k] = c.quats[c.valueIndex(k)].Normalize()
	}
	return out
}
