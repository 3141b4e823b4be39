package skelanim

import (
	"errors"
	"fmt"
	stdmath "math"
	"sort"

	"github.com/Faultbox/assetpak/pkg/math"
)

var (
	ErrInvalidDuration = errors.New("animation duration must be positive")
	ErrTrackCount      = errors.New("track count does not match skeleton")
	ErrEmptyTrack      = errors.New("track component has no keys")
	ErrKeyOrder        = errors.New("keyframe times not sorted")
	ErrKeyRange        = errors.New("keyframe time outside [0, duration]")
	ErrSampleBuffer    = errors.New("sample buffer smaller than track count")
)

// TranslationKey is a timed translation value.
type TranslationKey struct {
	Time  float32
	Value math.Vec3
}

// RotationKey is a timed rotation value.
type RotationKey struct {
	Time  float32
	Value math.Quat
}

// ScaleKey is a timed scale value.
type ScaleKey struct {
	Time  float32
	Value math.Vec3
}

// JointTrack holds the keyframes of one joint. Components are independent.
type JointTrack struct {
	Translations []TranslationKey
	Rotations    []RotationKey
	Scales       []ScaleKey
}

// RawAnimation is an editable animation with one track per skeleton joint.
type RawAnimation struct {
	Name     string
	Duration float32
	Tracks   []JointTrack
}

// Validate checks the animation against a skeleton of numJoints joints.
func (r *RawAnimation) Validate(numJoints int) error {
	if !(r.Duration > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, r.Duration)
	}
	if len(r.Tracks) != numJoints {
		return fmt.Errorf("%w: %d tracks, %d joints", ErrTrackCount, len(r.Tracks), numJoints)
	}
	for i := range r.Tracks {
		tr := &r.Tracks[i]
		if len(tr.Translations) == 0 || len(tr.Rotations) == 0 || len(tr.Scales) == 0 {
			return fmt.Errorf("%w: track %d", ErrEmptyTrack, i)
		}
		if err := checkTimes(len(tr.Translations), func(k int) float32 { return tr.Translations[k].Time }, r.Duration); err != nil {
			return fmt.Errorf("track %d translation: %w", i, err)
		}
		if err := checkTimes(len(tr.Rotations), func(k int) float32 { return tr.Rotations[k].Time }, r.Duration); err != nil {
			return fmt.Errorf("track %d rotation: %w", i, err)
		}
		if err := checkTimes(len(tr.Scales), func(k int) float32 { return tr.Scales[k].Time }, r.Duration); err != nil {
			return fmt.Errorf("track %d scale: %w", i, err)
		}
	}
	return nil
}

func checkTimes(n int, at func(int) float32, duration float32) error {
	prev := float32(-1)
	for k := 0; k < n; k++ {
		t := at(k)
		if t < 0 || t > duration {
			return fmt.Errorf("%w: key %d at %v", ErrKeyRange, k, t)
		}
		if t < prev {
			return fmt.Errorf("%w: key %d at %v after %v", ErrKeyOrder, k, t, prev)
		}
		prev = t
	}
	return nil
}

// rotationKey stores a unit quaternion with smallest-three quantization: the largest
// component is dropped (its sign folded into the others) and rebuilt on decode.
type rotationKey struct {
	time    float32
	largest uint8
	value   [3]int16
}

const quantScale = 32767 * stdmath.Sqrt2

func quantize(q math.Quat) (uint8, [3]int16) {
	q = q.Normalize()
	c := q.Array()
	largest := 0
	for i := 1; i < 4; i++ {
		if stdmath.Abs(float64(c[i])) > stdmath.Abs(float64(c[largest])) {
			largest = i
		}
	}
	sign := float32(1)
	if c[largest] < 0 {
		sign = -1
	}
	var out [3]int16
	k := 0
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		v := stdmath.Round(float64(c[i]*sign) * quantScale)
		out[k] = int16(math.Clamp(v, -32767, 32767))
		k++
	}
	return uint8(largest), out
}

func dequantize(largest uint8, v [3]int16) math.Quat {
	var c [4]float32
	sum := float32(0)
	k := 0
	for i := 0; i < 4; i++ {
		if i == int(largest) {
			continue
		}
		c[i] = float32(float64(v[k]) / quantScale)
		sum += c[i] * c[i]
		k++
	}
	c[largest] = float32(stdmath.Sqrt(float64(max(0, 1-sum))))
	return math.Q4(c).Normalize()
}

func (k rotationKey) quat() math.Quat { return dequantize(k.largest, k.value) }

type track struct {
	translations []TranslationKey
	rotations    []rotationKey
	scales       []ScaleKey
}

// Animation is an immutable, validated animation with quantized rotations.
type Animation struct {
	name     string
	duration float32
	tracks   []track
}

// BuildAnimation validates a raw animation against a skeleton size and compresses it.
func BuildAnimation(raw *RawAnimation, numJoints int) (*Animation, error) {
	if raw == nil {
		return nil, ErrTrackCount
	}
	if err := raw.Validate(numJoints); err != nil {
		return nil, err
	}
	a := &Animation{
		name:     raw.Name,
		duration: raw.Duration,
		tracks:   make([]track, len(raw.Tracks)),
	}
	for i := range raw.Tracks {
		src := &raw.Tracks[i]
		dst := &a.tracks[i]
		dst.translations = append([]TranslationKey(nil), src.Translations...)
		dst.scales = append([]ScaleKey(nil), src.Scales...)
		dst.rotations = make([]rotationKey, len(src.Rotations))
		for k, key := range src.Rotations {
			largest, v := quantize(key.Value)
			dst.rotations[k] = rotationKey{time: key.Time, largest: largest, value: v}
		}
	}
	return a, nil
}

// Name returns the animation name.
func (a *Animation) Name() string { return a.name }

// Duration returns the duration in seconds.
func (a *Animation) Duration() float32 { return a.duration }

// NumTracks returns the number of joint tracks.
func (a *Animation) NumTracks() int { return len(a.tracks) }

// KeyCounts returns the translation, rotation and scale key counts of a track.
func (a *Animation) KeyCounts(track int) (int, int, int) {
	t := &a.tracks[track]
	return len(t.translations), len(t.rotations), len(t.scales)
}

// bracket returns the keys around t and the blend factor between them.
func bracket(n int, at func(int) float32, t float32) (int, int, float32) {
	hi := sort.Search(n, func(i int) bool { return at(i) > t })
	switch {
	case hi == 0:
		return 0, 0, 0
	case hi == n:
		return n - 1, n - 1, 0
	}
	lo := hi - 1
	span := at(hi) - at(lo)
	if span <= 0 {
		return hi, hi, 0
	}
	return lo, hi, (t - at(lo)) / span
}

// Sample evaluates every track at time t (clamped to [0, duration]) into out.
func (a *Animation) Sample(t float32, out []Transform) error {
	if len(out) < len(a.tracks) {
		return fmt.Errorf("%w: %d < %d", ErrSampleBuffer, len(out), len(a.tracks))
	}
	t = math.Clamp(t, 0, a.duration)
	for i := range a.tracks {
		tr := &a.tracks[i]

		lo, hi, f := bracket(len(tr.translations), func(k int) float32 { return tr.translations[k].Time }, t)
		out[i].Translation = tr.translations[lo].Value.Lerp(tr.translations[hi].Value, f)

		lo, hi, f = bracket(len(tr.rotations), func(k int) float32 { return tr.rotations[k].time }, t)
		out[i].Rotation = tr.rotations[lo].quat().Slerp(tr.rotations[hi].quat(), f).Normalize()

		lo, hi, f = bracket(len(tr.scales), func(k int) float32 { return tr.scales[k].Time }, t)
		out[i].Scale = tr.scales[lo].Value.Lerp(tr.scales[hi].Value, f)
	}
	return nil
}
