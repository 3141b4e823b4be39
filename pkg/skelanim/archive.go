package skelanim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	amath "github.com/Faultbox/assetpak/pkg/math"
)

const (
	skeletonTag    = "SKEL"
	animationTag   = "ANIM"
	archiveVersion = 1
)

var (
	ErrArchiveTag       = errors.New("archive tag mismatch")
	ErrArchiveVersion   = errors.New("unsupported archive version")
	ErrArchiveTruncated = errors.New("archive truncated")
)

type archiveWriter struct {
	buf bytes.Buffer
}

func (w *archiveWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *archiveWriter) u16(v uint16) {
	w.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

func (w *archiveWriter) u32(v uint32) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *archiveWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *archiveWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *archiveWriter) vec3(v amath.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *archiveWriter) header(tag string) {
	w.buf.WriteString(tag)
	w.u32(archiveVersion)
}

type archiveReader struct {
	data []byte
	pos  int
	err  error
}

func (r *archiveReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.pos < n {
		r.err = fmt.Errorf("%w: need %d bytes at %d, have %d", ErrArchiveTruncated, n, r.pos, len(r.data)-r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *archiveReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *archiveReader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *archiveReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *archiveReader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *archiveReader) str() string {
	n := r.u32()
	return string(r.take(int(n)))
}

func (r *archiveReader) vec3() amath.Vec3 {
	return amath.Vec3{X: r.f32(), Y: r.f32(), Z: r.f32()}
}

// count reads an element count and rejects counts the remaining bytes cannot hold.
func (r *archiveReader) count(elemSize int) int {
	n := int(r.u32())
	if r.err == nil && n*elemSize > len(r.data)-r.pos {
		r.err = fmt.Errorf("%w: %d elements of %d bytes at %d", ErrArchiveTruncated, n, elemSize, r.pos)
		return 0
	}
	return n
}

func (r *archiveReader) header(tag string) {
	got := r.take(4)
	if r.err != nil {
		return
	}
	if string(got) != tag {
		r.err = fmt.Errorf("%w: got %q, want %q", ErrArchiveTag, got, tag)
		return
	}
	if v := r.u32(); r.err == nil && v != archiveVersion {
		r.err = fmt.Errorf("%w: %d", ErrArchiveVersion, v)
	}
}

// MarshalBinary encodes the skeleton in its archive format.
func (s *Skeleton) MarshalBinary() ([]byte, error) {
	var w archiveWriter
	w.header(skeletonTag)
	w.u32(uint32(len(s.names)))
	for i := range s.names {
		w.str(s.names[i])
		w.u16(uint16(s.parents[i]))
		b := s.bind[i]
		w.vec3(b.Translation)
		for _, c := range b.Rotation.Array() {
			w.f32(c)
		}
		w.vec3(b.Scale)
	}
	return w.buf.Bytes(), nil
}

// UnmarshalBinary decodes a skeleton archive. Parent links are re-validated.
func (s *Skeleton) UnmarshalBinary(data []byte) error {
	r := archiveReader{data: data}
	r.header(skeletonTag)
	n := r.count(4 + 2 + 40)
	if r.err != nil {
		return r.err
	}
	if n > MaxJoints {
		return fmt.Errorf("%w: %d", ErrTooManyJoints, n)
	}
	out := Skeleton{
		names:   make([]string, n),
		parents: make([]int16, n),
		bind:    make([]Transform, n),
	}
	for i := 0; i < n; i++ {
		out.names[i] = r.str()
		out.parents[i] = int16(r.u16())
		out.bind[i].Translation = r.vec3()
		out.bind[i].Rotation = amath.Quat{X: r.f32(), Y: r.f32(), Z: r.f32(), W: r.f32()}
		out.bind[i].Scale = r.vec3()
		if r.err != nil {
			return r.err
		}
		if p := int(out.parents[i]); p >= i || p < -1 {
			return fmt.Errorf("joint %d has invalid parent %d", i, p)
		}
	}
	*s = out
	return nil
}

// MarshalBinary encodes the animation in its archive format.
func (a *Animation) MarshalBinary() ([]byte, error) {
	var w archiveWriter
	w.header(animationTag)
	w.str(a.name)
	w.f32(a.duration)
	w.u32(uint32(len(a.tracks)))
	for i := range a.tracks {
		t := &a.tracks[i]
		w.u32(uint32(len(t.translations)))
		for _, k := range t.translations {
			w.f32(k.Time)
			w.vec3(k.Value)
		}
		w.u32(uint32(len(t.rotations)))
		for _, k := range t.rotations {
			w.f32(k.time)
			w.u8(k.largest)
			for _, v := range k.value {
				w.u16(uint16(v))
			}
		}
		w.u32(uint32(len(t.scales)))
		for _, k := range t.scales {
			w.f32(k.Time)
			w.vec3(k.Value)
		}
	}
	return w.buf.Bytes(), nil
}

// UnmarshalBinary decodes an animation archive.
func (a *Animation) UnmarshalBinary(data []byte) error {
	r := archiveReader{data: data}
	r.header(animationTag)
	out := Animation{name: r.str(), duration: r.f32()}
	n := r.count(12)
	if r.err != nil {
		return r.err
	}
	if !(out.duration > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, out.duration)
	}
	out.tracks = make([]track, n)
	for i := 0; i < n && r.err == nil; i++ {
		t := &out.tracks[i]
		t.translations = make([]TranslationKey, r.count(16))
		for k := range t.translations {
			t.translations[k] = TranslationKey{Time: r.f32(), Value: r.vec3()}
		}
		t.rotations = make([]rotationKey, r.count(11))
		for k := range t.rotations {
			key := rotationKey{time: r.f32(), largest: r.u8()}
			for c := range key.value {
				key.value[c] = int16(r.u16())
			}
			if key.largest > 3 && r.err == nil {
				r.err = fmt.Errorf("track %d rotation %d: invalid component %d", i, k, key.largest)
			}
			t.rotations[k] = key
		}
		t.scales = make([]ScaleKey, r.count(16))
		for k := range t.scales {
			t.scales[k] = ScaleKey{Time: r.f32(), Value: r.vec3()}
		}
		if r.err == nil && (len(t.translations) == 0 || len(t.rotations) == 0 || len(t.scales) == 0) {
			r.err = fmt.Errorf("%w: track %d", ErrEmptyTrack, i)
		}
	}
	if r.err != nil {
		return r.err
	}
	*a = out
	return nil
}
