package asset

import (
	"bytes"
	"encoding/binary"
	"fmt"

	amath "github.com/Faultbox/assetpak/pkg/math"
)

// byteOrder is the container's byte order: host order, recorded in the header flags.
var byteOrder = binary.NativeEndian

// chunkWriter accumulates one chunk payload. Strings go to the shared table.
type chunkWriter struct {
	buf     bytes.Buffer
	strings *StringTable
}

func (w *chunkWriter) write(v any) {
	// bytes.Buffer writes never fail.
	_ = binary.Write(&w.buf, byteOrder, v)
}

func (w *chunkWriter) u8(v uint8)    { w.buf.WriteByte(v) }
func (w *chunkWriter) u32(v uint32)  { w.write(v) }
func (w *chunkWriter) i32(v int32)   { w.write(v) }
func (w *chunkWriter) i64(v int64)   { w.write(v) }
func (w *chunkWriter) f32(v float32) { w.write(v) }

func (w *chunkWriter) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *chunkWriter) str(s string) { w.u32(w.strings.AddString(s)) }

func (w *chunkWriter) handle(id, generation uint32) {
	w.u32(id)
	w.u32(generation)
}

func (w *chunkWriter) vec3(v amath.Vec3) { w.write([3]float32{v.X, v.Y, v.Z}) }
func (w *chunkWriter) quat(q amath.Quat) { w.write(q.Array()) }
func (w *chunkWriter) mat4(m amath.Mat4) { w.write([16]float32(m)) }

func (w *chunkWriter) blob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *chunkWriter) floats(v []float32) {
	w.u32(uint32(len(v)))
	w.write(v)
}

// chunkReader reads primitives from one chunk payload. Every read checks the bytes remaining
// first; the first failure sticks and later reads return zero values.
type chunkReader struct {
	r       *bytes.Reader
	strings *StringTable
	chunk   ChunkType
	err     error
}

func newChunkReader(data []byte, strings *StringTable, chunk ChunkType) *chunkReader {
	return &chunkReader{r: bytes.NewReader(data), strings: strings, chunk: chunk}
}

func (r *chunkReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *chunkReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.r.Len() < n {
		r.fail(fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncated, r.chunk, n, r.r.Len()))
		return false
	}
	return true
}

func (r *chunkReader) read(v any) {
	if !r.need(binary.Size(v)) {
		return
	}
	if err := binary.Read(r.r, byteOrder, v); err != nil {
		r.fail(fmt.Errorf("%w: %s: %v", ErrTruncated, r.chunk, err))
	}
}

func (r *chunkReader) u8() uint8 {
	var v uint8
	r.read(&v)
	return v
}

func (r *chunkReader) u32() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *chunkReader) i32() int32 {
	var v int32
	r.read(&v)
	return v
}

func (r *chunkReader) i64() int64 {
	var v int64
	r.read(&v)
	return v
}

func (r *chunkReader) f32() float32 {
	var v float32
	r.read(&v)
	return v
}

func (r *chunkReader) boolean() bool { return r.u8() != 0 }

func (r *chunkReader) str() string {
	idx := r.u32()
	if r.err != nil {
		return ""
	}
	s, ok := r.strings.Lookup(idx)
	if !ok {
		r.fail(fmt.Errorf("%w: %s string index %d of %d", ErrCorrupt, r.chunk, idx, r.strings.Len()))
	}
	return s
}

func (r *chunkReader) handle() (uint32, uint32) {
	return r.u32(), r.u32()
}

func (r *chunkReader) vec3() amath.Vec3 {
	var v [3]float32
	r.read(&v)
	return amath.V3(v)
}

func (r *chunkReader) quat() amath.Quat {
	var v [4]float32
	r.read(&v)
	return amath.Q4(v)
}

func (r *chunkReader) mat4() amath.Mat4 {
	var v [16]float32
	r.read(&v)
	return amath.Mat4(v)
}

// count reads a 4-byte element count and rejects counts the remaining bytes cannot hold at
// minSize bytes per element.
func (r *chunkReader) count(minSize int) int {
	n := r.u32()
	if r.err != nil {
		return 0
	}
	if minSize > 0 && uint64(n)*uint64(minSize) > uint64(r.r.Len()) {
		r.fail(fmt.Errorf("%w: %s declares %d elements, %d bytes left", ErrTruncated, r.chunk, n, r.r.Len()))
		return 0
	}
	return int(n)
}

func (r *chunkReader) blob() []byte {
	n := r.count(1)
	if n == 0 || !r.need(n) {
		return nil
	}
	b := make([]byte, n)
	_, _ = r.r.Read(b)
	return b
}

func (r *chunkReader) floats() []float32 {
	n := r.count(4)
	if r.err != nil {
		return nil
	}
	v := make([]float32, n)
	r.read(v)
	return v
}
