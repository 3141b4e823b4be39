package document

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	amath "github.com/Faultbox/assetpak/pkg/math"
)

var (
	ErrAccessorIndex   = errors.New("accessor index out of range")
	ErrBufferViewIndex = errors.New("buffer view index out of range")
	ErrBufferIndex     = errors.New("buffer index out of range")
	ErrAccessorRange   = errors.New("accessor data exceeds buffer view")
	ErrBufferViewRange = errors.New("buffer view exceeds buffer")
	ErrAccessorStride  = errors.New("buffer view stride smaller than element")
	ErrComponentType   = errors.New("unsupported component type")
	ErrAccessorShape   = errors.New("unexpected accessor type")
	ErrSparseIndex     = errors.New("sparse index out of range")
	ErrIndexComponent  = errors.New("index accessor must be unsigned scalar")
	ErrJointsComponent = errors.New("joints accessor must be unsigned")
)

// readPlan is the validated layout of one accessor.
type readPlan struct {
	acc      Accessor
	comps    int
	compSize int
	stride   int
	base     int
	data     []byte
}

// viewRange resolves a buffer view to the bytes it covers.
func (d *Document) viewRange(index int) (BufferView, []byte, error) {
	if index < 0 || index >= len(d.BufferViews) {
		return BufferView{}, nil, fmt.Errorf("%w: %d", ErrBufferViewIndex, index)
	}
	view := d.BufferViews[index]
	if view.Buffer < 0 || view.Buffer >= len(d.Buffers) {
		return BufferView{}, nil, fmt.Errorf("%w: %d", ErrBufferIndex, view.Buffer)
	}
	buf := d.Buffers[view.Buffer].Data
	if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteOffset+view.ByteLength > len(buf) {
		return BufferView{}, nil, fmt.Errorf("%w: view %d [%d:+%d] of %d bytes",
			ErrBufferViewRange, index, view.ByteOffset, view.ByteLength, len(buf))
	}
	return view, buf[view.ByteOffset : view.ByteOffset+view.ByteLength], nil
}

// plan validates an accessor against its buffer view: every element it describes must lie
// inside the view, honoring the view's stride.
func (d *Document) plan(index int) (readPlan, error) {
	if index < 0 || index >= len(d.Accessors) {
		return readPlan{}, fmt.Errorf("%w: %d", ErrAccessorIndex, index)
	}
	acc := d.Accessors[index]
	comps := acc.Type.Components()
	compSize := acc.ComponentType.Size()
	if comps == 0 || compSize == 0 {
		return readPlan{}, fmt.Errorf("%w: accessor %d (%s)", ErrComponentType, index, acc.ComponentType)
	}
	if acc.Count < 0 {
		return readPlan{}, fmt.Errorf("%w: accessor %d count %d", ErrAccessorRange, index, acc.Count)
	}

	p := readPlan{acc: acc, comps: comps, compSize: compSize}
	elemSize := comps * compSize
	p.stride = elemSize

	if acc.BufferView < 0 {
		return p, nil
	}

	view, data, err := d.viewRange(acc.BufferView)
	if err != nil {
		return readPlan{}, fmt.Errorf("accessor %d: %w", index, err)
	}
	if view.ByteStride > 0 {
		if view.ByteStride < elemSize {
			return readPlan{}, fmt.Errorf("%w: accessor %d stride %d < %d", ErrAccessorStride, index, view.ByteStride, elemSize)
		}
		p.stride = view.ByteStride
	}
	if acc.ByteOffset < 0 || acc.ByteOffset > len(data) {
		return readPlan{}, fmt.Errorf("%w: accessor %d offset %d", ErrAccessorRange, index, acc.ByteOffset)
	}
	if acc.Count > 0 {
		end := acc.ByteOffset + (acc.Count-1)*p.stride + elemSize
		if end > len(data) {
			return readPlan{}, fmt.Errorf("%w: accessor %d needs %d bytes, view has %d", ErrAccessorRange, index, end, len(data))
		}
	}
	p.base = acc.ByteOffset
	p.data = data
	return p, nil
}

func readFloat(ct ComponentType, normalized bool, b []byte) float32 {
	switch ct {
	case ComponentByte:
		v := float32(int8(b[0]))
		if normalized {
			return max(v/127, -1)
		}
		return v
	case ComponentUbyte:
		v := float32(b[0])
		if normalized {
			return v / 255
		}
		return v
	case ComponentShort:
		v := float32(int16(binary.LittleEndian.Uint16(b)))
		if normalized {
			return max(v/32767, -1)
		}
		return v
	case ComponentUshort:
		v := float32(binary.LittleEndian.Uint16(b))
		if normalized {
			return v / 65535
		}
		return v
	case ComponentUint:
		v := float32(binary.LittleEndian.Uint32(b))
		if normalized {
			return float32(float64(binary.LittleEndian.Uint32(b)) / 4294967295.0)
		}
		return v
	case ComponentFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func readUint(ct ComponentType, b []byte) uint32 {
	switch ct {
	case ComponentByte, ComponentUbyte:
		return uint32(b[0])
	case ComponentShort, ComponentUshort:
		return uint32(binary.LittleEndian.Uint16(b))
	case ComponentUint:
		return binary.LittleEndian.Uint32(b)
	case ComponentFloat:
		return uint32(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

// ReadFloats reads an accessor as a flat float slice, applying normalization and sparse
// substitution. It returns the number of components per element.
func (d *Document) ReadFloats(index int) ([]float32, int, error) {
	p, err := d.plan(index)
	if err != nil {
		return nil, 0, err
	}
	out := make([]float32, p.acc.Count*p.comps)
	if p.data != nil {
		for i := 0; i < p.acc.Count; i++ {
			off := p.base + i*p.stride
			for c := 0; c < p.comps; c++ {
				o := off + c*p.compSize
				out[i*p.comps+c] = readFloat(p.acc.ComponentType, p.acc.Normalized, p.data[o:o+p.compSize])
			}
		}
	}
	if p.acc.Sparse != nil {
		err = d.applySparse(index, p, func(dst, elem int, b []byte) {
			out[dst*p.comps+elem] = readFloat(p.acc.ComponentType, p.acc.Normalized, b)
		})
		if err != nil {
			return nil, 0, err
		}
	}
	return out, p.comps, nil
}

// ReadUints reads an accessor as a flat unsigned integer slice.
func (d *Document) ReadUints(index int) ([]uint32, int, error) {
	p, err := d.plan(index)
	if err != nil {
		return nil, 0, err
	}
	out := make([]uint32, p.acc.Count*p.comps)
	if p.data != nil {
		for i := 0; i < p.acc.Count; i++ {
			off := p.base + i*p.stride
			for c := 0; c < p.comps; c++ {
				o := off + c*p.compSize
				out[i*p.comps+c] = readUint(p.acc.ComponentType, p.data[o:o+p.compSize])
			}
		}
	}
	if p.acc.Sparse != nil {
		err = d.applySparse(index, p, func(dst, elem int, b []byte) {
			out[dst*p.comps+elem] = readUint(p.acc.ComponentType, b)
		})
		if err != nil {
			return nil, 0, err
		}
	}
	return out, p.comps, nil
}

// applySparse reads sparse indices and values and calls set for every substituted component.
func (d *Document) applySparse(index int, p readPlan, set func(dst, elem int, b []byte)) error {
	sp := p.acc.Sparse
	idxSize := sp.IndicesType.Size()
	if idxSize == 0 || sp.IndicesType == ComponentFloat {
		return fmt.Errorf("%w: accessor %d sparse indices %s", ErrComponentType, index, sp.IndicesType)
	}
	_, idxData, err := d.viewRange(sp.IndicesView)
	if err != nil {
		return fmt.Errorf("accessor %d sparse indices: %w", index, err)
	}
	_, valData, err := d.viewRange(sp.ValuesView)
	if err != nil {
		return fmt.Errorf("accessor %d sparse values: %w", index, err)
	}
	elemSize := p.comps * p.compSize
	if sp.Count < 0 ||
		sp.IndicesOffset < 0 || sp.IndicesOffset+sp.Count*idxSize > len(idxData) ||
		sp.ValuesOffset < 0 || sp.ValuesOffset+sp.Count*elemSize > len(valData) {
		return fmt.Errorf("%w: accessor %d sparse data", ErrAccessorRange, index)
	}
	for i := 0; i < sp.Count; i++ {
		o := sp.IndicesOffset + i*idxSize
		dst := int(readUint(sp.IndicesType, idxData[o:o+idxSize]))
		if dst >= p.acc.Count {
			return fmt.Errorf("%w: accessor %d sparse index %d >= %d", ErrSparseIndex, index, dst, p.acc.Count)
		}
		vo := sp.ValuesOffset + i*elemSize
		for c := 0; c < p.comps; c++ {
			co := vo + c*p.compSize
			set(dst, c, valData[co:co+p.compSize])
		}
	}
	return nil
}

func (d *Document) readShape(index, want int) ([]float32, error) {
	vals, comps, err := d.ReadFloats(index)
	if err != nil {
		return nil, err
	}
	if comps != want {
		return nil, fmt.Errorf("%w: accessor %d has %d components, want %d", ErrAccessorShape, index, comps, want)
	}
	return vals, nil
}

// ReadScalars reads a SCALAR accessor as floats.
func (d *Document) ReadScalars(index int) ([]float32, error) {
	return d.readShape(index, 1)
}

// ReadVec2 reads a VEC2 accessor.
func (d *Document) ReadVec2(index int) ([][2]float32, error) {
	vals, err := d.readShape(index, 2)
	if err != nil {
		return nil, err
	}
	out := make([][2]float32, len(vals)/2)
	for i := range out {
		out[i] = [2]float32{vals[i*2], vals[i*2+1]}
	}
	return out, nil
}

// ReadVec3 reads a VEC3 accessor.
func (d *Document) ReadVec3(index int) ([]amath.Vec3, error) {
	vals, err := d.readShape(index, 3)
	if err != nil {
		return nil, err
	}
	out := make([]amath.Vec3, len(vals)/3)
	for i := range out {
		out[i] = amath.Vec3{X: vals[i*3], Y: vals[i*3+1], Z: vals[i*3+2]}
	}
	return out, nil
}

// ReadVec4 reads a VEC4 accessor.
func (d *Document) ReadVec4(index int) ([][4]float32, error) {
	vals, err := d.readShape(index, 4)
	if err != nil {
		return nil, err
	}
	out := make([][4]float32, len(vals)/4)
	for i := range out {
		copy(out[i][:], vals[i*4:i*4+4])
	}
	return out, nil
}

// ReadColors reads a VEC3 or VEC4 color accessor, filling alpha with 1 for VEC3.
func (d *Document) ReadColors(index int) ([][4]float32, error) {
	vals, comps, err := d.ReadFloats(index)
	if err != nil {
		return nil, err
	}
	if comps != 3 && comps != 4 {
		return nil, fmt.Errorf("%w: color accessor %d has %d components", ErrAccessorShape, index, comps)
	}
	out := make([][4]float32, len(vals)/comps)
	for i := range out {
		out[i] = [4]float32{vals[i*comps], vals[i*comps+1], vals[i*comps+2], 1}
		if comps == 4 {
			out[i][3] = vals[i*comps+3]
		}
	}
	return out, nil
}

// ReadMat4 reads a MAT4 accessor as column-major matrices.
func (d *Document) ReadMat4(index int) ([]amath.Mat4, error) {
	vals, err := d.readShape(index, 16)
	if err != nil {
		return nil, err
	}
	out := make([]amath.Mat4, len(vals)/16)
	for i := range out {
		copy(out[i][:], vals[i*16:i*16+16])
	}
	return out, nil
}

// ReadIndices reads a SCALAR index accessor of unsigned byte, short or int components.
func (d *Document) ReadIndices(index int) ([]uint32, error) {
	if index >= 0 && index < len(d.Accessors) {
		acc := d.Accessors[index]
		if acc.Type != AccessorScalar {
			return nil, fmt.Errorf("%w: accessor %d", ErrIndexComponent, index)
		}
		switch acc.ComponentType {
		case ComponentUbyte, ComponentUshort, ComponentUint:
		default:
			return nil, fmt.Errorf("%w: accessor %d is %s", ErrIndexComponent, index, acc.ComponentType)
		}
	}
	vals, _, err := d.ReadUints(index)
	return vals, err
}

// ReadJoints reads a VEC4 joint index accessor of unsigned byte or short components.
func (d *Document) ReadJoints(index int) ([][4]uint16, error) {
	if index >= 0 && index < len(d.Accessors) {
		switch d.Accessors[index].ComponentType {
		case ComponentUbyte, ComponentUshort:
		default:
			return nil, fmt.Errorf("%w: accessor %d is %s", ErrJointsComponent, index, d.Accessors[index].ComponentType)
		}
	}
	vals, comps, err := d.ReadUints(index)
	if err != nil {
		return nil, err
	}
	if comps != 4 {
		return nil, fmt.Errorf("%w: joints accessor %d has %d components", ErrAccessorShape, index, comps)
	}
	out := make([][4]uint16, len(vals)/4)
	for i := range out {
		for c := 0; c < 4; c++ {
			out[i][c] = uint16(vals[i*4+c])
		}
	}
	return out, nil
}

// ElementCount returns the element count of an accessor, or 0 when the index is invalid.
func (d *Document) ElementCount(index int) int {
	if index < 0 || index >= len(d.Accessors) {
		return 0
	}
	return d.Accessors[index].Count
}
