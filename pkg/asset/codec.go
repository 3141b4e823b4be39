package asset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"slices"

	"github.com/Faultbox/assetpak/pkg/math"
)

// Container format constants.
const (
	Magic         = "APAK"
	FormatVersion = 1

	HeaderSize      = 32
	ChunkHeaderSize = 32
)

// Header flags.
const (
	FlagChecksum  uint32 = 1 << 0 // Checksum holds the CRC-32 (IEEE) of the payload region
	FlagBigEndian uint32 = 1 << 1 // primitives were written big-endian
)

// Container errors.
var (
	ErrInvalidMagic       = errors.New("invalid container magic: expected 'APAK'")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrTruncated          = errors.New("truncated container data")
	ErrUnknownChunk       = errors.New("unknown chunk type")
	ErrCorrupt            = errors.New("corrupt container data")
	ErrChecksum           = errors.New("container checksum mismatch")
	ErrByteOrder          = errors.New("container byte order differs from host")
)

// ChunkType identifies a container section.
type ChunkType uint32

const (
	ChunkMetadata ChunkType = iota + 1
	ChunkMeshes
	ChunkMaterials
	ChunkTextures
	ChunkSkeletons
	ChunkAnimations
	ChunkSceneNodes
	ChunkStringTable
)

// chunkOrder is the payload order on disk.
var chunkOrder = []ChunkType{
	ChunkMetadata, ChunkMeshes, ChunkMaterials, ChunkTextures,
	ChunkSkeletons, ChunkAnimations, ChunkSceneNodes, ChunkStringTable,
}

func (c ChunkType) String() string {
	switch c {
	case ChunkMetadata:
		return "METADATA"
	case ChunkMeshes:
		return "MESHES"
	case ChunkMaterials:
		return "MATERIALS"
	case ChunkTextures:
		return "TEXTURES"
	case ChunkSkeletons:
		return "SKELETONS"
	case ChunkAnimations:
		return "ANIMATIONS"
	case ChunkSceneNodes:
		return "SCENE_NODES"
	case ChunkStringTable:
		return "STRING_TABLE"
	default:
		return fmt.Sprintf("CHUNK(%d)", uint32(c))
	}
}

// FileHeader is the fixed container header.
type FileHeader struct {
	Magic      [4]byte
	Version    uint32
	Flags      uint32
	ChunkCount uint32
	TotalSize  uint64
	Checksum   uint32
	Reserved   uint32
}

// ChunkHeader locates one chunk payload.
type ChunkHeader struct {
	Type             ChunkType
	Count            uint32
	Offset           uint64
	Size             uint64
	UncompressedSize uint64
}

// minElementSize is the smallest encoded size of one element of each chunk. Declared counts
// are checked against it before anything is allocated.
var minElementSize = map[ChunkType]int{
	ChunkMetadata:   56, // 4 strings, created-at, stats
	ChunkMeshes:     48,
	ChunkMaterials:  94,
	ChunkTextures:   40,
	ChunkSkeletons:  16,
	ChunkAnimations: 48,
	ChunkSceneNodes: 81,
}

// minNodeTrackSize covers the node index and three empty tracks.
const minNodeTrackSize = 4 + 3*(1+4+4)

func hostFlags() uint32 {
	var word [2]byte
	byteOrder.PutUint16(word[:], 1)
	if word[0] == 0 {
		return FlagBigEndian
	}
	return 0
}

type encodeConfig struct {
	checksum bool
}

// EncodeOption adjusts container encoding.
type EncodeOption func(*encodeConfig)

// WithChecksum enables or disables the payload checksum. It is enabled by default.
func WithChecksum(enabled bool) EncodeOption {
	return func(c *encodeConfig) { c.checksum = enabled }
}

// Encode writes the asset as a container.
func (a *ProcessedAsset) Encode(w io.Writer, opts ...EncodeOption) error {
	return a.fail(a.encode(w, opts))
}

// Serialize writes the asset to a container file.
func (a *ProcessedAsset) Serialize(path string, opts ...EncodeOption) error {
	var buf bytes.Buffer
	if err := a.Encode(&buf, opts...); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return a.fail(fmt.Errorf("failed to write %s: %w", path, err))
	}
	return nil
}

func (a *ProcessedAsset) encode(w io.Writer, opts []EncodeOption) error {
	cfg := encodeConfig{checksum: true}
	for _, o := range opts {
		o(&cfg)
	}

	strings := NewStringTable()
	payloads := make([][]byte, len(chunkOrder))
	counts := make([]uint32, len(chunkOrder))
	for i, ct := range chunkOrder {
		if ct == ChunkStringTable {
			continue
		}
		cw := &chunkWriter{strings: strings}
		n, err := a.encodeChunk(ct, cw)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ct, err)
		}
		payloads[i] = cw.buf.Bytes()
		counts[i] = n
	}

	// The string table is complete only after every other chunk has been written.
	last := len(chunkOrder) - 1
	cw := &chunkWriter{strings: strings}
	cw.u32(uint32(strings.Len()))
	for _, s := range strings.Strings() {
		cw.u32(uint32(len(s)))
		cw.buf.WriteString(s)
	}
	payloads[last] = cw.buf.Bytes()
	counts[last] = uint32(strings.Len())

	offset := uint64(HeaderSize + len(chunkOrder)*ChunkHeaderSize)
	headers := make([]ChunkHeader, len(chunkOrder))
	crc := crc32.NewIEEE()
	for i, ct := range chunkOrder {
		size := uint64(len(payloads[i]))
		headers[i] = ChunkHeader{Type: ct, Count: counts[i], Offset: offset, Size: size, UncompressedSize: size}
		offset += size
		crc.Write(payloads[i])
	}

	hdr := FileHeader{
		Version:    FormatVersion,
		Flags:      hostFlags(),
		ChunkCount: uint32(len(chunkOrder)),
		TotalSize:  offset,
	}
	copy(hdr.Magic[:], Magic)
	if cfg.checksum {
		hdr.Flags |= FlagChecksum
		hdr.Checksum = crc.Sum32()
	}

	if err := binary.Write(w, byteOrder, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, byteOrder, headers); err != nil {
		return fmt.Errorf("write chunk headers: %w", err)
	}
	for i, p := range payloads {
		if _, err := w.Write(p); err != nil {
			return fmt.Errorf("write %s: %w", chunkOrder[i], err)
		}
	}
	return nil
}

func (a *ProcessedAsset) encodeChunk(ct ChunkType, w *chunkWriter) (uint32, error) {
	switch ct {
	case ChunkMetadata:
		return a.encodeMetadata(w), nil
	case ChunkMeshes:
		return a.encodeMeshes(w), nil
	case ChunkMaterials:
		return a.encodeMaterials(w), nil
	case ChunkTextures:
		return a.encodeTextures(w), nil
	case ChunkSkeletons:
		return a.encodeSkeletons(w)
	case ChunkAnimations:
		return a.encodeAnimations(w)
	case ChunkSceneNodes:
		return a.encodeNodes(w), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownChunk, uint32(ct))
}

func (a *ProcessedAsset) encodeMetadata(w *chunkWriter) uint32 {
	md := a.Metadata
	w.u32(1)
	w.str(md.Name)
	w.str(md.SourcePath)
	w.str(md.Generator)
	w.str(md.AssetID)
	w.i64(md.CreatedAt)
	w.write(md.Stats)
	return 1
}

func (a *ProcessedAsset) encodeMeshes(w *chunkWriter) uint32 {
	handles := a.MeshHandles()
	w.u32(uint32(len(handles)))
	for _, h := range handles {
		m := a.Meshes[h]
		w.handle(h.ID, h.Generation)
		w.str(m.Name)
		w.u32(m.Format.Mask)
		w.u32(m.Format.Stride)
		w.u32(m.VertexCount)
		w.blob(m.Vertices)
		w.u32(uint32(len(m.Indices)))
		w.write(m.Indices)
		w.u32(uint32(len(m.Submeshes)))
		for _, sm := range m.Submeshes {
			w.u32(sm.IndexOffset)
			w.u32(sm.IndexCount)
			w.u32(sm.BaseVertex)
			w.handle(sm.Material.ID, sm.Material.Generation)
			w.vec3(sm.Min)
			w.vec3(sm.Max)
		}
		w.handle(m.Skeleton.ID, m.Skeleton.Generation)
		w.u32(uint32(len(m.InverseBindMatrices)))
		for _, ibm := range m.InverseBindMatrices {
			w.mat4(ibm)
		}
	}
	return uint32(len(handles))
}

func (a *ProcessedAsset) encodeMaterials(w *chunkWriter) uint32 {
	handles := a.MaterialHandles()
	w.u32(uint32(len(handles)))
	for _, h := range handles {
		m := a.Materials[h]
		w.handle(h.ID, h.Generation)
		w.str(m.Name)
		w.write(m.BaseColorFactor)
		w.f32(m.MetallicFactor)
		w.f32(m.RoughnessFactor)
		w.write(m.EmissiveFactor)
		w.u8(uint8(m.AlphaMode))
		w.f32(m.AlphaCutoff)
		w.boolean(m.DoubleSided)
		for _, t := range []TextureHandle{
			m.BaseColorTexture, m.MetallicRoughnessTexture, m.NormalTexture,
			m.OcclusionTexture, m.EmissiveTexture,
		} {
			w.handle(t.ID, t.Generation)
		}
	}
	return uint32(len(handles))
}

func (a *ProcessedAsset) encodeTextures(w *chunkWriter) uint32 {
	handles := a.TextureHandles()
	w.u32(uint32(len(handles)))
	for _, h := range handles {
		t := a.Textures[h]
		w.handle(h.ID, h.Generation)
		w.str(t.Name)
		w.str(t.URI)
		w.str(t.MimeType)
		w.u32(t.MagFilter)
		w.u32(t.MinFilter)
		w.u32(t.WrapS)
		w.u32(t.WrapT)
		w.blob(t.Data)
	}
	return uint32(len(handles))
}

func (a *ProcessedAsset) encodeSkeletons(w *chunkWriter) (uint32, error) {
	handles := a.SkeletonHandles()
	w.u32(uint32(len(handles)))
	for _, h := range handles {
		s := a.Skeletons[h]
		blob := s.Blob
		if blob == nil && s.Runtime != nil {
			var err error
			if blob, err = a.Runtime.MarshalSkeleton(s.Runtime); err != nil {
				return 0, fmt.Errorf("skeleton %q: %w", s.Name, err)
			}
		}
		w.handle(h.ID, h.Generation)
		w.str(s.Name)
		w.blob(blob)
	}
	return uint32(len(handles)), nil
}

func (a *ProcessedAsset) encodeAnimations(w *chunkWriter) (uint32, error) {
	handles := a.AnimationHandles()
	w.u32(uint32(len(handles)))
	for _, h := range handles {
		anim := a.Animations[h]
		blob := anim.Blob
		if blob == nil && anim.Skeletal != nil {
			var err error
			if blob, err = a.Runtime.MarshalAnimation(anim.Skeletal); err != nil {
				return 0, fmt.Errorf("animation %q: %w", anim.Name, err)
			}
		}
		w.handle(h.ID, h.Generation)
		w.str(anim.Name)
		w.f32(anim.Duration)
		w.handle(anim.Skeleton.ID, anim.Skeleton.Generation)
		w.i32(anim.TargetNode)
		w.handle(anim.TargetMesh.ID, anim.TargetMesh.Generation)
		w.i32(anim.RootMotionJoint)
		w.blob(blob)

		nodes := make([]int, 0, len(anim.NodeTracks))
		for n := range anim.NodeTracks {
			nodes = append(nodes, n)
		}
		slices.Sort(nodes)
		w.u32(uint32(len(nodes)))
		for _, n := range nodes {
			tr := anim.NodeTracks[n]
			w.i32(int32(n))
			w.u8(uint8(tr.Translation.Interpolation))
			w.floats(tr.Translation.Times)
			w.u32(uint32(len(tr.Translation.Values)))
			for _, v := range tr.Translation.Values {
				w.vec3(v)
			}
			w.u8(uint8(tr.Rotation.Interpolation))
			w.floats(tr.Rotation.Times)
			w.u32(uint32(len(tr.Rotation.Values)))
			for _, v := range tr.Rotation.Values {
				w.quat(v)
			}
			w.u8(uint8(tr.Scale.Interpolation))
			w.floats(tr.Scale.Times)
			w.u32(uint32(len(tr.Scale.Values)))
			for _, v := range tr.Scale.Values {
				w.vec3(v)
			}
		}
	}
	return uint32(len(handles)), nil
}

func (a *ProcessedAsset) encodeNodes(w *chunkWriter) uint32 {
	w.u32(uint32(len(a.Nodes)))
	for i := range a.Nodes {
		n := &a.Nodes[i]
		w.str(n.Name)
		w.i32(n.Parent)
		w.u32(uint32(len(n.Children)))
		w.write(n.Children)
		w.vec3(n.Translation)
		w.quat(n.Rotation)
		w.vec3(n.Scale)
		w.handle(n.Mesh.ID, n.Mesh.Generation)
		w.handle(n.Skeleton.ID, n.Skeleton.Generation)
		w.i32(n.Camera)
		w.i32(n.Light)
		w.i32(n.Joint)
		w.boolean(n.AnimationTarget)
	}
	w.u32(uint32(len(a.Roots)))
	w.write(a.Roots)
	return uint32(len(a.Nodes))
}

// Deserialize replaces the asset with the contents of a container file. On failure the asset
// is left cleared.
func (a *ProcessedAsset) Deserialize(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		a.Clear()
		return a.fail(fmt.Errorf("failed to read %s: %w", path, err))
	}
	return a.Decode(data)
}

// Decode replaces the asset with a decoded container. On failure the asset is left cleared.
func (a *ProcessedAsset) Decode(data []byte) error {
	a.Clear()
	if a.Runtime == nil {
		return a.fail(errors.New("no runtime configured for skeleton and animation blobs"))
	}
	if err := a.decode(data); err != nil {
		a.Clear()
		return a.fail(err)
	}
	return nil
}

// ReadHeader validates and returns the container header and chunk table without decoding
// payloads.
func ReadHeader(data []byte) (FileHeader, []ChunkHeader, error) {
	var hdr FileHeader
	if len(data) < len(Magic) {
		return hdr, nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if string(data[:len(Magic)]) != Magic {
		return hdr, nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[:len(Magic)])
	}
	if len(data) < HeaderSize {
		return hdr, nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), byteOrder, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if hdr.Version != FormatVersion {
		return hdr, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	if hdr.Flags&FlagBigEndian != hostFlags()&FlagBigEndian {
		return hdr, nil, ErrByteOrder
	}
	if hdr.TotalSize != uint64(len(data)) {
		if hdr.TotalSize > uint64(len(data)) {
			return hdr, nil, fmt.Errorf("%w: header declares %d bytes, have %d", ErrTruncated, hdr.TotalSize, len(data))
		}
		return hdr, nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, uint64(len(data))-hdr.TotalSize)
	}
	if hdr.ChunkCount > uint32(len(chunkOrder)) {
		return hdr, nil, fmt.Errorf("%w: %d chunks", ErrCorrupt, hdr.ChunkCount)
	}

	tableEnd := HeaderSize + int(hdr.ChunkCount)*ChunkHeaderSize
	if len(data) < tableEnd {
		return hdr, nil, fmt.Errorf("%w: chunk table needs %d bytes, have %d", ErrTruncated, tableEnd, len(data))
	}
	chunks := make([]ChunkHeader, hdr.ChunkCount)
	if err := binary.Read(bytes.NewReader(data[HeaderSize:tableEnd]), byteOrder, chunks); err != nil {
		return hdr, nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	seen := make(map[ChunkType]bool, len(chunks))
	for _, c := range chunks {
		if !slices.Contains(chunkOrder, c.Type) {
			return hdr, nil, fmt.Errorf("%w: %d", ErrUnknownChunk, uint32(c.Type))
		}
		if seen[c.Type] {
			return hdr, nil, fmt.Errorf("%w: duplicate %s chunk", ErrCorrupt, c.Type)
		}
		seen[c.Type] = true
		if c.Offset < uint64(tableEnd) || c.Offset > uint64(len(data)) || c.Size > uint64(len(data))-c.Offset {
			return hdr, nil, fmt.Errorf("%w: %s chunk [%d:+%d] outside %d bytes", ErrTruncated, c.Type, c.Offset, c.Size, len(data))
		}
		if c.UncompressedSize != c.Size {
			return hdr, nil, fmt.Errorf("%w: %s chunk is compressed", ErrCorrupt, c.Type)
		}
	}

	if hdr.Flags&FlagChecksum != 0 {
		if sum := crc32.ChecksumIEEE(data[tableEnd:]); sum != hdr.Checksum {
			return hdr, nil, fmt.Errorf("%w: stored %08x, computed %08x", ErrChecksum, hdr.Checksum, sum)
		}
	}
	return hdr, chunks, nil
}

func (a *ProcessedAsset) decode(data []byte) error {
	_, chunks, err := ReadHeader(data)
	if err != nil {
		return err
	}

	byType := make(map[ChunkType]ChunkHeader, len(chunks))
	for _, c := range chunks {
		byType[c.Type] = c
	}
	payload := func(c ChunkHeader) []byte { return data[c.Offset : c.Offset+c.Size] }

	strings := NewStringTable()
	if c, ok := byType[ChunkStringTable]; ok {
		if strings, err = decodeStrings(payload(c), c.Count); err != nil {
			return err
		}
	}

	for _, ct := range chunkOrder {
		c, ok := byType[ct]
		if !ok || ct == ChunkStringTable {
			continue
		}
		r := newChunkReader(payload(c), strings, ct)
		n := r.count(minElementSize[ct])
		if r.err != nil {
			return r.err
		}
		if uint32(n) != c.Count {
			return fmt.Errorf("%w: %s header count %d, payload count %d", ErrCorrupt, ct, c.Count, n)
		}
		if err := a.decodeChunk(r, n); err != nil {
			return err
		}
		if r.err != nil {
			return r.err
		}
		if r.r.Len() != 0 {
			return fmt.Errorf("%w: %s has %d unread bytes", ErrCorrupt, ct, r.r.Len())
		}
	}
	return nil
}

func decodeStrings(data []byte, count uint32) (*StringTable, error) {
	r := newChunkReader(data, nil, ChunkStringTable)
	n := r.count(4)
	if r.err != nil {
		return nil, r.err
	}
	if uint32(n) != count || n == 0 {
		return nil, fmt.Errorf("%w: string table count %d, header %d", ErrCorrupt, n, count)
	}
	st := NewStringTable()
	for i := 0; i < n; i++ {
		size := r.count(1)
		if !r.need(size) {
			return nil, r.err
		}
		b := make([]byte, size)
		_, _ = r.r.Read(b)
		if i == 0 {
			if size != 0 {
				return nil, fmt.Errorf("%w: string 0 must be empty", ErrCorrupt)
			}
			continue
		}
		if idx := st.AddString(string(b)); idx != uint32(i) {
			return nil, fmt.Errorf("%w: duplicate string at %d", ErrCorrupt, i)
		}
	}
	if r.r.Len() != 0 {
		return nil, fmt.Errorf("%w: string table has %d unread bytes", ErrCorrupt, r.r.Len())
	}
	return st, nil
}

func (a *ProcessedAsset) decodeChunk(r *chunkReader, n int) error {
	switch r.chunk {
	case ChunkMetadata:
		return a.decodeMetadata(r, n)
	case ChunkMeshes:
		return a.decodeMeshes(r, n)
	case ChunkMaterials:
		return a.decodeMaterials(r, n)
	case ChunkTextures:
		return a.decodeTextures(r, n)
	case ChunkSkeletons:
		return a.decodeSkeletons(r, n)
	case ChunkAnimations:
		return a.decodeAnimations(r, n)
	case ChunkSceneNodes:
		return a.decodeNodes(r, n)
	}
	return fmt.Errorf("%w: %d", ErrUnknownChunk, uint32(r.chunk))
}

// adopt registers a decoded handle, rejecting ids that appear twice.
func (a *ProcessedAsset) adopt(r *chunkReader) (uint32, uint32, bool) {
	id, gen := r.handle()
	if r.err != nil {
		return 0, 0, false
	}
	if id == 0 {
		r.fail(fmt.Errorf("%w: %s element with zero handle", ErrCorrupt, r.chunk))
		return 0, 0, false
	}
	if _, dup := a.handles.live[id]; dup {
		r.fail(fmt.Errorf("%w: %s handle id %d reused", ErrCorrupt, r.chunk, id))
		return 0, 0, false
	}
	a.handles.adopt(id, gen)
	return id, gen, true
}

func (a *ProcessedAsset) decodeMetadata(r *chunkReader, n int) error {
	if n != 1 {
		return fmt.Errorf("%w: %d metadata records", ErrCorrupt, n)
	}
	md := &a.Metadata
	md.Name = r.str()
	md.SourcePath = r.str()
	md.Generator = r.str()
	md.AssetID = r.str()
	md.CreatedAt = r.i64()
	r.read(&md.Stats)
	return nil
}

func (a *ProcessedAsset) decodeMeshes(r *chunkReader, n int) error {
	for i := 0; i < n && r.err == nil; i++ {
		id, gen, ok := a.adopt(r)
		if !ok {
			break
		}
		m := &MeshData{Name: r.str()}
		mask := r.u32()
		stride := r.u32()
		m.Format = NewVertexFormat(mask)
		if r.err == nil && (m.Format.Mask != mask || m.Format.Stride != stride) {
			return fmt.Errorf("%w: mesh %q format %08x stride %d", ErrCorrupt, m.Name, mask, stride)
		}
		m.VertexCount = r.u32()
		m.Vertices = r.blob()
		if r.err == nil && uint64(len(m.Vertices)) != uint64(m.VertexCount)*uint64(stride) {
			return fmt.Errorf("%w: mesh %q vertex buffer %d bytes for %d vertices", ErrCorrupt, m.Name, len(m.Vertices), m.VertexCount)
		}
		m.Indices = make([]uint32, r.count(4))
		r.read(m.Indices)
		m.Submeshes = make([]Submesh, r.count(44))
		for k := range m.Submeshes {
			sm := &m.Submeshes[k]
			sm.IndexOffset = r.u32()
			sm.IndexCount = r.u32()
			sm.BaseVertex = r.u32()
			sm.Material.ID, sm.Material.Generation = r.handle()
			sm.Min = r.vec3()
			sm.Max = r.vec3()
		}
		m.Skeleton.ID, m.Skeleton.Generation = r.handle()
		m.InverseBindMatrices = make([]math.Mat4, r.count(64))
		for k := range m.InverseBindMatrices {
			m.InverseBindMatrices[k] = r.mat4()
		}
		a.Meshes[MeshHandle{ID: id, Generation: gen}] = m
	}
	return nil
}

func (a *ProcessedAsset) decodeMaterials(r *chunkReader, n int) error {
	for i := 0; i < n && r.err == nil; i++ {
		id, gen, ok := a.adopt(r)
		if !ok {
			break
		}
		m := &MaterialData{Name: r.str()}
		r.read(&m.BaseColorFactor)
		m.MetallicFactor = r.f32()
		m.RoughnessFactor = r.f32()
		r.read(&m.EmissiveFactor)
		m.AlphaMode = AlphaMode(r.u8())
		m.AlphaCutoff = r.f32()
		m.DoubleSided = r.boolean()
		for _, t := range []*TextureHandle{
			&m.BaseColorTexture, &m.MetallicRoughnessTexture, &m.NormalTexture,
			&m.OcclusionTexture, &m.EmissiveTexture,
		} {
			t.ID, t.Generation = r.handle()
		}
		a.Materials[MaterialHandle{ID: id, Generation: gen}] = m
	}
	return nil
}

func (a *ProcessedAsset) decodeTextures(r *chunkReader, n int) error {
	for i := 0; i < n && r.err == nil; i++ {
		id, gen, ok := a.adopt(r)
		if !ok {
			break
		}
		t := &TextureData{Name: r.str(), URI: r.str(), MimeType: r.str()}
		t.MagFilter = r.u32()
		t.MinFilter = r.u32()
		t.WrapS = r.u32()
		t.WrapT = r.u32()
		t.Data = r.blob()
		a.Textures[TextureHandle{ID: id, Generation: gen}] = t
	}
	return nil
}

func (a *ProcessedAsset) decodeSkeletons(r *chunkReader, n int) error {
	for i := 0; i < n && r.err == nil; i++ {
		id, gen, ok := a.adopt(r)
		if !ok {
			break
		}
		s := &SkeletonData{Name: r.str(), Blob: r.blob()}
		if r.err != nil {
			break
		}
		rt, err := a.Runtime.UnmarshalSkeleton(s.Blob)
		if err != nil {
			return fmt.Errorf("%w: skeleton %q: %v", ErrCorrupt, s.Name, err)
		}
		s.Runtime = rt
		a.Skeletons[SkeletonHandle{ID: id, Generation: gen}] = s
	}
	return nil
}

func (a *ProcessedAsset) decodeAnimations(r *chunkReader, n int) error {
	for i := 0; i < n && r.err == nil; i++ {
		id, gen, ok := a.adopt(r)
		if !ok {
			break
		}
		anim := &AnimationData{Name: r.str(), Duration: r.f32()}
		anim.Skeleton.ID, anim.Skeleton.Generation = r.handle()
		anim.TargetNode = r.i32()
		anim.TargetMesh.ID, anim.TargetMesh.Generation = r.handle()
		anim.RootMotionJoint = r.i32()
		anim.Blob = r.blob()
		if r.err == nil && anim.Blob != nil {
			rt, err := a.Runtime.UnmarshalAnimation(anim.Blob)
			if err != nil {
				return fmt.Errorf("%w: animation %q: %v", ErrCorrupt, anim.Name, err)
			}
			anim.Skeletal = rt
		}

		tracks := r.count(minNodeTrackSize)
		if tracks > 0 {
			anim.NodeTracks = make(map[int]*NodeTransformData, tracks)
		}
		for k := 0; k < tracks && r.err == nil; k++ {
			node := int(r.i32())
			tr := &NodeTransformData{}
			tr.Translation.Interpolation = Interpolation(r.u8())
			tr.Translation.Times = r.floats()
			tr.Translation.Values = make([]math.Vec3, r.count(12))
			for v := range tr.Translation.Values {
				tr.Translation.Values[v] = r.vec3()
			}
			tr.Rotation.Interpolation = Interpolation(r.u8())
			tr.Rotation.Times = r.floats()
			tr.Rotation.Values = make([]math.Quat, r.count(16))
			for v := range tr.Rotation.Values {
				tr.Rotation.Values[v] = r.quat()
			}
			tr.Scale.Interpolation = Interpolation(r.u8())
			tr.Scale.Times = r.floats()
			tr.Scale.Values = make([]math.Vec3, r.count(12))
			for v := range tr.Scale.Values {
				tr.Scale.Values[v] = r.vec3()
			}
			anim.NodeTracks[node] = tr
		}
		a.Animations[AnimationHandle{ID: id, Generation: gen}] = anim
	}
	return nil
}

func (a *ProcessedAsset) decodeNodes(r *chunkReader, n int) error {
	a.Nodes = make([]SceneNode, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		node := SceneNode{Name: r.str(), Parent: r.i32()}
		node.Children = make([]uint32, r.count(4))
		r.read(node.Children)
		node.Translation = r.vec3()
		node.Rotation = r.quat()
		node.Scale = r.vec3()
		node.Mesh.ID, node.Mesh.Generation = r.handle()
		node.Skeleton.ID, node.Skeleton.Generation = r.handle()
		node.Camera = r.i32()
		node.Light = r.i32()
		node.Joint = r.i32()
		node.AnimationTarget = r.boolean()
		a.Nodes = append(a.Nodes, node)
	}
	a.Roots = make([]uint32, r.count(4))
	r.read(a.Roots)
	return nil
}
