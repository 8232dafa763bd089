package glshim

import "encoding/binary"

// Block is one shader stage's default uniform block: a CPU-side byte
// buffer laid out by a BlockLayout, plus a dirty flag that tracks
// whether the buffer holds data not yet flushed to the device.
//
// Values are stored little-endian as 32-bit words. Callers pass scalar
// data as raw words (float bit patterns via math.Float32bits, signed
// values via uint32 conversion); the block never interprets component
// values except for boolean coercion.
type Block struct {
	layout *BlockLayout
	data   []byte
	dirty  bool
}

// NewBlock allocates a block buffer sized for layout. The buffer is
// zero-filled and starts clean.
func NewBlock(layout *BlockLayout) *Block {
	return &Block{
		layout: layout,
		data:   make([]byte, layout.Size()),
	}
}

// Layout returns the layout the block was built from.
func (b *Block) Layout() *BlockLayout { return b.layout }

// Bytes returns the backing buffer. The caller must not retain the
// slice across a Write.
func (b *Block) Bytes() []byte { return b.data }

// Size returns the buffer size in bytes.
func (b *Block) Size() int { return len(b.data) }

// Dirty reports whether the block holds data written since the last
// MarkClean.
func (b *Block) Dirty() bool { return b.dirty }

// MarkClean clears the dirty flag. Called after the buffer contents
// have been handed to the device.
func (b *Block) MarkClean() { b.dirty = false }

// Write stores count elements of type t from src into the block,
// starting at array element first of the uniform located by entry.
// first is 0 for non-arrays and for writes addressing a whole array.
// src holds the tightly packed source words: count elements of
// Components()*Columns() words each.
//
// An entry with Offset == OffsetUnused is silently skipped: the
// uniform exists in the program but not in this stage. Boolean types
// coerce every source word to the 0/1 sentinel. Matrix elements are
// scattered column by column at MatrixStride so each column lands on
// its padded boundary.
func (b *Block) Write(entry LayoutEntry, t UniformType, first, count int, src []uint32) {
	if entry.Offset == OffsetUnused || count == 0 {
		return
	}
	words := t.Components() * t.Columns()
	if len(src) < count*words {
		internalf("uniform write: %d source words for %d elements of %d words",
			len(src), count, words)
	}

	if t.IsMatrix() {
		b.writeMatrices(entry, t, first, count, src)
	} else {
		b.writeVectors(entry, t, first, count, src)
	}
	b.dirty = true
}

// writeVectors handles scalar and vector elements, including boolean
// coercion. When the array stride equals the dense element size the
// whole range is copied in one pass.
func (b *Block) writeVectors(entry LayoutEntry, t UniformType, first, count int, src []uint32) {
	comps := t.Components()
	dense := t.denseBytes()
	stride := int(entry.ArrayStride)
	if stride == 0 {
		stride = dense
	}
	b.checkBounds(entry.Offset, first, stride, dense, count)

	coerce := t.IsBool()
	if stride == dense && !coerce {
		putWords(b.data[int(entry.Offset)+first*stride:], src[:count*comps])
		return
	}
	for i := 0; i < count; i++ {
		off := int(entry.Offset) + (first+i)*stride
		for c := 0; c < comps; c++ {
			w := src[i*comps+c]
			if coerce && w != 0 {
				w = 1
			}
			binary.LittleEndian.PutUint32(b.data[off+c*scalarBytes:], w)
		}
	}
}

// writeMatrices scatters column-major matrix data so every column
// starts at its padded stride.
func (b *Block) writeMatrices(entry LayoutEntry, t UniformType, first, count int, src []uint32) {
	cols := t.Columns()
	rows := t.Components()
	matStride := int(entry.MatrixStride)
	elemStride := int(entry.ArrayStride)
	if elemStride == 0 {
		elemStride = cols * matStride
	}
	b.checkBounds(entry.Offset, first, elemStride, cols*matStride, count)

	for i := 0; i < count; i++ {
		base := int(entry.Offset) + (first+i)*elemStride
		for c := 0; c < cols; c++ {
			colSrc := src[(i*cols+c)*rows : (i*cols+c+1)*rows]
			putWords(b.data[base+c*matStride:], colSrc)
		}
	}
}

// Read copies count elements of type t, starting at array element
// first, from the block at entry into dst, undoing any array or matrix
// padding so dst receives tightly packed words. Reading an unused
// entry leaves dst untouched.
func (b *Block) Read(entry LayoutEntry, t UniformType, first, count int, dst []uint32) {
	if entry.Offset == OffsetUnused || count == 0 {
		return
	}
	words := t.Components() * t.Columns()
	if len(dst) < count*words {
		internalf("uniform read: %d destination words for %d elements of %d words",
			len(dst), count, words)
	}

	if t.IsMatrix() {
		cols := t.Columns()
		rows := t.Components()
		matStride := int(entry.MatrixStride)
		elemStride := int(entry.ArrayStride)
		if elemStride == 0 {
			elemStride = cols * matStride
		}
		b.checkBounds(entry.Offset, first, elemStride, cols*matStride, count)
		for i := 0; i < count; i++ {
			base := int(entry.Offset) + (first+i)*elemStride
			for c := 0; c < cols; c++ {
				getWords(dst[(i*cols+c)*rows:(i*cols+c+1)*rows], b.data[base+c*matStride:])
			}
		}
		return
	}

	comps := t.Components()
	dense := t.denseBytes()
	stride := int(entry.ArrayStride)
	if stride == 0 {
		stride = dense
	}
	b.checkBounds(entry.Offset, first, stride, dense, count)
	if stride == dense {
		getWords(dst[:count*comps], b.data[int(entry.Offset)+first*stride:])
		return
	}
	for i := 0; i < count; i++ {
		getWords(dst[i*comps:(i+1)*comps], b.data[int(entry.Offset)+(first+i)*stride:])
	}
}

// checkBounds panics when a write or read would overrun the buffer.
// Layout and access are produced by the same link, so an overrun is an
// internal consistency defect, not a caller error.
func (b *Block) checkBounds(offset int32, first, stride, elemBytes, count int) {
	start := int(offset) + first*stride
	end := start + (count-1)*stride + elemBytes
	if offset < 0 || first < 0 || end > len(b.data) {
		internalf("uniform access [%d, %d) outside block of %d bytes", start, end, len(b.data))
	}
}

// putWords stores words little-endian into dst.
func putWords(dst []byte, words []uint32) {
	for i, w := range words {
		binary.LittleEndian.PutUint32(dst[i*scalarBytes:], w)
	}
}

// getWords loads little-endian words from src into dst.
func getWords(dst []uint32, src []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(src[i*scalarBytes:])
	}
}
