package glshim

// UniformType enumerates the data types a default-block uniform can
// have in the emulated API: float/int/uint/bool scalars and vectors,
// and square float matrices.
type UniformType uint8

const (
	TypeFloat UniformType = iota
	TypeVec2
	TypeVec3
	TypeVec4
	TypeInt
	TypeIVec2
	TypeIVec3
	TypeIVec4
	TypeUint
	TypeUVec2
	TypeUVec3
	TypeUVec4
	TypeBool
	TypeBVec2
	TypeBVec3
	TypeBVec4
	TypeMat2
	TypeMat3
	TypeMat4
)

// scalarBytes is the byte size of every scalar component. All modeled
// component types (float32, int32, uint32 and the bool sentinel) are
// four bytes wide.
const scalarBytes = 4

// Components returns the number of components per element: the vector
// width for scalars and vectors, or the number of rows per column for
// matrices.
func (t UniformType) Components() int {
	switch t {
	case TypeFloat, TypeInt, TypeUint, TypeBool:
		return 1
	case TypeVec2, TypeIVec2, TypeUVec2, TypeBVec2, TypeMat2:
		return 2
	case TypeVec3, TypeIVec3, TypeUVec3, TypeBVec3, TypeMat3:
		return 3
	case TypeVec4, TypeIVec4, TypeUVec4, TypeBVec4, TypeMat4:
		return 4
	default:
		return 0
	}
}

// Columns returns the number of matrix columns, or 1 for non-matrix
// types.
func (t UniformType) Columns() int {
	switch t {
	case TypeMat2:
		return 2
	case TypeMat3:
		return 3
	case TypeMat4:
		return 4
	default:
		return 1
	}
}

// IsMatrix reports whether t is a matrix type.
func (t UniformType) IsMatrix() bool {
	return t == TypeMat2 || t == TypeMat3 || t == TypeMat4
}

// IsBool reports whether t is a boolean scalar or vector. Boolean
// uniforms store a 0/1 sentinel per component and require value
// coercion on write.
func (t UniformType) IsBool() bool {
	return t == TypeBool || t == TypeBVec2 || t == TypeBVec3 || t == TypeBVec4
}

// denseBytes returns the tightly packed byte size of one element:
// component count times scalar size, times column count for matrices.
func (t UniformType) denseBytes() int {
	return t.Components() * t.Columns() * scalarBytes
}

// baseAlignment returns the std140 base alignment of one element of t
// outside an array: scalars align to 4, two-component vectors to 8,
// wider vectors and matrix columns to 16.
func (t UniformType) baseAlignment() int {
	if t.IsMatrix() {
		return vecAlignment
	}
	switch t.Components() {
	case 1:
		return scalarBytes
	case 2:
		return 2 * scalarBytes
	default:
		return vecAlignment
	}
}

// vecAlignment is the alignment of 3/4-component vectors, matrix
// columns and array elements, and the unit the total block size is
// rounded up to. Required by the uniform-buffer alignment rule of the
// target GPU model.
const vecAlignment = 16

// UniformDecl describes one default-block uniform as reported by the
// front end's reflection data. ArrayLen is 0 for non-array uniforms.
type UniformDecl struct {
	Name     string
	Type     UniformType
	ArrayLen int
}

// elemCount returns the number of addressable elements: 1 for
// non-arrays, ArrayLen otherwise.
func (d UniformDecl) elemCount() int {
	if d.ArrayLen > 0 {
		return d.ArrayLen
	}
	return 1
}

// LayoutEntry locates one uniform inside a stage's block buffer.
// Offset is -1 when the uniform is absent from the stage; all access
// code must treat -1 as "skip". ArrayStride and MatrixStride are 0
// when not applicable.
type LayoutEntry struct {
	Offset       int32
	ArrayStride  int32
	MatrixStride int32
}

// OffsetUnused marks a uniform that is not present in a stage's block.
const OffsetUnused int32 = -1

// BlockLayout maps uniform names to their byte locations within one
// stage's default uniform block. Built once per link and read-only
// afterward.
type BlockLayout struct {
	entries map[string]LayoutEntry
	size    int
}

// Lookup returns the layout entry for name. If the uniform is absent
// from this stage the returned entry has Offset == OffsetUnused.
func (l *BlockLayout) Lookup(name string) LayoutEntry {
	if l == nil {
		return LayoutEntry{Offset: OffsetUnused}
	}
	if e, ok := l.entries[name]; ok {
		return e
	}
	return LayoutEntry{Offset: OffsetUnused}
}

// Size returns the total block size in bytes, rounded up to a 16-byte
// unit. A layout built from an empty declaration list has size 0.
func (l *BlockLayout) Size() int {
	if l == nil {
		return 0
	}
	return l.size
}

// Len returns the number of uniforms in the layout.
func (l *BlockLayout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// alignUp rounds n up to the next multiple of align. align must be a
// power of two.
func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// EncodeBlockLayout computes the std140-style layout of an ordered
// uniform declaration list for one shader stage.
//
// Packing rule: scalars and vectors occupy componentCount*4 bytes at
// their base alignment; array elements are padded to a 16-byte-aligned
// stride when the natural element size is not already a multiple of
// 16; matrices are stored column-major with every column padded like a
// 4-component vector. The total size is rounded up to the nearest
// multiple of 16 bytes. An empty declaration list yields size 0.
//
// The computation is pure: the same input always produces the same
// layout, which the two stages rely on when a uniform is shared by
// name.
func EncodeBlockLayout(decls []UniformDecl) *BlockLayout {
	layout := &BlockLayout{entries: make(map[string]LayoutEntry, len(decls))}
	if len(decls) == 0 {
		return layout
	}

	cursor := 0
	for _, d := range decls {
		entry := LayoutEntry{}
		isArray := d.ArrayLen > 0

		switch {
		case d.Type.IsMatrix():
			// Column-major, each column padded like a vec4.
			entry.MatrixStride = vecAlignment
			matrixBytes := d.Type.Columns() * vecAlignment
			if isArray {
				entry.ArrayStride = int32(matrixBytes)
			}
			cursor = alignUp(cursor, vecAlignment)
			entry.Offset = int32(cursor)
			cursor += matrixBytes * d.elemCount()

		case isArray:
			stride := d.Type.denseBytes()
			if stride%vecAlignment != 0 {
				stride = alignUp(stride, vecAlignment)
			}
			entry.ArrayStride = int32(stride)
			cursor = alignUp(cursor, vecAlignment)
			entry.Offset = int32(cursor)
			cursor += stride * d.ArrayLen

		default:
			cursor = alignUp(cursor, d.Type.baseAlignment())
			entry.Offset = int32(cursor)
			cursor += d.Type.denseBytes()
		}

		layout.entries[d.Name] = entry
	}

	layout.size = alignUp(cursor, vecAlignment)
	return layout
}
