package abi

// Allocator hands out guest heap blocks. Free recovers the block size from
// the pointer alone; the deallocation protocol never communicates one.
type Allocator interface {
	Alloc(length, align uint32) (uint32, error)
	Free(ptr, align uint32)
	Realloc(ptr, newLength, align uint32) (uint32, error)
}

const (
	// PtrAlign is the minimum alignment of any guest heap block (wasm32
	// pointer width).
	PtrAlign = 4

	// HeaderSize is the refcount header preceding every string and list
	// payload: a u32 refcount plus padding to 8 bytes so payloads of any
	// boundary alignment start aligned.
	HeaderSize = 8

	// StrSize and StrAlign describe the {ptr, len, cap} triple.
	StrSize  = 12
	StrAlign = 4

	// ListSize and ListAlign describe the list triple, which has the same
	// shape as a string.
	ListSize  = 12
	ListAlign = 4
)

// lenFlagMask reserves the top bit of the len field (seamless-slice flag in
// guest code). The host always writes it clear and masks it on read.
const lenFlagMask = uint32(1) << 31

// Str is the boundary string triple. The all-zero Str is the empty
// sentinel with no heap allocation. A Str handed to the guest through a
// return buffer transfers ownership: the host must not read or free the
// block afterward.
type Str struct {
	Ptr uint32
	Len uint32
	Cap uint32
}

// List is the boundary list triple. Whether elements are themselves
// refcounted depends on the element type; the list block itself always
// carries a refcount header.
type List struct {
	Ptr uint32
	Len uint32
	Cap uint32
}

// NewBlock allocates a refcounted heap block of size payload bytes and
// returns the payload pointer. The block is born with refcount 1; the guest
// releases it through its own convention.
func NewBlock(m Memory, a Allocator, size, align uint32) (uint32, error) {
	if align < 8 {
		// The 8-byte header keeps any payload of boundary alignment
		// aligned as long as the block itself is.
		align = 8
	}
	block, err := a.Alloc(HeaderSize+size, align)
	if err != nil {
		return 0, err
	}
	if err := m.WriteU32(block, 1); err != nil {
		return 0, err
	}
	if err := m.WriteU32(block+4, 0); err != nil {
		return 0, err
	}
	return block + HeaderSize, nil
}

// NewStr copies b into a fresh refcounted block and returns its triple.
// Empty input returns the sentinel with no allocation.
func NewStr(m Memory, a Allocator, b []byte) (Str, error) {
	if len(b) == 0 {
		return Str{}, nil
	}
	ptr, err := NewBlock(m, a, uint32(len(b)), 1)
	if err != nil {
		return Str{}, err
	}
	if err := m.Write(ptr, b); err != nil {
		return Str{}, err
	}
	return Str{Ptr: ptr, Len: uint32(len(b)), Cap: uint32(len(b))}, nil
}

// WriteStr stores the triple at offset with the flag bit clear.
func WriteStr(m Memory, offset uint32, s Str) error {
	if err := m.WriteU32(offset, s.Ptr); err != nil {
		return err
	}
	if err := m.WriteU32(offset+4, s.Len&^lenFlagMask); err != nil {
		return err
	}
	return m.WriteU32(offset+8, s.Cap)
}

// ReadStr loads a triple from offset, masking the flag bit out of len.
func ReadStr(m Memory, offset uint32) (Str, error) {
	ptr, err := m.ReadU32(offset)
	if err != nil {
		return Str{}, err
	}
	length, err := m.ReadU32(offset + 4)
	if err != nil {
		return Str{}, err
	}
	capacity, err := m.ReadU32(offset + 8)
	if err != nil {
		return Str{}, err
	}
	return Str{Ptr: ptr, Len: length &^ lenFlagMask, Cap: capacity}, nil
}

// ReadStrBytes loads the triple at offset and copies out its payload.
func ReadStrBytes(m Memory, offset uint32) ([]byte, error) {
	s, err := ReadStr(m, offset)
	if err != nil {
		return nil, err
	}
	if s.Len == 0 {
		return nil, nil
	}
	return m.Read(s.Ptr, s.Len)
}

// WriteList stores the list triple at offset.
func WriteList(m Memory, offset uint32, l List) error {
	if err := m.WriteU32(offset, l.Ptr); err != nil {
		return err
	}
	if err := m.WriteU32(offset+4, l.Len); err != nil {
		return err
	}
	return m.WriteU32(offset+8, l.Cap)
}

// ReadList loads a list triple from offset.
func ReadList(m Memory, offset uint32) (List, error) {
	s, err := ReadStr(m, offset)
	if err != nil {
		return List{}, err
	}
	return List{Ptr: s.Ptr, Len: s.Len, Cap: s.Cap}, nil
}

// NewStrList allocates a list of string triples, each element copied into
// its own refcounted block. Empty input returns the sentinel list.
func NewStrList(m Memory, a Allocator, items [][]byte) (List, error) {
	if len(items) == 0 {
		return List{}, nil
	}
	n := uint32(len(items))
	base, err := NewBlock(m, a, n*StrSize, StrAlign)
	if err != nil {
		return List{}, err
	}
	for i, item := range items {
		s, err := NewStr(m, a, item)
		if err != nil {
			return List{}, err
		}
		if err := WriteStr(m, base+uint32(i)*StrSize, s); err != nil {
			return List{}, err
		}
	}
	return List{Ptr: base, Len: n, Cap: n}, nil
}
