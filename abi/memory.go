package abi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// PageSize is the wasm linear memory page size.
const PageSize = 65536

// ErrOutOfBounds reports an access outside the guest's linear memory.
var ErrOutOfBounds = errors.New("abi: memory access out of bounds")

// Memory is the host's view of guest linear memory. All multi-byte values
// are little-endian, as on every wasm target. Read returns a copy: callers
// may hold the bytes across subsequent writes or memory growth.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, v uint8) error
	WriteU16(offset uint32, v uint16) error
	WriteU32(offset uint32, v uint32) error
	WriteU64(offset uint32, v uint64) error
	Size() uint32
}

// GrowableMemory is a Memory that can be extended by whole pages.
// Grow returns the previous size in pages, or ok=false if the underlying
// memory refuses to grow.
type GrowableMemory interface {
	Memory
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
}

// WriteF32 stores v at offset in IEEE-754 single precision.
func WriteF32(m Memory, offset uint32, v float32) error {
	return m.WriteU32(offset, math.Float32bits(v))
}

// ReadF32 loads an IEEE-754 single precision value from offset.
func ReadF32(m Memory, offset uint32) (float32, error) {
	bits, err := m.ReadU32(offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// SliceMemory is a GrowableMemory backed by a Go slice. It stands in for
// wazero linear memory in tests and anywhere guest layouts are built
// without a running guest.
type SliceMemory struct {
	buf      []byte
	maxPages uint32
}

// NewSliceMemory returns a SliceMemory of pages initial pages that can grow
// up to maxPages. maxPages == 0 means unbounded.
func NewSliceMemory(pages, maxPages uint32) *SliceMemory {
	return &SliceMemory{
		buf:      make([]byte, pages*PageSize),
		maxPages: maxPages,
	}
}

func (s *SliceMemory) Size() uint32 { return uint32(len(s.buf)) }

func (s *SliceMemory) Grow(deltaPages uint32) (uint32, bool) {
	prev := uint32(len(s.buf)) / PageSize
	if s.maxPages != 0 && prev+deltaPages > s.maxPages {
		return 0, false
	}
	s.buf = append(s.buf, make([]byte, deltaPages*PageSize)...)
	return prev, true
}

func (s *SliceMemory) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(s.buf)) {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, offset, offset+length, len(s.buf))
	}
	return nil
}

func (s *SliceMemory) Read(offset, length uint32) ([]byte, error) {
	if err := s.bounds(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, s.buf[offset:offset+length])
	return out, nil
}

func (s *SliceMemory) Write(offset uint32, data []byte) error {
	if err := s.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(s.buf[offset:], data)
	return nil
}

func (s *SliceMemory) ReadU8(offset uint32) (uint8, error) {
	if err := s.bounds(offset, 1); err != nil {
		return 0, err
	}
	return s.buf[offset], nil
}

func (s *SliceMemory) ReadU16(offset uint32) (uint16, error) {
	if err := s.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s.buf[offset:]), nil
}

func (s *SliceMemory) ReadU32(offset uint32) (uint32, error) {
	if err := s.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s.buf[offset:]), nil
}

func (s *SliceMemory) ReadU64(offset uint32) (uint64, error) {
	if err := s.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s.buf[offset:]), nil
}

func (s *SliceMemory) WriteU8(offset uint32, v uint8) error {
	if err := s.bounds(offset, 1); err != nil {
		return err
	}
	s.buf[offset] = v
	return nil
}

func (s *SliceMemory) WriteU16(offset uint32, v uint16) error {
	if err := s.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s.buf[offset:], v)
	return nil
}

func (s *SliceMemory) WriteU32(offset uint32, v uint32) error {
	if err := s.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s.buf[offset:], v)
	return nil
}

func (s *SliceMemory) WriteU64(offset uint32, v uint64) error {
	if err := s.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s.buf[offset:], v)
	return nil
}
