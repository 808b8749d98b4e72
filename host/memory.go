package host

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/fernlang/fernhost/abi"
)

// guestMemory adapts wazero linear memory to the abi view. Reads copy out
// of the underlying buffer, so the bytes stay valid across guest-triggered
// growth.
type guestMemory struct {
	mem api.Memory
}

func outOfBounds(offset, length uint32) error {
	return fmt.Errorf("%w: [%d, %d)", abi.ErrOutOfBounds, offset, offset+length)
}

func (g guestMemory) Size() uint32 { return g.mem.Size() }

func (g guestMemory) Grow(deltaPages uint32) (uint32, bool) {
	return g.mem.Grow(deltaPages)
}

func (g guestMemory) Read(offset, length uint32) ([]byte, error) {
	view, ok := g.mem.Read(offset, length)
	if !ok {
		return nil, outOfBounds(offset, length)
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (g guestMemory) Write(offset uint32, data []byte) error {
	if !g.mem.Write(offset, data) {
		return outOfBounds(offset, uint32(len(data)))
	}
	return nil
}

func (g guestMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := g.mem.ReadByte(offset)
	if !ok {
		return 0, outOfBounds(offset, 1)
	}
	return v, nil
}

func (g guestMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := g.mem.ReadUint16Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 2)
	}
	return v, nil
}

func (g guestMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := g.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 4)
	}
	return v, nil
}

func (g guestMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := g.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfBounds(offset, 8)
	}
	return v, nil
}

func (g guestMemory) WriteU8(offset uint32, v uint8) error {
	if !g.mem.WriteByte(offset, v) {
		return outOfBounds(offset, 1)
	}
	return nil
}

func (g guestMemory) WriteU16(offset uint32, v uint16) error {
	if !g.mem.WriteUint16Le(offset, v) {
		return outOfBounds(offset, 2)
	}
	return nil
}

func (g guestMemory) WriteU32(offset uint32, v uint32) error {
	if !g.mem.WriteUint32Le(offset, v) {
		return outOfBounds(offset, 4)
	}
	return nil
}

func (g guestMemory) WriteU64(offset uint32, v uint64) error {
	if !g.mem.WriteUint64Le(offset, v) {
		return outOfBounds(offset, 8)
	}
	return nil
}
