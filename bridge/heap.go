// Package bridge implements the allocator contract the guest runtime calls
// for all of its dynamic memory: allocate, deallocate, reallocate.
//
// The host owns the guest heap. Heap claims whole fresh pages of linear
// memory and sub-allocates them, indexing every live block by pointer so
// deallocation needs no size argument - the protocol never provides one.
// Freed blocks are recycled by exact size class.
package bridge

import (
	"errors"
	"fmt"

	"github.com/fernlang/fernhost/abi"
)

// ErrOutOfMemory reports that linear memory refused to grow. The guest has
// no failure path for allocation, so callers treat this as fatal to the
// whole run.
var ErrOutOfMemory = errors.New("bridge: guest heap exhausted")

type blockClass struct {
	size  uint32
	align uint32
}

// Heap sub-allocates the region of guest linear memory above the guest's
// static data. Not safe for concurrent use; each run session owns its heap
// exclusively.
type Heap struct {
	mem    abi.GrowableMemory
	cursor uint32
	limit  uint32

	live map[uint32]blockClass
	free map[blockClass][]uint32

	allocs uint64
	frees  uint64
}

// NewHeap claims everything above the current end of mem for the heap.
func NewHeap(mem abi.GrowableMemory) *Heap {
	base := mem.Size()
	return &Heap{
		mem:    mem,
		cursor: base,
		limit:  base,
		live:   make(map[uint32]blockClass),
		free:   make(map[blockClass][]uint32),
	}
}

// Alloc returns a block of at least length bytes at the requested
// alignment, which is floored to pointer width. A freed block of the same
// class is reused before the heap grows.
func (h *Heap) Alloc(length, align uint32) (uint32, error) {
	if align < abi.PtrAlign {
		align = abi.PtrAlign
	}
	if length == 0 {
		length = align
	}
	class := blockClass{size: abi.AlignTo(length, align), align: align}

	if stack := h.free[class]; len(stack) > 0 {
		ptr := stack[len(stack)-1]
		h.free[class] = stack[:len(stack)-1]
		h.live[ptr] = class
		h.allocs++
		return ptr, nil
	}

	ptr := abi.AlignTo(h.cursor, align)
	end := ptr + class.size
	if end < ptr {
		return 0, fmt.Errorf("%w: %d byte request wraps address space", ErrOutOfMemory, length)
	}
	if end > h.limit {
		pages := (end - h.limit + abi.PageSize - 1) / abi.PageSize
		if _, ok := h.mem.Grow(pages); !ok {
			return 0, fmt.Errorf("%w: grow by %d pages refused", ErrOutOfMemory, pages)
		}
		h.limit = h.mem.Size()
	}
	h.cursor = end
	h.live[ptr] = class
	h.allocs++
	return ptr, nil
}

// Free returns ptr's block to its size-class free list. The size comes
// from the heap's own block index. A pointer the heap does not know is
// ignored; well-formed guests never produce one, and corrupting the free
// lists over it would be worse than dropping it.
func (h *Heap) Free(ptr, align uint32) {
	class, ok := h.live[ptr]
	if !ok {
		return
	}
	delete(h.live, ptr)
	h.free[class] = append(h.free[class], ptr)
	h.frees++
}

// Realloc moves ptr's block to a new allocation of newLength bytes,
// preserving min(old size, newLength) bytes of content. This is always
// allocate-copy-free even when an in-place grow would be cheaper; the
// block index cannot extend blocks in place.
func (h *Heap) Realloc(ptr, newLength, align uint32) (uint32, error) {
	if ptr == 0 {
		return h.Alloc(newLength, align)
	}
	class, ok := h.live[ptr]
	if !ok {
		return h.Alloc(newLength, align)
	}

	n := class.size
	if newLength < n {
		n = newLength
	}
	// Copy out before allocating: growth may remap the underlying memory.
	data, err := h.mem.Read(ptr, n)
	if err != nil {
		return 0, err
	}

	next, err := h.Alloc(newLength, align)
	if err != nil {
		return 0, err
	}
	if err := h.mem.Write(next, data); err != nil {
		return 0, err
	}
	h.Free(ptr, align)
	return next, nil
}

// Live returns the number of blocks currently allocated.
func (h *Heap) Live() int { return len(h.live) }

// Stats returns cumulative allocation and free counts.
func (h *Heap) Stats() (allocs, frees uint64) { return h.allocs, h.frees }

// BlockSize reports the rounded size of a live block, or false for a
// pointer the heap does not track.
func (h *Heap) BlockSize(ptr uint32) (uint32, bool) {
	class, ok := h.live[ptr]
	return class.size, ok
}
