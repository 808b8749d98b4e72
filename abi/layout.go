package abi

import "sort"

// Field describes one record field or union case payload for layout
// purposes.
type Field struct {
	Name  string
	Size  uint32
	Align uint32
}

// Layout is the computed placement of a boundary record.
type Layout struct {
	Size    uint32
	Align   uint32
	Offsets map[string]uint32
}

// Offset returns the placement of the named field. It panics on unknown
// names: layouts are computed from fixed field sets at init time, so a miss
// is a programming error, not input.
func (l Layout) Offset(name string) uint32 {
	off, ok := l.Offsets[name]
	if !ok {
		panic("abi: no field " + name)
	}
	return off
}

// AlignTo rounds n up to the next multiple of align. align must be a power
// of two.
func AlignTo(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// RecordLayout places a record's fields per the boundary contract: fields
// sorted by descending alignment with lexicographic name tiebreaks, natural
// alignment padding, and total size rounded up to the widest alignment.
// The declaration order of fields never matters.
func RecordLayout(fields ...Field) Layout {
	if len(fields) == 0 {
		return Layout{Size: 0, Align: 1, Offsets: map[string]uint32{}}
	}

	ordered := make([]Field, len(fields))
	copy(ordered, fields)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Align != ordered[j].Align {
			return ordered[i].Align > ordered[j].Align
		}
		return ordered[i].Name < ordered[j].Name
	})

	offsets := make(map[string]uint32, len(ordered))
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, f := range ordered {
		align := f.Align
		if align == 0 {
			align = 1
		}
		offset = AlignTo(offset, align)
		offsets[f.Name] = offset
		offset += f.Size
		if align > maxAlign {
			maxAlign = align
		}
	}

	return Layout{
		Size:    AlignTo(offset, maxAlign),
		Align:   maxAlign,
		Offsets: offsets,
	}
}

// Union is the placement of a tagged union: a u8 discriminant at offset
// zero and the payload at PayloadOffset. Cases are numbered in
// lexicographic case-name order by the compiler; hosts must use the same
// numbering.
type Union struct {
	PayloadOffset uint32
	Size          uint32
	Align         uint32
}

// UnionLayout places a union whose largest case payload has the given size
// and alignment.
func UnionLayout(payloadSize, payloadAlign uint32) Union {
	if payloadAlign == 0 {
		payloadAlign = 1
	}
	off := AlignTo(1, payloadAlign)
	return Union{
		PayloadOffset: off,
		Size:          AlignTo(off+payloadSize, payloadAlign),
		Align:         payloadAlign,
	}
}

// UnionTags returns the case names in discriminant order.
func UnionTags(names ...string) []string {
	ordered := make([]string, len(names))
	copy(ordered, names)
	sort.Strings(ordered)
	return ordered
}
