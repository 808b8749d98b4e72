package dict

import (
	"github.com/fernlang/fernhost/abi"
)

// Boundary layouts of the dictionary record and its element records. All
// three are fixed contracts with the guest runtime; the layout calculator
// orders the fields, never Go declaration order.
var (
	recordLayout = abi.RecordLayout(
		abi.Field{Name: "buckets", Size: abi.ListSize, Align: abi.ListAlign},
		abi.Field{Name: "data", Size: abi.ListSize, Align: abi.ListAlign},
		abi.Field{Name: "max_bucket_capacity", Size: 8, Align: 8},
		abi.Field{Name: "max_load_factor", Size: 4, Align: 4},
		abi.Field{Name: "shift", Size: 1, Align: 1},
	)

	bucketLayout = abi.RecordLayout(
		abi.Field{Name: "data_index", Size: 4, Align: 4},
		abi.Field{Name: "dist_and_fingerprint", Size: 4, Align: 4},
	)

	entryLayout = abi.RecordLayout(
		abi.Field{Name: "key", Size: abi.StrSize, Align: abi.StrAlign},
		abi.Field{Name: "value", Size: abi.StrSize, Align: abi.StrAlign},
	)
)

// Layout returns the placement of the dictionary record itself, for
// callers embedding a dictionary inside a larger return buffer.
func Layout() abi.Layout { return recordLayout }

// Write builds the dictionary for pairs and writes its guest image at
// offset. Bucket and entry storage is allocated from a; ownership of every
// block transfers to the guest, which releases them through its own
// refcounting convention.
func Write(m abi.Memory, a abi.Allocator, seed uint64, pairs []Pair, offset uint32) error {
	t, err := Build(seed, pairs)
	if err != nil {
		return err
	}

	var data abi.List
	if len(pairs) > 0 {
		n := uint32(len(pairs))
		base, err := abi.NewBlock(m, a, n*entryLayout.Size, entryLayout.Align)
		if err != nil {
			return err
		}
		for i, p := range pairs {
			slot := base + uint32(i)*entryLayout.Size
			key, err := abi.NewStr(m, a, p.Key)
			if err != nil {
				return err
			}
			if err := abi.WriteStr(m, slot+entryLayout.Offset("key"), key); err != nil {
				return err
			}
			value, err := abi.NewStr(m, a, p.Value)
			if err != nil {
				return err
			}
			if err := abi.WriteStr(m, slot+entryLayout.Offset("value"), value); err != nil {
				return err
			}
		}
		data = abi.List{Ptr: base, Len: n, Cap: n}
	}

	var buckets abi.List
	if len(t.Buckets) > 0 {
		n := uint32(len(t.Buckets))
		base, err := abi.NewBlock(m, a, n*bucketLayout.Size, bucketLayout.Align)
		if err != nil {
			return err
		}
		for i, b := range t.Buckets {
			slot := base + uint32(i)*bucketLayout.Size
			if err := m.WriteU32(slot+bucketLayout.Offset("data_index"), b.DataIndex); err != nil {
				return err
			}
			if err := m.WriteU32(slot+bucketLayout.Offset("dist_and_fingerprint"), b.DistAndFingerprint); err != nil {
				return err
			}
		}
		buckets = abi.List{Ptr: base, Len: n, Cap: n}
	}

	if err := abi.WriteList(m, offset+recordLayout.Offset("buckets"), buckets); err != nil {
		return err
	}
	if err := abi.WriteList(m, offset+recordLayout.Offset("data"), data); err != nil {
		return err
	}
	if err := m.WriteU64(offset+recordLayout.Offset("max_bucket_capacity"), t.MaxBucketCapacity); err != nil {
		return err
	}
	if err := abi.WriteF32(m, offset+recordLayout.Offset("max_load_factor"), MaxLoadFactor); err != nil {
		return err
	}
	return m.WriteU8(offset+recordLayout.Offset("shift"), t.Shift)
}
