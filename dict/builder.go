package dict

import (
	"bytes"
	"errors"
)

const (
	// distInc is one unit of probe distance: the low 8 bits of
	// DistAndFingerprint hold the hash fingerprint, everything above is
	// distance.
	distInc         = 1 << 8
	fingerprintMask = distInc - 1

	// maxShift yields the minimum table of 2^(64-61) = 8 buckets.
	maxShift = 61
	// minShift caps growth; a table this large is unreachable for any
	// input that fits in memory.
	minShift = 16

	// MaxLoadFactor is fixed by the guest runtime's dictionary type.
	MaxLoadFactor = 0.8
)

// ErrTableTooLarge reports an element count no bucket table can hold.
var ErrTableTooLarge = errors.New("dict: element count exceeds maximum table size")

// Pair is one key/value input to Build.
type Pair struct {
	Key   []byte
	Value []byte
}

// Bucket is one open-addressing slot. A zero DistAndFingerprint marks the
// slot empty.
type Bucket struct {
	DataIndex          uint32
	DistAndFingerprint uint32
}

// Table is a fully built bucket array plus the header fields of the guest
// dictionary. The dense entry array is the input pair slice itself, indexed
// by Bucket.DataIndex.
type Table struct {
	Buckets           []Bucket
	Shift             uint8
	MaxBucketCapacity uint64
	Seed              uint64
}

// shiftFor picks the largest shift not above maxShift whose table holds n
// elements within the load factor.
func shiftFor(n uint64) (uint8, error) {
	for shift := uint8(maxShift); shift >= minShift; shift-- {
		numBuckets := uint64(1) << (64 - shift)
		if uint64(float64(numBuckets)*MaxLoadFactor) >= n {
			return shift, nil
		}
	}
	return 0, ErrTableTooLarge
}

// Build constructs the bucket array for pairs, inserting in input order
// with Robin Hood linear probing: on collision the element farther from its
// ideal bucket displaces the closer one, so no element ever sits farther
// from home than one that could have displaced it.
//
// An empty input yields the sentinel table: minimum-table shift, no bucket
// allocation.
func Build(seed uint64, pairs []Pair) (*Table, error) {
	n := uint64(len(pairs))
	if n == 0 {
		return &Table{Shift: maxShift, Seed: seed}, nil
	}

	shift, err := shiftFor(n)
	if err != nil {
		return nil, err
	}
	numBuckets := uint64(1) << (64 - shift)

	t := &Table{
		Buckets:           make([]Bucket, numBuckets),
		Shift:             shift,
		MaxBucketCapacity: uint64(float64(numBuckets) * MaxLoadFactor),
		Seed:              seed,
	}

	for i, p := range pairs {
		h := Hash(seed, p.Key)
		cand := Bucket{
			DataIndex:          uint32(i),
			DistAndFingerprint: uint32(distInc | (h & fingerprintMask)),
		}
		t.place(cand, h>>shift)
	}
	return t, nil
}

// place walks forward from idx. Empty slot: drop the candidate there. An
// occupant closer to home than the candidate: swap, then keep walking with
// the displaced occupant. Either way the carried bucket gains one unit of
// distance per step, wrapping at the end of the array.
func (t *Table) place(cand Bucket, idx uint64) {
	mask := uint64(len(t.Buckets)) - 1
	idx &= mask
	for {
		cur := t.Buckets[idx]
		if cur.DistAndFingerprint == 0 {
			t.Buckets[idx] = cand
			return
		}
		if cur.DistAndFingerprint < cand.DistAndFingerprint {
			t.Buckets[idx], cand = cand, cur
		}
		cand.DistAndFingerprint += distInc
		idx = (idx + 1) & mask
	}
}

// Lookup probes for key exactly as the guest runtime does: fingerprint
// match then full key compare, giving up as soon as the probe reaches a
// slot that Robin Hood placement would have displaced. pairs must be the
// slice the table was built from.
func (t *Table) Lookup(pairs []Pair, key []byte) ([]byte, bool) {
	if len(t.Buckets) == 0 {
		return nil, false
	}
	h := Hash(t.Seed, key)
	df := uint32(distInc | (h & fingerprintMask))
	mask := uint64(len(t.Buckets)) - 1
	idx := (h >> t.Shift) & mask
	for {
		cur := t.Buckets[idx]
		if cur.DistAndFingerprint == df {
			p := pairs[cur.DataIndex]
			if bytes.Equal(p.Key, key) {
				return p.Value, true
			}
		} else if cur.DistAndFingerprint < df {
			return nil, false
		}
		df += distInc
		idx = (idx + 1) & mask
	}
}

// NumBuckets returns the bucket count implied by the shift, which for the
// empty sentinel is the minimum table size even though no buckets are
// allocated.
func (t *Table) NumBuckets() uint64 {
	return uint64(1) << (64 - t.Shift)
}
