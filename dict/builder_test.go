package dict

import (
	"fmt"
	"math/rand"
	"testing"
)

const testSeed = 0x9e3779b97f4a7c15

func uniquePairs(n int) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{
			Key:   []byte(fmt.Sprintf("key-%04d", i)),
			Value: []byte(fmt.Sprintf("value-%04d", i)),
		}
	}
	return pairs
}

func TestBuildEmpty(t *testing.T) {
	table, err := Build(testSeed, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(table.Buckets) != 0 {
		t.Errorf("empty table allocated %d buckets", len(table.Buckets))
	}
	if table.NumBuckets() != 8 {
		t.Errorf("sentinel bucket count = %d, want 8", table.NumBuckets())
	}
	if _, ok := table.Lookup(nil, []byte("anything")); ok {
		t.Error("lookup in empty table succeeded")
	}
}

func TestBuildLookupRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 6, 7, 8, 100, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			pairs := uniquePairs(n)
			table, err := Build(testSeed, pairs)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			for _, p := range pairs {
				got, ok := table.Lookup(pairs, p.Key)
				if !ok {
					t.Fatalf("key %q not found", p.Key)
				}
				if string(got) != string(p.Value) {
					t.Fatalf("key %q = %q, want %q", p.Key, got, p.Value)
				}
			}
			if _, ok := table.Lookup(pairs, []byte("absent")); ok {
				t.Error("absent key found")
			}
		})
	}
}

func TestLoadFactorInvariant(t *testing.T) {
	for _, n := range []int{1, 6, 7, 13, 50, 817} {
		pairs := uniquePairs(n)
		table, err := Build(testSeed, pairs)
		if err != nil {
			t.Fatalf("Build(%d) failed: %v", n, err)
		}
		buckets := table.NumBuckets()
		if float64(buckets) < float64(n)/MaxLoadFactor {
			t.Errorf("n=%d: %d buckets below load factor bound", n, buckets)
		}
		if uint64(n) > table.MaxBucketCapacity {
			t.Errorf("n=%d exceeds capacity threshold %d", n, table.MaxBucketCapacity)
		}
		want := uint64(float64(buckets) * MaxLoadFactor)
		if table.MaxBucketCapacity != want {
			t.Errorf("n=%d: threshold = %d, want %d", n, table.MaxBucketCapacity, want)
		}
	}
}

func TestShiftSizing(t *testing.T) {
	tests := []struct {
		n         int
		wantShift uint8
	}{
		{1, 61}, // minimum table of 8 buckets
		{6, 61}, // floor(8 * 0.8) = 6 still fits
		{7, 60}, // forces 16 buckets
		{12, 60},
		{13, 59}, // floor(16 * 0.8) = 12 exceeded
	}
	for _, tt := range tests {
		table, err := Build(testSeed, uniquePairs(tt.n))
		if err != nil {
			t.Fatalf("Build(%d) failed: %v", tt.n, err)
		}
		if table.Shift != tt.wantShift {
			t.Errorf("n=%d: shift = %d, want %d", tt.n, table.Shift, tt.wantShift)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	pairs := uniquePairs(64)
	a, err := Build(testSeed, pairs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, err := Build(testSeed, pairs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(a.Buckets) != len(b.Buckets) {
		t.Fatalf("bucket counts differ: %d vs %d", len(a.Buckets), len(b.Buckets))
	}
	for i := range a.Buckets {
		if a.Buckets[i] != b.Buckets[i] {
			t.Fatalf("bucket %d differs: %+v vs %+v", i, a.Buckets[i], b.Buckets[i])
		}
	}
}

func TestInsertionOrderPreservesAssociations(t *testing.T) {
	pairs := uniquePairs(128)
	shuffled := make([]Pair, len(pairs))
	copy(shuffled, pairs)
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	table, err := Build(testSeed, shuffled)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Placement may differ from the in-order build, but every key must
	// still resolve to its own value.
	for _, p := range pairs {
		got, ok := table.Lookup(shuffled, p.Key)
		if !ok || string(got) != string(p.Value) {
			t.Fatalf("key %q = %q (found=%v), want %q", p.Key, got, ok, p.Value)
		}
	}
}

// TestRobinHoodInvariant checks both that stored distances reflect actual
// displacement from the ideal bucket and that no element is farther from
// home than one that could have displaced it.
func TestRobinHoodInvariant(t *testing.T) {
	pairs := uniquePairs(700)
	table, err := Build(testSeed, pairs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	mask := uint64(len(table.Buckets)) - 1

	for i, b := range table.Buckets {
		if b.DistAndFingerprint == 0 {
			continue
		}
		h := Hash(testSeed, pairs[b.DataIndex].Key)

		if byte(b.DistAndFingerprint) != byte(h) {
			t.Fatalf("bucket %d: fingerprint %#x, hash low byte %#x",
				i, byte(b.DistAndFingerprint), byte(h))
		}

		dist := uint64(b.DistAndFingerprint >> 8) // 1 = in its ideal bucket
		ideal := (h >> table.Shift) & mask
		actual := (uint64(i) - (dist - 1)) & mask
		if actual != ideal {
			t.Fatalf("bucket %d: stored distance %d inconsistent with ideal bucket %d",
				i, dist, ideal)
		}

		// A non-empty successor may be at most one unit poorer than this
		// slot would make it; anything richer should have displaced us.
		next := table.Buckets[(uint64(i)+1)&mask]
		if next.DistAndFingerprint != 0 {
			nextDist := uint64(next.DistAndFingerprint >> 8)
			if nextDist > dist+1 {
				t.Fatalf("bucket %d: successor distance %d jumps past %d",
					i, nextDist, dist)
			}
		}
	}
}

func TestBuildTooLarge(t *testing.T) {
	if _, err := shiftFor(1 << 50); err == nil {
		t.Error("expected ErrTableTooLarge")
	}
}

func BenchmarkBuild(b *testing.B) {
	pairs := uniquePairs(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(testSeed, pairs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLookup(b *testing.B) {
	pairs := uniquePairs(1000)
	table, err := Build(testSeed, pairs)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Lookup(pairs, pairs[i%len(pairs)].Key)
	}
}
