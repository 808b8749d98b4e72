package dict

import (
	"fmt"
	"math/bits"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	key := []byte("the quick brown fox jumps over the lazy dog")
	if Hash(1, key) != Hash(1, key) {
		t.Error("same seed and key hashed differently")
	}
}

func TestHashSeedSensitive(t *testing.T) {
	key := []byte("key")
	if Hash(1, key) == Hash(2, key) {
		t.Error("different seeds collided")
	}
}

func TestHashAllLengthPaths(t *testing.T) {
	// Cover the short, medium, and block paths including every tail
	// length around the 16 and 32 byte boundaries.
	seen := make(map[uint64]int)
	for n := 0; n <= 130; n++ {
		key := make([]byte, n)
		for i := range key {
			key[i] = byte(i * 7)
		}
		h := Hash(testSeed, key)
		if prev, dup := seen[h]; dup {
			t.Fatalf("lengths %d and %d collided", prev, n)
		}
		seen[h] = n
	}
}

func TestHashDistinctKeys(t *testing.T) {
	seen := make(map[uint64]string)
	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("key-%d", i)
		h := Hash(testSeed, []byte(key))
		if prev, dup := seen[h]; dup {
			t.Fatalf("%q and %q collided", prev, key)
		}
		seen[h] = key
	}
}

// A single flipped input bit should flip a healthy fraction of output
// bits. This is a smoke test for gross mixing failures, not a formal
// avalanche measurement.
func TestHashAvalanche(t *testing.T) {
	key := []byte("avalanche-test-key-0123456789abcdef")
	base := Hash(testSeed, key)

	total, samples := 0, 0
	for i := 0; i < len(key); i++ {
		for bit := 0; bit < 8; bit++ {
			flipped := make([]byte, len(key))
			copy(flipped, key)
			flipped[i] ^= 1 << bit
			total += bits.OnesCount64(base ^ Hash(testSeed, flipped))
			samples++
		}
	}
	avg := float64(total) / float64(samples)
	if avg < 24 || avg > 40 {
		t.Errorf("average flipped output bits = %.1f, want near 32", avg)
	}
}

func TestHashBucketSpread(t *testing.T) {
	// Keys should spread across buckets rather than clumping: with 4096
	// keys over 1024 ideal buckets, no bucket should see a wildly
	// disproportionate share.
	const shift = 54 // 1024 buckets
	counts := make(map[uint64]int)
	for i := 0; i < 4096; i++ {
		h := Hash(testSeed, []byte(fmt.Sprintf("spread-%d", i)))
		counts[h>>shift]++
	}
	for bucket, c := range counts {
		if c > 24 {
			t.Errorf("bucket %d has %d of 4096 keys", bucket, c)
		}
	}
}

func BenchmarkHash(b *testing.B) {
	for _, n := range []int{8, 32, 256, 4096} {
		key := make([]byte, n)
		b.Run(fmt.Sprintf("len=%d", n), func(b *testing.B) {
			b.SetBytes(int64(n))
			for i := 0; i < b.N; i++ {
				Hash(testSeed, key)
			}
		})
	}
}
