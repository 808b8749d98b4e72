package dict

import (
	"encoding/binary"
	"math/bits"
)

// wyhash-family constants: five fixed odd 64-bit values.
const (
	secret0 = 0xa0761d6478bd642f
	secret1 = 0xe7037ed1a0b428db
	secret2 = 0x8ebc6af09c88c6e3
	secret3 = 0x589965cc75374cc3
	secret4 = 0x1d8e4e27c47d124f
)

func mix(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return hi ^ lo
}

func load64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func load32(b []byte) uint64 {
	return uint64(binary.LittleEndian.Uint32(b))
}

// Hash mixes key into 64 bits with a two-accumulator wide-multiply
// construction. Payloads of at most 16 bytes take a branchless short path,
// 17 to 32 bytes a single mixing round, and longer inputs are processed in
// 32-byte blocks with a final overlapping tail read. Fast with adequate
// avalanche; not for anything security-sensitive.
func Hash(seed uint64, key []byte) uint64 {
	n := uint64(len(key))
	seed ^= secret0

	var a, b uint64
	if n <= 16 {
		switch {
		case n >= 8:
			a = load64(key)
			b = load64(key[n-8:])
		case n >= 4:
			a = load32(key)
			b = load32(key[n-4:])
		case n > 0:
			// Three overlapping bytes: first, middle, last.
			a = uint64(key[0])<<16 | uint64(key[n>>1])<<8 | uint64(key[n-1])
		}
	} else {
		p := key
		i := n
		if i > 32 {
			see1 := seed
			for i > 32 {
				seed = mix(load64(p)^secret1, load64(p[8:])^seed)
				see1 = mix(load64(p[16:])^secret2, load64(p[24:])^see1)
				p = p[32:]
				i -= 32
			}
			seed ^= see1
		}
		if i > 16 {
			seed = mix(load64(p)^secret3, load64(p[8:])^seed)
		}
		a = load64(key[n-16:])
		b = load64(key[n-8:])
	}

	return mix(secret1^n, mix(a^secret4, b^seed))
}
