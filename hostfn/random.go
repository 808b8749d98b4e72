package hostfn

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
)

// Random.seed: a cryptographically sourced 64-bit value. The signature has
// no failure channel; a failed read degrades to zero.
func randomSeed(ctx context.Context, env *Env, ret, arg uint32) error {
	var buf [8]byte
	var v uint64
	if _, err := crand.Read(buf[:]); err == nil {
		v = binary.LittleEndian.Uint64(buf[:])
	}
	return env.Mem.WriteU64(ret, v)
}
