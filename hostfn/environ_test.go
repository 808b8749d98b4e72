package hostfn

import (
	"testing"

	"github.com/fernlang/fernhost/dict"
)

func TestEnvDictEffect(t *testing.T) {
	env, mem, heap := testEnv(t)
	env.Environ = func() []string {
		return []string{"HOME=/home/u", "PATH=/bin", "PATH=/usr/bin", "BROKEN", "=nokey"}
	}

	ret, err := heap.Alloc(dict.Layout().Size, dict.Layout().Align)
	if err != nil {
		t.Fatalf("ret alloc failed: %v", err)
	}
	dispatchByName(t, env, "Env.dict", ret, 0)

	got := readHeaderEntries(t, mem, ret)
	want := map[string]string{"HOME": "/home/u", "PATH": "/usr/bin"}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestRandomSeedEffect(t *testing.T) {
	env, mem, heap := testEnv(t)
	ret, err := heap.Alloc(8, 8)
	if err != nil {
		t.Fatalf("ret alloc failed: %v", err)
	}
	seen := make(map[uint64]bool)
	for i := 0; i < 8; i++ {
		dispatchByName(t, env, "Random.seed", ret, 0)
		v, err := mem.ReadU64(ret)
		if err != nil {
			t.Fatalf("seed read failed: %v", err)
		}
		seen[v] = true
	}
	if len(seen) < 2 {
		t.Errorf("8 draws produced %d distinct values", len(seen))
	}
}
