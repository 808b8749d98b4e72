package hostfn

import (
	"context"
	"sort"
	"strings"

	"github.com/fernlang/fernhost/dict"
)

// Env.dict: the process environment as a guest-native dictionary. Keys are
// deduplicated (last assignment wins) and sorted, since the builder's
// duplicate-key behavior is undefined and the image should be
// deterministic for a given environment.
func envDict(ctx context.Context, env *Env, ret, arg uint32) error {
	byKey := make(map[string]string)
	for _, kv := range env.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		byKey[k] = v
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]dict.Pair, len(keys))
	for i, k := range keys {
		pairs[i] = dict.Pair{Key: []byte(k), Value: []byte(byKey[k])}
	}
	return dict.Write(env.Mem, env.Heap, env.Seed, pairs, ret)
}
