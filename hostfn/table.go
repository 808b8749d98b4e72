package hostfn

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fernlang/fernhost/bridge"
)

// Func is one hosted function body. ret and arg point at guest-owned raw
// buffers laid out per the abi package rules. A returned error is logged
// and the effect degrades, except allocation failure, which aborts the run.
type Func func(ctx context.Context, env *Env, ret, arg uint32) error

// Entry pairs a fully-qualified effect name with its body.
type Entry struct {
	Name string
	Fn   Func
}

// Table is the process-lifetime hosted function table. It is immutable
// after construction and safe for concurrent reads.
type Table struct {
	entries []Entry
	index   map[string]uint32
}

// NewTable builds a table from entries, assigning indices in strict
// lexicographic order of the fully-qualified names.
func NewTable(entries ...Entry) (*Table, error) {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	index := make(map[string]uint32, len(ordered))
	for i, e := range ordered {
		if e.Name == "" {
			return nil, errors.New("hostfn: effect name cannot be empty")
		}
		if e.Fn == nil {
			return nil, fmt.Errorf("hostfn: effect %s has no body", e.Name)
		}
		if _, dup := index[e.Name]; dup {
			return nil, fmt.Errorf("hostfn: duplicate effect %s", e.Name)
		}
		index[e.Name] = uint32(i)
	}
	return &Table{entries: ordered, index: index}, nil
}

// Default returns the standard effect table.
func Default() *Table {
	t, err := NewTable(
		Entry{Name: "Env.dict", Fn: envDict},
		Entry{Name: "Http.get", Fn: httpGet},
		Entry{Name: "Random.seed", Fn: randomSeed},
		Entry{Name: "Stdin.line", Fn: stdinLine},
		Entry{Name: "Stdout.line", Fn: stdoutLine},
		Entry{Name: "Storage.delete", Fn: storageDelete},
		Entry{Name: "Storage.exists", Fn: storageExists},
		Entry{Name: "Storage.list", Fn: storageList},
		Entry{Name: "Storage.load", Fn: storageLoad},
		Entry{Name: "Storage.save", Fn: storageSave},
	)
	if err != nil {
		// The fixed set above cannot collide.
		panic(err)
	}
	return t
}

// Count returns the number of hosted functions.
func (t *Table) Count() uint32 { return uint32(len(t.entries)) }

// Names returns the effect names in index order.
func (t *Table) Names() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// Index returns the index assigned to name.
func (t *Table) Index(name string) (uint32, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Dispatch invokes the effect at index. Effect failures are absorbed here:
// panics and errors are logged and the call degrades, so nothing unwinds
// into the guest's execution model. The one exception is allocation
// failure, which is returned to the caller to abort the run.
func (t *Table) Dispatch(ctx context.Context, env *Env, index, ret, arg uint32) (err error) {
	if index >= uint32(len(t.entries)) {
		env.logger().Error("hosted function index out of range",
			zap.Uint32("index", index), zap.Uint32("count", t.Count()))
		return nil
	}
	e := t.entries[index]

	defer func() {
		if v := recover(); v != nil {
			env.logger().Error("hosted effect panicked",
				zap.String("effect", e.Name), zap.Any("panic", v))
			err = nil
		}
	}()

	env.logger().Debug("hosted effect", zap.String("effect", e.Name), zap.Uint32("index", index))

	if ferr := e.Fn(ctx, env, ret, arg); ferr != nil {
		if errors.Is(ferr, bridge.ErrOutOfMemory) {
			return ferr
		}
		env.logger().Warn("hosted effect failed",
			zap.String("effect", e.Name), zap.Error(ferr))
	}
	return nil
}
