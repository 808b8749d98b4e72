package hostfn

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fernlang/fernhost/abi"
	"github.com/fernlang/fernhost/bridge"
)

func nopEffect(ctx context.Context, env *Env, ret, arg uint32) error { return nil }

func testEnv(t *testing.T) (*Env, *abi.SliceMemory, *bridge.Heap) {
	t.Helper()
	mem := abi.NewSliceMemory(1, 0)
	heap := bridge.NewHeap(mem)
	return &Env{
		Mem:   mem,
		Heap:  heap,
		Store: NewMemStore(),
		Seed:  0x1234,
	}, mem, heap
}

func TestTableLexicographicOrder(t *testing.T) {
	table, err := NewTable(
		Entry{Name: "Stdout.line", Fn: nopEffect},
		Entry{Name: "Logger.info", Fn: nopEffect},
		Entry{Name: "Http.get", Fn: nopEffect},
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	want := []string{"Http.get", "Logger.info", "Stdout.line"}
	if !reflect.DeepEqual(table.Names(), want) {
		t.Errorf("order = %v, want %v", table.Names(), want)
	}
	for i, name := range want {
		idx, ok := table.Index(name)
		if !ok || idx != uint32(i) {
			t.Errorf("Index(%s) = (%d, %v), want %d", name, idx, ok, i)
		}
	}
}

func TestDefaultTableOrder(t *testing.T) {
	table := Default()
	want := []string{
		"Env.dict",
		"Http.get",
		"Random.seed",
		"Stdin.line",
		"Stdout.line",
		"Storage.delete",
		"Storage.exists",
		"Storage.list",
		"Storage.load",
		"Storage.save",
	}
	if !reflect.DeepEqual(table.Names(), want) {
		t.Errorf("default order = %v, want %v", table.Names(), want)
	}
	if table.Count() != uint32(len(want)) {
		t.Errorf("count = %d, want %d", table.Count(), len(want))
	}
}

func TestNewTableRejectsDuplicates(t *testing.T) {
	if _, err := NewTable(
		Entry{Name: "A.x", Fn: nopEffect},
		Entry{Name: "A.x", Fn: nopEffect},
	); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestNewTableRejectsEmptyName(t *testing.T) {
	if _, err := NewTable(Entry{Name: "", Fn: nopEffect}); err == nil {
		t.Error("expected empty name error")
	}
}

func TestNewTableRejectsNilBody(t *testing.T) {
	if _, err := NewTable(Entry{Name: "A.x"}); err == nil {
		t.Error("expected nil body error")
	}
}

func TestDispatchOutOfRangeDegrades(t *testing.T) {
	env, _, _ := testEnv(t)
	table := Default()
	if err := table.Dispatch(context.Background(), env, table.Count()+7, 0, 0); err != nil {
		t.Errorf("out of range dispatch returned %v", err)
	}
}

func TestDispatchAbsorbsPanics(t *testing.T) {
	env, _, _ := testEnv(t)
	table, err := NewTable(Entry{Name: "Boom.now", Fn: func(ctx context.Context, env *Env, ret, arg uint32) error {
		panic("effect bug")
	}})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if err := table.Dispatch(context.Background(), env, 0, 0, 0); err != nil {
		t.Errorf("panic leaked as error: %v", err)
	}
}

func TestDispatchPropagatesAllocationFailure(t *testing.T) {
	env, _, _ := testEnv(t)
	table, err := NewTable(Entry{Name: "Oom.now", Fn: func(ctx context.Context, env *Env, ret, arg uint32) error {
		return bridge.ErrOutOfMemory
	}})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if err := table.Dispatch(context.Background(), env, 0, 0, 0); !errors.Is(err, bridge.ErrOutOfMemory) {
		t.Errorf("allocation failure not propagated: %v", err)
	}
}

func TestDispatchAbsorbsEffectErrors(t *testing.T) {
	env, _, _ := testEnv(t)
	table, err := NewTable(Entry{Name: "Flaky.op", Fn: func(ctx context.Context, env *Env, ret, arg uint32) error {
		return errors.New("transient")
	}})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if err := table.Dispatch(context.Background(), env, 0, 0, 0); err != nil {
		t.Errorf("transient effect error leaked: %v", err)
	}
}
