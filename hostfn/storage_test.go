package hostfn

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fernlang/fernhost/abi"
)

func TestDirStoreRoundTrip(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}

	if err := store.Save("foo", []byte("bar")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load("foo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(got, []byte("bar")) {
		t.Errorf("Load = %q, want bar", got)
	}

	exists, err := store.Exists("foo")
	if err != nil || !exists {
		t.Errorf("Exists = (%v, %v), want true", exists, err)
	}

	if err := store.Delete("foo"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = store.Exists("foo")
	if err != nil || exists {
		t.Errorf("Exists after delete = (%v, %v), want false", exists, err)
	}
}

func TestDirStoreNotFound(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	if _, err := store.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
	if err := store.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
}

func TestDirStoreList(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	for _, k := range []string{"b", "a", "c"} {
		if err := store.Save(k, []byte(k)); err != nil {
			t.Fatalf("Save(%s) failed: %v", k, err)
		}
	}
	keys, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("List = %v", keys)
	}
}

func TestDirStoreListSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := store.Save("key", []byte("v")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	keys, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"key"}) {
		t.Errorf("List = %v, want [key]", keys)
	}
}

func TestKeyValidation(t *testing.T) {
	valid := []string{"foo", "user.profile", "a-b_c.d", "UPPER", "0", "..."}
	for _, k := range valid {
		if err := validKey(k); err != nil {
			t.Errorf("validKey(%q) = %v, want nil", k, err)
		}
	}
	invalid := []string{"", ".", "..", "a/b", "../etc/passwd", "a\\b", "key with space", "k\x00y", string(make([]byte, 256))}
	for _, k := range invalid {
		if err := validKey(k); err == nil {
			t.Errorf("validKey(%q) accepted", k)
		}
	}
}

func TestDirStoreRejectsTraversal(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	err = store.Save("../escape", []byte("x"))
	if err == nil {
		t.Fatal("traversal key accepted")
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission) {
		t.Errorf("traversal mapped to closed error set: %v", err)
	}
}

// writeKeyArg marshals a single-key argument record the way the guest
// would, returning the arg buffer pointer.
func writeKeyArg(t *testing.T, env *Env, key string) uint32 {
	t.Helper()
	arg, err := env.Heap.Alloc(keyArg.Size, keyArg.Align)
	if err != nil {
		t.Fatalf("arg alloc failed: %v", err)
	}
	s, err := abi.NewStr(env.Mem, env.Heap, []byte(key))
	if err != nil {
		t.Fatalf("key alloc failed: %v", err)
	}
	if err := abi.WriteStr(env.Mem, arg+keyArg.Offset("key"), s); err != nil {
		t.Fatalf("key write failed: %v", err)
	}
	return arg
}

func dispatchStorage(t *testing.T, env *Env, name, key string) uint32 {
	t.Helper()
	table := Default()
	idx, ok := table.Index(name)
	if !ok {
		t.Fatalf("no effect %s", name)
	}
	ret, err := env.Heap.Alloc(storageResult.Size, 4)
	if err != nil {
		t.Fatalf("ret alloc failed: %v", err)
	}
	arg := writeKeyArg(t, env, key)
	if err := table.Dispatch(context.Background(), env, idx, ret, arg); err != nil {
		t.Fatalf("dispatch %s failed: %v", name, err)
	}
	return ret
}

func TestStorageEffectsEndToEnd(t *testing.T) {
	env, mem, heap := testEnv(t)
	table := Default()

	// Storage.save("foo", "bar")
	saveIdx, _ := table.Index("Storage.save")
	arg, err := heap.Alloc(keyValueArg.Size, keyValueArg.Align)
	if err != nil {
		t.Fatalf("arg alloc failed: %v", err)
	}
	for field, val := range map[string]string{"key": "foo", "value": "bar"} {
		s, err := abi.NewStr(mem, heap, []byte(val))
		if err != nil {
			t.Fatalf("alloc failed: %v", err)
		}
		if err := abi.WriteStr(mem, arg+keyValueArg.Offset(field), s); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	ret, err := heap.Alloc(storageResult.Size, 4)
	if err != nil {
		t.Fatalf("ret alloc failed: %v", err)
	}
	if err := table.Dispatch(context.Background(), env, saveIdx, ret, arg); err != nil {
		t.Fatalf("save dispatch failed: %v", err)
	}
	if tag, _ := mem.ReadU8(ret); tag != tagOk {
		t.Fatalf("save tag = %d, want Ok", tag)
	}

	// Storage.load("foo") == Ok("bar")
	ret = dispatchStorage(t, env, "Storage.load", "foo")
	if tag, _ := mem.ReadU8(ret); tag != tagOk {
		t.Fatalf("load tag = %d, want Ok", tag)
	}
	got, err := abi.ReadStrBytes(mem, ret+storageResult.PayloadOffset)
	if err != nil {
		t.Fatalf("payload read failed: %v", err)
	}
	if !bytes.Equal(got, []byte("bar")) {
		t.Errorf("loaded %q, want bar", got)
	}

	// Storage.load("missing") == NotFound
	ret = dispatchStorage(t, env, "Storage.load", "missing")
	if tag, _ := mem.ReadU8(ret); tag != tagNotFound {
		t.Errorf("load(missing) tag = %d, want NotFound", tag)
	}

	// Storage.delete("foo") then Storage.exists("foo") == false
	ret = dispatchStorage(t, env, "Storage.delete", "foo")
	if tag, _ := mem.ReadU8(ret); tag != tagOk {
		t.Errorf("delete tag = %d, want Ok", tag)
	}
	ret = dispatchStorage(t, env, "Storage.exists", "foo")
	if b, _ := mem.ReadU8(ret); b != 0 {
		t.Errorf("exists after delete = %d, want 0", b)
	}
}

func TestStorageInvalidKeyMapsToOther(t *testing.T) {
	env, mem, _ := testEnv(t)
	ret := dispatchStorage(t, env, "Storage.load", "../escape")
	if tag, _ := mem.ReadU8(ret); tag != tagOther {
		t.Errorf("tag = %d, want Other", tag)
	}
	msg, err := abi.ReadStrBytes(mem, ret+storageResult.PayloadOffset)
	if err != nil {
		t.Fatalf("message read failed: %v", err)
	}
	if len(msg) == 0 {
		t.Error("Other case carried no message")
	}
}

func TestStorageListEffect(t *testing.T) {
	env, mem, heap := testEnv(t)
	for _, k := range []string{"beta", "alpha"} {
		if err := env.Store.Save(k, []byte("v")); err != nil {
			t.Fatalf("seed save failed: %v", err)
		}
	}
	table := Default()
	idx, _ := table.Index("Storage.list")
	ret, err := heap.Alloc(abi.ListSize, abi.ListAlign)
	if err != nil {
		t.Fatalf("ret alloc failed: %v", err)
	}
	if err := table.Dispatch(context.Background(), env, idx, ret, 0); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	l, err := abi.ReadList(mem, ret)
	if err != nil {
		t.Fatalf("list read failed: %v", err)
	}
	if l.Len != 2 {
		t.Fatalf("list len = %d, want 2", l.Len)
	}
	var keys []string
	for i := uint32(0); i < l.Len; i++ {
		b, err := abi.ReadStrBytes(mem, l.Ptr+i*abi.StrSize)
		if err != nil {
			t.Fatalf("element read failed: %v", err)
		}
		keys = append(keys, string(b))
	}
	if !reflect.DeepEqual(keys, []string{"alpha", "beta"}) {
		t.Errorf("keys = %v", keys)
	}
}

func TestMemStoreMatchesDirStoreSemantics(t *testing.T) {
	for name, store := range map[string]Store{
		"mem": NewMemStore(),
		"dir": mustDirStore(t),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load("nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Load(nope) = %v, want ErrNotFound", err)
			}
			if err := store.Save("k", []byte("v")); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := store.Load("k")
			if err != nil || !bytes.Equal(got, []byte("v")) {
				t.Errorf("Load = (%q, %v)", got, err)
			}
			if err := store.Save("../x", []byte("v")); err == nil {
				t.Error("traversal key accepted")
			}
			if err := store.Delete("k"); err != nil {
				t.Errorf("Delete failed: %v", err)
			}
			if err := store.Delete("k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func mustDirStore(t *testing.T) *DirStore {
	t.Helper()
	s, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	return s
}
