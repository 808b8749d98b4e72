package hostfn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fernlang/fernhost/abi"
)

// Closed error set crossing the boundary as StorageResult tags. Any other
// error maps to the Other case with its message.
var (
	ErrNotFound   = errors.New("storage: key not found")
	ErrPermission = errors.New("storage: permission denied")
)

// Store is the keyed blob backend behind the Storage effects.
type Store interface {
	Load(key string) ([]byte, error)
	Save(key string, value []byte) error
	Delete(key string) error
	Exists(key string) (bool, error)
	List() ([]string, error)
}

// Keys map 1:1 to file names, so they are restricted to a character set
// that cannot traverse out of the storage directory.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

func validKey(key string) error {
	if key == "." || key == ".." || !keyPattern.MatchString(key) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}

// DefaultStorageDir is the storage root relative to the working directory.
const DefaultStorageDir = ".fernhost/storage"

// DirStore keeps each key as one file under a single directory.
type DirStore struct {
	dir string
}

// NewDirStore creates the directory if needed and returns a store over it.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		dir = DefaultStorageDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", abs, err)
	}
	return &DirStore{dir: abs}, nil
}

// Dir returns the resolved storage root.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}

func mapFSError(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return ErrNotFound
	case os.IsPermission(err):
		return ErrPermission
	default:
		return err
	}
}

func (s *DirStore) Load(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, mapFSError(err)
	}
	return data, nil
}

func (s *DirStore) Save(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return mapFSError(os.WriteFile(p, value, 0o644))
}

func (s *DirStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return mapFSError(os.Remove(p))
}

func (s *DirStore) Exists(key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, mapFSError(err)
	}
	return true, nil
}

func (s *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, mapFSError(err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	return keys, nil
}

// StorageResult discriminants, numbered lexicographically:
// NotFound | Ok T | Other Str | PermissionDenied.
const (
	tagNotFound uint8 = iota
	tagOk
	tagOther
	tagPermissionDenied
)

// Both StorageResult instantiations (unit and Str payloads) share one
// placement: the widest payload is a Str either way.
var storageResult = abi.UnionLayout(abi.StrSize, abi.StrAlign)

// writeStorageResult encodes err (or success) at ret. payload, if
// non-nil, writes the Ok case's payload at the given offset.
func writeStorageResult(env *Env, ret uint32, err error, payload func(offset uint32) error) error {
	switch {
	case err == nil:
		if werr := env.Mem.WriteU8(ret, tagOk); werr != nil {
			return werr
		}
		if payload != nil {
			return payload(ret + storageResult.PayloadOffset)
		}
		return nil
	case errors.Is(err, ErrNotFound):
		return env.Mem.WriteU8(ret, tagNotFound)
	case errors.Is(err, ErrPermission):
		return env.Mem.WriteU8(ret, tagPermissionDenied)
	default:
		if werr := env.Mem.WriteU8(ret, tagOther); werr != nil {
			return werr
		}
		return retString(env, ret+storageResult.PayloadOffset, err.Error())
	}
}

func storageSave(ctx context.Context, env *Env, ret, arg uint32) error {
	key, err := argString(env, arg, keyValueArg.Offset("key"))
	if err != nil {
		return err
	}
	value, err := abi.ReadStrBytes(env.Mem, arg+keyValueArg.Offset("value"))
	if err != nil {
		return err
	}
	return writeStorageResult(env, ret, env.Store.Save(key, value), nil)
}

func storageLoad(ctx context.Context, env *Env, ret, arg uint32) error {
	key, err := argString(env, arg, keyArg.Offset("key"))
	if err != nil {
		return err
	}
	data, serr := env.Store.Load(key)
	return writeStorageResult(env, ret, serr, func(offset uint32) error {
		str, err := abi.NewStr(env.Mem, env.Heap, data)
		if err != nil {
			return err
		}
		return abi.WriteStr(env.Mem, offset, str)
	})
}

func storageDelete(ctx context.Context, env *Env, ret, arg uint32) error {
	key, err := argString(env, arg, keyArg.Offset("key"))
	if err != nil {
		return err
	}
	return writeStorageResult(env, ret, env.Store.Delete(key), nil)
}

// Storage.exists has a bare Bool result: errors degrade to false.
func storageExists(ctx context.Context, env *Env, ret, arg uint32) error {
	key, err := argString(env, arg, keyArg.Offset("key"))
	if err != nil {
		return err
	}
	exists, serr := env.Store.Exists(key)
	var b uint8
	if serr == nil && exists {
		b = 1
	}
	if werr := env.Mem.WriteU8(ret, b); werr != nil {
		return werr
	}
	return serr
}

// Storage.list degrades to the empty list on error.
func storageList(ctx context.Context, env *Env, ret, arg uint32) error {
	keys, serr := env.Store.List()
	if serr != nil {
		if werr := abi.WriteList(env.Mem, ret, abi.List{}); werr != nil {
			return werr
		}
		return serr
	}
	items := make([][]byte, len(keys))
	for i, k := range keys {
		items[i] = []byte(k)
	}
	l, err := abi.NewStrList(env.Mem, env.Heap, items)
	if err != nil {
		return err
	}
	return abi.WriteList(env.Mem, ret, l)
}
