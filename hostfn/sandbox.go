package hostfn

import (
	"context"
	"sort"
	"sync"
)

// MemStore is the sandboxed stand-in for directory storage: the same
// closed error set over an in-memory map. Keys follow the same
// restrictions as DirStore so programs behave identically across targets.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (s *MemStore) Load(key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemStore) Save(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *MemStore) Exists(key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *MemStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys) // directory listings are sorted; match them
	return keys, nil
}

// StubGetter is the sandboxed stand-in for Http.get: every request yields
// the empty zero-status response, never an error.
type StubGetter struct{}

func (StubGetter) Get(ctx context.Context, rawURL string) (*Response, error) {
	return &Response{}, nil
}
