// Package memory is a process-local object store. It backs the default
// change archive and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"linkcore/internal/infra/objectstore"
)

var _ objectstore.Store = (*Store)(nil)

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	objects map[string]objectstore.Object
}

func New() *Store { return &Store{objects: map[string]objectstore.Object{}} }

func (s *Store) Backend() objectstore.Backend { return objectstore.BackendMemory }

func (s *Store) Create(ctx context.Context, obj objectstore.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.objects[obj.Key]; taken {
		return fmt.Errorf("%w: %s", objectstore.ErrKeyTaken, obj.Key)
	}
	s.objects[obj.Key] = obj.Clone()
	return nil
}

func (s *Store) Read(ctx context.Context, key string) (objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return objectstore.Object{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return objectstore.Object{}, fmt.Errorf("%w: %s", objectstore.ErrNoSuchKey, key)
	}
	return obj.Clone(), nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
