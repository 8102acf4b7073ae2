package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/board-platform/services/board/internal/domain"
)

// InMemoryThreadStore is a development-only in-memory implementation.
// Threads are deep-copied on the way in and out so callers never share
// slices with the stored aggregate.
type InMemoryThreadStore struct {
	mu      sync.RWMutex
	threads map[string]domain.Thread
}

func NewInMemoryThreadStore() *InMemoryThreadStore {
	return &InMemoryThreadStore{threads: make(map[string]domain.Thread)}
}

func (s *InMemoryThreadStore) Create(_ context.Context, t domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[t.ID]; ok {
		return fmt.Errorf("%w: thread %s already exists", domain.ErrStorage, t.ID)
	}
	s.threads[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryThreadStore) Get(_ context.Context, id string) (domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return domain.Thread{}, fmt.Errorf("%w: thread %s", domain.ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (s *InMemoryThreadStore) Save(_ context.Context, t domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[t.ID]; !ok {
		return fmt.Errorf("%w: thread %s", domain.ErrNotFound, t.ID)
	}
	s.threads[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryThreadStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		return fmt.Errorf("%w: thread %s", domain.ErrNotFound, id)
	}
	delete(s.threads, id)
	return nil
}

func (s *InMemoryThreadStore) List(_ context.Context, f ListFilter) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Thread
	for _, t := range s.threads {
		if f.Country != "" && t.Country != f.Country {
			continue
		}
		if f.Language != "" && t.Language != f.Language {
			continue
		}
		out = append(out, t.Summary())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Updated.Equal(out[j].Updated) {
			return out[i].Updated.After(out[j].Updated)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= len(out) {
		return []domain.Thread{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemoryThreadStore) Ping(context.Context) error { return nil }
