package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development.
// The mutex is held across the UpdateByProviderCallID callback, which gives
// the same per-record read-modify-write atomicity the Postgres store gets
// from row locking.

type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]Call
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Call{}, clock: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		return ErrInvalidRequest
	}
	s.byID[c.ID] = c
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = s.clock().UTC()
	s.byID[c.ID] = c
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if providerCallID == "" {
		return Call{}, ErrNotFound
	}
	for _, c := range s.byID {
		if c.ProviderCallID == providerCallID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (s *MemoryStore) UpdateByProviderCallID(ctx context.Context, providerCallID string, fn UpdateFunc) (Call, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if providerCallID == "" {
		return Call{}, false, nil
	}
	for id, c := range s.byID {
		if c.ProviderCallID != providerCallID {
			continue
		}
		next, changed := fn(c)
		if changed {
			next.UpdatedAt = s.clock().UTC()
			s.byID[id] = next
			return next, true, nil
		}
		return c, true, nil
	}
	return Call{}, false, nil
}

func (s *MemoryStore) ListRegistered(ctx context.Context, limit int) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range s.byID {
		if c.ProviderCallID != "" {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
