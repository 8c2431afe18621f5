package storage

import (
	"context"
	"sync"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// MemoryStore keeps records in process. Used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	records []*types.MediaRecord
}

// NewMemoryStore creates an empty MemoryStore, optionally pre-seeded with
// URLs that count as already ingested.
func NewMemoryStore(seen ...string) *MemoryStore {
	s := &MemoryStore{seen: make(map[string]struct{}, len(seen))}
	for _, u := range seen {
		s.seen[u] = struct{}{}
	}
	return s
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Exists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[url]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, rec *types.MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[rec.URL]; ok {
		return types.ErrDuplicate
	}
	s.seen[rec.URL] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Records returns the records inserted so far.
func (s *MemoryStore) Records() []*types.MediaRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.MediaRecord, len(s.records))
	copy(out, s.records)
	return out
}
