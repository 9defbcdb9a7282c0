package archive

import (
	"context"
	"sync"
)

const defaultMemoryLimit = 100

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*MatchRecord
	limit   int
}

// NewMemoryStore creates a store retaining at most limit records.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) Save(ctx context.Context, record *MatchRecord) error {
	if err := prepare(record); err != nil {
		return err
	}

	copied := *record

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &copied)
	if len(s.records) > s.limit {
		s.records = s.records[len(s.records)-s.limit:]
	}
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]*MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = clampLimit(limit, len(s.records))
	result := make([]*MatchRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(result) < limit; i-- {
		copied := *s.records[i]
		result = append(result, &copied)
	}
	return result, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
