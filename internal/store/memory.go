package store

import (
	"context"
	"sync"

	"github.com/ratefi/swap-engine/internal/model"
)

// MemoryStore implements Store with an in-memory slice. The default for a
// single simulation session; history does not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.TradeRecord
}

// NewMemoryStore creates a new in-memory trade-history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, rec *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TradeRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) ListByMarket(_ context.Context, market string) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TradeRecord
	for _, r := range s.records {
		if r.Market == market {
			out = append(out, r)
		}
	}
	return out, nil
}
