package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ratefi/swap-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for history listings. Appends go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) Append(ctx context.Context, rec *model.TradeRecord) error {
	if err := s.primary.Append(ctx, rec); err != nil {
		return err
	}
	// Invalidate; the next read re-populates.
	s.rdb.Del(ctx, historyKey(), marketHistoryKey(rec.Market))
	return nil
}

func (s *CachedStore) List(ctx context.Context) ([]model.TradeRecord, error) {
	data, err := s.rdb.Get(ctx, historyKey()).Bytes()
	if err == nil {
		var records []model.TradeRecord
		if json.Unmarshal(data, &records) == nil {
			return records, nil
		}
	}

	// Cache miss: read from primary.
	records, err := s.primary.List(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		s.rdb.Set(ctx, historyKey(), data, s.ttl)
	}
	return records, nil
}

func (s *CachedStore) ListByMarket(ctx context.Context, market string) ([]model.TradeRecord, error) {
	data, err := s.rdb.Get(ctx, marketHistoryKey(market)).Bytes()
	if err == nil {
		var records []model.TradeRecord
		if json.Unmarshal(data, &records) == nil {
			return records, nil
		}
	}

	records, err := s.primary.ListByMarket(ctx, market)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		s.rdb.Set(ctx, marketHistoryKey(market), data, s.ttl)
	}
	return records, nil
}

func historyKey() string               { return "swap:history" }
func marketHistoryKey(m string) string { return fmt.Sprintf("swap:history:%s", m) }
