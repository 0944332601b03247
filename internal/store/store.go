// Package store defines the append-only trade-history store for the swap
// venue. Implementations include in-memory (the default for a single
// simulation session), PostgreSQL (source of truth when configured), and a
// Redis read-through cache wrapper.
package store

import (
	"context"

	"github.com/ratefi/swap-engine/internal/model"
)

// Store is the trade-history interface. Records are immutable: they are
// appended when a position closes or is liquidated and never modified or
// deleted afterwards.
type Store interface {
	// Append persists a new trade record.
	Append(ctx context.Context, rec *model.TradeRecord) error

	// List returns all trade records in append order.
	List(ctx context.Context) ([]model.TradeRecord, error)

	// ListByMarket returns all trade records for one market, in append order.
	ListByMarket(ctx context.Context, market string) ([]model.TradeRecord, error)
}
