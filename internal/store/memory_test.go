package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/store"
)

func record(id, market string, status model.TradeStatus) *model.TradeRecord {
	return &model.TradeRecord{
		ID:           id,
		Market:       market,
		Direction:    model.DirectionPay,
		EntryPrice:   decimal.NewFromFloat(8.0),
		ExitPrice:    decimal.NewFromFloat(8.2),
		NotionalDV01: decimal.NewFromInt(10_000),
		FinalPL:      decimal.NewFromInt(200_000),
		Status:       status,
	}
}

func TestMemoryStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	if err := s.Append(ctx, record("t1", "BTC-FUNDING", model.StatusClosed)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.Append(ctx, record("t2", "ETH-STAKING", model.StatusLiquidated)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Append order is preserved.
	if records[0].ID != "t1" || records[1].ID != "t2" {
		t.Errorf("records out of order: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestMemoryStore_ListByMarket(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	s.Append(ctx, record("t1", "BTC-FUNDING", model.StatusClosed))
	s.Append(ctx, record("t2", "ETH-STAKING", model.StatusClosed))
	s.Append(ctx, record("t3", "BTC-FUNDING", model.StatusLiquidated))

	records, err := s.ListByMarket(ctx, "BTC-FUNDING")
	if err != nil {
		t.Fatalf("list by market failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 BTC-FUNDING records, got %d", len(records))
	}
	for _, r := range records {
		if r.Market != "BTC-FUNDING" {
			t.Errorf("unexpected market %s", r.Market)
		}
	}
}

func TestMemoryStore_ListCopiesOut(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.Append(ctx, record("t1", "BTC-FUNDING", model.StatusClosed))

	records, _ := s.List(ctx)
	records[0].ID = "mutated"

	again, _ := s.List(ctx)
	if again[0].ID != "t1" {
		t.Error("callers must not be able to mutate stored records")
	}
}
