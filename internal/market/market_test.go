package market_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/market"
	"github.com/ratefi/swap-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newRegistry(t *testing.T) *market.Registry {
	t.Helper()
	r := market.NewRegistry()
	r.Add("BTC-FUNDING", market.Config{
		ReferenceRate:     d(8.000),
		ImpactCoefficient: d(0.00001),
		Symbol:            "fBTC",
	})
	return r
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := newRegistry(t)
	if _, err := r.Get("NOPE"); !errors.Is(err, market.ErrUnknownMarket) {
		t.Errorf("expected ErrUnknownMarket, got %v", err)
	}
}

func TestRegistry_EditNumeric(t *testing.T) {
	r := newRegistry(t)

	oldVal, newVal, err := r.Edit("BTC-FUNDING", market.FieldReferenceRate, "8.250")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if !oldVal.Equal(d(8.000)) || !newVal.Equal(d(8.250)) {
		t.Errorf("expected 8.000 -> 8.250, got %s -> %s", oldVal, newVal)
	}

	cfg, _ := r.Get("BTC-FUNDING")
	if !cfg.ReferenceRate.Equal(d(8.250)) {
		t.Errorf("reference rate not persisted: %s", cfg.ReferenceRate)
	}
}

func TestRegistry_EditClampsBadInput(t *testing.T) {
	// Non-numeric edits clamp to zero instead of erroring.
	r := newRegistry(t)

	_, newVal, err := r.Edit("BTC-FUNDING", market.FieldImpactCoefficient, "not-a-number")
	if err != nil {
		t.Fatalf("edit should clamp, not fail: %v", err)
	}
	if !newVal.IsZero() {
		t.Errorf("expected clamp to 0, got %s", newVal)
	}

	_, newVal, _ = r.Edit("BTC-FUNDING", market.FieldReferenceRate, "")
	if !newVal.IsZero() {
		t.Errorf("empty field should clamp to 0, got %s", newVal)
	}
}

func TestRegistry_EditUnknownField(t *testing.T) {
	r := newRegistry(t)
	if _, _, err := r.Edit("BTC-FUNDING", "leverage", "10"); !errors.Is(err, market.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestRegistry_EditSymbol(t *testing.T) {
	r := newRegistry(t)
	if _, _, err := r.Edit("BTC-FUNDING", market.FieldSymbol, "xBTC"); err != nil {
		t.Fatalf("symbol edit failed: %v", err)
	}
	cfg, _ := r.Get("BTC-FUNDING")
	if cfg.Symbol != "xBTC" {
		t.Errorf("expected symbol xBTC, got %s", cfg.Symbol)
	}
}

func TestPriceBook_SeedsFromReferenceRate(t *testing.T) {
	b := market.NewPriceBook(newRegistry(t))
	if p := b.PriceOf("BTC-FUNDING"); !p.Equal(d(8.000)) {
		t.Errorf("expected seeded price 8.000, got %s", p)
	}
}

func TestPriceBook_ApplyImpactMovesQuote(t *testing.T) {
	b := market.NewPriceBook(newRegistry(t))

	exec, err := b.ApplyImpact("BTC-FUNDING", d(10_000), model.DirectionPay)
	if err != nil {
		t.Fatalf("apply impact failed: %v", err)
	}
	if !exec.Equal(d(8.100)) {
		t.Errorf("expected execution at 8.100, got %s", exec)
	}
	// The market permanently absorbs the impact.
	if p := b.PriceOf("BTC-FUNDING"); !p.Equal(d(8.100)) {
		t.Errorf("quote should move to 8.100, got %s", p)
	}

	// An opposite trade of the same size walks the quote back.
	exec, _ = b.ApplyImpact("BTC-FUNDING", d(10_000), model.DirectionReceive)
	if !exec.Equal(d(8.000)) {
		t.Errorf("expected unwind back to 8.000, got %s", exec)
	}
}

func TestPriceBook_ShiftPreservesBasisSpread(t *testing.T) {
	r := newRegistry(t)
	b := market.NewPriceBook(r)

	// Trade moves the quote 0.1 off the reference rate.
	b.ApplyImpact("BTC-FUNDING", d(10_000), model.DirectionPay)

	// Reference edit 8.000 -> 8.500 translates the quote in parallel.
	oldVal, newVal, _ := r.Edit("BTC-FUNDING", market.FieldReferenceRate, "8.500")
	b.Shift("BTC-FUNDING", newVal.Sub(oldVal))

	if p := b.PriceOf("BTC-FUNDING"); !p.Equal(d(8.600)) {
		t.Errorf("expected shifted quote 8.600, got %s", p)
	}
}

func TestPriceBook_SetOverride(t *testing.T) {
	b := market.NewPriceBook(newRegistry(t))

	if err := b.SetOverride("BTC-FUNDING", d(5.250)); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	if p := b.PriceOf("BTC-FUNDING"); !p.Equal(d(5.250)) {
		t.Errorf("expected 5.250, got %s", p)
	}

	if err := b.SetOverride("NOPE", d(1)); !errors.Is(err, market.ErrUnknownMarket) {
		t.Errorf("expected ErrUnknownMarket, got %v", err)
	}
}

func TestDefaultRegistry_SeedsMarkets(t *testing.T) {
	r := market.NewDefaultRegistry()
	names := r.Names()
	if len(names) == 0 {
		t.Fatal("default registry should seed markets")
	}
	b := market.NewPriceBook(r)
	for _, name := range names {
		cfg, err := r.Get(name)
		if err != nil {
			t.Fatalf("default market %s unreadable: %v", name, err)
		}
		if !b.PriceOf(name).Equal(cfg.ReferenceRate) {
			t.Errorf("market %s quote not seeded to reference rate", name)
		}
	}
}
