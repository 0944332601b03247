package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/swap"
)

// PriceBook maintains the single live quote per market. A market with no
// quote yet reads as its reference rate; there is no error case for
// absence. Quotes move permanently with each trade's impact, translate in
// parallel when the reference rate is edited, and can be overridden
// directly by the settings surface.
type PriceBook struct {
	mu       sync.RWMutex
	registry *Registry
	prices   map[string]decimal.Decimal
}

// NewPriceBook creates a quote book over the given registry, seeding every
// configured market's quote to its reference rate.
func NewPriceBook(registry *Registry) *PriceBook {
	b := &PriceBook{
		registry: registry,
		prices:   make(map[string]decimal.Decimal),
	}
	for name, cfg := range registry.List() {
		b.prices[name] = cfg.ReferenceRate
	}
	return b
}

// PriceOf returns the market's live quote, falling back to the configured
// reference rate when no quote has been set.
func (b *PriceBook) PriceOf(name string) decimal.Decimal {
	b.mu.RLock()
	p, ok := b.prices[name]
	b.mu.RUnlock()
	if ok {
		return p
	}

	cfg, err := b.registry.Get(name)
	if err != nil {
		return decimal.Zero
	}
	return cfg.ReferenceRate
}

// ApplyImpact executes a trade against the quote: computes the execution
// price from the market's impact coefficient and moves the live quote to
// exactly that price. The market permanently absorbs the trade's impact.
func (b *PriceBook) ApplyImpact(name string, notionalDV01 decimal.Decimal, direction model.Direction) (decimal.Decimal, error) {
	cfg, err := b.registry.Get(name)
	if err != nil {
		return decimal.Zero, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	live, ok := b.prices[name]
	if !ok {
		live = cfg.ReferenceRate
	}
	exec := swap.ExecutionPrice(live, cfg.ImpactCoefficient, notionalDV01, direction)
	b.prices[name] = exec
	return exec, nil
}

// Shift translates the live quote by delta, preserving the basis spread
// between quote and reference rate across a reference-rate edit.
func (b *PriceBook) Shift(name string, delta decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	live, ok := b.prices[name]
	if !ok {
		return
	}
	b.prices[name] = live.Add(delta)
}

// SetOverride writes the quote directly. Used only by the settings surface.
func (b *PriceBook) SetOverride(name string, price decimal.Decimal) error {
	if _, err := b.registry.Get(name); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[name] = price
	return nil
}

// Snapshot returns a copy of every live quote, keyed by market name.
func (b *PriceBook) Snapshot() map[string]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(b.prices))
	for name, p := range b.prices {
		out[name] = p
	}
	return out
}
