// Package market holds per-market configuration and the live quote book for
// the swap venue. Configuration is created at startup with fixed defaults
// and mutable at runtime through admin-style edits; the quote book carries
// one continuously-updated price per configured market.
package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownMarket is returned when an operation names a market that
	// was never configured.
	ErrUnknownMarket = errors.New("market: unknown market")

	// ErrUnknownField is returned by Edit for a field name that is not
	// part of the market configuration.
	ErrUnknownField = errors.New("market: unknown config field")
)

// Editable config field names accepted by Registry.Edit.
const (
	FieldReferenceRate     = "referenceRate"
	FieldImpactCoefficient = "impactCoefficient"
	FieldSymbol            = "symbol"
)

// Config is the per-market configuration: the reference rate the quote is
// seeded from, the impact coefficient of the quote-shift model, and a
// display symbol.
type Config struct {
	ReferenceRate     decimal.Decimal `json:"reference_rate"`
	ImpactCoefficient decimal.Decimal `json:"impact_coefficient"`
	Symbol            string          `json:"symbol"`
}

// Registry owns the set of configured markets, keyed by name, preserving
// creation order for stable listings.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]*Config)}
}

// NewDefaultRegistry creates a registry seeded with the venue's default
// crypto rate markets. Rates are percentage points of annualized rate.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Add("BTC-FUNDING", Config{
		ReferenceRate:     decimal.NewFromFloat(8.000),
		ImpactCoefficient: decimal.NewFromFloat(0.00001),
		Symbol:            "fBTC",
	})
	r.Add("ETH-STAKING", Config{
		ReferenceRate:     decimal.NewFromFloat(3.400),
		ImpactCoefficient: decimal.NewFromFloat(0.00001),
		Symbol:            "stETH",
	})
	r.Add("SOL-STAKING", Config{
		ReferenceRate:     decimal.NewFromFloat(7.200),
		ImpactCoefficient: decimal.NewFromFloat(0.00002),
		Symbol:            "stSOL",
	})
	return r
}

// Add registers a market. Re-adding an existing name overwrites its config
// without changing listing order.
func (r *Registry) Add(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.configs[name]; !ok {
		r.order = append(r.order, name)
	}
	c := cfg
	r.configs[name] = &c
}

// Get returns a copy of the named market's config.
func (r *Registry) Get(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.configs[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownMarket, name)
	}
	return *c, nil
}

// Names returns all market names in creation order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// List returns all configs keyed by market name.
func (r *Registry) List() map[string]Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Config, len(r.configs))
	for name, c := range r.configs {
		out[name] = *c
	}
	return out
}

// Edit applies an admin-style config edit. Numeric values that fail to
// parse are clamped to zero rather than rejected (an empty field in the
// settings form reads as 0); unknown fields and unknown markets are hard
// errors. Returns the previous and new value of the edited field as
// decimals (zero for symbol edits) so callers can react to reference-rate
// moves.
func (r *Registry) Edit(name, field, value string) (oldVal, newVal decimal.Decimal, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.configs[name]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownMarket, name)
	}

	switch field {
	case FieldReferenceRate:
		oldVal = c.ReferenceRate
		c.ReferenceRate = clampDecimal(value)
		return oldVal, c.ReferenceRate, nil
	case FieldImpactCoefficient:
		oldVal = c.ImpactCoefficient
		c.ImpactCoefficient = clampDecimal(value)
		return oldVal, c.ImpactCoefficient, nil
	case FieldSymbol:
		c.Symbol = value
		return decimal.Zero, decimal.Zero, nil
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

// clampDecimal parses a numeric field edit, clamping unparseable input to 0.
func clampDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
