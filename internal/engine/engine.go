// Package engine implements the trading and accounting core of the swap
// venue simulator: the open-position ledger, the two-phase command surface,
// the settlement valuation switch, the simulation-day counter, and
// protocol-level fee and counterparty-P&L accounting.
//
// All state-changing operations execute as one synchronous transaction
// against the shared ledger under a single mutex (single-instance,
// single-session). Every confirmed mutation is followed by a revaluation
// pass that marks all open positions and executes liquidations before
// control returns to the caller.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/market"
	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/risk"
	"github.com/ratefi/swap-engine/internal/store"
)

// MaxDay is the ceiling of the simulation-day counter. Advancing past it
// clamps; it never forces settlement.
const MaxDay = 365

// Engine owns the full session state. Construct with New; all access goes
// through its methods.
type Engine struct {
	mu       sync.Mutex
	registry *market.Registry
	book     *market.PriceBook
	history  store.Store

	balance    decimal.Decimal
	day        int
	positions  map[string][]*model.Position // market → insertion order
	settlement model.SettlementState
	accounting model.AccountingState
	pending    *PendingAction
}

// New creates an engine over the given registry, quote book, and history
// store, with the session's starting balance.
func New(registry *market.Registry, book *market.PriceBook, history store.Store, startBalance decimal.Decimal) *Engine {
	return &Engine{
		registry:  registry,
		book:      book,
		history:   history,
		balance:   startBalance,
		positions: make(map[string][]*model.Position),
	}
}

// CommandResult reports the outcome of a confirmed or direct command,
// including any liquidations executed by the follow-up revaluation pass.
type CommandResult struct {
	Kind       string              `json:"kind"`
	Position   *model.Position     `json:"position,omitempty"`
	Trade      *model.TradeRecord  `json:"trade,omitempty"`
	Day        int                 `json:"day"`
	Balance    decimal.Decimal     `json:"balance"`
	Liquidated []model.TradeRecord `json:"liquidated,omitempty"`
}

// --- Valuation basis ---

// basis returns the price source for revaluation: frozen settlement prices
// while settlement mode is active, the live quote book otherwise. Callers
// hold e.mu.
func (e *Engine) basis() risk.Basis {
	if e.settlement.Active {
		prices := e.settlement.Prices
		book := e.book
		return func(m string) decimal.Decimal {
			if p, ok := prices[m]; ok {
				return p
			}
			return book.PriceOf(m)
		}
	}
	return e.book.PriceOf
}

// allPositions returns every open position, ordered by market registration
// then insertion. Callers hold e.mu.
func (e *Engine) allPositions() []*model.Position {
	var out []*model.Position
	for _, name := range e.orderedMarkets() {
		out = append(out, e.positions[name]...)
	}
	return out
}

// orderedMarkets lists ledger markets in registry order, with any markets
// no longer registered appended alphabetically. Callers hold e.mu.
func (e *Engine) orderedMarkets() []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range e.registry.Names() {
		if len(e.positions[name]) > 0 {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name, ps := range e.positions {
		if !seen[name] && len(ps) > 0 {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// revalue runs the risk pass over the full ledger under the active basis:
// refreshes every position's current price and executes liquidations.
// The pass is idempotent given unchanged inputs. Callers hold e.mu.
//
// A liquidated position forfeits exactly its collateral regardless of how
// far the loss has overshot it; the counterparty books the same amount.
func (e *Engine) revalue(ctx context.Context) ([]model.TradeRecord, error) {
	vals := risk.Evaluate(e.allPositions(), e.basis())

	var liquidated []model.TradeRecord
	var appendErr error

	for _, v := range vals {
		v.Position.CurrentPrice = v.CurrentPrice
		if !v.Liquidate {
			continue
		}

		pos := v.Position
		e.removePosition(pos.ID)
		e.accounting.RealizedCounterpartyPL = e.accounting.RealizedCounterpartyPL.Add(pos.Collateral)

		rec := model.TradeRecord{
			ID:             uuid.New().String(),
			Day:            e.day,
			Market:         pos.Market,
			Direction:      pos.Direction,
			EntryPrice:     pos.EntryPrice,
			ExitPrice:      v.CurrentPrice,
			NotionalDV01:   pos.NotionalDV01,
			FinalPL:        pos.Collateral.Neg(),
			CounterpartyPL: pos.Collateral,
			Status:         model.StatusLiquidated,
			Timestamp:      time.Now().UTC(),
		}
		if err := e.history.Append(ctx, &rec); err != nil {
			// The ledger mutation stands; history is best-effort here and
			// the error surfaces to the command boundary.
			appendErr = err
		}
		liquidated = append(liquidated, rec)

		slog.Warn("position liquidated",
			"position", pos.ID,
			"market", pos.Market,
			"direction", string(pos.Direction),
			"entry", pos.EntryPrice.String(),
			"mark", v.CurrentPrice.String(),
			"collateral", pos.Collateral.String(),
		)
	}

	return liquidated, appendErr
}

// findPosition looks a position up by ID. Callers hold e.mu.
func (e *Engine) findPosition(id string) *model.Position {
	for _, ps := range e.positions {
		for _, p := range ps {
			if p.ID == id {
				return p
			}
		}
	}
	return nil
}

// removePosition drops a position from the ledger, preserving insertion
// order of the rest. Callers hold e.mu.
func (e *Engine) removePosition(id string) {
	for name, ps := range e.positions {
		for i, p := range ps {
			if p.ID == id {
				e.positions[name] = append(ps[:i], ps[i+1:]...)
				return
			}
		}
	}
}

// --- Read surface ---

// Balance returns the available session balance.
func (e *Engine) Balance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// Day returns the current simulation day.
func (e *Engine) Day() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.day
}

// MarketState is a market's config together with its live quote.
type MarketState struct {
	Config    market.Config   `json:"config"`
	LivePrice decimal.Decimal `json:"live_price"`
}

// Markets returns every configured market with its live quote.
func (e *Engine) Markets() map[string]MarketState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]MarketState)
	for name, cfg := range e.registry.List() {
		out[name] = MarketState{Config: cfg, LivePrice: e.book.PriceOf(name)}
	}
	return out
}

// Positions returns every open position valued under the active basis,
// ordered by market then insertion.
func (e *Engine) Positions() []model.PositionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	vals := risk.Evaluate(e.allPositions(), e.basis())
	views := make([]model.PositionView, 0, len(vals))
	for _, v := range vals {
		p := *v.Position
		p.CurrentPrice = v.CurrentPrice
		views = append(views, model.PositionView{
			Position:           p,
			PnL:                v.PnL,
			BpsFromLiquidation: v.BpsFromLiquidation,
			DaysHeld:           e.day - p.EntryDay,
		})
	}
	return views
}

// History returns the append-only record of closed and liquidated trades.
func (e *Engine) History(ctx context.Context) ([]model.TradeRecord, error) {
	return e.history.List(ctx)
}

// Accounting returns the protocol accounting snapshot: accumulated fees and
// realized counterparty P&L plus the live mirror image of aggregate open
// P&L, recomputed on demand rather than stored.
func (e *Engine) Accounting() model.AccountingSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := decimal.Zero
	for _, v := range risk.Evaluate(e.allPositions(), e.basis()) {
		open = open.Add(v.PnL.Neg())
	}

	return model.AccountingSnapshot{
		FeesCollected:          e.accounting.FeesCollected,
		RealizedCounterpartyPL: e.accounting.RealizedCounterpartyPL,
		OpenCounterpartyPL:     open,
		TotalCounterpartyPL:    e.accounting.RealizedCounterpartyPL.Add(open),
	}
}

// Settlement returns a copy of the settlement state.
func (e *Engine) Settlement() model.SettlementState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := model.SettlementState{Active: e.settlement.Active}
	if e.settlement.Prices != nil {
		out.Prices = make(map[string]decimal.Decimal, len(e.settlement.Prices))
		for k, v := range e.settlement.Prices {
			out.Prices[k] = v
		}
	}
	return out
}

// Pending returns the pending action awaiting confirm/cancel, or nil.
func (e *Engine) Pending() *PendingAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return nil
	}
	p := *e.pending
	return &p
}
