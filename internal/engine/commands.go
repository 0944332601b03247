package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/market"
	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/swap"
)

// Direct (non-two-phase) command kinds reported in CommandResult.
const (
	KindEditMarket     = "EDIT_MARKET"
	KindPriceOverride  = "PRICE_OVERRIDE"
	KindExitSettlement = "EXIT_SETTLEMENT"
)

// --- Two-phase requests ---

// RequestOpen validates and previews an open command. The preview's
// execution price is indicative: the commit re-derives it against the quote
// book so the market absorbs the impact exactly once.
func (e *Engine) RequestOpen(marketName string, direction model.Direction, notionalDV01, margin decimal.Decimal) (*PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return nil, ErrPendingActionExists
	}
	if err := e.validateOpen(marketName, direction, notionalDV01, margin); err != nil {
		return nil, err
	}

	cfg, err := e.registry.Get(marketName)
	if err != nil {
		return nil, err
	}

	exec := swap.ExecutionPrice(e.book.PriceOf(marketName), cfg.ImpactCoefficient, notionalDV01, direction)
	fee := swap.Fee(notionalDV01)

	e.pending = &PendingAction{
		Kind:        PendingOpen,
		RequestedAt: time.Now().UTC(),
		Open: &OpenPreview{
			Market:           marketName,
			Direction:        direction,
			NotionalDV01:     notionalDV01,
			Margin:           margin,
			Fee:              fee,
			ExecutionPrice:   exec,
			LiquidationPrice: swap.LiquidationPrice(exec, margin, notionalDV01, direction),
			RequiredBalance:  margin.Add(fee),
		},
	}
	return e.copyPending(), nil
}

// RequestUnwind previews closing a position: the opposite-direction exit
// price (or the frozen settlement price while settlement mode is active),
// the realized P&L, and the net return to balance. Unwinds carry no fee.
func (e *Engine) RequestUnwind(positionID string) (*PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return nil, ErrPendingActionExists
	}
	pos := e.findPosition(positionID)
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}

	exit, err := e.exitPrice(pos, false)
	if err != nil {
		return nil, err
	}
	pnl := swap.PnL(exit, pos.EntryPrice, pos.NotionalDV01, pos.Direction)

	e.pending = &PendingAction{
		Kind:        PendingUnwind,
		RequestedAt: time.Now().UTC(),
		Unwind: &UnwindPreview{
			PositionID: positionID,
			Market:     pos.Market,
			Direction:  pos.Direction,
			ExitPrice:  exit,
			PnL:        pnl,
			NetReturn:  pos.Collateral.Add(pnl),
		},
	}
	return e.copyPending(), nil
}

// RequestAddMargin previews a collateral top-up. The liquidation price
// shifts additively by the buffer bought with the new amount; the entry
// price and original formula inputs are not recomputed.
func (e *Engine) RequestAddMargin(positionID string, amount decimal.Decimal) (*PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return nil, ErrPendingActionExists
	}
	pos := e.findPosition(positionID)
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, positionID)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: top-up amount must be positive", ErrInvalidInput)
	}
	if e.balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: required %s, available %s",
			ErrInsufficientBalance, amount.String(), e.balance.String())
	}

	buffer := swap.LiquidationBuffer(amount, pos.NotionalDV01)
	newLiq := pos.LiquidationPrice.Sub(buffer.Mul(pos.Direction.Factor()))

	e.pending = &PendingAction{
		Kind:        PendingAddMargin,
		RequestedAt: time.Now().UTC(),
		AddMargin: &AddMarginPreview{
			PositionID:          positionID,
			Amount:              amount,
			NewCollateral:       pos.Collateral.Add(amount),
			NewLiquidationPrice: newLiq,
		},
	}
	return e.copyPending(), nil
}

// RequestSettlement previews entering settlement mode. A nil price map
// freezes the current live quotes; provided prices override per market,
// with any missing market filled from its live quote.
func (e *Engine) RequestSettlement(prices map[string]decimal.Decimal) (*PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return nil, ErrPendingActionExists
	}

	frozen := make(map[string]decimal.Decimal)
	for _, name := range e.registry.Names() {
		frozen[name] = e.book.PriceOf(name)
	}
	for name, p := range prices {
		if _, err := e.registry.Get(name); err != nil {
			return nil, err
		}
		frozen[name] = p
	}

	e.pending = &PendingAction{
		Kind:        PendingSettlement,
		RequestedAt: time.Now().UTC(),
		Settlement:  &SettlementPreview{Prices: frozen},
	}
	return e.copyPending(), nil
}

// RequestDayAdvance previews stepping the simulation day by one, clamped
// at MaxDay. Advancing has no effect on prices or P&L.
func (e *Engine) RequestDayAdvance() (*PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		return nil, ErrPendingActionExists
	}

	to := e.day + 1
	if to > MaxDay {
		to = MaxDay
	}

	e.pending = &PendingAction{
		Kind:        PendingDayAdvance,
		RequestedAt: time.Now().UTC(),
		DayAdvance:  &DayAdvancePreview{FromDay: e.day, ToDay: to},
	}
	return e.copyPending(), nil
}

// Cancel discards the pending action with zero ledger effect.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return ErrNoPendingAction
	}
	e.pending = nil
	return nil
}

// Confirm commits the pending action as one atomic transaction, then runs
// the revaluation pass over the full ledger before returning.
func (e *Engine) Confirm(ctx context.Context) (*CommandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return nil, ErrNoPendingAction
	}
	action := e.pending

	result := &CommandResult{Kind: string(action.Kind)}
	var err error

	switch action.Kind {
	case PendingOpen:
		result.Position, err = e.applyOpen(action.Open)
	case PendingUnwind:
		result.Trade, err = e.applyUnwind(ctx, action.Unwind)
	case PendingAddMargin:
		err = e.applyAddMargin(action.AddMargin)
	case PendingSettlement:
		e.settlement = model.SettlementState{Active: true, Prices: action.Settlement.Prices}
		slog.Info("settlement mode entered", "markets", len(action.Settlement.Prices))
	case PendingDayAdvance:
		e.day = action.DayAdvance.ToDay
	}
	if err != nil && result.Trade == nil {
		// Rejected commands leave the preview in place so the caller can
		// cancel explicitly or retry after topping up.
		return nil, err
	}

	// The ledger mutation committed. A history-append failure from the
	// unwind is best-effort, like revalue's: the slot clears, the result is
	// returned, and the error surfaces alongside it.
	appendErr := err
	e.pending = nil
	result.Liquidated, err = e.revalue(ctx)
	if appendErr != nil {
		err = appendErr
	}
	result.Day = e.day
	result.Balance = e.balance
	return result, err
}

// --- Command internals (callers hold e.mu) ---

func (e *Engine) validateOpen(marketName string, direction model.Direction, notionalDV01, margin decimal.Decimal) error {
	if e.settlement.Active {
		return ErrSettlementModeActive
	}
	if !direction.Valid() {
		return fmt.Errorf("%w: direction %q", ErrInvalidInput, direction)
	}
	if !notionalDV01.IsPositive() {
		return fmt.Errorf("%w: notional DV01 must be positive", ErrInvalidInput)
	}
	if minMargin := swap.MinMargin(notionalDV01); margin.LessThan(minMargin) {
		return fmt.Errorf("%w: required %s, posted %s",
			ErrMarginTooLow, minMargin.String(), margin.String())
	}
	required := margin.Add(swap.Fee(notionalDV01))
	if e.balance.LessThan(required) {
		return fmt.Errorf("%w: required %s, available %s",
			ErrInsufficientBalance, required.String(), e.balance.String())
	}
	return nil
}

func (e *Engine) applyOpen(p *OpenPreview) (*model.Position, error) {
	// Gates are re-checked at confirm time; the balance or settlement state
	// may have moved since the request.
	if err := e.validateOpen(p.Market, p.Direction, p.NotionalDV01, p.Margin); err != nil {
		return nil, err
	}

	exec, err := e.book.ApplyImpact(p.Market, p.NotionalDV01, p.Direction)
	if err != nil {
		return nil, err
	}

	pos := &model.Position{
		ID:               uuid.New().String(),
		Market:           p.Market,
		Direction:        p.Direction,
		NotionalDV01:     p.NotionalDV01,
		EntryPrice:       exec,
		CurrentPrice:     exec,
		LiquidationPrice: swap.LiquidationPrice(exec, p.Margin, p.NotionalDV01, p.Direction),
		Collateral:       p.Margin,
		EntryDay:         e.day,
		CreatedAt:        time.Now().UTC(),
	}
	e.positions[p.Market] = append(e.positions[p.Market], pos)

	fee := swap.Fee(p.NotionalDV01)
	e.balance = e.balance.Sub(p.Margin.Add(fee))
	e.accounting.FeesCollected = e.accounting.FeesCollected.Add(fee)

	slog.Info("position opened",
		"position", pos.ID,
		"market", pos.Market,
		"direction", string(pos.Direction),
		"dv01", pos.NotionalDV01.String(),
		"entry", exec.String(),
		"fee", fee.String(),
	)

	cp := *pos
	return &cp, nil
}

func (e *Engine) applyUnwind(ctx context.Context, p *UnwindPreview) (*model.TradeRecord, error) {
	pos := e.findPosition(p.PositionID)
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, p.PositionID)
	}

	exit, err := e.exitPrice(pos, true)
	if err != nil {
		return nil, err
	}

	pnl := swap.PnL(exit, pos.EntryPrice, pos.NotionalDV01, pos.Direction)
	netReturn := pos.Collateral.Add(pnl)

	e.removePosition(pos.ID)
	e.balance = e.balance.Add(netReturn)
	e.accounting.RealizedCounterpartyPL = e.accounting.RealizedCounterpartyPL.Add(pnl.Neg())

	rec := model.TradeRecord{
		ID:             uuid.New().String(),
		Day:            e.day,
		Market:         pos.Market,
		Direction:      pos.Direction,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      exit,
		NotionalDV01:   pos.NotionalDV01,
		FinalPL:        pnl,
		CounterpartyPL: pnl.Neg(),
		Status:         model.StatusClosed,
		Timestamp:      time.Now().UTC(),
	}
	slog.Info("position unwound",
		"position", pos.ID,
		"market", pos.Market,
		"exit", exit.String(),
		"pnl", pnl.String(),
		"net_return", netReturn.String(),
	)

	if err := e.history.Append(ctx, &rec); err != nil {
		// The ledger mutation stands; history is best-effort here and the
		// error surfaces to the command boundary.
		return &rec, err
	}
	return &rec, nil
}

// exitPrice computes a position's closing price. Under settlement mode the
// frozen settlement price is the exit and the live book is untouched;
// otherwise the close trades against the quote in the opposite direction,
// and commit=true applies that impact to the book.
func (e *Engine) exitPrice(pos *model.Position, commit bool) (decimal.Decimal, error) {
	if e.settlement.Active {
		return e.basis()(pos.Market), nil
	}

	if commit {
		return e.book.ApplyImpact(pos.Market, pos.NotionalDV01, pos.Direction.Opposite())
	}

	cfg, err := e.registry.Get(pos.Market)
	if err != nil {
		return decimal.Zero, err
	}
	return swap.ExecutionPrice(e.book.PriceOf(pos.Market), cfg.ImpactCoefficient, pos.NotionalDV01, pos.Direction.Opposite()), nil
}

func (e *Engine) applyAddMargin(p *AddMarginPreview) error {
	pos := e.findPosition(p.PositionID)
	if pos == nil {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, p.PositionID)
	}
	if e.balance.LessThan(p.Amount) {
		return fmt.Errorf("%w: required %s, available %s",
			ErrInsufficientBalance, p.Amount.String(), e.balance.String())
	}

	buffer := swap.LiquidationBuffer(p.Amount, pos.NotionalDV01)
	pos.Collateral = pos.Collateral.Add(p.Amount)
	pos.LiquidationPrice = pos.LiquidationPrice.Sub(buffer.Mul(pos.Direction.Factor()))
	e.balance = e.balance.Sub(p.Amount)

	slog.Info("margin added",
		"position", pos.ID,
		"amount", p.Amount.String(),
		"collateral", pos.Collateral.String(),
		"liquidation_price", pos.LiquidationPrice.String(),
	)
	return nil
}

// --- Direct commands ---

// EditMarketConfig applies an admin config edit. Editing the reference rate
// translates the live quote in parallel, preserving the basis spread, and
// is followed by a revaluation pass.
func (e *Engine) EditMarketConfig(ctx context.Context, marketName, field, value string) (*CommandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	oldVal, newVal, err := e.registry.Edit(marketName, field, value)
	if err != nil {
		return nil, err
	}
	if field == market.FieldReferenceRate {
		e.book.Shift(marketName, newVal.Sub(oldVal))
	}

	result := &CommandResult{Kind: KindEditMarket}
	result.Liquidated, err = e.revalue(ctx)
	result.Day = e.day
	result.Balance = e.balance
	return result, err
}

// OverrideLivePrice writes a market's quote directly, then revalues.
func (e *Engine) OverrideLivePrice(ctx context.Context, marketName string, price decimal.Decimal) (*CommandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.book.SetOverride(marketName, price); err != nil {
		return nil, err
	}

	result := &CommandResult{Kind: KindPriceOverride}
	var err error
	result.Liquidated, err = e.revalue(ctx)
	result.Day = e.day
	result.Balance = e.balance
	return result, err
}

// ExitSettlement clears the frozen basis and reverts valuation to live
// quotes, then revalues.
func (e *Engine) ExitSettlement(ctx context.Context) (*CommandResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settlement = model.SettlementState{}
	slog.Info("settlement mode exited")

	result := &CommandResult{Kind: KindExitSettlement}
	var err error
	result.Liquidated, err = e.revalue(ctx)
	result.Day = e.day
	result.Balance = e.balance
	return result, err
}

// copyPending returns a copy of the pending slot. Callers hold e.mu.
func (e *Engine) copyPending() *PendingAction {
	p := *e.pending
	return &p
}
