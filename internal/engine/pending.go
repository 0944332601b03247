package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
)

// PendingKind tags the command type held in the pending slot.
type PendingKind string

const (
	PendingOpen       PendingKind = "OPEN"
	PendingUnwind     PendingKind = "UNWIND"
	PendingAddMargin  PendingKind = "ADD_MARGIN"
	PendingSettlement PendingKind = "SETTLEMENT"
	PendingDayAdvance PendingKind = "DAY_ADVANCE"
)

// PendingAction is the ephemeral two-phase command object: it exists only
// between request and confirm/cancel so the presentation layer can show a
// preview before an irreversible commit. Cancel is a pure discard with zero
// ledger effect. Exactly one of the preview fields is set, matching Kind.
type PendingAction struct {
	Kind        PendingKind `json:"kind"`
	RequestedAt time.Time   `json:"requested_at"`

	Open       *OpenPreview       `json:"open,omitempty"`
	Unwind     *UnwindPreview     `json:"unwind,omitempty"`
	AddMargin  *AddMarginPreview  `json:"add_margin,omitempty"`
	Settlement *SettlementPreview `json:"settlement,omitempty"`
	DayAdvance *DayAdvancePreview `json:"day_advance,omitempty"`
}

// OpenPreview holds the computed preview for an open request. Execution and
// liquidation prices are indicative; the commit re-derives them against the
// quote book so the book absorbs the impact exactly once.
type OpenPreview struct {
	Market           string          `json:"market"`
	Direction        model.Direction `json:"direction"`
	NotionalDV01     decimal.Decimal `json:"notional_dv01"`
	Margin           decimal.Decimal `json:"margin"`
	Fee              decimal.Decimal `json:"fee"`
	ExecutionPrice   decimal.Decimal `json:"execution_price"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	RequiredBalance  decimal.Decimal `json:"required_balance"`
}

// UnwindPreview holds the projected exit for an unwind request.
type UnwindPreview struct {
	PositionID string          `json:"position_id"`
	Market     string          `json:"market"`
	Direction  model.Direction `json:"direction"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	PnL        decimal.Decimal `json:"pnl"`
	NetReturn  decimal.Decimal `json:"net_return"`
}

// AddMarginPreview holds the projected collateral buffer for a top-up.
type AddMarginPreview struct {
	PositionID          string          `json:"position_id"`
	Amount              decimal.Decimal `json:"amount"`
	NewCollateral       decimal.Decimal `json:"new_collateral"`
	NewLiquidationPrice decimal.Decimal `json:"new_liquidation_price"`
}

// SettlementPreview holds the per-market settlement prices that will become
// the frozen valuation basis on confirm.
type SettlementPreview struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// DayAdvancePreview shows the day-counter transition.
type DayAdvancePreview struct {
	FromDay int `json:"from_day"`
	ToDay   int `json:"to_day"`
}
