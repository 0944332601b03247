// Package model defines the core domain types shared across the swap engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a swap position. Pay-fixed profits when the
// floating rate rises, receive-fixed when it falls.
type Direction string

const (
	DirectionPay     Direction = "PAY"
	DirectionReceive Direction = "RECEIVE"
)

var (
	one    = decimal.NewFromInt(1)
	negOne = decimal.NewFromInt(-1)
)

// Valid reports whether d is one of the two supported directions.
func (d Direction) Valid() bool {
	return d == DirectionPay || d == DirectionReceive
}

// Opposite returns the closing direction for a position opened with d.
func (d Direction) Opposite() Direction {
	if d == DirectionPay {
		return DirectionReceive
	}
	return DirectionPay
}

// Factor returns the P&L / impact sign: +1 for pay-fixed, -1 for receive-fixed.
func (d Direction) Factor() decimal.Decimal {
	if d == DirectionPay {
		return one
	}
	return negOne
}

// Position is an open leveraged swap position against the virtual
// counterparty. Owned exclusively by the engine ledger; CurrentPrice is
// refreshed by each revaluation pass, everything else is fixed at open
// except Collateral and LiquidationPrice (margin top-ups).
type Position struct {
	ID               string          `json:"id"`
	Market           string          `json:"market"`
	Direction        Direction       `json:"direction"`
	NotionalDV01     decimal.Decimal `json:"notional_dv01"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
	Collateral       decimal.Decimal `json:"collateral"`
	EntryDay         int             `json:"entry_day"`
	CreatedAt        time.Time       `json:"created_at"`
}

// TradeStatus is the terminal state of a closed position.
type TradeStatus string

const (
	StatusClosed     TradeStatus = "CLOSED"
	StatusLiquidated TradeStatus = "LIQUIDATED"
)

// TradeRecord is an immutable record of a closed or liquidated position.
// Once created, these are never modified or deleted.
type TradeRecord struct {
	ID             string          `json:"id"`
	Day            int             `json:"day"`
	Market         string          `json:"market"`
	Direction      Direction       `json:"direction"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	ExitPrice      decimal.Decimal `json:"exit_price"`
	NotionalDV01   decimal.Decimal `json:"notional_dv01"`
	FinalPL        decimal.Decimal `json:"final_pl"`
	CounterpartyPL decimal.Decimal `json:"counterparty_pl"`
	Status         TradeStatus     `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
}

// AccountingState accumulates protocol-level revenue: fees collected on
// opens and the realized P&L of the virtual counterparty, booked on every
// close and liquidation. Both fields only ever grow by the amounts booked;
// nothing here is recomputed from the ledger.
type AccountingState struct {
	FeesCollected          decimal.Decimal `json:"fees_collected"`
	RealizedCounterpartyPL decimal.Decimal `json:"realized_counterparty_pl"`
}

// AccountingSnapshot combines the accumulated state with the live mirror
// image of aggregate open-position P&L, recomputed on demand.
type AccountingSnapshot struct {
	FeesCollected          decimal.Decimal `json:"fees_collected"`
	RealizedCounterpartyPL decimal.Decimal `json:"realized_counterparty_pl"`
	OpenCounterpartyPL     decimal.Decimal `json:"open_counterparty_pl"`
	TotalCounterpartyPL    decimal.Decimal `json:"total_counterparty_pl"`
}

// SettlementState is the frozen valuation basis. While Active, Prices
// override the live quote book for every revaluation pass; the quote book
// itself is left untouched.
type SettlementState struct {
	Active bool                       `json:"active"`
	Prices map[string]decimal.Decimal `json:"prices,omitempty"`
}

// PositionView is a position together with its valuation under the active
// basis, as returned by the read surface.
type PositionView struct {
	Position           Position        `json:"position"`
	PnL                decimal.Decimal `json:"pnl"`
	BpsFromLiquidation decimal.Decimal `json:"bps_from_liquidation"`
	DaysHeld           int             `json:"days_held"`
}
