// Package swap implements the pricing, margin, and P&L math for the
// synthetic interest-rate-swap venue.
//
// The venue has no order book: a single live quote per market absorbs each
// trade's impact permanently, so successive trades in one direction get
// progressively worse prices and an unwind nudges the quote back. Prices are
// quoted in percentage points of annualized rate; NotionalDV01 is the dollar
// value of a one-basis-point move, which is why P&L carries a ×100 factor
// converting a percentage-point price difference into basis points.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Every function here is stateless; market and position state are passed as
// arguments, not stored.
package swap

import (
	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
)

var (
	// FeeRate is the flat open fee: 5 bps of NotionalDV01, charged only on
	// open. Unwinds are free.
	FeeRate = decimal.NewFromFloat(0.0005)

	// MinMarginMultiple is the margin floor: collateral must be at least
	// NotionalDV01 × 50 at open.
	MinMarginMultiple = decimal.NewFromInt(50)

	hundred = decimal.NewFromInt(100)
)

// Impact returns the permanent quote shift caused by a trade:
//
//	impact = impactCoefficient × notionalDV01 × sign(direction)
//
// sign(pay) = +1, sign(receive) = -1.
func Impact(impactCoefficient, notionalDV01 decimal.Decimal, direction model.Direction) decimal.Decimal {
	return impactCoefficient.Mul(notionalDV01).Mul(direction.Factor())
}

// ExecutionPrice returns the fill price for a trade against the live quote.
// The market's quote moves to exactly this price after the trade.
func ExecutionPrice(livePrice, impactCoefficient, notionalDV01 decimal.Decimal, direction model.Direction) decimal.Decimal {
	return livePrice.Add(Impact(impactCoefficient, notionalDV01, direction))
}

// LiquidationPrice returns the price at which losses exhaust collateral:
//
//	entry ∓ (collateral / notionalDV01) / 100
//
// minus for pay-fixed (loses as price falls), plus for receive-fixed.
func LiquidationPrice(entryPrice, collateral, notionalDV01 decimal.Decimal, direction model.Direction) decimal.Decimal {
	buffer := collateral.Div(notionalDV01).Div(hundred)
	return entryPrice.Sub(buffer.Mul(direction.Factor()))
}

// LiquidationBuffer returns the price-distance buffer bought by the given
// collateral amount: (amount / notionalDV01) / 100. Margin top-ups shift an
// existing liquidation price by this buffer in the safe direction rather
// than recomputing from total collateral.
func LiquidationBuffer(amount, notionalDV01 decimal.Decimal) decimal.Decimal {
	return amount.Div(notionalDV01).Div(hundred)
}

// PnL returns the linear mark-to-market P&L of a position:
//
//	(currentPrice − entryPrice) × 100 × notionalDV01 × sign(direction)
//
// The ×100 converts a percentage-point price difference into basis points,
// matching the DV01 definition of dollars per basis point.
func PnL(currentPrice, entryPrice, notionalDV01 decimal.Decimal, direction model.Direction) decimal.Decimal {
	return currentPrice.Sub(entryPrice).Mul(hundred).Mul(notionalDV01).Mul(direction.Factor())
}

// BpsFromLiquidation returns the advisory distance to the liquidation price
// in basis points, positive while the position is on the safe side. Display
// only — never the liquidation trigger.
func BpsFromLiquidation(currentPrice, liquidationPrice decimal.Decimal, direction model.Direction) decimal.Decimal {
	return currentPrice.Sub(liquidationPrice).Mul(hundred).Mul(direction.Factor())
}

// Fee returns the open fee for a trade of the given size: notionalDV01 × 5 bps.
func Fee(notionalDV01 decimal.Decimal) decimal.Decimal {
	return notionalDV01.Mul(FeeRate)
}

// MinMargin returns the smallest collateral accepted at open:
// notionalDV01 × MinMarginMultiple.
func MinMargin(notionalDV01 decimal.Decimal) decimal.Decimal {
	return notionalDV01.Mul(MinMarginMultiple)
}
