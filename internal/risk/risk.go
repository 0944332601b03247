// Package risk implements the revaluation pass over the open-position
// ledger: per-position mark-to-market under the active valuation basis and
// the liquidation decision.
//
// The pass is pure, idempotent, and total — given the same positions and
// the same basis it reproduces the same valuations and the same liquidation
// decisions, with no hidden state between passes. The engine owns applying
// the decisions to its ledger.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/swap"
)

// Basis supplies the valuation price for a market: the live quote in normal
// operation, the frozen settlement price while settlement mode is active.
type Basis func(market string) decimal.Decimal

// Valuation is the result of marking one position against the basis.
type Valuation struct {
	Position           *model.Position
	CurrentPrice       decimal.Decimal
	PnL                decimal.Decimal
	BpsFromLiquidation decimal.Decimal

	// Liquidate is set when the position breaches the liquidation rule:
	// PnL < 0 and |PnL| > collateral. The distance metric above is
	// advisory only and never the trigger.
	Liquidate bool
}

// Evaluate marks every position against the basis, in the order given.
// It does not mutate the positions.
func Evaluate(positions []*model.Position, basis Basis) []Valuation {
	vals := make([]Valuation, 0, len(positions))
	for _, pos := range positions {
		vals = append(vals, evaluateOne(pos, basis(pos.Market)))
	}
	return vals
}

func evaluateOne(pos *model.Position, currentPrice decimal.Decimal) Valuation {
	pnl := swap.PnL(currentPrice, pos.EntryPrice, pos.NotionalDV01, pos.Direction)

	// Liquidation triggers however far the loss has overshot collateral;
	// the forfeit is capped at collateral by the engine, not here.
	liquidate := pnl.IsNegative() && pnl.Abs().GreaterThan(pos.Collateral)

	return Valuation{
		Position:           pos,
		CurrentPrice:       currentPrice,
		PnL:                pnl,
		BpsFromLiquidation: swap.BpsFromLiquidation(currentPrice, pos.LiquidationPrice, pos.Direction),
		Liquidate:          liquidate,
	}
}
