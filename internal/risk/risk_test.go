package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/risk"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func payPosition(entry, collateral, dv01 float64) *model.Position {
	return &model.Position{
		ID:               "pos-1",
		Market:           "BTC-FUNDING",
		Direction:        model.DirectionPay,
		NotionalDV01:     d(dv01),
		EntryPrice:       d(entry),
		CurrentPrice:     d(entry),
		LiquidationPrice: d(entry - (collateral/dv01)/100),
		Collateral:       d(collateral),
	}
}

func fixedBasis(price float64) risk.Basis {
	return func(string) decimal.Decimal { return d(price) }
}

func TestEvaluate_NoLiquidationAtEntry(t *testing.T) {
	vals := risk.Evaluate([]*model.Position{payPosition(8.000, 500_000, 10_000)}, fixedBasis(8.000))
	if len(vals) != 1 {
		t.Fatalf("expected 1 valuation, got %d", len(vals))
	}
	if !vals[0].PnL.IsZero() {
		t.Errorf("P&L at entry should be zero, got %s", vals[0].PnL)
	}
	if vals[0].Liquidate {
		t.Error("position at entry should not liquidate")
	}
}

func TestEvaluate_LiquidationTrigger(t *testing.T) {
	// Pay-fixed, 10,000 DV01, 500,000 collateral, entry 8.000: a drop to
	// 3.000 marks P&L at -5,000,000, far beyond collateral.
	vals := risk.Evaluate([]*model.Position{payPosition(8.000, 500_000, 10_000)}, fixedBasis(3.000))

	v := vals[0]
	if !v.PnL.Equal(d(-5_000_000)) {
		t.Errorf("expected P&L -5000000, got %s", v.PnL)
	}
	if !v.Liquidate {
		t.Error("position should liquidate when loss exceeds collateral")
	}
}

func TestEvaluate_LossWithinCollateralHolds(t *testing.T) {
	// Loss of exactly collateral does not trigger: the rule is strict
	// overshoot, |P&L| > collateral.
	vals := risk.Evaluate([]*model.Position{payPosition(8.000, 500_000, 10_000)}, fixedBasis(7.500))
	if !vals[0].PnL.Equal(d(-500_000)) {
		t.Errorf("expected P&L -500000, got %s", vals[0].PnL)
	}
	if vals[0].Liquidate {
		t.Error("loss equal to collateral should not liquidate")
	}
}

func TestEvaluate_ProfitNeverLiquidates(t *testing.T) {
	vals := risk.Evaluate([]*model.Position{payPosition(8.000, 500_000, 10_000)}, fixedBasis(80.000))
	if vals[0].Liquidate {
		t.Error("profitable position must never liquidate")
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	positions := []*model.Position{payPosition(8.000, 500_000, 10_000)}
	basis := fixedBasis(6.500)

	first := risk.Evaluate(positions, basis)
	second := risk.Evaluate(positions, basis)

	if !first[0].PnL.Equal(second[0].PnL) {
		t.Errorf("P&L differs across passes: %s vs %s", first[0].PnL, second[0].PnL)
	}
	if first[0].Liquidate != second[0].Liquidate {
		t.Error("liquidation decision differs across passes")
	}
}

func TestEvaluate_BpsDistanceAdvisory(t *testing.T) {
	vals := risk.Evaluate([]*model.Position{payPosition(8.000, 500_000, 10_000)}, fixedBasis(7.800))
	// 7.800 vs liquidation 7.500 → 30 bps clear.
	if !vals[0].BpsFromLiquidation.Equal(d(30)) {
		t.Errorf("expected 30 bps from liquidation, got %s", vals[0].BpsFromLiquidation)
	}
}

func TestEvaluate_DoesNotMutatePositions(t *testing.T) {
	pos := payPosition(8.000, 500_000, 10_000)
	risk.Evaluate([]*model.Position{pos}, fixedBasis(3.000))

	if !pos.CurrentPrice.Equal(d(8.000)) {
		t.Errorf("evaluate must not mutate positions, current price now %s", pos.CurrentPrice)
	}
}
