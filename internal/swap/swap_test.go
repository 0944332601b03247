package swap_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/swap"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestExecutionPrice_PayImpact(t *testing.T) {
	// A 10,000 DV01 pay-fixed trade at coefficient 0.00001 against a 7.980
	// quote fills at 7.980 + 0.1 = 8.080.
	exec := swap.ExecutionPrice(d(7.980), d(0.00001), d(10_000), model.DirectionPay)
	if !exec.Equal(d(8.080)) {
		t.Errorf("expected execution price 8.080, got %s", exec)
	}
}

func TestExecutionPrice_ReceiveImpact(t *testing.T) {
	exec := swap.ExecutionPrice(d(7.980), d(0.00001), d(10_000), model.DirectionReceive)
	if !exec.Equal(d(7.880)) {
		t.Errorf("expected execution price 7.880, got %s", exec)
	}
}

func TestImpact_ZeroCoefficient(t *testing.T) {
	if got := swap.Impact(decimal.Zero, d(50_000), model.DirectionPay); !got.IsZero() {
		t.Errorf("zero coefficient should produce zero impact, got %s", got)
	}
}

func TestLiquidationPrice(t *testing.T) {
	// (collateral/dv01)/100 = (500000/10000)/100 = 0.5 below entry for
	// pay-fixed, above for receive-fixed.
	pay := swap.LiquidationPrice(d(8.000), d(500_000), d(10_000), model.DirectionPay)
	if !pay.Equal(d(7.500)) {
		t.Errorf("pay liquidation price: expected 7.500, got %s", pay)
	}

	recv := swap.LiquidationPrice(d(8.000), d(500_000), d(10_000), model.DirectionReceive)
	if !recv.Equal(d(8.500)) {
		t.Errorf("receive liquidation price: expected 8.500, got %s", recv)
	}
}

func TestPnL_SignLaw(t *testing.T) {
	entry := d(8.000)
	dv01 := d(10_000)

	// Zero at entry.
	if pnl := swap.PnL(entry, entry, dv01, model.DirectionPay); !pnl.IsZero() {
		t.Errorf("P&L at entry should be zero, got %s", pnl)
	}

	// Pay profits as price rises, strictly.
	up := swap.PnL(d(8.010), entry, dv01, model.DirectionPay)
	upMore := swap.PnL(d(8.020), entry, dv01, model.DirectionPay)
	if !up.IsPositive() || !upMore.GreaterThan(up) {
		t.Errorf("pay P&L should increase with price: %s then %s", up, upMore)
	}

	// Receive profits as price falls.
	down := swap.PnL(d(7.990), entry, dv01, model.DirectionReceive)
	if !down.IsPositive() {
		t.Errorf("receive P&L should be positive when price falls, got %s", down)
	}

	// Mirror image: receive P&L is the negative of pay P&L.
	payUp := swap.PnL(d(8.010), entry, dv01, model.DirectionPay)
	recvUp := swap.PnL(d(8.010), entry, dv01, model.DirectionReceive)
	if !payUp.Equal(recvUp.Neg()) {
		t.Errorf("directions should mirror: pay=%s receive=%s", payUp, recvUp)
	}
}

func TestPnL_Magnitude(t *testing.T) {
	// (3.000 − 8.000) × 100 × 10,000 = −5,000,000 for pay-fixed.
	pnl := swap.PnL(d(3.000), d(8.000), d(10_000), model.DirectionPay)
	if !pnl.Equal(d(-5_000_000)) {
		t.Errorf("expected P&L -5000000, got %s", pnl)
	}
}

func TestFee(t *testing.T) {
	// Flat 5 bps of DV01, charged only on open.
	if fee := swap.Fee(d(10_000)); !fee.Equal(d(5)) {
		t.Errorf("expected fee 5, got %s", fee)
	}
	if fee := swap.Fee(d(1)); !fee.Equal(d(0.0005)) {
		t.Errorf("expected fee 0.0005, got %s", fee)
	}
}

func TestMinMargin(t *testing.T) {
	if m := swap.MinMargin(d(10_000)); !m.Equal(d(500_000)) {
		t.Errorf("expected minimum margin 500000, got %s", m)
	}
}

func TestBpsFromLiquidation(t *testing.T) {
	// Pay-fixed at 8.000 with liquidation at 7.500 sits 50 bps clear.
	bps := swap.BpsFromLiquidation(d(8.000), d(7.500), model.DirectionPay)
	if !bps.Equal(d(50)) {
		t.Errorf("expected 50 bps, got %s", bps)
	}

	// Receive-fixed flips the sign convention.
	bps = swap.BpsFromLiquidation(d(8.000), d(8.500), model.DirectionReceive)
	if !bps.Equal(d(50)) {
		t.Errorf("expected 50 bps for receive, got %s", bps)
	}
}

func TestLiquidationBuffer(t *testing.T) {
	buf := swap.LiquidationBuffer(d(100_000), d(10_000))
	if !buf.Equal(d(0.1)) {
		t.Errorf("expected buffer 0.1, got %s", buf)
	}
}
