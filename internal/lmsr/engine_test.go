package lmsr

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCost_SymmetricBinary(t *testing.T) {
	e := New(8)
	shares := []decimal.Decimal{decimal.Zero, decimal.Zero}
	margin := decimal.NewFromInt(1000000)

	cost, err := e.Cost(shares, 100, margin)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	// ln(2) floored to 8 digits is 0.69314718.
	if got := cost.String(); got != "693147.18" {
		t.Fatalf("cost=%s want=693147.18", got)
	}
}

func TestTradeCost_Buy(t *testing.T) {
	e := New(8)
	shares := []decimal.Decimal{decimal.Zero, decimal.Zero}
	margin := decimal.NewFromInt(1000000)

	cost, err := e.TradeCost(shares, 0, decimal.NewFromInt(10), 100, margin)
	if err != nil {
		t.Fatalf("trade cost: %v", err)
	}
	if got := cost.String(); got != "51249" {
		t.Fatalf("buy cost=%s want=51249", got)
	}
}

func TestTradeCost_RoundTripLosesOne(t *testing.T) {
	e := New(8)
	margin := decimal.NewFromInt(1000000)
	delta := decimal.NewFromInt(10)

	buy, err := e.TradeCost([]decimal.Decimal{decimal.Zero, decimal.Zero}, 0, delta, 100, margin)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	sell, err := e.TradeCost([]decimal.Decimal{delta, decimal.Zero}, 0, delta.Neg(), 100, margin)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !sell.IsNegative() {
		t.Fatalf("sell=%s want negative", sell.String())
	}
	// Flooring both legs costs the trader at most one base unit.
	net := buy.Add(sell)
	if got := net.String(); got != "-1" {
		t.Fatalf("round-trip net=%s want=-1", got)
	}
}

func TestTradeCost_Deterministic(t *testing.T) {
	e := New(8)
	margin := decimal.NewFromInt(1000000)
	shares := []decimal.Decimal{
		decimal.RequireFromString("3.5"),
		decimal.RequireFromString("12.25"),
		decimal.RequireFromString("0.125"),
	}

	first, err := e.TradeCost(shares, 1, decimal.RequireFromString("7.75"), 250, margin)
	if err != nil {
		t.Fatalf("trade cost: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := e.TradeCost(shares, 1, decimal.RequireFromString("7.75"), 250, margin)
		if err != nil {
			t.Fatalf("trade cost (iter %d): %v", i, err)
		}
		if again.String() != first.String() {
			t.Fatalf("iter %d: cost=%s want=%s", i, again.String(), first.String())
		}
	}
}

func TestTradeCost_FloorsTowardNegativeInfinity(t *testing.T) {
	e := New(8)
	margin := decimal.NewFromInt(1000000)

	sell, err := e.TradeCost([]decimal.Decimal{decimal.NewFromInt(10), decimal.Zero}, 0, decimal.NewFromInt(-10), 100, margin)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	// Exact refund is 51249.48; floor moves it away from zero.
	if got := sell.String(); got != "-51250" {
		t.Fatalf("sell=%s want=-51250", got)
	}
}

func TestProbabilities_UniformAtZero(t *testing.T) {
	e := New(8)
	probs, err := e.Probabilities([]decimal.Decimal{decimal.Zero, decimal.Zero}, 100)
	if err != nil {
		t.Fatalf("probabilities: %v", err)
	}
	if len(probs) != 2 {
		t.Fatalf("len=%d want=2", len(probs))
	}
	half := decimal.RequireFromString("0.5")
	for i, p := range probs {
		if !p.Equal(half) {
			t.Fatalf("prob[%d]=%s want=0.5", i, p.String())
		}
	}
}

func TestProbabilities_FavorsHigherShare(t *testing.T) {
	e := New(8)
	probs, err := e.Probabilities([]decimal.Decimal{decimal.NewFromInt(50), decimal.Zero}, 100)
	if err != nil {
		t.Fatalf("probabilities: %v", err)
	}
	if !probs[0].GreaterThan(probs[1]) {
		t.Fatalf("prob[0]=%s should exceed prob[1]=%s", probs[0].String(), probs[1].String())
	}
	sum := probs[0].Add(probs[1])
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.RequireFromString("0.00000001")) {
		t.Fatalf("probabilities sum=%s want ~1", sum.String())
	}
}

func TestCost_RejectsNonPositiveLiquidity(t *testing.T) {
	e := New(8)
	margin := decimal.NewFromInt(1000000)
	for _, b := range []int64{0, -5} {
		if _, err := e.Cost([]decimal.Decimal{decimal.Zero}, b, margin); err == nil {
			t.Fatalf("liquidity=%d: expected error", b)
		}
	}
}

func TestTradeCost_RejectsChoiceOutOfRange(t *testing.T) {
	e := New(8)
	margin := decimal.NewFromInt(1000000)
	shares := []decimal.Decimal{decimal.Zero, decimal.Zero}
	for _, choice := range []int{-1, 2} {
		if _, err := e.TradeCost(shares, choice, decimal.NewFromInt(1), 100, margin); err == nil {
			t.Fatalf("choice=%d: expected error", choice)
		}
	}
}
