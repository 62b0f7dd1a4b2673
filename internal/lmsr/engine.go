// Package lmsr implements the logarithmic market scoring rule cost function
// on arbitrary-precision decimals. Every arithmetic step is fixed: division
// precision, the Taylor exp, the decimal ln, and the floor truncation all use
// pinned precisions, so independent nodes recompute bit-identical amounts.
// float64 transcendentals are deliberately not used anywhere in this package.
package lmsr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// calcPrecision is the working precision (fractional digits) of the internal
// exp/ln pipeline. It only needs to comfortably exceed the consensus
// precision; changing it changes consensus.
const calcPrecision = 24

var errLiquidity = errors.New("liquidity parameter must be positive")

// Engine prices trades with C(q) = m * ln(sum_i exp(q_i / b)).
//
// Precision is the number of fractional digits the log-sum-exp term is
// floored to before it is scaled by the margin; it is shared by every
// participant and is consensus-critical.
type Engine struct {
	Precision int32
}

func New(precision int32) Engine {
	return Engine{Precision: precision}
}

// Cost evaluates m * floor_P(ln(sum_i exp(q_i / b))).
func (e Engine) Cost(shares []decimal.Decimal, liquidity int64, margin decimal.Decimal) (decimal.Decimal, error) {
	l, err := e.logSumExp(shares, liquidity)
	if err != nil {
		return decimal.Zero, err
	}
	return margin.Mul(l), nil
}

// TradeCost is the marginal cost of moving outcome choice by delta shares:
// C(q') - C(q), floored to integer base units. Positive = the trader pays,
// negative = the trader is refunded.
func (e Engine) TradeCost(shares []decimal.Decimal, choice int, delta decimal.Decimal, liquidity int64, margin decimal.Decimal) (decimal.Decimal, error) {
	if choice < 0 || choice >= len(shares) {
		return decimal.Zero, fmt.Errorf("choice %d out of range [0,%d)", choice, len(shares))
	}
	before, err := e.Cost(shares, liquidity, margin)
	if err != nil {
		return decimal.Zero, err
	}
	moved := make([]decimal.Decimal, len(shares))
	copy(moved, shares)
	moved[choice] = moved[choice].Add(delta)
	after, err := e.Cost(moved, liquidity, margin)
	if err != nil {
		return decimal.Zero, err
	}
	return after.Sub(before).Floor(), nil
}

// Probabilities returns exp(q_i/b) / sum_j exp(q_j/b) for each outcome,
// rounded to the engine precision. Used by read-only projections; not part of
// the consensus trade path.
func (e Engine) Probabilities(shares []decimal.Decimal, liquidity int64) ([]decimal.Decimal, error) {
	terms, sum, err := expTerms(shares, liquidity)
	if err != nil {
		return nil, err
	}
	out := make([]decimal.Decimal, len(terms))
	for i, term := range terms {
		out[i] = term.DivRound(sum, e.Precision)
	}
	return out, nil
}

func (e Engine) logSumExp(shares []decimal.Decimal, liquidity int64) (decimal.Decimal, error) {
	_, sum, err := expTerms(shares, liquidity)
	if err != nil {
		return decimal.Zero, err
	}
	l, err := sum.Ln(calcPrecision)
	if err != nil {
		return decimal.Zero, err
	}
	return l.RoundFloor(e.Precision), nil
}

func expTerms(shares []decimal.Decimal, liquidity int64) ([]decimal.Decimal, decimal.Decimal, error) {
	if liquidity <= 0 {
		return nil, decimal.Zero, errLiquidity
	}
	b := decimal.NewFromInt(liquidity)
	terms := make([]decimal.Decimal, len(shares))
	sum := decimal.Zero
	for i, q := range shares {
		term, err := q.DivRound(b, calcPrecision).ExpTaylor(calcPrecision)
		if err != nil {
			return nil, decimal.Zero, err
		}
		terms[i] = term
		sum = sum.Add(term)
	}
	return terms, sum, nil
}
