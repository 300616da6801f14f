package money

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// Tolerance is the smallest amount that still counts as money owed, and the
// allowed drift of a split percentage total away from 100.
const Tolerance = 0.01

var hundred = decimal.NewFromInt(100)

var ErrNegativeAmount = errors.New("amount must not be negative")

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Sum adds amounts without accumulating binary float error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// Negligible reports whether v is too small to be shown as a debt.
func Negligible(v float64) bool {
	return decimal.NewFromFloat(v).Abs().LessThan(decimal.NewFromFloat(Tolerance))
}

// PercentTotal returns the sum of pcts rounded to two decimals.
func PercentTotal(pcts []float64) float64 {
	return decimal.NewFromFloat(Sum(pcts...)).Round(2).InexactFloat64()
}

// PercentsAddUp reports whether the exact sum of pcts is within Tolerance of
// 100.
func PercentsAddUp(pcts []float64) bool {
	total := decimal.Zero
	for _, p := range pcts {
		total = total.Add(decimal.NewFromFloat(p))
	}
	return !total.Sub(hundred).Abs().GreaterThan(decimal.NewFromFloat(Tolerance))
}

// PercentOf returns part / whole × 100, or 0 when whole is not positive.
func PercentOf(part, whole float64) float64 {
	w := decimal.NewFromFloat(whole)
	if !w.IsPositive() {
		return 0
	}
	return decimal.NewFromFloat(part).Div(w).Mul(hundred).InexactFloat64()
}

// Allocate splits amount by the given percentages so that the shares are whole
// cents and add up exactly to round2(amount × Σpcts / 100). Cents left over
// after flooring every raw share go to the largest remainders; ties go to the
// earlier index.
func Allocate(amount float64, pcts []float64) ([]float64, error) {
	if amount < 0 {
		return nil, ErrNegativeAmount
	}
	shares := make([]float64, len(pcts))
	if len(pcts) == 0 {
		return shares, nil
	}

	total := decimal.NewFromFloat(amount)
	pctTotal := decimal.Zero
	for _, p := range pcts {
		pctTotal = pctTotal.Add(decimal.NewFromFloat(p))
	}
	targetCents := total.Mul(pctTotal).Div(hundred).Round(2).Shift(2).IntPart()

	type remainder struct {
		idx  int
		frac decimal.Decimal
	}
	rems := make([]remainder, len(pcts))
	cents := make([]int64, len(pcts))
	var allocated int64
	for i, p := range pcts {
		raw := total.Mul(decimal.NewFromFloat(p)).Div(hundred).Shift(2)
		floor := raw.Floor()
		cents[i] = floor.IntPart()
		allocated += cents[i]
		rems[i] = remainder{idx: i, frac: raw.Sub(floor)}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac.GreaterThan(rems[b].frac)
	})
	for left, k := targetCents-allocated, 0; left > 0 && len(rems) > 0; left, k = left-1, k+1 {
		cents[rems[k%len(rems)].idx]++
	}

	for i, c := range cents {
		shares[i] = decimal.New(c, -2).InexactFloat64()
	}
	return shares, nil
}
