package ledger

import (
	"github.com/shopspring/decimal"
)

// Classification: "balanced" | "surplus" | "shortfall"
type Classification string

const (
	Balanced  Classification = "balanced"
	Surplus   Classification = "surplus"
	Shortfall Classification = "shortfall"
)

var (
	// Tolerance is one currency minor unit.
	Tolerance = decimal.RequireFromString("0.01")
	// DefaultVarianceThreshold flags a discrepancy as significant.
	DefaultVarianceThreshold = decimal.NewFromInt(10)
)

// Reconciliation is the outcome of comparing a counted amount against the
// theoretical balance. Discrepancy is counted minus theoretical.
type Reconciliation struct {
	Theoretical    decimal.Decimal `json:"theoretical"`
	Counted        decimal.Decimal `json:"counted"`
	Discrepancy    decimal.Decimal `json:"discrepancy"`
	Percent        decimal.Decimal `json:"percent"`
	Classification Classification  `json:"classification"`
	Significant    bool            `json:"significant"`
}

// Reconcile classifies counted against theoretical. A zero threshold falls
// back to DefaultVarianceThreshold.
func Reconcile(theoretical, counted, threshold decimal.Decimal) Reconciliation {
	if !threshold.IsPositive() {
		threshold = DefaultVarianceThreshold
	}
	diff := RoundMoney(counted.Sub(theoretical))

	var pct decimal.Decimal
	if !theoretical.IsZero() {
		pct = diff.Div(theoretical.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
	}

	r := Reconciliation{
		Theoretical: theoretical,
		Counted:     counted,
		Discrepancy: diff,
		Percent:     pct,
		Significant: diff.Abs().GreaterThan(threshold),
	}
	switch {
	case diff.Abs().LessThanOrEqual(Tolerance):
		r.Classification = Balanced
	case diff.IsPositive():
		r.Classification = Surplus
	default:
		r.Classification = Shortfall
	}
	return r
}
