package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DenominationKind: "banknote" | "coin"
type DenominationKind string

const (
	Banknote DenominationKind = "banknote"
	Coin     DenominationKind = "coin"
)

// Denomination is one row of a cash count: a face value and how many of it.
type Denomination struct {
	FaceValue decimal.Decimal  `json:"face_value"`
	Kind      DenominationKind `json:"kind"`
	Count     int              `json:"count"`
}

// EuroDenominations returns the euro bill and coin table with zero counts,
// largest first, as shown on count forms.
func EuroDenominations() []Denomination {
	bills := []string{"500", "200", "100", "50", "20", "10", "5"}
	coins := []string{"2", "1", "0.50", "0.20", "0.10", "0.05", "0.02", "0.01"}
	out := make([]Denomination, 0, len(bills)+len(coins))
	for _, v := range bills {
		out = append(out, Denomination{FaceValue: decimal.RequireFromString(v), Kind: Banknote})
	}
	for _, v := range coins {
		out = append(out, Denomination{FaceValue: decimal.RequireFromString(v), Kind: Coin})
	}
	return out
}

// NormalizeDenominations clamps negative counts to zero and rejects
// non-positive face values and repeated face values.
func NormalizeDenominations(denoms []Denomination) ([]Denomination, error) {
	seen := make(map[string]bool, len(denoms))
	out := make([]Denomination, len(denoms))
	for i, d := range denoms {
		if !d.FaceValue.IsPositive() {
			return nil, fmt.Errorf("%w: face value %s", ErrInvalidDenomination, d.FaceValue.String())
		}
		key := d.FaceValue.String()
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDenomination, key)
		}
		seen[key] = true
		if d.Count < 0 {
			d.Count = 0
		}
		out[i] = d
	}
	return out, nil
}

// Total returns Σ(faceValue × count) rounded half-up to cents.
func Total(denoms []Denomination) (decimal.Decimal, error) {
	clean, err := NormalizeDenominations(denoms)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, d := range clean {
		total = total.Add(d.FaceValue.Mul(decimal.NewFromInt(int64(d.Count))))
	}
	return RoundMoney(total), nil
}

// RoundMoney rounds to cents, half-up for the non-negative totals the
// counter produces. Negative values round half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
