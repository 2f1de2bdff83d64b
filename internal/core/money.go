// Package core holds the pure domain of the cooperative finance ledger:
// transactions, budgets, credits, subsidies, collective payments and the
// arithmetic that splits and amortizes them. Nothing in this package
// performs I/O.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer minor currency units. All ledger
// arithmetic happens on minor units; decimals only appear transiently in
// rate computations.
type Money struct {
	Units int64
}

func (m Money) Validate() error {
	if m.Units <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount as a decimal in minor units, for rate math.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Units)
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Units: m.Units + o.Units}
}

// Sub returns the difference of two amounts. The result may be negative;
// callers that need a non-negative invariant must check it themselves.
func (m Money) Sub(o Money) Money {
	return Money{Units: m.Units - o.Units}
}

// ParseDecimalToUnits converts a decimal string to minor units with
// half-up rounding on the third decimal place. Both dot and comma
// separators are accepted. Only strictly positive amounts parse.
func ParseDecimalToUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	units := iv*100 + frac
	if units <= 0 {
		return 0, ErrInvalidAmount
	}
	return units, nil
}

// roundToUnits rounds a decimal amount half-up to whole minor units.
func roundToUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
