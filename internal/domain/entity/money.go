package entity

import "github.com/shopspring/decimal"

// NormalizeAmount quantizes a monetary value to exactly two fractional digits
// using half-up rounding. Normalizing an already-normalized value is a no-op,
// so values survive read/write round-trips unchanged.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
