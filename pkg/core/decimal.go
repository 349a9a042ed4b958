package core

import (
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
)

// fixedDigits is the number of fractional digits prices and slippage carry
const fixedDigits = 3

// MaxPrice bounds reference prices so price*slippage fits the fixed-point
// representation.
var MaxPrice = fpdecimal.FromInt(10_000_000_000)

var (
	maxSlippage = fpdecimal.FromInt(100)
	onePercent  = fpdecimal.FromFloat(0.01)
	maxFixed    = decimal.New(1, 10)
)

// ParseAmount parses a nominal asset amount. Amounts are arbitrary precision
// and must be strictly positive.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	return amount, nil
}

// ParsePrice parses a reference price. Prices are fixed-point with three
// fractional digits and at most MaxPrice; an empty string is read as zero.
func ParsePrice(s string) (fpdecimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fpdecimal.Zero, nil
	}
	price, err := parseFixed(s, ErrInvalidPrice)
	if err != nil {
		return fpdecimal.Zero, err
	}
	if price.LessThan(fpdecimal.Zero) {
		return fpdecimal.Zero, fmt.Errorf("%w: %q must not be negative", ErrInvalidPrice, s)
	}
	return price, nil
}

// ParseSlippage parses a slippage tolerance in percent, 0 to 100 inclusive.
// An empty string is read as zero.
func ParseSlippage(s string) (fpdecimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fpdecimal.Zero, nil
	}
	slippage, err := parseFixed(s, ErrInvalidSlippage)
	if err != nil {
		return fpdecimal.Zero, err
	}
	if slippage.LessThan(fpdecimal.Zero) || slippage.GreaterThan(maxSlippage) {
		return fpdecimal.Zero, fmt.Errorf("%w: %q out of range [0, 100]", ErrInvalidSlippage, s)
	}
	return slippage, nil
}

// parseFixed reads s exactly and refuses values that would lose digits or
// overflow as a three digit fixed-point number.
func parseFixed(s string, sentinel error) (fpdecimal.Decimal, error) {
	exact, err := decimal.NewFromString(s)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("%w: %q", sentinel, s)
	}
	if !exact.Equal(exact.Truncate(fixedDigits)) {
		return fpdecimal.Zero, fmt.Errorf("%w: %q has more than %d fractional digits", sentinel, s, fixedDigits)
	}
	if exact.Abs().GreaterThan(maxFixed) {
		return fpdecimal.Zero, fmt.Errorf("%w: %q exceeds %s", sentinel, s, maxFixed)
	}
	v, err := fpdecimal.FromString(exact.String())
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("%w: %q", sentinel, s)
	}
	return v, nil
}

// PriceBand is the closed interval of prices an order owner accepts
type PriceBand struct {
	Min fpdecimal.Decimal
	Max fpdecimal.Decimal
}

// NewPriceBand returns [price*(1-slippage/100), price*(1+slippage/100)].
// The product is taken before scaling so whole-percent tolerances stay exact;
// digits beyond the third fractional place are truncated. price must not
// exceed MaxPrice and slippage must not exceed 100.
func NewPriceBand(price, slippage fpdecimal.Decimal) PriceBand {
	delta := price.Mul(slippage).Mul(onePercent)
	return PriceBand{
		Min: price.Sub(delta),
		Max: price.Add(delta),
	}
}

// Overlaps reports whether the two bands share at least one price
func (b PriceBand) Overlaps(other PriceBand) bool {
	return b.Max.GreaterThanOrEqual(other.Min) && b.Min.LessThanOrEqual(other.Max)
}

// String implements fmt.Stringer
func (b PriceBand) String() string {
	return "[" + b.Min.String() + ", " + b.Max.String() + "]"
}
