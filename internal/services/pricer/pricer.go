// Package pricer reads mid prices from exchange order books.
package pricer

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Mid returns (bid+ask)/2 of the top of book.
// A one-sided book falls back to the side that is present.
func Mid(bid, ask string) (decimal.Decimal, error) {
	b, err := parseOptional(bid)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse bid price")
	}
	a, err := parseOptional(ask)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse ask price")
	}

	switch {
	case b.IsPositive() && a.IsPositive():
		return b.Add(a).Div(decimal.NewFromInt(2)), nil
	case b.IsPositive():
		return b, nil
	case a.IsPositive():
		return a, nil
	default:
		return decimal.Zero, errors.New("empty order book")
	}
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
