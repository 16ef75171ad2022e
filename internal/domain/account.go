package domain

import "github.com/shopspring/decimal"

// IndicatorSnapshot volatility and momentum derived from the current window.
type IndicatorSnapshot struct {
	// NATR normalized average true range, >= 0.
	NATR float64
	// RSI relative strength index in [0, 100].
	RSI float64
}

// AccountState balances and mid price read fresh on every cycle.
type AccountState struct {
	BaseBalance  decimal.Decimal
	QuoteBalance decimal.Decimal
	MidPrice     decimal.Decimal
}
