package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceMode selects how executed bid/ask prices are derived.
type PriceMode string

const (
	// PriceModeFixed quotes fixed percentage offsets from mid; spreads are reported only.
	PriceModeFixed PriceMode = "fixed"
	// PriceModeSpread quotes ref price minus/plus the volatility spreads.
	PriceModeSpread PriceMode = "spread"
)

// IsValid checks if the PriceMode value is valid.
func (m PriceMode) IsValid() bool {
	return m == PriceModeFixed || m == PriceModeSpread
}

// QuoteDecision result of one quoting cycle.
type QuoteDecision struct {
	Timestamp      time.Time
	Pair           Pair
	MidPrice       decimal.Decimal
	RefPrice       decimal.Decimal
	BidSpread      decimal.Decimal
	AskSpread      decimal.Decimal
	BidPrice       decimal.Decimal
	AskPrice       decimal.Decimal
	PriceShiftRSI  decimal.Decimal
	PriceShiftInv  decimal.Decimal
	InventoryRatio decimal.Decimal
	Indicators     IndicatorSnapshot
	PriceMode      PriceMode
}

// String returns a human-readable string representation.
func (q QuoteDecision) String() string {
	return fmt.Sprintf("%s mid: %s ref: %s bid: %s ask: %s", q.Pair.String(), q.MidPrice.String(),
		q.RefPrice.String(), q.BidPrice.String(), q.AskPrice.String())
}
