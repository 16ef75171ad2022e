// Package quote turns indicators and inventory into reference and quote prices.
package quote

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

// ErrNoPrice mid price is missing or not positive.
var ErrNoPrice = errors.Wrap(domain.ErrDataUnavailable, "no price")

// Params tuning constants of the calculator.
type Params struct {
	RSIThreshold        decimal.Decimal
	RSIShiftMax         decimal.Decimal
	RSIShiftScalar      decimal.Decimal
	TargetBaseRatio     decimal.Decimal
	InvShiftMax         decimal.Decimal
	BidSpreadMultiplier decimal.Decimal
	AskSpreadMultiplier decimal.Decimal
	PriceMode           domain.PriceMode
	// FixedBidOffset and FixedAskOffset are used in fixed mode:
	// bid = mid * (1 + FixedBidOffset), ask = mid * (1 - FixedAskOffset).
	FixedBidOffset decimal.Decimal
	FixedAskOffset decimal.Decimal
}

// DefaultParams returns the stock quoting constants.
func DefaultParams() Params {
	return Params{
		RSIThreshold:        decimal.NewFromInt(50),
		RSIShiftMax:         decimal.New(1, -6),
		RSIShiftScalar:      decimal.NewFromInt(-1),
		TargetBaseRatio:     decimal.RequireFromString("0.5"),
		InvShiftMax:         decimal.New(1, -6),
		BidSpreadMultiplier: decimal.NewFromInt(120),
		AskSpreadMultiplier: decimal.NewFromInt(60),
		PriceMode:           domain.PriceModeFixed,
		FixedBidOffset:      decimal.RequireFromString("0.01"),
		FixedAskOffset:      decimal.RequireFromString("0.01"),
	}
}

// Validate checks that the parameters can produce prices.
func (p Params) Validate() error {
	if !p.RSIThreshold.IsPositive() {
		return errors.New("rsi_threshold must be positive")
	}
	if p.TargetBaseRatio.IsNegative() || p.TargetBaseRatio.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("target_base_ratio must be within [0, 1]")
	}
	if p.BidSpreadMultiplier.IsNegative() || p.AskSpreadMultiplier.IsNegative() {
		return errors.New("spread multipliers must not be negative")
	}
	if !p.PriceMode.IsValid() {
		return errors.Errorf("unknown price_mode %q", p.PriceMode)
	}
	if p.FixedAskOffset.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("fixed_ask_offset must be below 1")
	}
	return nil
}

// Calculator computes quote decisions. It holds no state between calls.
type Calculator struct {
	pair   domain.Pair
	params Params
	now    func() time.Time
}

// NewCalculator creates a calculator for the pair.
func NewCalculator(pair domain.Pair, params Params) (*Calculator, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid quote params")
	}
	return &Calculator{pair: pair, params: params, now: time.Now}, nil
}

// Params returns the parameters in use.
func (c *Calculator) Params() Params {
	return c.params
}

// Calculate derives the reference price, spreads and executed prices.
func (c *Calculator) Calculate(ind domain.IndicatorSnapshot, acc domain.AccountState) (domain.QuoteDecision, error) {
	mid := acc.MidPrice
	if !mid.IsPositive() {
		return domain.QuoteDecision{}, errors.Wrapf(ErrNoPrice, "mid price %s", mid.String())
	}
	if ind.NATR < 0 || ind.RSI < 0 || ind.RSI > 100 {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrCalculation,
			"indicators out of range: natr=%v rsi=%v", ind.NATR, ind.RSI)
	}

	p := c.params
	one := decimal.NewFromInt(1)
	rsi := decimal.NewFromFloat(ind.RSI)
	natr := decimal.NewFromFloat(ind.NATR)

	rsiAdjustment := rsi.Sub(p.RSIThreshold).Div(p.RSIThreshold)
	shiftRSI := rsiAdjustment.Mul(p.RSIShiftMax).Mul(p.RSIShiftScalar)

	ratio := InventoryRatio(acc.BaseBalance, acc.QuoteBalance, mid, p.TargetBaseRatio)
	shiftInv := ratio.Sub(p.TargetBaseRatio).Mul(p.InvShiftMax)

	ref := mid.Mul(one.Add(shiftRSI).Add(shiftInv))
	bidSpread := natr.Mul(p.BidSpreadMultiplier)
	askSpread := natr.Mul(p.AskSpreadMultiplier)

	var bid, ask decimal.Decimal
	switch p.PriceMode {
	case domain.PriceModeSpread:
		bid = ref.Mul(one.Sub(bidSpread))
		ask = ref.Mul(one.Add(askSpread))
	default:
		bid = mid.Mul(one.Add(p.FixedBidOffset))
		ask = mid.Mul(one.Sub(p.FixedAskOffset))
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrCalculation,
			"non-positive quote: bid=%s ask=%s", bid.String(), ask.String())
	}

	return domain.QuoteDecision{
		Timestamp:      c.now(),
		Pair:           c.pair,
		MidPrice:       mid,
		RefPrice:       ref,
		BidSpread:      bidSpread,
		AskSpread:      askSpread,
		BidPrice:       bid,
		AskPrice:       ask,
		PriceShiftRSI:  shiftRSI,
		PriceShiftInv:  shiftInv,
		InventoryRatio: ratio,
		Indicators:     ind,
		PriceMode:      p.PriceMode,
	}, nil
}

// InventoryRatio returns the share of portfolio value held in the base asset,
// or target when the portfolio is empty.
func InventoryRatio(base, quote, mid, target decimal.Decimal) decimal.Decimal {
	baseValue := base.Mul(mid)
	total := baseValue.Add(quote)
	if !total.IsPositive() {
		return target
	}
	return baseValue.Div(total)
}
