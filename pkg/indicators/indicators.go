// Package indicators provides the volatility (NATR) and momentum (RSI) indicators
// used by the quoter. Averages are computed with the cinar/indicator library.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/quoter/internal/domain"
)

// Mode selects the averaging method.
type Mode string

const (
	// ModeSimple plain mean over the last period values.
	ModeSimple Mode = "simple"
	// ModeWilder Wilder-smoothed RSI and ATR.
	ModeWilder Mode = "wilder"
)

// IsValid checks if the Mode value is valid.
func (m Mode) IsValid() bool {
	return m == ModeSimple || m == ModeWilder
}

const (
	rsiMax     = 100.0
	rsiNeutral = 50.0
)

// ErrInsufficientData window is shorter than the indicator needs.
var ErrInsufficientData = errors.Wrap(domain.ErrDataUnavailable, "insufficient candle data")

// Config indicator periods and options.
type Config struct {
	NATRPeriod int
	RSIPeriod  int
	Mode       Mode
	// FlatRSINeutral reports 50 instead of 100 when the window has neither gains nor losses.
	FlatRSINeutral bool
}

// MinBars returns the number of bars required by both indicators.
func (c Config) MinBars() int {
	return max(c.NATRPeriod, c.RSIPeriod) + 1
}

// Compute calculates NATR and RSI for the window.
func Compute(w domain.CandleWindow, mid float64, cfg Config) (domain.IndicatorSnapshot, error) {
	if cfg.NATRPeriod < 1 || cfg.RSIPeriod < 1 {
		return domain.IndicatorSnapshot{}, errors.Wrapf(domain.ErrCalculation,
			"periods must be positive, natr=%d rsi=%d", cfg.NATRPeriod, cfg.RSIPeriod)
	}

	var (
		natr, rsi float64
		err       error
	)
	if cfg.Mode == ModeWilder {
		natr, err = wilderNATR(w, cfg.NATRPeriod, mid)
	} else {
		natr, err = NATR(w, cfg.NATRPeriod, mid)
	}
	if err != nil {
		return domain.IndicatorSnapshot{}, errors.Wrap(err, "NATR")
	}

	var flat bool
	if cfg.Mode == ModeWilder {
		rsi, flat, err = wilderRSI(w, cfg.RSIPeriod)
	} else {
		rsi, flat, err = rsiWithFlag(w, cfg.RSIPeriod)
	}
	if err != nil {
		return domain.IndicatorSnapshot{}, errors.Wrap(err, "RSI")
	}
	if flat && cfg.FlatRSINeutral {
		rsi = rsiNeutral
	}

	return domain.IndicatorSnapshot{NATR: natr, RSI: rsi}, nil
}

// NATR returns the average true range of the last period bars divided by mid.
// The first bar has no predecessor and uses its own close. NATR is 0 when mid <= 0.
func NATR(w domain.CandleWindow, period int, mid float64) (float64, error) {
	if w.Len() <= period {
		return 0, errors.Wrapf(ErrInsufficientData, "NATR(%d) needs %d bars, got %d", period, period+1, w.Len())
	}
	highs, lows, closes := w.Highs(), w.Lows(), w.Closes()
	if err := validateOHLC(highs, lows, closes); err != nil {
		return 0, err
	}

	atr := tailMean(TrueRange(highs, lows, closes), period)
	if mid <= 0 {
		return 0, nil
	}
	return atr / mid, nil
}

// RSI returns the relative strength index of the last period close deltas.
// A window without losses reports 100, including a completely flat one.
func RSI(w domain.CandleWindow, period int) (float64, error) {
	rsi, _, err := rsiWithFlag(w, period)
	return rsi, err
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		prevClose := closes[i]
		if i > 0 {
			prevClose = closes[i-1]
		}
		out[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
	}
	return out
}

func rsiWithFlag(w domain.CandleWindow, period int) (float64, bool, error) {
	if w.Len() <= period {
		return 0, false, errors.Wrapf(ErrInsufficientData, "RSI(%d) needs %d bars, got %d", period, period+1, w.Len())
	}
	closes := w.Closes()
	if err := validateSeries("close", closes); err != nil {
		return 0, false, err
	}

	gains, losses := splitDeltas(closes)
	avgGain := tailMean(gains, period)
	avgLoss := tailMean(losses, period)

	if avgLoss == 0 {
		return rsiMax, avgGain == 0, nil
	}
	return math.Min(rsiMax, math.Max(0, rsiMax-rsiMax/(1+avgGain/avgLoss))), false, nil
}

// splitDeltas returns positive and absolute negative close-to-close changes.
func splitDeltas(closes []float64) (gains, losses []float64) {
	if len(closes) < 2 {
		return nil, nil
	}
	gains = make([]float64, len(closes)-1)
	losses = make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i-1] = d
		} else if d < 0 {
			losses[i-1] = -d
		}
	}
	return gains, losses
}

// tailMean averages the last period values, or all of them when fewer exist.
func tailMean(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period > len(values) || period < 1 {
		period = len(values)
	}

	// only the tail goes through the SMA: its running sum drifts over longer inputs
	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values[len(values)-period:])))
	if len(out) == 0 {
		return 0
	}
	return out[len(out)-1]
}

func wilderNATR(w domain.CandleWindow, period int, mid float64) (float64, error) {
	if w.Len() <= period {
		return 0, errors.Wrapf(ErrInsufficientData, "ATR(%d) needs %d bars, got %d", period, period+1, w.Len())
	}
	highs, lows, closes := w.Highs(), w.Lows(), w.Closes()
	if err := validateOHLC(highs, lows, closes); err != nil {
		return 0, err
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	out := helper.ChanToSlice(atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	))
	if len(out) == 0 {
		return 0, errors.Wrapf(ErrInsufficientData, "ATR(%d) produced no values", period)
	}
	if mid <= 0 {
		return 0, nil
	}
	return out[len(out)-1] / mid, nil
}

func wilderRSI(w domain.CandleWindow, period int) (float64, bool, error) {
	if w.Len() <= period {
		return 0, false, errors.Wrapf(ErrInsufficientData, "RSI(%d) needs %d bars, got %d", period, period+1, w.Len())
	}
	closes := w.Closes()
	if err := validateSeries("close", closes); err != nil {
		return 0, false, err
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	if len(out) == 0 {
		return 0, false, errors.Wrapf(ErrInsufficientData, "RSI(%d) produced no values", period)
	}

	last := out[len(out)-1]
	switch {
	case math.IsNaN(last):
		// 0/0: no gains and no losses
		return rsiMax, true, nil
	case math.IsInf(last, 0):
		return rsiMax, false, nil
	}
	return math.Min(rsiMax, math.Max(0, last)), false, nil
}

func validateOHLC(highs, lows, closes []float64) error {
	for _, s := range []struct {
		name   string
		values []float64
	}{{"high", highs}, {"low", lows}, {"close", closes}} {
		if err := validateSeries(s.name, s.values); err != nil {
			return err
		}
	}
	for i := range highs {
		if highs[i] < lows[i] {
			return errors.Wrapf(domain.ErrCalculation, "bar %d: high %v below low %v", i, highs[i], lows[i])
		}
	}
	return nil
}

func validateSeries(name string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.Wrapf(domain.ErrCalculation, "bar %d: invalid %s %v", i, name, v)
		}
	}
	return nil
}
