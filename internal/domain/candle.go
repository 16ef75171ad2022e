package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Bar single OHLCV candlestick.
type Bar struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// CandleWindow rolling, time-ordered window of bars with the newest bar at the tail.
type CandleWindow struct {
	Bars      []Bar
	FetchedAt time.Time
}

// NewCandleWindow copies bars into a new window.
func NewCandleWindow(bars []Bar, fetchedAt time.Time) CandleWindow {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return CandleWindow{Bars: cp, FetchedAt: fetchedAt}
}

// Len returns the number of bars.
func (w CandleWindow) Len() int {
	return len(w.Bars)
}

// Ready reports whether the window holds at least min bars.
func (w CandleWindow) Ready(min int) bool {
	return len(w.Bars) >= min
}

// Last returns up to n most recent bars, oldest first.
func (w CandleWindow) Last(n int) []Bar {
	if n <= 0 {
		return nil
	}
	if n > len(w.Bars) {
		n = len(w.Bars)
	}
	return w.Bars[len(w.Bars)-n:]
}

// Latest returns the newest bar.
func (w CandleWindow) Latest() (Bar, bool) {
	if len(w.Bars) == 0 {
		return Bar{}, false
	}
	return w.Bars[len(w.Bars)-1], true
}

// Validate checks that bars are strictly ordered by open time and do not overlap.
func (w CandleWindow) Validate() error {
	for i := 1; i < len(w.Bars); i++ {
		prev, cur := w.Bars[i-1], w.Bars[i]
		if !cur.OpenTime.After(prev.OpenTime) {
			return errors.Errorf("bar %d opens at %s, not after previous bar at %s", i, cur.OpenTime, prev.OpenTime)
		}
		if !prev.CloseTime.IsZero() && prev.CloseTime.After(cur.OpenTime) {
			return errors.Errorf("bar %d overlaps previous bar", i)
		}
	}
	return nil
}

// Highs returns high prices as float64.
func (w CandleWindow) Highs() []float64 {
	return w.series(func(b Bar) decimal.Decimal { return b.High })
}

// Lows returns low prices as float64.
func (w CandleWindow) Lows() []float64 {
	return w.series(func(b Bar) decimal.Decimal { return b.Low })
}

// Closes returns close prices as float64.
func (w CandleWindow) Closes() []float64 {
	return w.series(func(b Bar) decimal.Decimal { return b.Close })
}

func (w CandleWindow) series(field func(Bar) decimal.Decimal) []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i], _ = field(b).Float64()
	}
	return out
}
