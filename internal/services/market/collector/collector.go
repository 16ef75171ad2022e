// Package collector fetches recent klines from exchanges and keeps the shared
// candle window fresh.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

//go:generate mockery --name=KlineProvider --output=../../../../mocks/collector --outpkg=collector

// KlineProvider defines the interface for fetching kline (candlestick) data.
type KlineProvider interface {
	// GetKlines fetches the most recent limit klines of the given interval
	// (e.g. "1m", "5m", "1h"), oldest first.
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Bar, error)
}

// parseInterval converts "1m", "15m", "1h", "1d", "1w" into a duration.
func parseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval format: %s", interval)
	}
	unit := interval[len(interval)-1]
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval number: %s", interval)
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseBar builds a bar from the string fields exchanges return.
func parseBar(openTimeMs, closeTimeMs int64, open, high, low, closePrice, volume string) (domain.Bar, error) {
	fields := []struct {
		name  string
		value string
	}{{"open", open}, {"high", high}, {"low", low}, {"close", closePrice}, {"volume", volume}}

	parsed := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return domain.Bar{}, errors.Wrapf(err, "failed to parse %s price %q", f.name, f.value)
		}
		parsed[i] = d
	}

	bar := domain.Bar{
		OpenTime: time.UnixMilli(openTimeMs),
		Open:     parsed[0],
		High:     parsed[1],
		Low:      parsed[2],
		Close:    parsed[3],
		Volume:   parsed[4],
	}
	if closeTimeMs > 0 {
		bar.CloseTime = time.UnixMilli(closeTimeMs)
	}
	return bar, nil
}

// sortBars orders bars by open time, oldest first.
func sortBars(bars []domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].OpenTime.Before(bars[j].OpenTime)
	})
}

// tail keeps the last limit bars.
func tail(bars []domain.Bar, limit int) []domain.Bar {
	if limit > 0 && len(bars) > limit {
		return bars[len(bars)-limit:]
	}
	return bars
}
