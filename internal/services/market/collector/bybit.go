package collector

import (
	"context"
	"fmt"
	"strconv"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/quoter/internal/domain"
)

// bybitMaxKlines is the page size limit of the V5 kline endpoint.
const bybitMaxKlines = 1000

// BybitKlineProvider implements KlineProvider for Bybit exchange.
type BybitKlineProvider struct {
	client   *bybit.Client
	category bybit.CategoryV5
}

// NewBybitKlineProvider creates a new Bybit kline provider for the given market type.
func NewBybitKlineProvider(client *bybit.Client, marketType domain.MarketType) *BybitKlineProvider {
	category := bybit.CategoryV5Spot
	if marketType == domain.MarketTypePerpetual {
		category = bybit.CategoryV5Linear
	}
	return &BybitKlineProvider{client: client, category: category}
}

// GetKlines fetches kline data.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > bybitMaxKlines {
		limit = bybitMaxKlines
	}

	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}

	result, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: p.category,
		Symbol:   bybit.SymbolV5(pair.Symbol()),
		Interval: bybit.Interval(bybitInterval),
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", pair.String())
	}
	if result == nil || len(result.Result.List) == 0 {
		return nil, errors.Errorf("no kline data returned from Bybit for %s", pair.String())
	}

	dur, err := parseInterval(interval)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(result.Result.List))
	for i, k := range result.Result.List {
		openMs, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		// bybit does not return close time
		closeMs := openMs + dur.Milliseconds() - 1
		bar, err := parseBar(openMs, closeMs, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		bars = append(bars, bar)
	}
	// bybit lists newest first
	sortBars(bars)

	return bars, nil
}

// convertIntervalToBybit converts standard interval format to Bybit format.
// Standard format: "1m", "5m", "15m", "1h", "4h", "1d", etc.
// Bybit format: "1", "5", "15", "60", "240", "D", etc.
func convertIntervalToBybit(interval string) (string, error) {
	dur, err := parseInterval(interval)
	if err != nil {
		return "", err
	}

	switch interval[len(interval)-1] {
	case 'm', 'h':
		return fmt.Sprintf("%d", int64(dur.Minutes())), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", fmt.Errorf("unsupported interval unit: %c", interval[len(interval)-1])
	}
}
