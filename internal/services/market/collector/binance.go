package collector

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/quoter/internal/domain"
)

// BinanceKlineProvider implements KlineProvider for Binance spot.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Bar, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair.String())
	}

	result := make([]domain.Bar, len(klines))
	for i, k := range klines {
		bar, err := parseBar(k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		result[i] = bar
	}
	sortBars(result)

	return result, nil
}

// BinanceFuturesKlineProvider implements KlineProvider for Binance USDⓈ-M perpetuals.
type BinanceFuturesKlineProvider struct {
	client *futures.Client
}

// NewBinanceFuturesKlineProvider creates a new Binance futures kline provider.
func NewBinanceFuturesKlineProvider(client *futures.Client) *BinanceFuturesKlineProvider {
	return &BinanceFuturesKlineProvider{client: client}
}

// GetKlines fetches kline data from Binance futures.
func (p *BinanceFuturesKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Bar, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch futures klines from Binance for %s", pair.String())
	}

	result := make([]domain.Bar, len(klines))
	for i, k := range klines {
		bar, err := parseBar(k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "futures kline at index %d", i)
		}
		result[i] = bar
	}
	sortBars(result)

	return result, nil
}
