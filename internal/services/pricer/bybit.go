package pricer

import (
	"context"
	"fmt"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

type BybitPricer struct {
	client   *bybit.Client
	category bybit.CategoryV5
}

// NewBybitPricer creates a pricer for spot or linear perpetual tickers.
func NewBybitPricer(client *bybit.Client, marketType domain.MarketType) *BybitPricer {
	category := bybit.CategoryV5Spot
	if marketType == domain.MarketTypePerpetual {
		category = bybit.CategoryV5Linear
	}
	return &BybitPricer{client: client, category: category}
}

// GetPrice returns the mid of the best bid and ask.
func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: p.category,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit tickers for %s", pair.String())
	}

	if p.category == bybit.CategoryV5Spot {
		if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
			return decimal.Zero, fmt.Errorf("bybit API returned empty prices for %s", pair.String())
		}
		item := result.Result.Spot.List[0]
		return Mid(item.Bid1Price, item.Ask1Price)
	}

	if result.Result.LinearInverse == nil || len(result.Result.LinearInverse.List) == 0 {
		return decimal.Zero, fmt.Errorf("bybit API returned empty prices for %s", pair.String())
	}
	item := result.Result.LinearInverse.List[0]
	return Mid(item.Bid1Price, item.Ask1Price)
}
