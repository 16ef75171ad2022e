package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

// BinancePricer reads the spot book ticker. Works with an unauthenticated client.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// GetPrice returns the mid of the best bid and ask.
func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	tickers, err := p.client.NewListBookTickersService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance book ticker for %s", pair.String())
	}
	if len(tickers) == 0 {
		return decimal.Zero, fmt.Errorf("binance API returned empty book ticker for %s", pair.String())
	}
	return Mid(tickers[0].BidPrice, tickers[0].AskPrice)
}

// BinanceFuturesPricer reads the USDⓈ-M futures book ticker.
type BinanceFuturesPricer struct {
	client *futures.Client
}

func NewBinanceFuturesPricer(client *futures.Client) *BinanceFuturesPricer {
	return &BinanceFuturesPricer{client: client}
}

// GetPrice returns the mid of the best bid and ask.
func (p *BinanceFuturesPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	tickers, err := p.client.NewListBookTickersService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance futures book ticker for %s", pair.String())
	}
	if len(tickers) == 0 {
		return decimal.Zero, fmt.Errorf("binance futures API returned empty book ticker for %s", pair.String())
	}
	return Mid(tickers[0].BidPrice, tickers[0].AskPrice)
}
