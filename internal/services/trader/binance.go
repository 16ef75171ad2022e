package trader

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

// binance error codes for orders that are already gone
const (
	binanceCodeCancelRejected = -2011
	binanceCodeNoSuchOrder    = -2013
)

// BinanceTrader spot gateway. Orders are tracked by client order id.
type BinanceTrader struct {
	client *binance.Client
	pair   domain.Pair
	pricer Pricer
	prec   Precision
	acknowledger
}

func NewBinanceTrader(client *binance.Client, pair domain.Pair, pricer Pricer, prec Precision,
	acks AckPublisher, l *zap.Logger) (*BinanceTrader, error) {
	if client == nil || pricer == nil {
		return nil, errors.New("binance trader needs a client and a pricer")
	}
	return &BinanceTrader{
		client:       client,
		pair:         pair,
		pricer:       pricer,
		prec:         prec,
		acknowledger: acknowledger{acks: acks, l: l},
	}, nil
}

// IsReady pings the REST API.
func (t *BinanceTrader) IsReady(ctx context.Context) bool {
	return t.client.NewPingService().Do(ctx) == nil
}

func (t *BinanceTrader) GetMidPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

// GetBalance returns the free balance of the asset.
func (t *BinanceTrader) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	account, err := t.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get binance account balance")
	}

	for _, balance := range account.Balances {
		if balance.Asset == currency {
			free, err := decimal.NewFromString(balance.Free)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "failed to parse balance")
			}
			return free, nil
		}
	}

	return decimal.Zero, nil
}

func (t *BinanceTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	amount, price, err := validateRequest(t.pair, req, t.prec)
	if err != nil {
		return "", err
	}

	side := binance.SideTypeBuy
	if req.Side == domain.SideSell {
		side = binance.SideTypeSell
	}

	clientOrderID := newClientOrderID()
	svc := t.client.NewCreateOrderService().Symbol(t.pair.Symbol()).
		Side(side).
		Quantity(amount.String()).
		NewClientOrderID(clientOrderID)
	if req.Type == domain.OrderTypeLimit {
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(price.String())
	} else {
		svc = svc.Type(binance.OrderTypeMarket)
	}

	if _, err := svc.Do(ctx); err != nil {
		return "", errors.Wrapf(domain.ErrExecution, "binance %s: %v", req.String(), err)
	}

	t.ack(clientOrderID, req)
	return clientOrderID, nil
}

// CancelOrder cancels by client order id. Orders that are already filled or gone count as cancelled.
func (t *BinanceTrader) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	_, err := t.client.NewCancelOrderService().
		Symbol(pair.Symbol()).
		OrigClientOrderID(orderID).
		Do(ctx)
	if err != nil {
		if isBinanceOrderGone(err) {
			return nil
		}
		return errors.Wrapf(domain.ErrExecution, "binance cancel %s: %v", orderID, err)
	}
	return nil
}

func isBinanceOrderGone(err error) bool {
	if apiErr, ok := err.(*common.APIError); ok {
		return apiErr.Code == binanceCodeCancelRejected || apiErr.Code == binanceCodeNoSuchOrder
	}
	return false
}
