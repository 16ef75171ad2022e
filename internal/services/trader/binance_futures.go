package trader

import (
	"context"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

// BinanceFuturesTrader USDⓈ-M perpetual gateway (one-way position mode).
// The base balance is the signed position size of the pair.
type BinanceFuturesTrader struct {
	client *futures.Client
	pair   domain.Pair
	pricer Pricer
	prec   Precision
	acknowledger
}

func NewBinanceFuturesTrader(client *futures.Client, pair domain.Pair, pricer Pricer, prec Precision,
	acks AckPublisher, l *zap.Logger) (*BinanceFuturesTrader, error) {
	if client == nil || pricer == nil {
		return nil, errors.New("binance futures trader needs a client and a pricer")
	}
	return &BinanceFuturesTrader{
		client:       client,
		pair:         pair,
		pricer:       pricer,
		prec:         prec,
		acknowledger: acknowledger{acks: acks, l: l},
	}, nil
}

func (t *BinanceFuturesTrader) IsReady(ctx context.Context) bool {
	return t.client.NewPingService().Do(ctx) == nil
}

func (t *BinanceFuturesTrader) GetMidPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

// GetBalance returns the position size for the base asset and the available margin for other assets.
func (t *BinanceFuturesTrader) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if currency == t.pair.From {
		return t.positionSize(ctx)
	}

	balances, err := t.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get binance futures balance")
	}
	for _, b := range balances {
		if b.Asset == currency {
			available, err := decimal.NewFromString(b.AvailableBalance)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "failed to parse futures balance")
			}
			return available, nil
		}
	}
	return decimal.Zero, nil
}

func (t *BinanceFuturesTrader) positionSize(ctx context.Context) (decimal.Decimal, error) {
	risks, err := t.client.NewGetPositionRiskService().Symbol(t.pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get binance futures position")
	}
	size := decimal.Zero
	for _, r := range risks {
		amt, err := decimal.NewFromString(r.PositionAmt)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "failed to parse position amount")
		}
		size = size.Add(amt)
	}
	return size, nil
}

func (t *BinanceFuturesTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	amount, price, err := validateRequest(t.pair, req, t.prec)
	if err != nil {
		return "", err
	}

	side := futures.SideTypeBuy
	if req.Side == domain.SideSell {
		side = futures.SideTypeSell
	}

	clientOrderID := newClientOrderID()
	svc := t.client.NewCreateOrderService().Symbol(t.pair.Symbol()).
		Side(side).
		Quantity(amount.String()).
		NewClientOrderID(clientOrderID)
	if req.PositionAction == domain.PositionActionClose {
		svc = svc.ReduceOnly(true)
	}
	if req.Type == domain.OrderTypeLimit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(price.String())
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	if _, err := svc.Do(ctx); err != nil {
		return "", errors.Wrapf(domain.ErrExecution, "binance futures %s: %v", req.String(), err)
	}

	t.ack(clientOrderID, req)
	return clientOrderID, nil
}

func (t *BinanceFuturesTrader) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	_, err := t.client.NewCancelOrderService().
		Symbol(pair.Symbol()).
		OrigClientOrderID(orderID).
		Do(ctx)
	if err != nil {
		if isBinanceOrderGone(err) {
			return nil
		}
		return errors.Wrapf(domain.ErrExecution, "binance futures cancel %s: %v", orderID, err)
	}
	return nil
}
