package trader

import (
	"context"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

// bybit spot market buys are sized in the quote coin
const bybitQuotePrecision = 4

// BybitTrader V5 gateway for the unified trading account. Orders are tracked by orderLinkId.
type BybitTrader struct {
	client     *bybit.Client
	pair       domain.Pair
	marketType domain.MarketType
	category   bybit.CategoryV5
	pricer     Pricer
	prec       Precision
	acknowledger
}

func NewBybitTrader(client *bybit.Client, pair domain.Pair, marketType domain.MarketType, pricer Pricer,
	prec Precision, acks AckPublisher, l *zap.Logger) (*BybitTrader, error) {
	if client == nil || pricer == nil {
		return nil, errors.New("bybit trader needs a client and a pricer")
	}
	category := bybit.CategoryV5Spot
	if marketType == domain.MarketTypePerpetual {
		category = bybit.CategoryV5Linear
	}
	return &BybitTrader{
		client:       client,
		pair:         pair,
		marketType:   marketType,
		category:     category,
		pricer:       pricer,
		prec:         prec,
		acknowledger: acknowledger{acks: acks, l: l},
	}, nil
}

// IsReady reports whether the ticker of the pair can be read.
func (t *BybitTrader) IsReady(ctx context.Context) bool {
	_, err := t.pricer.GetPrice(ctx, t.pair)
	return err == nil
}

func (t *BybitTrader) GetMidPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

// GetBalance returns the wallet balance of the coin in the unified account.
// On linear perpetuals the base coin reports the signed position size instead.
func (t *BybitTrader) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if t.category == bybit.CategoryV5Linear && strings.EqualFold(currency, t.pair.From) {
		return t.positionSize()
	}

	res, err := t.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get bybit wallet balance")
	}
	if len(res.Result.List) == 0 {
		return decimal.Zero, nil
	}

	for _, coin := range res.Result.List[0].Coin {
		if strings.EqualFold(string(coin.Coin), currency) {
			if coin.WalletBalance == "" {
				return decimal.Zero, nil
			}
			balance, err := decimal.NewFromString(coin.WalletBalance)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "failed to parse bybit balance")
			}
			return balance, nil
		}
	}
	return decimal.Zero, nil
}

func (t *BybitTrader) positionSize() (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(t.pair.Symbol())
	res, err := t.client.V5().Position().GetPositionInfo(bybit.V5GetPositionInfoParam{
		Category: t.category,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get bybit position")
	}
	return signedPositionSize(res.Result.List)
}

// signedPositionSize sums position sizes, shorts negative.
func signedPositionSize(positions bybit.V5GetPositionInfoList) (decimal.Decimal, error) {
	size := decimal.Zero
	for _, p := range positions {
		if p.Size == "" {
			continue
		}
		amt, err := decimal.NewFromString(p.Size)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "failed to parse position size %q", p.Size)
		}
		if p.Side == bybit.SideSell {
			amt = amt.Neg()
		}
		size = size.Add(amt)
	}
	return size, nil
}

func (t *BybitTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	amount, price, err := validateRequest(t.pair, req, t.prec)
	if err != nil {
		return "", err
	}

	side := bybit.SideBuy
	if req.Side == domain.SideSell {
		side = bybit.SideSell
	}

	qty := amount
	if req.Type == domain.OrderTypeMarket && req.Side == domain.SideBuy && t.category == bybit.CategoryV5Spot {
		mid, err := t.pricer.GetPrice(ctx, t.pair)
		if err != nil {
			return "", errors.Wrapf(domain.ErrExecution, "bybit market buy needs a price: %v", err)
		}
		qty = amount.Mul(mid).RoundFloor(bybitQuotePrecision)
	}

	orderLinkID := newClientOrderID()
	param := bybit.V5CreateOrderParam{
		Category:    t.category,
		Symbol:      bybit.SymbolV5(t.pair.Symbol()),
		Side:        side,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         qty.String(),
		OrderLinkID: &orderLinkID,
	}
	if req.Type == domain.OrderTypeLimit {
		p := price.String()
		param.OrderType = bybit.OrderTypeLimit
		param.Price = &p
	}
	if req.PositionAction == domain.PositionActionClose && t.category == bybit.CategoryV5Linear {
		reduceOnly := true
		param.ReduceOnly = &reduceOnly
	}

	if _, err := t.client.V5().Order().CreateOrder(param); err != nil {
		return "", errors.Wrapf(domain.ErrExecution, "bybit %s: %v", req.String(), err)
	}

	t.ack(orderLinkID, req)
	return orderLinkID, nil
}

func (t *BybitTrader) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	id := orderID
	_, err := t.client.V5().Order().CancelOrder(bybit.V5CancelOrderParam{
		Category:    t.category,
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		OrderLinkID: &id,
	})
	if err != nil {
		if isBybitOrderGone(err) {
			return nil
		}
		return errors.Wrapf(domain.ErrExecution, "bybit cancel %s: %v", orderID, err)
	}
	return nil
}

// bybit reports filled or unknown orders with retCode 110001 ("order not exists or too late to cancel")
func isBybitOrderGone(err error) bool {
	return strings.Contains(err.Error(), "110001") || strings.Contains(strings.ToLower(err.Error()), "order not exists")
}
