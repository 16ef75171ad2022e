package trader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

const (
	// hyperliquid accepts at most 5 significant figures in prices
	hyperliquidPriceSigFigs = 5
	hyperliquidSlippage     = 0.005
)

// HyperliquidTrader gateway for Hyperliquid spot and perpetuals. Orders are tracked by cloid.
type HyperliquidTrader struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
	pair        domain.Pair
	marketType  domain.MarketType
	pricer      Pricer
	prec        Precision
	acknowledger
}

func NewHyperliquidTrader(ex *hyperliquid.Exchange, accountAddr string, pair domain.Pair, marketType domain.MarketType,
	pricer Pricer, prec Precision, acks AckPublisher, l *zap.Logger) (*HyperliquidTrader, error) {
	if ex == nil {
		return nil, fmt.Errorf("hyperliquid exchange is nil")
	}
	if pricer == nil {
		return nil, fmt.Errorf("hyperliquid trader needs a pricer")
	}
	return &HyperliquidTrader{
		ex:           ex,
		info:         ex.Info(),
		accountAddr:  accountAddr,
		pair:         pair,
		marketType:   marketType,
		pricer:       pricer,
		prec:         prec,
		acknowledger: acknowledger{acks: acks, l: l},
	}, nil
}

// cloidFromID converts a free-form client ID into a valid Hyperliquid cloid (0x + 32 hex chars).
func cloidFromID(id string) string {
	s := strings.TrimSpace(id)
	if s == "" {
		s = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256([]byte(s))
	// first 16 bytes -> 32 hex chars
	return "0x" + hex.EncodeToString(sum[:16])
}

// roundSigFigs rounds a price to n significant figures.
func roundSigFigs(price float64, n int) float64 {
	if price <= 0 {
		return 0
	}
	exp := int(math.Floor(math.Log10(price))) + 1
	return decimal.NewFromFloat(price).Round(int32(n - exp)).InexactFloat64()
}

// IsReady reports whether a mid price for the coin is published.
func (t *HyperliquidTrader) IsReady(ctx context.Context) bool {
	_, err := t.pricer.GetPrice(ctx, t.pair)
	return err == nil
}

func (t *HyperliquidTrader) GetMidPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return t.pricer.GetPrice(ctx, pair)
}

// GetBalance returns spot totals, or the perp position size and account value for perpetuals.
func (t *HyperliquidTrader) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if t.marketType == domain.MarketTypePerpetual {
		st, err := t.info.UserState(ctx, t.accountAddr)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "get user state")
		}

		if strings.EqualFold(currency, t.pair.From) {
			for _, ap := range st.AssetPositions {
				if !strings.EqualFold(ap.Position.Coin, t.pair.From) {
					continue
				}
				szi := strings.TrimSpace(ap.Position.Szi)
				if szi == "" {
					return decimal.Zero, nil
				}
				size, err := decimal.NewFromString(szi)
				if err != nil {
					return decimal.Zero, errors.Wrap(err, "parse position size")
				}
				return size, nil
			}
			return decimal.Zero, nil
		}

		// try TotalRawUsd, fallback to Withdrawable
		if st.MarginSummary.TotalRawUsd != "" {
			if d, err := decimal.NewFromString(st.MarginSummary.TotalRawUsd); err == nil {
				return d, nil
			}
		}
		if st.Withdrawable != "" {
			if d, err := decimal.NewFromString(st.Withdrawable); err == nil {
				return d, nil
			}
		}
		return decimal.Zero, nil
	}

	st, err := t.info.SpotUserState(ctx, t.accountAddr)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get spot user state")
	}
	for _, b := range st.Balances {
		if strings.EqualFold(b.Coin, currency) {
			d, err := decimal.NewFromString(b.Total)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "parse spot balance")
			}
			return d, nil
		}
	}
	return decimal.Zero, nil
}

func (t *HyperliquidTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	amount, price, err := validateRequest(t.pair, req, t.prec)
	if err != nil {
		return "", err
	}

	isBuy := req.Side == domain.SideBuy
	size := amount.InexactFloat64()
	coin := strings.ToUpper(t.pair.From)

	var (
		px  float64
		tif = hyperliquid.TifGtc
	)
	if req.Type == domain.OrderTypeMarket {
		// emulate a market order with an IOC limit a little through the book
		px, err = t.ex.SlippagePrice(ctx, coin, isBuy, hyperliquidSlippage, nil)
		if err != nil {
			return "", errors.Wrapf(domain.ErrExecution, "hyperliquid slippage price: %v", err)
		}
		tif = hyperliquid.TifIoc
	} else {
		px = roundSigFigs(price.InexactFloat64(), hyperliquidPriceSigFigs)
	}

	clientOrderID := newClientOrderID()
	cloid := cloidFromID(clientOrderID)
	order := hyperliquid.CreateOrderRequest{
		Coin:          coin,
		IsBuy:         isBuy,
		Price:         px,
		Size:          size,
		ReduceOnly:    t.marketType == domain.MarketTypePerpetual && req.PositionAction == domain.PositionActionClose,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: tif},
		},
	}

	if _, err := t.ex.Order(ctx, order, nil); err != nil {
		return "", errors.Wrapf(domain.ErrExecution, "hyperliquid %s: %v", req.String(), err)
	}

	t.ack(cloid, req)
	return cloid, nil
}

// CancelOrder looks the order up by cloid and cancels it if it is still resting.
func (t *HyperliquidTrader) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	res, err := t.info.QueryOrderByCloid(ctx, t.accountAddr, orderID)
	if err != nil {
		return errors.Wrapf(domain.ErrExecution, "hyperliquid query %s: %v", orderID, err)
	}
	if res == nil || res.Status != hyperliquid.OrderQueryStatusSuccess {
		return nil
	}
	if res.Order.Status != hyperliquid.OrderStatusValueOpen {
		return nil
	}

	cancels := []hyperliquid.CancelOrderRequest{{
		Coin:    strings.ToUpper(pair.From),
		OrderID: res.Order.Order.Oid,
	}}
	if _, err := t.ex.BulkCancel(ctx, cancels); err != nil {
		return errors.Wrapf(domain.ErrExecution, "hyperliquid cancel %s: %v", orderID, err)
	}
	return nil
}
