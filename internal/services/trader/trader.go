// Package trader implements the venue gateways the quoter trades through.
package trader

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

// Pricer reads the current mid price of a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// AckPublisher delivers order acknowledgements to the order tracker.
type AckPublisher interface {
	Publish(ev domain.OrderCreatedEvent) int
}

// Precision decimal places used when sending prices and amounts to a venue.
type Precision struct {
	Price  int32
	Amount int32
}

// DefaultPrecision returns 8 price and 4 amount decimals.
func DefaultPrecision() Precision {
	return Precision{Price: 8, Amount: 4}
}

// RoundPrice rounds a price to the configured precision.
func (p Precision) RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(p.Price)
}

// RoundAmount floors an amount so the venue never receives more than requested.
func (p Precision) RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundFloor(p.Amount)
}

// newClientOrderID returns a unique id accepted by every venue (<= 36 chars).
func newClientOrderID() string {
	return "q" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validateRequest checks fields every venue needs and rounds them to the venue precision.
func validateRequest(pair domain.Pair, req domain.OrderRequest, prec Precision) (amount, price decimal.Decimal, err error) {
	if req.Pair != pair {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrExecution, "order for %s sent to %s gateway", req.Pair.String(), pair.String())
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrExecution, "unknown order side %q", req.Side)
	}
	amount = prec.RoundAmount(req.Amount)
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrExecution, "order amount %s rounds to zero", req.Amount.String())
	}
	switch req.Type {
	case domain.OrderTypeMarket:
		return amount, decimal.Zero, nil
	case domain.OrderTypeLimit:
		price = prec.RoundPrice(req.Price)
		if !price.IsPositive() {
			return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrExecution, "limit price %s must be positive", req.Price.String())
		}
		return amount, price, nil
	default:
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrExecution, "unknown order type %q", req.Type)
	}
}

// acknowledger publishes OrderCreatedEvents after successful submissions.
type acknowledger struct {
	acks AckPublisher
	l    *zap.Logger
}

func (a acknowledger) ack(orderID string, req domain.OrderRequest) {
	if a.acks == nil {
		return
	}
	if dropped := a.acks.Publish(domain.NewOrderCreatedEvent(orderID, req, time.Now())); dropped > 0 {
		a.l.Warn("order acknowledgement dropped by slow subscriber",
			zap.String("orderID", orderID), zap.Int("dropped", dropped))
	}
}
