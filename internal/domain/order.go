package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType execution type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// PositionAction tells derivative venues whether the order opens or reduces a position.
type PositionAction string

const (
	PositionActionOpen  PositionAction = "open"
	PositionActionClose PositionAction = "close"
)

// OrderRequest order to be submitted to a venue.
type OrderRequest struct {
	Pair   Pair
	Side   Side
	Type   OrderType
	Amount decimal.Decimal
	// Price is ignored for market orders.
	Price          decimal.Decimal
	PositionAction PositionAction
}

// String returns a human-readable string representation.
func (r OrderRequest) String() string {
	if r.Type == OrderTypeMarket {
		return fmt.Sprintf("%s %s %s amount: %s", r.Pair.String(), r.Type, r.Side, r.Amount.String())
	}
	return fmt.Sprintf("%s %s %s amount: %s price: %s", r.Pair.String(), r.Type, r.Side, r.Amount.String(), r.Price.String())
}

// OrderHandle identifier of a live quote on one side of the book.
type OrderHandle struct {
	OrderID string
	Side    Side
}

// OrderCreatedEvent acknowledgement that the venue accepted an order.
type OrderCreatedEvent struct {
	OrderID string
	Side    Side
	Type    OrderType
	Pair    Pair
	Amount  decimal.Decimal
	Price   decimal.Decimal
	Time    time.Time
}

// NewOrderCreatedEvent builds an acknowledgement for the submitted request.
func NewOrderCreatedEvent(orderID string, req OrderRequest, at time.Time) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID: orderID,
		Side:    req.Side,
		Type:    req.Type,
		Pair:    req.Pair,
		Amount:  req.Amount,
		Price:   req.Price,
		Time:    at,
	}
}
