// Package orders tracks the live bid and ask quotes of the market maker.
package orders

import (
	"context"
	"sync"

	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

// Tracker holds at most one live bid and one live ask handle.
// Acknowledgements replace the handle of their side unconditionally;
// a handle is cleared only when the quoting loop takes it for cancellation.
type Tracker struct {
	mu     sync.Mutex
	bid    *domain.OrderHandle
	ask    *domain.OrderHandle
	logger *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// OnBidCreated records the order id of a newly created bid.
func (t *Tracker) OnBidCreated(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bid = &domain.OrderHandle{OrderID: orderID, Side: domain.SideBuy}
}

// OnAskCreated records the order id of a newly created ask.
func (t *Tracker) OnAskCreated(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ask = &domain.OrderHandle{OrderID: orderID, Side: domain.SideSell}
}

// Handles returns copies of the tracked handles, nil when a side is empty.
func (t *Tracker) Handles() (bid, ask *domain.OrderHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyHandle(t.bid), copyHandle(t.ask)
}

// TakeBid returns the bid handle and clears it.
func (t *Tracker) TakeBid() *domain.OrderHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.bid
	t.bid = nil
	return h
}

// TakeAsk returns the ask handle and clears it.
func (t *Tracker) TakeAsk() *domain.OrderHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.ask
	t.ask = nil
	return h
}

// Apply updates the tracker from an acknowledgement. Market orders are not quotes and are ignored.
func (t *Tracker) Apply(ev domain.OrderCreatedEvent) {
	if ev.Type == domain.OrderTypeMarket || ev.OrderID == "" {
		return
	}
	switch ev.Side {
	case domain.SideBuy:
		t.OnBidCreated(ev.OrderID)
	case domain.SideSell:
		t.OnAskCreated(ev.OrderID)
	default:
		t.logger.Warn("acknowledgement with unknown side", zap.String("side", string(ev.Side)), zap.String("orderID", ev.OrderID))
		return
	}
	t.logger.Debug("order acknowledged", zap.String("side", string(ev.Side)), zap.String("orderID", ev.OrderID))
}

// Consume applies acknowledgements until ctx is done or events is closed.
func (t *Tracker) Consume(ctx context.Context, events <-chan domain.OrderCreatedEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			t.Apply(ev)
		}
	}
}

func copyHandle(h *domain.OrderHandle) *domain.OrderHandle {
	if h == nil {
		return nil
	}
	cp := *h
	return &cp
}
