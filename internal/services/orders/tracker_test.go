package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/quoter/internal/domain"
	"go.uber.org/zap"
)

func TestTracker_ReplaceUnconditionally(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	bid, ask := tr.Handles()
	assert.Nil(t, bid)
	assert.Nil(t, ask)

	tr.OnBidCreated("b1")
	tr.OnBidCreated("b2")
	tr.OnAskCreated("a1")

	bid, ask = tr.Handles()
	require.NotNil(t, bid)
	require.NotNil(t, ask)
	assert.Equal(t, domain.OrderHandle{OrderID: "b2", Side: domain.SideBuy}, *bid)
	assert.Equal(t, domain.OrderHandle{OrderID: "a1", Side: domain.SideSell}, *ask)
}

func TestTracker_TakeClears(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.OnBidCreated("b1")
	tr.OnAskCreated("a1")

	h := tr.TakeBid()
	require.NotNil(t, h)
	assert.Equal(t, "b1", h.OrderID)
	assert.Nil(t, tr.TakeBid())

	h = tr.TakeAsk()
	require.NotNil(t, h)
	assert.Equal(t, "a1", h.OrderID)
	assert.Nil(t, tr.TakeAsk())
}

func TestTracker_HandlesReturnsCopies(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.OnBidCreated("b1")

	bid, _ := tr.Handles()
	bid.OrderID = "mutated"

	bid, _ = tr.Handles()
	assert.Equal(t, "b1", bid.OrderID)
}

func TestTracker_Apply(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.OrderCreatedEvent
		wantBid string
		wantAsk string
	}{
		{
			name:    "limit buy becomes bid",
			event:   domain.OrderCreatedEvent{OrderID: "1", Side: domain.SideBuy, Type: domain.OrderTypeLimit},
			wantBid: "1",
		},
		{
			name:    "limit sell becomes ask",
			event:   domain.OrderCreatedEvent{OrderID: "2", Side: domain.SideSell, Type: domain.OrderTypeLimit},
			wantAsk: "2",
		},
		{
			name:  "market buy ignored",
			event: domain.OrderCreatedEvent{OrderID: "3", Side: domain.SideBuy, Type: domain.OrderTypeMarket},
		},
		{
			name:  "unknown side ignored",
			event: domain.OrderCreatedEvent{OrderID: "4", Side: "hold", Type: domain.OrderTypeLimit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(zap.NewNop())
			tr.Apply(tt.event)
			bid, ask := tr.Handles()
			if tt.wantBid == "" {
				assert.Nil(t, bid)
			} else {
				require.NotNil(t, bid)
				assert.Equal(t, tt.wantBid, bid.OrderID)
			}
			if tt.wantAsk == "" {
				assert.Nil(t, ask)
			} else {
				require.NotNil(t, ask)
				assert.Equal(t, tt.wantAsk, ask.OrderID)
			}
		})
	}
}

func TestTracker_Consume(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	events := make(chan domain.OrderCreatedEvent, 2)
	events <- domain.OrderCreatedEvent{OrderID: "b1", Side: domain.SideBuy, Type: domain.OrderTypeLimit}
	events <- domain.OrderCreatedEvent{OrderID: "a1", Side: domain.SideSell, Type: domain.OrderTypeLimit}
	close(events)

	require.NoError(t, tr.Consume(context.Background(), events))

	bid, ask := tr.Handles()
	require.NotNil(t, bid)
	require.NotNil(t, ask)
	assert.Equal(t, "b1", bid.OrderID)
	assert.Equal(t, "a1", ask.OrderID)
}

func TestTracker_ConsumeStopsOnCancel(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- tr.Consume(ctx, make(chan domain.OrderCreatedEvent))
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop")
	}
}

func TestTracker_ConcurrentUpdatesAndTakes(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			tr.OnBidCreated(fmt.Sprintf("b%d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			tr.OnAskCreated(fmt.Sprintf("a%d", i))
		}(i)
		go func() {
			defer wg.Done()
			if h := tr.TakeBid(); h != nil {
				assert.Equal(t, domain.SideBuy, h.Side)
			}
		}()
	}
	wg.Wait()

	_, ask := tr.Handles()
	require.NotNil(t, ask)
	assert.Equal(t, domain.SideSell, ask.Side)
}
