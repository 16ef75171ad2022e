package trader

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/storage/simstate"
	"go.uber.org/zap"
)

// mockPricer is a simple mock for the Pricer interface.
type mockPricer struct {
	price decimal.Decimal
}

func (m *mockPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return m.price, nil
}

type recordingAcks struct {
	events []domain.OrderCreatedEvent
}

func (r *recordingAcks) Publish(ev domain.OrderCreatedEvent) int {
	r.events = append(r.events, ev)
	return 0
}

var simPair = domain.Pair{From: "BTC", To: "USDT"}

func newTestSimulateTrader(t *testing.T, pricer *mockPricer, store *simstate.Store, acks AckPublisher) *SimulateTrader {
	t.Helper()
	trader, err := NewSimulateTrader(simPair, pricer, store, DefaultPrecision(), acks, zap.NewNop())
	require.NoError(t, err)
	return trader
}

func limitReq(side domain.Side, amount, price string) domain.OrderRequest {
	return domain.OrderRequest{
		Pair:   simPair,
		Side:   side,
		Type:   domain.OrderTypeLimit,
		Amount: decimal.RequireFromString(amount),
		Price:  decimal.RequireFromString(price),
	}
}

func marketReq(side domain.Side, amount string) domain.OrderRequest {
	return domain.OrderRequest{
		Pair:   simPair,
		Side:   side,
		Type:   domain.OrderTypeMarket,
		Amount: decimal.RequireFromString(amount),
	}
}

func balances(t *testing.T, trader *SimulateTrader) (base, quote decimal.Decimal) {
	t.Helper()
	base, err := trader.GetBalance(context.Background(), "BTC")
	require.NoError(t, err)
	quote, err = trader.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	return base, quote
}

func TestSimulateTrader_NewSimulateTrader(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(50000)}
	trader := newTestSimulateTrader(t, pricer, nil, nil)
	assert.NotNil(t, trader.pricer)
	assert.True(t, trader.IsReady(context.Background()))

	// check initial balances
	base, quote := balances(t, trader)
	assert.True(t, base.Equal(decimal.Zero))
	assert.True(t, quote.Equal(decimal.NewFromInt(10000)))

	_, err := NewSimulateTrader(simPair, nil, nil, DefaultPrecision(), nil, zap.NewNop())
	require.Error(t, err)
}

func TestSimulateTrader_MarketBuy(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(50000)}
	acks := &recordingAcks{}
	trader := newTestSimulateTrader(t, pricer, nil, acks)

	id, err := trader.SubmitOrder(context.Background(), marketReq(domain.SideBuy, "0.1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	base, quote := balances(t, trader)
	assert.True(t, base.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, quote.Equal(decimal.NewFromInt(5000)), quote.String()) // 10000 - 0.1*50000

	require.Len(t, acks.events, 1)
	assert.Equal(t, id, acks.events[0].OrderID)
	assert.Equal(t, domain.OrderTypeMarket, acks.events[0].Type)
	assert.Empty(t, trader.openOrders())
}

func TestSimulateTrader_InsufficientBalance(t *testing.T) {
	tests := []struct {
		name string
		req  domain.OrderRequest
	}{
		{name: "market sell without base", req: marketReq(domain.SideSell, "1")},
		{name: "market buy over budget", req: marketReq(domain.SideBuy, "0.3")}, // 15000 > 10000
		{name: "resting bid over budget", req: limitReq(domain.SideBuy, "1", "40000")},
		{name: "resting ask without base", req: limitReq(domain.SideSell, "1", "60000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acks := &recordingAcks{}
			trader := newTestSimulateTrader(t, &mockPricer{price: decimal.NewFromInt(50000)}, nil, acks)

			_, err := trader.SubmitOrder(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExecution)
			assert.Contains(t, err.Error(), "insufficient")
			assert.Empty(t, acks.events)

			base, quote := balances(t, trader)
			assert.True(t, base.IsZero())
			assert.True(t, quote.Equal(decimal.NewFromInt(10000)))
		})
	}
}

func TestSimulateTrader_RestingBidReservesAndFills(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(100)}
	trader := newTestSimulateTrader(t, pricer, nil, nil)
	ctx := context.Background()

	id, err := trader.SubmitOrder(ctx, limitReq(domain.SideBuy, "10", "99"))
	require.NoError(t, err)
	assert.Equal(t, []string{id}, trader.openOrders())

	base, quote := balances(t, trader)
	assert.True(t, base.IsZero())
	assert.True(t, quote.Equal(decimal.NewFromInt(9010)), quote.String()) // 990 reserved

	// mid above the bid: still resting
	pricer.price = decimal.NewFromInt(100)
	_, err = trader.GetMidPrice(ctx, simPair)
	require.NoError(t, err)
	assert.Len(t, trader.openOrders(), 1)

	// mid trades through the bid: filled at the bid price
	pricer.price = decimal.NewFromInt(98)
	mid, err := trader.GetMidPrice(ctx, simPair)
	require.NoError(t, err)
	assert.True(t, mid.Equal(decimal.NewFromInt(98)))
	assert.Empty(t, trader.openOrders())

	base, quote = balances(t, trader)
	assert.True(t, base.Equal(decimal.NewFromInt(10)))
	assert.True(t, quote.Equal(decimal.NewFromInt(9010)))

	// cancelling a filled order is a no-op
	require.NoError(t, trader.CancelOrder(ctx, simPair, id))
}

func TestSimulateTrader_RestingAskFills(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(100)}
	trader := newTestSimulateTrader(t, pricer, nil, nil)
	ctx := context.Background()

	_, err := trader.SubmitOrder(ctx, marketReq(domain.SideBuy, "5"))
	require.NoError(t, err)

	_, err = trader.SubmitOrder(ctx, limitReq(domain.SideSell, "2", "101"))
	require.NoError(t, err)

	base, quote := balances(t, trader)
	assert.True(t, base.Equal(decimal.NewFromInt(3)))
	assert.True(t, quote.Equal(decimal.NewFromInt(9500)))

	pricer.price = decimal.NewFromInt(102)
	_, err = trader.GetMidPrice(ctx, simPair)
	require.NoError(t, err)

	base, quote = balances(t, trader)
	assert.True(t, base.Equal(decimal.NewFromInt(3)))
	assert.True(t, quote.Equal(decimal.NewFromInt(9702)), quote.String()) // 9500 + 2*101
}

func TestSimulateTrader_CrossingLimitFillsAtMid(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(100)}
	trader := newTestSimulateTrader(t, pricer, nil, nil)

	// a bid above the mid fills immediately at the mid
	_, err := trader.SubmitOrder(context.Background(), limitReq(domain.SideBuy, "1", "101"))
	require.NoError(t, err)
	assert.Empty(t, trader.openOrders())

	base, quote := balances(t, trader)
	assert.True(t, base.Equal(decimal.NewFromInt(1)))
	assert.True(t, quote.Equal(decimal.NewFromInt(9900)))
}

func TestSimulateTrader_CancelReleasesReservation(t *testing.T) {
	pricer := &mockPricer{price: decimal.NewFromInt(100)}
	trader := newTestSimulateTrader(t, pricer, nil, nil)
	ctx := context.Background()

	id, err := trader.SubmitOrder(ctx, limitReq(domain.SideBuy, "10", "99"))
	require.NoError(t, err)

	require.NoError(t, trader.CancelOrder(ctx, simPair, id))
	assert.Empty(t, trader.openOrders())

	_, quote := balances(t, trader)
	assert.True(t, quote.Equal(decimal.NewFromInt(10000)))

	require.NoError(t, trader.CancelOrder(ctx, simPair, "unknown"))
}

func TestSimulateTrader_RejectsInvalidRequest(t *testing.T) {
	trader := newTestSimulateTrader(t, &mockPricer{price: decimal.NewFromInt(100)}, nil, nil)

	req := limitReq(domain.SideBuy, "1", "99")
	req.Pair = domain.Pair{From: "ETH", To: "USDT"}
	_, err := trader.SubmitOrder(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrExecution)
}

func TestSimulateTrader_StateSurvivesRestart(t *testing.T) {
	store, err := simstate.NewStoreInDir(t.TempDir(), simPair, "")
	require.NoError(t, err)
	pricer := &mockPricer{price: decimal.NewFromInt(100)}
	ctx := context.Background()

	first := newTestSimulateTrader(t, pricer, store, nil)
	_, err = first.SubmitOrder(ctx, marketReq(domain.SideBuy, "5"))
	require.NoError(t, err)
	askID, err := first.SubmitOrder(ctx, limitReq(domain.SideSell, "2", "110"))
	require.NoError(t, err)

	second := newTestSimulateTrader(t, pricer, store, nil)
	assert.Equal(t, []string{askID}, second.openOrders())

	base, quote := balances(t, second)
	assert.True(t, base.Equal(decimal.NewFromInt(3)))
	assert.True(t, quote.Equal(decimal.NewFromInt(9500)))

	require.NoError(t, second.CancelOrder(ctx, simPair, askID))
	base, _ = balances(t, second)
	assert.True(t, base.Equal(decimal.NewFromInt(5)))
}
