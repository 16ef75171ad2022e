package mm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/services/market/window"
	"github.com/vadiminshakov/quoter/internal/services/orders"
	"github.com/vadiminshakov/quoter/internal/services/quote"
	"github.com/vadiminshakov/quoter/pkg/indicators"
	gatewayMock "github.com/vadiminshakov/quoter/mocks/gateway"
	"go.uber.org/zap"
)

var testPair = domain.Pair{From: "ETH", To: "USDT"}

type fakeJournal struct {
	decisions []domain.QuoteDecision
}

func (j *fakeJournal) Append(d domain.QuoteDecision) error {
	j.decisions = append(j.decisions, d)
	return nil
}

type testEnv struct {
	quoter  *Quoter
	gateway *gatewayMock.Gateway
	store   *window.Store
	tracker *orders.Tracker
	journal *fakeJournal
	clock   time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func increasingWindow(n int) domain.CandleWindow {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := decimal.NewFromInt(int64(i + 1))
		half := decimal.RequireFromString("0.5")
		bars[i] = domain.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     c,
			High:     c.Add(half),
			Low:      c.Sub(half),
			Close:    c,
			Volume:   decimal.NewFromInt(1),
		}
	}
	return domain.NewCandleWindow(bars, start.Add(time.Duration(n)*time.Minute))
}

func newTestEnv(t *testing.T, bootstrap bool, bars int) *testEnv {
	t.Helper()

	env := &testEnv{
		gateway: gatewayMock.NewGateway(t),
		store:   window.NewStore(),
		tracker: orders.NewTracker(zap.NewNop()),
		journal: &fakeJournal{},
		clock:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	if bars > 0 {
		env.store.Publish(increasingWindow(bars))
	}

	calc, err := quote.NewCalculator(testPair, quote.DefaultParams())
	require.NoError(t, err)

	q, err := NewQuoter(zap.NewNop(), Config{
		Pair:            testPair,
		OrderAmount:     decimal.RequireFromString("0.01"),
		RefreshInterval: 15 * time.Second,
		Indicators:      indicators.Config{NATRPeriod: 30, RSIPeriod: 30, Mode: indicators.ModeSimple},
		BootstrapBuy:    bootstrap,
	}, env.gateway, env.store, calc, env.tracker,
		WithJournal(env.journal),
		WithClock(func() time.Time { return env.clock }),
	)
	require.NoError(t, err)
	env.quoter = q

	return env
}

func (e *testEnv) expectMarketData() {
	e.gateway.On("GetMidPrice", mock.Anything, testPair).Return(decimal.NewFromInt(100), nil)
	e.gateway.On("GetBalance", mock.Anything, "ETH").Return(decimal.NewFromInt(1), nil)
	e.gateway.On("GetBalance", mock.Anything, "USDT").Return(decimal.NewFromInt(50), nil)
}

func isOrder(side domain.Side, typ domain.OrderType) interface{} {
	return mock.MatchedBy(func(r domain.OrderRequest) bool {
		return r.Side == side && r.Type == typ
	})
}

func TestTick_NotReadyMakesNoCalls(t *testing.T) {
	env := newTestEnv(t, true, 31)
	env.gateway.On("IsReady", mock.Anything).Return(false).Once()

	require.NoError(t, env.quoter.Tick(context.Background()))

	env.gateway.AssertNotCalled(t, "GetMidPrice", mock.Anything, mock.Anything)
	env.gateway.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
	env.gateway.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, StateIdle, env.quoter.State())
	_, ok := env.quoter.LastDecision()
	assert.False(t, ok)
}

func TestTick_FullCycle(t *testing.T) {
	env := newTestEnv(t, true, 31)
	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideBuy, domain.OrderTypeMarket)).Return("boot", nil).Once()
	env.gateway.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(r domain.OrderRequest) bool {
		return r.Side == domain.SideBuy && r.Type == domain.OrderTypeLimit &&
			r.Price.Equal(decimal.NewFromInt(101)) && r.Amount.Equal(decimal.RequireFromString("0.01")) &&
			r.PositionAction == domain.PositionActionOpen
	})).Return("bid-1", nil).Once()
	env.gateway.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(r domain.OrderRequest) bool {
		return r.Side == domain.SideSell && r.Type == domain.OrderTypeLimit && r.Price.Equal(decimal.NewFromInt(99))
	})).Return("ask-1", nil).Once()

	require.NoError(t, env.quoter.Tick(context.Background()))

	d, ok := env.quoter.LastDecision()
	require.True(t, ok)
	assert.Equal(t, 100.0, d.Indicators.RSI)
	assert.True(t, d.PriceShiftRSI.Equal(decimal.New(-1, -6)))
	ref, _ := d.RefPrice.Float64()
	assert.InDelta(t, 100*(1-1e-6+(100.0/150.0-0.5)*1e-6), ref, 1e-9)
	assert.Equal(t, env.clock, d.Timestamp)
	require.Len(t, env.journal.decisions, 1)
	assert.Equal(t, StateIdle, env.quoter.State())
}

func TestTick_WithinRefreshIntervalMakesNoCalls(t *testing.T) {
	env := newTestEnv(t, false, 31)
	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("SubmitOrder", mock.Anything, mock.Anything).Return("id", nil)

	require.NoError(t, env.quoter.Tick(context.Background()))
	calls := len(env.gateway.Calls)

	env.advance(5 * time.Second)
	require.NoError(t, env.quoter.Tick(context.Background()))
	env.advance(9 * time.Second)
	require.NoError(t, env.quoter.Tick(context.Background()))
	assert.Len(t, env.gateway.Calls, calls)

	env.advance(time.Second)
	require.NoError(t, env.quoter.Tick(context.Background()))
	assert.Greater(t, len(env.gateway.Calls), calls)
}

func TestTick_CancelsBeforeSubmitting(t *testing.T) {
	env := newTestEnv(t, false, 31)
	env.tracker.OnBidCreated("old-bid")
	env.tracker.OnAskCreated("old-ask")

	var sequence []string
	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("CancelOrder", mock.Anything, testPair, mock.Anything).
		Run(func(args mock.Arguments) { sequence = append(sequence, "cancel "+args.String(2)) }).
		Return(nil)
	env.gateway.On("SubmitOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sequence = append(sequence, "submit "+string(args.Get(1).(domain.OrderRequest).Side))
		}).
		Return("new", nil)

	require.NoError(t, env.quoter.Tick(context.Background()))

	assert.Equal(t, []string{"cancel old-bid", "cancel old-ask", "submit buy", "submit sell"}, sequence)
	bid, ask := env.tracker.Handles()
	assert.Nil(t, bid)
	assert.Nil(t, ask)
}

func TestTick_CancelFailureDoesNotBlockQuotes(t *testing.T) {
	env := newTestEnv(t, false, 31)
	env.tracker.OnBidCreated("old-bid")

	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("CancelOrder", mock.Anything, testPair, "old-bid").Return(errors.New("unknown order")).Once()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideBuy, domain.OrderTypeLimit)).Return("bid", nil).Once()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideSell, domain.OrderTypeLimit)).Return("ask", nil).Once()

	require.NoError(t, env.quoter.Tick(context.Background()))

	bid, _ := env.tracker.Handles()
	assert.Nil(t, bid)
}

func TestTick_BidFailureStillPlacesAsk(t *testing.T) {
	env := newTestEnv(t, false, 31)
	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideBuy, domain.OrderTypeLimit)).Return("", errors.New("insufficient balance")).Once()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideSell, domain.OrderTypeLimit)).Return("ask", nil).Once()

	err := env.quoter.Tick(context.Background())
	require.ErrorIs(t, err, domain.ErrExecution)

	_, ok := env.quoter.LastDecision()
	assert.True(t, ok)
}

func TestTick_InsufficientBars(t *testing.T) {
	for _, bars := range []int{0, 1, 30} {
		env := newTestEnv(t, true, bars)
		env.gateway.On("IsReady", mock.Anything).Return(true)

		err := env.quoter.Tick(context.Background())
		require.ErrorIs(t, err, domain.ErrDataUnavailable, "bars=%d", bars)

		env.gateway.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
		env.gateway.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestTick_NoPriceRetriesOnNextTick(t *testing.T) {
	env := newTestEnv(t, false, 31)
	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.gateway.On("GetMidPrice", mock.Anything, testPair).Return(decimal.Zero, errors.New("empty book")).Twice()

	require.ErrorIs(t, env.quoter.Tick(context.Background()), domain.ErrDataUnavailable)
	env.advance(time.Second)
	require.ErrorIs(t, env.quoter.Tick(context.Background()), domain.ErrDataUnavailable)

	env.gateway.AssertNumberOfCalls(t, "GetMidPrice", 2)
	env.gateway.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

func TestTick_BootstrapBuyOnce(t *testing.T) {
	env := newTestEnv(t, true, 31)
	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideBuy, domain.OrderTypeMarket)).
		Return("", errors.New("rejected")).Once()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideBuy, domain.OrderTypeLimit)).Return("bid", nil)
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideSell, domain.OrderTypeLimit)).Return("ask", nil)
	env.gateway.On("CancelOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.quoter.Tick(context.Background()))
		env.advance(16 * time.Second)
	}

	market := 0
	for _, c := range env.gateway.Calls {
		if c.Method == "SubmitOrder" && c.Arguments.Get(1).(domain.OrderRequest).Type == domain.OrderTypeMarket {
			market++
		}
	}
	assert.Equal(t, 1, market)
	assert.Len(t, env.journal.decisions, 3)
}

func TestTick_DetachedFromCallerCancellation(t *testing.T) {
	env := newTestEnv(t, false, 31)
	ctx, cancel := context.WithCancel(context.Background())

	env.gateway.On("IsReady", mock.Anything).Return(true)
	env.expectMarketData()
	env.gateway.On("SubmitOrder", mock.Anything, isOrder(domain.SideBuy, domain.OrderTypeLimit)).
		Run(func(args mock.Arguments) { cancel() }).
		Return("bid", nil).Once()
	env.gateway.On("SubmitOrder", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }),
		isOrder(domain.SideSell, domain.OrderTypeLimit)).Return("ask", nil).Once()

	require.NoError(t, env.quoter.Tick(ctx))
}

func TestRun_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t, false, 31)
	env.gateway.On("IsReady", mock.Anything).Return(false).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.quoter.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("quoter did not stop")
	}
}

func TestNewQuoter_Validation(t *testing.T) {
	gw := gatewayMock.NewGateway(t)
	calc, err := quote.NewCalculator(testPair, quote.DefaultParams())
	require.NoError(t, err)
	tracker := orders.NewTracker(zap.NewNop())

	_, err = NewQuoter(zap.NewNop(), Config{Pair: testPair, Indicators: indicators.Config{NATRPeriod: 30, RSIPeriod: 30}},
		gw, window.NewStore(), calc, tracker)
	assert.Error(t, err, "zero amount")

	_, err = NewQuoter(zap.NewNop(), Config{Pair: testPair, OrderAmount: decimal.NewFromInt(1)},
		gw, window.NewStore(), calc, tracker)
	assert.Error(t, err, "zero periods")

	_, err = NewQuoter(zap.NewNop(), Config{Pair: testPair, OrderAmount: decimal.NewFromInt(1),
		Indicators: indicators.Config{NATRPeriod: 30, RSIPeriod: 30}}, nil, window.NewStore(), calc, tracker)
	assert.Error(t, err, "nil gateway")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "deciding", StateDeciding.String())
	assert.Equal(t, "unknown", State(42).String())
}
