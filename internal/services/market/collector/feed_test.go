package collector

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/services/market/window"
	collectorMock "github.com/vadiminshakov/quoter/mocks/collector"
	"go.uber.org/zap"
)

var feedPair = domain.Pair{From: "ETH", To: "USDT"}

func testBars(n int) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		price := decimal.NewFromInt(int64(100 + i))
		bars[i] = domain.Bar{
			OpenTime:  start.Add(time.Duration(i) * time.Minute),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    decimal.NewFromInt(1),
			CloseTime: start.Add(time.Duration(i+1)*time.Minute - time.Millisecond),
		}
	}
	return bars
}

func newTestFeed(t *testing.T, provider KlineProvider, store *window.Store, retries int) *Feed {
	t.Helper()
	f, err := NewFeed(provider, store, FeedConfig{
		Pair:     feedPair,
		Interval: "1m",
		Limit:    5,
		Every:    10 * time.Second,
		Retries:  retries,
	}, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestFeed_RefreshPublishes(t *testing.T) {
	provider := collectorMock.NewKlineProvider(t)
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(testBars(7), nil).Once()

	store := window.NewStore()
	f := newTestFeed(t, provider, store, 0)

	require.NoError(t, f.Refresh(context.Background()))

	w, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, 5, w.Len())
	latest, _ := w.Latest()
	assert.True(t, latest.Close.Equal(decimal.NewFromInt(106)))
}

func TestFeed_FailureKeepsPreviousWindow(t *testing.T) {
	provider := collectorMock.NewKlineProvider(t)
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(testBars(5), nil).Once()
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(nil, errors.New("timeout")).Once()

	store := window.NewStore()
	f := newTestFeed(t, provider, store, 0)

	require.NoError(t, f.Refresh(context.Background()))
	err := f.Refresh(context.Background())
	require.ErrorIs(t, err, domain.ErrDataUnavailable)

	w, ok := store.Read()
	require.True(t, ok)
	assert.Equal(t, 5, w.Len())
}

func TestFeed_RejectsUnorderedWindow(t *testing.T) {
	bars := testBars(3)
	bars[1], bars[2] = bars[2], bars[1]

	provider := collectorMock.NewKlineProvider(t)
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(bars, nil).Once()

	store := window.NewStore()
	f := newTestFeed(t, provider, store, 0)

	err := f.Refresh(context.Background())
	require.ErrorIs(t, err, domain.ErrCalculation)

	_, ok := store.Read()
	assert.False(t, ok)
}

func TestFeed_EmptyResponse(t *testing.T) {
	provider := collectorMock.NewKlineProvider(t)
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return([]domain.Bar{}, nil).Once()

	f := newTestFeed(t, provider, window.NewStore(), 0)
	assert.ErrorIs(t, f.Refresh(context.Background()), domain.ErrDataUnavailable)
}

func TestFeed_RetriesWithinInterval(t *testing.T) {
	provider := collectorMock.NewKlineProvider(t)
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(nil, errors.New("503")).Once()
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(testBars(5), nil).Once()

	store := window.NewStore()
	f := newTestFeed(t, provider, store, 1)

	require.NoError(t, f.Refresh(context.Background()))
	_, ok := store.Read()
	assert.True(t, ok)
}

func TestFeed_RunStopsOnCancel(t *testing.T) {
	provider := collectorMock.NewKlineProvider(t)
	provider.On("GetKlines", mock.Anything, feedPair, "1m", 5).Return(testBars(5), nil)

	store := window.NewStore()
	f := newTestFeed(t, provider, store, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := store.Read()
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestNewFeed_Validation(t *testing.T) {
	provider := collectorMock.NewKlineProvider(t)
	store := window.NewStore()

	tests := []struct {
		name string
		cfg  FeedConfig
	}{
		{name: "zero limit", cfg: FeedConfig{Pair: feedPair, Interval: "1m", Limit: 0, Every: time.Second}},
		{name: "zero interval", cfg: FeedConfig{Pair: feedPair, Interval: "1m", Limit: 10}},
		{name: "bad kline interval", cfg: FeedConfig{Pair: feedPair, Interval: "1x", Limit: 10, Every: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFeed(provider, store, tt.cfg, zap.NewNop())
			assert.Error(t, err)
		})
	}
}
