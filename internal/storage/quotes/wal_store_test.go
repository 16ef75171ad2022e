package quotes

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/quoter/internal/domain"
)

func testDecision(mid int64) domain.QuoteDecision {
	return domain.QuoteDecision{
		Timestamp:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Pair:           domain.Pair{From: "ETH", To: "USDT"},
		MidPrice:       decimal.NewFromInt(mid),
		RefPrice:       decimal.NewFromInt(mid),
		BidSpread:      decimal.RequireFromString("0.012"),
		AskSpread:      decimal.RequireFromString("0.006"),
		BidPrice:       decimal.NewFromInt(mid + 1),
		AskPrice:       decimal.NewFromInt(mid - 1),
		PriceShiftRSI:  decimal.Zero,
		PriceShiftInv:  decimal.Zero,
		InventoryRatio: decimal.RequireFromString("0.5"),
		Indicators:     domain.IndicatorSnapshot{NATR: 0.0001, RSI: 50},
		PriceMode:      domain.PriceModeFixed,
	}
}

func TestWALStore_AppendAndEventsAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, mid := range []int64{100, 101, 102} {
		require.NoError(t, store.Append(testDecision(mid)))
	}
	assert.Equal(t, uint64(3), store.CurrentIndex())

	records, err := store.EventsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(2), records[0].Index)
	assert.Equal(t, "ETH_USDT", records[0].Entry.Pair)
	assert.True(t, records[1].Entry.MidPrice.Equal(decimal.NewFromInt(102)))

	none, err := store.EventsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)

	last, err := store.Last(1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, uint64(3), last[0].Index)
}

func TestWALStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(testDecision(100)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	records, err := reopened.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	d, err := records[0].Entry.Decision()
	require.NoError(t, err)
	want := testDecision(100)
	assert.Equal(t, want.Pair, d.Pair)
	assert.True(t, want.BidPrice.Equal(d.BidPrice))
	assert.True(t, want.BidSpread.Equal(d.BidSpread))
	assert.Equal(t, want.Indicators, d.Indicators)
	assert.Equal(t, want.PriceMode, d.PriceMode)
	assert.True(t, want.Timestamp.Equal(d.Timestamp))
}

func TestWALStore_AppendRequiresPair(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	d := testDecision(100)
	d.Pair = domain.Pair{}
	assert.Error(t, store.Append(d))
	assert.Equal(t, uint64(0), store.CurrentIndex())
}

func TestDirFor(t *testing.T) {
	assert.Equal(t, "wal/quotes/eth_usdt", DirFor("", domain.Pair{From: "ETH", To: "USDT"}))
	assert.Equal(t, "/tmp/q/btc_usdc", DirFor("/tmp/q", domain.Pair{From: "BTC", To: "USDC"}))
}

func TestWALStore_NilSafe(t *testing.T) {
	var s *WALStore
	assert.Error(t, s.Append(testDecision(1)))
	assert.Equal(t, uint64(0), s.CurrentIndex())
	_, err := s.EventsAfter(0)
	assert.Error(t, err)
}
