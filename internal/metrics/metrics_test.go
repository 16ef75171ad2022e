package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/quoter/internal/domain"
)

func TestObserveDecision(t *testing.T) {
	pair := domain.Pair{From: "ETH", To: "USDT"}
	ObserveDecision(domain.QuoteDecision{
		Timestamp:      time.Now(),
		Pair:           pair,
		MidPrice:       decimal.NewFromInt(2000),
		RefPrice:       decimal.RequireFromString("1999.998"),
		BidPrice:       decimal.NewFromInt(2020),
		AskPrice:       decimal.NewFromInt(1980),
		BidSpread:      decimal.RequireFromString("1.2"),
		AskSpread:      decimal.RequireFromString("0.6"),
		InventoryRatio: decimal.RequireFromString("0.5"),
		Indicators:     domain.IndicatorSnapshot{NATR: 0.01, RSI: 70},
	})

	assert.Equal(t, 2000.0, testutil.ToFloat64(MidPrice.WithLabelValues("ETH_USDT")))
	assert.Equal(t, 2020.0, testutil.ToFloat64(BidPrice.WithLabelValues("ETH_USDT")))
	assert.Equal(t, 1980.0, testutil.ToFloat64(AskPrice.WithLabelValues("ETH_USDT")))
	assert.Equal(t, 70.0, testutil.ToFloat64(RSI.WithLabelValues("ETH_USDT")))
	assert.Equal(t, 0.5, testutil.ToFloat64(InventoryRatio.WithLabelValues("ETH_USDT")))
}

func TestCounters(t *testing.T) {
	pair := domain.Pair{From: "BTC", To: "USDT"}
	before := testutil.ToFloat64(Cycles.WithLabelValues("BTC_USDT", ResultQuoted))
	ObserveCycle(pair, ResultQuoted)
	assert.Equal(t, before+1, testutil.ToFloat64(Cycles.WithLabelValues("BTC_USDT", ResultQuoted)))

	ObserveOrder(pair, domain.SideBuy, OrderSubmitted)
	assert.Equal(t, 1.0, testutil.ToFloat64(Orders.WithLabelValues("BTC_USDT", "buy", OrderSubmitted)))

	ObserveFeed(pair, 50)
	assert.Equal(t, 50.0, testutil.ToFloat64(FeedBars.WithLabelValues("BTC_USDT")))
}
