// Package metrics exposes Prometheus metrics for the quoter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vadiminshakov/quoter/internal/domain"
)

// Cycle results.
const (
	ResultQuoted      = "quoted"
	ResultSkipped     = "skipped"
	ResultNoData      = "no_data"
	ResultCalcFailure = "calc_error"
)

// Order results.
const (
	OrderSubmitted    = "submitted"
	OrderSubmitFailed = "submit_failed"
	OrderCanceled     = "canceled"
	OrderCancelFailed = "cancel_failed"
)

var (
	MidPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_mid_price",
		Help: "Mid price used by the last quoting cycle",
	}, []string{"pair"})
	RefPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_ref_price",
		Help: "Reference price after RSI and inventory shifts",
	}, []string{"pair"})
	BidPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_bid_price",
		Help: "Executed bid price",
	}, []string{"pair"})
	AskPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_ask_price",
		Help: "Executed ask price",
	}, []string{"pair"})
	BidSpread = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_bid_spread",
		Help: "Volatility derived bid spread (fraction)",
	}, []string{"pair"})
	AskSpread = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_ask_spread",
		Help: "Volatility derived ask spread (fraction)",
	}, []string{"pair"})
	NATR = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_natr",
		Help: "Normalized average true range",
	}, []string{"pair"})
	RSI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_rsi",
		Help: "Relative strength index",
	}, []string{"pair"})
	InventoryRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_inventory_ratio",
		Help: "Share of portfolio value held in the base asset",
	}, []string{"pair"})
	FeedBars = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quoter_feed_bars",
		Help: "Bars in the last published candle window",
	}, []string{"pair"})

	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoter_cycles_total",
		Help: "Quoting cycles by result",
	}, []string{"pair", "result"})
	Orders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quoter_orders_total",
		Help: "Order submissions and cancellations by side and result",
	}, []string{"pair", "side", "result"})
)

func init() {
	prometheus.MustRegister(
		MidPrice, RefPrice, BidPrice, AskPrice, BidSpread, AskSpread,
		NATR, RSI, InventoryRatio, FeedBars, Cycles, Orders,
	)
}

// ObserveDecision exports the fields of a quote decision.
func ObserveDecision(d domain.QuoteDecision) {
	pair := d.Pair.String()
	MidPrice.WithLabelValues(pair).Set(d.MidPrice.InexactFloat64())
	RefPrice.WithLabelValues(pair).Set(d.RefPrice.InexactFloat64())
	BidPrice.WithLabelValues(pair).Set(d.BidPrice.InexactFloat64())
	AskPrice.WithLabelValues(pair).Set(d.AskPrice.InexactFloat64())
	BidSpread.WithLabelValues(pair).Set(d.BidSpread.InexactFloat64())
	AskSpread.WithLabelValues(pair).Set(d.AskSpread.InexactFloat64())
	NATR.WithLabelValues(pair).Set(d.Indicators.NATR)
	RSI.WithLabelValues(pair).Set(d.Indicators.RSI)
	InventoryRatio.WithLabelValues(pair).Set(d.InventoryRatio.InexactFloat64())
}

// ObserveCycle counts a quoting cycle outcome.
func ObserveCycle(pair domain.Pair, result string) {
	Cycles.WithLabelValues(pair.String(), result).Inc()
}

// ObserveOrder counts an order action.
func ObserveOrder(pair domain.Pair, side domain.Side, result string) {
	Orders.WithLabelValues(pair.String(), string(side), result).Inc()
}

// ObserveFeed records the size of a published window.
func ObserveFeed(pair domain.Pair, bars int) {
	FeedBars.WithLabelValues(pair.String()).Set(float64(bars))
}
