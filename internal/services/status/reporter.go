// Package status renders the human-readable status of a running quoter.
package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

const (
	recentCandles = 3
	candleLayout  = "2006-01-02 15:04:05"
	notReadyText  = "Market connectors are not ready."
)

var hundred = decimal.NewFromInt(100)

type venue interface {
	IsReady(ctx context.Context) bool
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}

type handleReader interface {
	Handles() (bid, ask *domain.OrderHandle)
}

type decisionReader interface {
	LastDecision() (domain.QuoteDecision, bool)
}

type windowReader interface {
	Read() (domain.CandleWindow, bool)
}

// Reporter assembles the status text from the live quoting components.
type Reporter struct {
	pair      domain.Pair
	venue     venue
	handles   handleReader
	decisions decisionReader
	window    windowReader
}

// NewReporter creates a Reporter for pair.
func NewReporter(pair domain.Pair, venue venue, handles handleReader, decisions decisionReader, window windowReader) *Reporter {
	return &Reporter{
		pair:      pair,
		venue:     venue,
		handles:   handles,
		decisions: decisions,
		window:    window,
	}
}

// Format returns the status as newline separated lines.
func (r *Reporter) Format(ctx context.Context) string {
	if !r.venue.IsReady(ctx) {
		return notReadyText
	}

	var lines []string
	lines = append(lines, r.balances(ctx))

	if bid, ask := r.handles.Handles(); bid != nil || ask != nil {
		lines = append(lines, "Active Orders:")
		for _, h := range []*domain.OrderHandle{bid, ask} {
			if h != nil {
				lines = append(lines, fmt.Sprintf("  %s %s", h.Side, h.OrderID))
			}
		}
	}

	if d, ok := r.decisions.LastDecision(); ok {
		lines = append(lines,
			fmt.Sprintf("Ref Price: %s | Bid Price: %s | Ask Price: %s",
				d.RefPrice.String(), d.BidPrice.String(), d.AskPrice.String()),
			fmt.Sprintf("Bid Spread: %s%%, Ask Spread: %s%%",
				d.BidSpread.Mul(hundred).StringFixed(4), d.AskSpread.Mul(hundred).StringFixed(4)),
			fmt.Sprintf("RSI: %.2f | RSI Shift: %s | Inventory Shift: %s",
				d.Indicators.RSI, d.PriceShiftRSI.StringFixed(8), d.PriceShiftInv.StringFixed(8)),
			fmt.Sprintf("NATR: %.8f", d.Indicators.NATR),
		)
	}

	if w, ok := r.window.Read(); ok && w.Len() >= recentCandles {
		lines = append(lines, fmt.Sprintf("Recent Candles (last %d):", recentCandles))
		for _, b := range w.Last(recentCandles) {
			lines = append(lines, fmt.Sprintf("  %s O:%s H:%s L:%s C:%s",
				b.OpenTime.UTC().Format(candleLayout),
				b.Open.StringFixed(4), b.High.StringFixed(4), b.Low.StringFixed(4), b.Close.StringFixed(4)))
		}
	}

	return strings.Join(lines, "\n")
}

func (r *Reporter) balances(ctx context.Context) string {
	base, err := r.venue.GetBalance(ctx, r.pair.From)
	if err != nil {
		return "Balances not available"
	}
	quote, err := r.venue.GetBalance(ctx, r.pair.To)
	if err != nil {
		return "Balances not available"
	}
	return fmt.Sprintf("Balances -> %s: %s, %s: %s", r.pair.From, base.StringFixed(6), r.pair.To, quote.StringFixed(2))
}
