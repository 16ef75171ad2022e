// Package mm implements the periodic market-making quoting loop.
package mm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/metrics"
	"github.com/vadiminshakov/quoter/pkg/indicators"
	"go.uber.org/zap"
)

const defaultRefreshInterval = 15 * time.Second

//go:generate mockery --name=Gateway --output=../../../../mocks/gateway --outpkg=gateway

// Gateway trading venue the quoter places its orders on.
type Gateway interface {
	IsReady(ctx context.Context) bool
	// GetMidPrice returns the current mid price, an error when none is available.
	GetMidPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	// SubmitOrder places an order and returns its venue order id.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error
}

type windowReader interface {
	Read() (domain.CandleWindow, bool)
}

type calculator interface {
	Calculate(ind domain.IndicatorSnapshot, acc domain.AccountState) (domain.QuoteDecision, error)
}

type handleTaker interface {
	TakeBid() *domain.OrderHandle
	TakeAsk() *domain.OrderHandle
}

type journal interface {
	Append(d domain.QuoteDecision) error
}

type decisionPublisher interface {
	Publish(d domain.QuoteDecision) int
}

// Config quoting loop parameters.
type Config struct {
	Pair            domain.Pair
	OrderAmount     decimal.Decimal
	RefreshInterval time.Duration
	Indicators      indicators.Config
	// BootstrapBuy places one market buy of OrderAmount before the first quotes.
	BootstrapBuy bool
}

// Option configures optional collaborators of the Quoter.
type Option func(*Quoter)

// WithJournal records every decision.
func WithJournal(j journal) Option {
	return func(q *Quoter) {
		q.journal = j
	}
}

// WithDecisionPublisher pushes every decision to live listeners.
func WithDecisionPublisher(p decisionPublisher) Option {
	return func(q *Quoter) {
		q.decisions = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Quoter) {
		q.now = now
	}
}

// Quoter runs the quoting cycle: gate, compute, cancel stale quotes and place new ones.
type Quoter struct {
	cfg       Config
	gateway   Gateway
	window    windowReader
	calc      calculator
	handles   handleTaker
	journal   journal
	decisions decisionPublisher
	l         *zap.Logger
	now       func() time.Time

	// mu serializes ticks so two cycles never overlap.
	mu           sync.Mutex
	lastCycle    time.Time
	bootstrapped bool

	state atomic.Int32
	last  atomic.Pointer[domain.QuoteDecision]
}

// NewQuoter creates a quoting loop.
func NewQuoter(l *zap.Logger, cfg Config, gateway Gateway, window windowReader, calc calculator,
	handles handleTaker, opts ...Option) (*Quoter, error) {
	if gateway == nil || window == nil || calc == nil || handles == nil {
		return nil, errors.New("quoter needs a gateway, a window, a calculator and an order tracker")
	}
	if !cfg.OrderAmount.IsPositive() {
		return nil, errors.Errorf("order amount must be positive, got %s", cfg.OrderAmount.String())
	}
	if cfg.Indicators.NATRPeriod < 1 || cfg.Indicators.RSIPeriod < 1 {
		return nil, errors.Errorf("indicator periods must be positive, natr=%d rsi=%d",
			cfg.Indicators.NATRPeriod, cfg.Indicators.RSIPeriod)
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}

	q := &Quoter{
		cfg:     cfg,
		gateway: gateway,
		window:  window,
		calc:    calc,
		handles: handles,
		l:       l.With(zap.String("pair", cfg.Pair.String())),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// State returns the current phase of the loop.
func (q *Quoter) State() State {
	return State(q.state.Load())
}

// LastDecision returns the most recent decision, false before the first cycle.
func (q *Quoter) LastDecision() (domain.QuoteDecision, bool) {
	d := q.last.Load()
	if d == nil {
		return domain.QuoteDecision{}, false
	}
	return *d, true
}

// Run drives Tick on every interval until ctx is cancelled.
func (q *Quoter) Run(ctx context.Context, interval time.Duration) error {
	q.l.Info("starting quoter",
		zap.Duration("tick", interval),
		zap.Duration("refresh", q.cfg.RefreshInterval),
		zap.String("amount", q.cfg.OrderAmount.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.l.Info("quoter stopped")
			return nil
		case <-ticker.C:
			// failures are logged and counted inside Tick
			_ = q.Tick(ctx)
		}
	}
}

// Tick runs one cycle. Gated ticks are no-ops and return nil.
// Data and calculation failures abort the cycle before any order is touched;
// execution failures are reported after both sides were attempted.
func (q *Quoter) Tick(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.setState(StateIdle)

	q.setState(StateGated)
	now := q.now()
	if !q.lastCycle.IsZero() && now.Sub(q.lastCycle) < q.cfg.RefreshInterval {
		return nil
	}
	if !q.gateway.IsReady(ctx) {
		q.l.Debug("venue is not ready, skipping cycle")
		metrics.ObserveCycle(q.cfg.Pair, metrics.ResultSkipped)
		return nil
	}

	q.setState(StateComputing)
	decision, err := q.compute(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			q.l.Info("quote data unavailable", zap.Error(err))
			metrics.ObserveCycle(q.cfg.Pair, metrics.ResultNoData)
		} else {
			q.l.Error("failed to compute quotes", zap.Error(err))
			metrics.ObserveCycle(q.cfg.Pair, metrics.ResultCalcFailure)
		}
		return err
	}
	decision.Timestamp = now

	// a started cycle runs to completion even if the caller goes away
	dctx := context.WithoutCancel(ctx)
	q.lastCycle = now

	if q.cfg.BootstrapBuy && !q.bootstrapped {
		q.bootstrapped = true
		q.bootstrap(dctx)
	}

	q.setState(StateDeciding)
	execErr := q.decide(dctx, decision)
	q.publish(decision)

	return execErr
}

func (q *Quoter) compute(ctx context.Context) (domain.QuoteDecision, error) {
	w, ok := q.window.Read()
	if !ok {
		return domain.QuoteDecision{}, errors.Wrap(domain.ErrDataUnavailable, "no candle window yet")
	}
	if need := q.cfg.Indicators.MinBars(); !w.Ready(need) {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrDataUnavailable,
			"candle window has %d bars, need %d", w.Len(), need)
	}

	mid, err := q.gateway.GetMidPrice(ctx, q.cfg.Pair)
	if err != nil {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrDataUnavailable, "mid price: %v", err)
	}
	if !mid.IsPositive() {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrDataUnavailable, "mid price is %s", mid.String())
	}

	base, err := q.gateway.GetBalance(ctx, q.cfg.Pair.From)
	if err != nil {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrDataUnavailable, "%s balance: %v", q.cfg.Pair.From, err)
	}
	quote, err := q.gateway.GetBalance(ctx, q.cfg.Pair.To)
	if err != nil {
		return domain.QuoteDecision{}, errors.Wrapf(domain.ErrDataUnavailable, "%s balance: %v", q.cfg.Pair.To, err)
	}

	ind, err := indicators.Compute(w, mid.InexactFloat64(), q.cfg.Indicators)
	if err != nil {
		return domain.QuoteDecision{}, errors.Wrap(err, "indicators")
	}

	decision, err := q.calc.Calculate(ind, domain.AccountState{
		BaseBalance:  base,
		QuoteBalance: quote,
		MidPrice:     mid,
	})
	if err != nil {
		return domain.QuoteDecision{}, errors.Wrap(err, "quote")
	}

	return decision, nil
}

func (q *Quoter) bootstrap(ctx context.Context) {
	req := domain.OrderRequest{
		Pair:           q.cfg.Pair,
		Side:           domain.SideBuy,
		Type:           domain.OrderTypeMarket,
		Amount:         q.cfg.OrderAmount,
		PositionAction: domain.PositionActionOpen,
	}
	id, err := q.gateway.SubmitOrder(ctx, req)
	if err != nil {
		q.l.Error("bootstrap market buy failed", zap.Error(err))
		metrics.ObserveOrder(q.cfg.Pair, domain.SideBuy, metrics.OrderSubmitFailed)
		return
	}
	q.l.Info("bootstrap market buy placed", zap.String("orderID", id), zap.String("amount", req.Amount.String()))
	metrics.ObserveOrder(q.cfg.Pair, domain.SideBuy, metrics.OrderSubmitted)
}

// decide cancels tracked quotes and places a new bid and ask.
func (q *Quoter) decide(ctx context.Context, d domain.QuoteDecision) error {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if h := q.handles.TakeBid(); h != nil {
		q.cancel(ctx, *h)
	}
	if h := q.handles.TakeAsk(); h != nil {
		q.cancel(ctx, *h)
	}

	if err := q.place(ctx, domain.SideBuy, d.BidPrice); err != nil {
		keep(err)
	}
	if err := q.place(ctx, domain.SideSell, d.AskPrice); err != nil {
		keep(err)
	}

	return firstErr
}

func (q *Quoter) cancel(ctx context.Context, h domain.OrderHandle) {
	if err := q.gateway.CancelOrder(ctx, q.cfg.Pair, h.OrderID); err != nil {
		q.l.Warn("failed to cancel stale quote",
			zap.String("side", string(h.Side)), zap.String("orderID", h.OrderID), zap.Error(err))
		metrics.ObserveOrder(q.cfg.Pair, h.Side, metrics.OrderCancelFailed)
		return
	}
	q.l.Debug("stale quote cancelled", zap.String("side", string(h.Side)), zap.String("orderID", h.OrderID))
	metrics.ObserveOrder(q.cfg.Pair, h.Side, metrics.OrderCanceled)
}

func (q *Quoter) place(ctx context.Context, side domain.Side, price decimal.Decimal) error {
	req := domain.OrderRequest{
		Pair:           q.cfg.Pair,
		Side:           side,
		Type:           domain.OrderTypeLimit,
		Amount:         q.cfg.OrderAmount,
		Price:          price,
		PositionAction: domain.PositionActionOpen,
	}
	id, err := q.gateway.SubmitOrder(ctx, req)
	if err != nil {
		q.l.Error("failed to place quote", zap.String("order", req.String()), zap.Error(err))
		metrics.ObserveOrder(q.cfg.Pair, side, metrics.OrderSubmitFailed)
		return errors.Wrapf(domain.ErrExecution, "%s quote: %v", side, err)
	}
	q.l.Info("quote placed", zap.String("side", string(side)), zap.String("price", price.String()), zap.String("orderID", id))
	metrics.ObserveOrder(q.cfg.Pair, side, metrics.OrderSubmitted)
	return nil
}

func (q *Quoter) publish(d domain.QuoteDecision) {
	q.last.Store(&d)
	metrics.ObserveDecision(d)
	metrics.ObserveCycle(q.cfg.Pair, metrics.ResultQuoted)

	if q.journal != nil {
		if err := q.journal.Append(d); err != nil {
			q.l.Warn("failed to journal quote decision", zap.Error(err))
		}
	}
	if q.decisions != nil {
		q.decisions.Publish(d)
	}
}

func (q *Quoter) setState(s State) {
	q.state.Store(int32(s))
}
