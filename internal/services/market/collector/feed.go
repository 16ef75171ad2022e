package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/metrics"
	"github.com/vadiminshakov/quoter/pkg/retrier"
	"go.uber.org/zap"
)

const fetchTimeout = 30 * time.Second

// Publisher receives fresh candle windows.
type Publisher interface {
	Publish(w domain.CandleWindow)
}

// FeedConfig parameters of the kline feed.
type FeedConfig struct {
	Pair     domain.Pair
	Interval string
	Limit    int
	// Every is the refresh period of the window.
	Every time.Duration
	// Retries bounded in-interval retries of a failed fetch, 0 disables them.
	Retries int
}

// Feed periodically fetches the latest klines and publishes them as a new window.
// A failed fetch keeps the previous window and is retried on the next interval.
type Feed struct {
	provider  KlineProvider
	publisher Publisher
	cfg       FeedConfig
	retrier   *retrier.Retrier
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeed creates a new kline feed.
func NewFeed(provider KlineProvider, publisher Publisher, cfg FeedConfig, logger *zap.Logger) (*Feed, error) {
	if provider == nil || publisher == nil {
		return nil, errors.New("feed needs a kline provider and a publisher")
	}
	if cfg.Limit <= 0 {
		return nil, errors.Errorf("kline limit must be positive, got %d", cfg.Limit)
	}
	if cfg.Every <= 0 {
		return nil, errors.Errorf("feed interval must be positive, got %s", cfg.Every)
	}
	if _, err := parseInterval(cfg.Interval); err != nil {
		return nil, errors.Wrap(err, "kline interval")
	}

	logger = logger.With(zap.String("pair", cfg.Pair.String()), zap.String("interval", cfg.Interval))
	return &Feed{
		provider:  provider,
		publisher: publisher,
		cfg:       cfg,
		retrier: retrier.New(
			retrier.WithMaxRetries(cfg.Retries),
			retrier.WithMaxInterval(cfg.Every/2),
			retrier.WithNotify(func(attempt int, err error, wait time.Duration) {
				logger.Debug("retrying kline fetch", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
			}),
		),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run refreshes the window immediately and then on every interval until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("starting kline feed", zap.Duration("every", f.cfg.Every), zap.Int("limit", f.cfg.Limit))

	if err := f.Refresh(ctx); err != nil {
		f.logger.Warn("kline refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(f.cfg.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("kline feed stopped")
			return nil
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil {
				f.logger.Warn("kline refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh fetches one window and publishes it. On error nothing is published.
func (f *Feed) Refresh(ctx context.Context) error {
	bars, err := retrier.DoWithData(ctx, f.retrier, func(ctx context.Context) ([]domain.Bar, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		return f.provider.GetKlines(fetchCtx, f.cfg.Pair, f.cfg.Interval, f.cfg.Limit)
	})
	if err != nil {
		return errors.Wrapf(domain.ErrDataUnavailable, "fetch klines: %v", err)
	}
	if len(bars) == 0 {
		return errors.Wrap(domain.ErrDataUnavailable, "no kline data returned")
	}

	w := domain.NewCandleWindow(tail(bars, f.cfg.Limit), f.now())
	if err := w.Validate(); err != nil {
		return errors.Wrapf(domain.ErrCalculation, "malformed kline window: %v", err)
	}

	f.publisher.Publish(w)
	metrics.ObserveFeed(f.cfg.Pair, w.Len())
	f.logger.Debug("published candle window", zap.Int("bars", w.Len()))

	return nil
}
