package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/quoter/config"
	"github.com/vadiminshakov/quoter/internal/events"
	"github.com/vadiminshakov/quoter/internal/services/market/collector"
	"github.com/vadiminshakov/quoter/internal/services/market/window"
	"github.com/vadiminshakov/quoter/internal/services/orders"
	"github.com/vadiminshakov/quoter/internal/services/quote"
	"github.com/vadiminshakov/quoter/internal/services/status"
	"github.com/vadiminshakov/quoter/internal/services/strategy/mm"
	"github.com/vadiminshakov/quoter/internal/services/trader"
	"github.com/vadiminshakov/quoter/internal/storage/quotes"
	"github.com/vadiminshakov/quoter/internal/web"
)

// TradingBot represents a single quoting instance: feed, quoting loop,
// order tracker and status server of one pair.
type TradingBot struct {
	Config config.Config

	feed     *collector.Feed
	quoter   *mm.Quoter
	tracker  *orders.Tracker
	acks     *events.OrderBroadcaster
	journal  *quotes.WALStore
	server   *web.Server
	reporter *status.Reporter
	logger   *zap.Logger
}

// NewTradingBot wires a quoter for conf on top of the venue client.
func NewTradingBot(conf config.Config, client any, logger *zap.Logger) (*TradingBot, error) {
	provider, err := newServiceProvider(client, conf.MarketType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create service provider")
	}
	return newTradingBot(conf, provider, logger)
}

func newTradingBot(conf config.Config, provider serviceProvider, logger *zap.Logger) (*TradingBot, error) {
	logger = logger.With(zap.String("pair", conf.Pair.String()), zap.String("platform", conf.Platform))

	acks := events.NewOrderBroadcaster()
	decisions := events.NewDecisionBroadcaster()

	prec := trader.Precision{Price: conf.PricePrecision, Amount: conf.AmountPrecision}
	gateway, err := provider.Gateway(conf.Pair, prec, acks, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gateway")
	}

	store := window.NewStore()
	feed, err := collector.NewFeed(provider.KlineProvider(), store, collector.FeedConfig{
		Pair:     conf.Pair,
		Interval: conf.KlineInterval,
		Limit:    conf.KlineLimit,
		Every:    conf.FeedInterval,
		Retries:  conf.FeedRetries,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kline feed")
	}

	calc, err := quote.NewCalculator(conf.Pair, conf.Quote)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create quote calculator")
	}

	journal, err := quotes.NewWALStore(quotes.DirFor(conf.JournalDir, conf.Pair))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open quote journal")
	}

	tracker := orders.NewTracker(logger)
	quoter, err := mm.NewQuoter(logger, mm.Config{
		Pair:            conf.Pair,
		OrderAmount:     conf.OrderAmount,
		RefreshInterval: conf.RefreshInterval,
		Indicators:      conf.Indicators,
		BootstrapBuy:    conf.BootstrapBuy,
	}, gateway, store, calc, tracker,
		mm.WithJournal(journal),
		mm.WithDecisionPublisher(decisions),
	)
	if err != nil {
		_ = journal.Close()
		return nil, errors.Wrap(err, "failed to create quoter")
	}

	reporter := status.NewReporter(conf.Pair, gateway, tracker, quoter, store)

	bot := &TradingBot{
		Config:   conf,
		feed:     feed,
		quoter:   quoter,
		tracker:  tracker,
		acks:     acks,
		journal:  journal,
		reporter: reporter,
		logger:   logger,
	}
	if conf.StatusAddr != "" {
		bot.server = web.NewServer(conf.StatusAddr, reporter, journal, decisions, logger)
	}
	return bot, nil
}

// Status returns the current status text.
func (b *TradingBot) Status(ctx context.Context) string {
	return b.reporter.Format(ctx)
}

// Run starts the feed, the acknowledgement consumer, the quoting loop and the
// status server, and blocks until ctx is cancelled or one of them fails.
func (b *TradingBot) Run(ctx context.Context) error {
	ackCh := b.acks.Subscribe()
	defer b.acks.Unsubscribe(ackCh)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.feed.Run(ctx)
	})
	g.Go(func() error {
		return b.tracker.Consume(ctx, ackCh)
	})
	g.Go(func() error {
		return b.quoter.Run(ctx, b.Config.TickInterval)
	})
	if b.server != nil {
		g.Go(func() error {
			if len(b.Config.StatusTLSDomains) > 0 {
				return b.server.StartWithAutoTLS(ctx, b.Config.StatusTLSDomains, "")
			}
			return b.server.Start(ctx)
		})
	}

	b.logger.Info("trading bot started",
		zap.Duration("tick", b.Config.TickInterval),
		zap.Duration("refresh", b.Config.RefreshInterval),
		zap.String("status_addr", b.Config.StatusAddr))

	err := g.Wait()
	b.logger.Info("trading bot stopped")
	return err
}

// Close releases the quote journal.
func (b *TradingBot) Close() error {
	return b.journal.Close()
}
