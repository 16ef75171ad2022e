// Command quoter runs periodic two-sided market makers. Each configured pair
// keeps one bid and one ask around the mid price, skewed by momentum and
// inventory, and refreshes them on a schedule.
//
// Usage:
//
//	quoter --config config.yaml
//	quoter --setup
//	quoter --platform simulate --pair ETH_USDT (uses CLI arguments)
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/quoter/config"
	"github.com/vadiminshakov/quoter/internal"
	"github.com/vadiminshakov/quoter/internal/setup"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	opts, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		logger.Fatal("failed to parse flags", zap.Error(err))
	}
	if opts.Setup {
		if err := setup.RunTUI(); err != nil {
			logger.Fatal("setup failed", zap.Error(err))
		}
		opts.ConfigPath = setup.OutputFile
	}

	configs, err := opts.Configs()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bots := make([]*internal.TradingBot, 0, len(configs))
	for _, conf := range configs {
		creds, err := config.LoadCredentials(conf.Platform)
		if err != nil {
			logger.Fatal("missing credentials", zap.String("platform", conf.Platform), zap.Error(err))
		}
		client, err := internal.NewClient(conf, creds)
		if err != nil {
			logger.Fatal("failed to create client", zap.String("platform", conf.Platform), zap.Error(err))
		}
		bot, err := internal.NewTradingBot(conf, client, logger)
		if err != nil {
			logger.Fatal("failed to create trading bot", zap.String("pair", conf.Pair.String()), zap.Error(err))
		}
		bots = append(bots, bot)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, bot := range bots {
		g.Go(func() error {
			return bot.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("trading bot failed", zap.Error(err))
	}
	for _, bot := range bots {
		if err := bot.Close(); err != nil {
			logger.Warn("failed to close trading bot", zap.String("pair", bot.Config.Pair.String()), zap.Error(err))
		}
	}
}
