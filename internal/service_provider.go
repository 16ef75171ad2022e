package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quoter/config"
	"github.com/vadiminshakov/quoter/internal/clients"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/services/market/collector"
	"github.com/vadiminshakov/quoter/internal/services/pricer"
	"github.com/vadiminshakov/quoter/internal/services/strategy/mm"
	"github.com/vadiminshakov/quoter/internal/services/trader"
	"github.com/vadiminshakov/quoter/internal/storage/simstate"
)

// serviceProvider creates the platform-specific collaborators of a quoter.
type serviceProvider interface {
	Gateway(pair domain.Pair, prec trader.Precision, acks trader.AckPublisher, logger *zap.Logger) (mm.Gateway, error)
	KlineProvider() collector.KlineProvider
}

// NewClient builds the venue client of the configured platform.
func NewClient(conf config.Config, creds config.Credentials) (any, error) {
	switch conf.Platform {
	case config.PlatformBinance:
		return clients.NewBinanceClient(creds.APIKey, creds.APISecret, conf.Testnet), nil
	case config.PlatformBinanceFutures:
		return clients.NewBinanceFuturesClient(creds.APIKey, creds.APISecret, conf.Testnet), nil
	case config.PlatformBybit:
		return clients.NewBybitClient(creds.APIKey, creds.APISecret, conf.Testnet), nil
	case config.PlatformHyperliquid:
		c, err := clients.NewHyperliquidClient(creds.PrivateKey, clients.HyperliquidBaseURL(conf.Testnet))
		if err != nil {
			return nil, errors.Wrap(err, "create hyperliquid client")
		}
		return c, nil
	case config.PlatformSimulate:
		return clients.NewSimulateClient(), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Platform)
	}
}

// newServiceProvider dispatches to the platform-specific implementations by client type.
func newServiceProvider(client any, marketType domain.MarketType) (serviceProvider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c}, nil
	case *futures.Client:
		return &binanceFuturesProvider{client: c}, nil
	case *bybit.Client:
		return &bybitProvider{client: c, marketType: marketType}, nil
	case *clients.HyperliquidClient:
		return &hyperliquidProvider{client: c, marketType: marketType}, nil
	case *clients.SimulateClient:
		return &simulateProvider{client: c}, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

type binanceProvider struct {
	client *binance.Client
}

func (p *binanceProvider) Gateway(pair domain.Pair, prec trader.Precision, acks trader.AckPublisher, logger *zap.Logger) (mm.Gateway, error) {
	return trader.NewBinanceTrader(p.client, pair, pricer.NewBinancePricer(p.client), prec, acks, logger)
}
func (p *binanceProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceKlineProvider(p.client)
}

type binanceFuturesProvider struct {
	client *futures.Client
}

func (p *binanceFuturesProvider) Gateway(pair domain.Pair, prec trader.Precision, acks trader.AckPublisher, logger *zap.Logger) (mm.Gateway, error) {
	return trader.NewBinanceFuturesTrader(p.client, pair, pricer.NewBinanceFuturesPricer(p.client), prec, acks, logger)
}
func (p *binanceFuturesProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceFuturesKlineProvider(p.client)
}

type bybitProvider struct {
	client     *bybit.Client
	marketType domain.MarketType
}

func (p *bybitProvider) Gateway(pair domain.Pair, prec trader.Precision, acks trader.AckPublisher, logger *zap.Logger) (mm.Gateway, error) {
	return trader.NewBybitTrader(p.client, pair, p.marketType, pricer.NewBybitPricer(p.client, p.marketType), prec, acks, logger)
}
func (p *bybitProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBybitKlineProvider(p.client, p.marketType)
}

type hyperliquidProvider struct {
	client     *clients.HyperliquidClient
	marketType domain.MarketType
}

func (p *hyperliquidProvider) Gateway(pair domain.Pair, prec trader.Precision, acks trader.AckPublisher, logger *zap.Logger) (mm.Gateway, error) {
	return trader.NewHyperliquidTrader(p.client.Exchange(), p.client.AccountAddress(), pair, p.marketType,
		pricer.NewHyperliquidPricer(p.client.Info()), prec, acks, logger)
}
func (p *hyperliquidProvider) KlineProvider() collector.KlineProvider {
	return collector.NewHyperliquidKlineProvider(p.client.Info())
}

type simulateProvider struct {
	client *clients.SimulateClient
}

func (p *simulateProvider) Gateway(pair domain.Pair, prec trader.Precision, acks trader.AckPublisher, logger *zap.Logger) (mm.Gateway, error) {
	store, err := simstate.NewStore(pair, "")
	if err != nil {
		return nil, err
	}
	return trader.NewSimulateTrader(pair, pricer.NewBinancePricer(p.client.GetBinanceClient()), store, prec, acks, logger)
}
func (p *simulateProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceKlineProvider(p.client.GetBinanceClient())
}
