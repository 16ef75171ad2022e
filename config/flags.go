package config

import (
	"flag"
)

// Options command line options.
type Options struct {
	ConfigPath string
	Setup      bool
	cli        ConfigTmp
}

// ParseFlags parses the command line. Without --config a single quoter is configured from flags.
func ParseFlags(args []string) (Options, error) {
	var opts Options
	fs := flag.NewFlagSet("quoter", flag.ContinueOnError)

	fs.StringVar(&opts.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&opts.Setup, "setup", false, "run the configuration wizard and write config.gen.yaml")

	fs.StringVar(&opts.cli.Platform, "platform", PlatformSimulate, "venue: binance, binance_futures, bybit, hyperliquid, simulate")
	fs.StringVar(&opts.cli.Pair, "pair", "ETH_USDT", "trade pair, example: ETH_USDT")
	fs.StringVar(&opts.cli.MarketType, "market-type", "", "spot or perpetual")
	fs.StringVar(&opts.cli.Testnet, "testnet", "", "use the venue test network")
	fs.StringVar(&opts.cli.KlineInterval, "kline-interval", "", "candle interval, example: 1m")
	fs.StringVar(&opts.cli.OrderAmount, "order-amount", "", "base amount of every quote, example: 0.01")
	fs.StringVar(&opts.cli.PriceMode, "price-mode", "", "fixed or spread")
	fs.StringVar(&opts.cli.RefreshInterval, "refresh-interval", "", "minimum time between quote refreshes, example: 15s")
	statusAddr := fs.String("status-addr", defaultStatusAddr, "status server address, empty to disable")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	opts.cli.StatusAddr = statusAddr
	return opts, nil
}

// Configs returns the configs of the yaml file when one is given, otherwise the one built from flags.
func (o Options) Configs() ([]Config, error) {
	if o.ConfigPath != "" {
		return Load(o.ConfigPath)
	}

	conf, err := o.cli.Parse()
	if err != nil {
		return nil, err
	}
	return []Config{conf}, nil
}
