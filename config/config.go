// Package config loads quoter configurations from a yaml file or command line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/services/quote"
	"github.com/vadiminshakov/quoter/pkg/indicators"
	"gopkg.in/yaml.v3"
)

// Supported venues.
const (
	PlatformBinance        = "binance"
	PlatformBinanceFutures = "binance_futures"
	PlatformBybit          = "bybit"
	PlatformHyperliquid    = "hyperliquid"
	PlatformSimulate       = "simulate"
)

const defaultStatusAddr = ":8080"

// Config settings of one quoter instance.
type Config struct {
	Platform   string
	Pair       domain.Pair
	MarketType domain.MarketType
	Testnet    bool

	KlineInterval string
	KlineLimit    int
	FeedInterval  time.Duration
	FeedRetries   int

	TickInterval    time.Duration
	RefreshInterval time.Duration
	Indicators      indicators.Config
	Quote           quote.Params
	OrderAmount     decimal.Decimal
	BootstrapBuy    bool

	PricePrecision  int32
	AmountPrecision int32

	StatusAddr       string
	StatusTLSDomains []string
	JournalDir       string
}

// ConfigTmp raw yaml form of Config. Empty fields take defaults.
type ConfigTmp struct {
	Platform         string `yaml:"platform"`
	Pair             string `yaml:"pair"`
	MarketType       string `yaml:"market_type,omitempty"`
	Testnet          string `yaml:"testnet,omitempty"`
	KlineInterval    string `yaml:"kline_interval,omitempty"`
	KlineLimit       string `yaml:"kline_limit,omitempty"`
	FeedInterval     string `yaml:"feed_interval,omitempty"`
	FeedRetries      string `yaml:"feed_retries,omitempty"`
	TickInterval     string `yaml:"tick_interval,omitempty"`
	RefreshInterval  string `yaml:"refresh_interval,omitempty"`
	NATRPeriod       string `yaml:"natr_period,omitempty"`
	RSIPeriod        string `yaml:"rsi_period,omitempty"`
	IndicatorMode    string `yaml:"indicator_mode,omitempty"`
	FlatRSINeutral   string `yaml:"flat_rsi_neutral,omitempty"`
	BidSpreadMult    string `yaml:"bid_spread_multiplier,omitempty"`
	AskSpreadMult    string `yaml:"ask_spread_multiplier,omitempty"`
	RSIThreshold     string `yaml:"rsi_threshold,omitempty"`
	RSIShiftMax      string `yaml:"rsi_shift_max,omitempty"`
	RSIShiftScalar   string `yaml:"rsi_shift_scalar,omitempty"`
	TargetBaseRatio  string `yaml:"target_base_ratio,omitempty"`
	InvShiftMax      string `yaml:"inv_shift_max,omitempty"`
	OrderAmount      string `yaml:"order_amount,omitempty"`
	PriceMode        string `yaml:"price_mode,omitempty"`
	FixedBidOffset   string `yaml:"fixed_bid_offset,omitempty"`
	FixedAskOffset   string `yaml:"fixed_ask_offset,omitempty"`
	BootstrapBuy     string `yaml:"bootstrap_buy,omitempty"`
	PricePrecision   string `yaml:"price_precision,omitempty"`
	AmountPrecision  string `yaml:"amount_precision,omitempty"`
	// StatusAddr nil takes the default, an explicit "" disables the status server.
	StatusAddr       *string `yaml:"status_addr,omitempty"`
	StatusTLSDomains string `yaml:"status_tls_domains,omitempty"`
	JournalDir       string `yaml:"journal_dir,omitempty"`
}

// Load reads a yaml file holding a list of configs.
func Load(path string) ([]Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var configsTmp []ConfigTmp
	if err := yaml.Unmarshal(f, &configsTmp); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if len(configsTmp) == 0 {
		return nil, fmt.Errorf("config %s defines no quoters", path)
	}

	configs := make([]Config, 0, len(configsTmp))
	addrs := make(map[string]int, len(configsTmp))
	for i, c := range configsTmp {
		conf, err := c.Parse()
		if err != nil {
			return nil, errors.Wrapf(err, "config #%d", i+1)
		}
		if conf.StatusAddr != "" {
			if prev, ok := addrs[conf.StatusAddr]; ok {
				return nil, fmt.Errorf("config #%d: 'status_addr' %q is already used by config #%d, set a distinct address or \"\" to disable",
					i+1, conf.StatusAddr, prev)
			}
			addrs[conf.StatusAddr] = i + 1
		}
		configs = append(configs, conf)
	}
	return configs, nil
}

// Parse converts the raw values, applies defaults and validates the result.
func (c ConfigTmp) Parse() (Config, error) {
	p := parser{}

	conf := Config{
		Platform:      strings.ToLower(strings.TrimSpace(c.Platform)),
		KlineInterval: p.str(c.KlineInterval, "1m"),
		KlineLimit:    p.integer("kline_limit", c.KlineLimit, 50),
		FeedInterval:  p.duration("feed_interval", c.FeedInterval, 10*time.Second),
		FeedRetries:   p.integer("feed_retries", c.FeedRetries, 0),
		Testnet:       p.boolean("testnet", c.Testnet, false),

		TickInterval:    p.duration("tick_interval", c.TickInterval, time.Second),
		RefreshInterval: p.duration("refresh_interval", c.RefreshInterval, 15*time.Second),
		Indicators: indicators.Config{
			NATRPeriod:     p.integer("natr_period", c.NATRPeriod, 30),
			RSIPeriod:      p.integer("rsi_period", c.RSIPeriod, 30),
			Mode:           indicators.Mode(p.str(c.IndicatorMode, string(indicators.ModeSimple))),
			FlatRSINeutral: p.boolean("flat_rsi_neutral", c.FlatRSINeutral, false),
		},
		OrderAmount:  p.dec("order_amount", c.OrderAmount, decimal.RequireFromString("0.01")),
		BootstrapBuy: p.boolean("bootstrap_buy", c.BootstrapBuy, true),

		PricePrecision:  int32(p.integer("price_precision", c.PricePrecision, 8)),
		AmountPrecision: int32(p.integer("amount_precision", c.AmountPrecision, 4)),

		StatusAddr: defaultStatusAddr,
		JournalDir: strings.TrimSpace(c.JournalDir),
	}

	defaults := quote.DefaultParams()
	conf.Quote = quote.Params{
		RSIThreshold:        p.dec("rsi_threshold", c.RSIThreshold, defaults.RSIThreshold),
		RSIShiftMax:         p.dec("rsi_shift_max", c.RSIShiftMax, defaults.RSIShiftMax),
		RSIShiftScalar:      p.dec("rsi_shift_scalar", c.RSIShiftScalar, defaults.RSIShiftScalar),
		TargetBaseRatio:     p.dec("target_base_ratio", c.TargetBaseRatio, defaults.TargetBaseRatio),
		InvShiftMax:         p.dec("inv_shift_max", c.InvShiftMax, defaults.InvShiftMax),
		BidSpreadMultiplier: p.dec("bid_spread_multiplier", c.BidSpreadMult, defaults.BidSpreadMultiplier),
		AskSpreadMultiplier: p.dec("ask_spread_multiplier", c.AskSpreadMult, defaults.AskSpreadMultiplier),
		PriceMode:           domain.PriceMode(p.str(c.PriceMode, string(defaults.PriceMode))),
		FixedBidOffset:      p.dec("fixed_bid_offset", c.FixedBidOffset, defaults.FixedBidOffset),
		FixedAskOffset:      p.dec("fixed_ask_offset", c.FixedAskOffset, defaults.FixedAskOffset),
	}

	if c.StatusAddr != nil {
		conf.StatusAddr = strings.TrimSpace(*c.StatusAddr)
	}

	for _, d := range strings.Split(c.StatusTLSDomains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			conf.StatusTLSDomains = append(conf.StatusTLSDomains, d)
		}
	}

	if p.err != nil {
		return Config{}, p.err
	}

	pair, err := domain.ParsePair(c.Pair)
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'pair' param %q", c.Pair)
	}
	conf.Pair = pair

	conf.MarketType = domain.MarketType(strings.ToLower(strings.TrimSpace(c.MarketType)))
	if conf.MarketType == "" {
		conf.MarketType = domain.MarketTypeSpot
		if conf.Platform == PlatformBinanceFutures {
			conf.MarketType = domain.MarketTypePerpetual
		}
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate checks cross-field constraints. Errors name the offending key.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformBinance, PlatformSimulate:
		if c.MarketType != domain.MarketTypeSpot {
			return fmt.Errorf("incorrect 'market_type' param: %s supports only spot", c.Platform)
		}
	case PlatformBinanceFutures:
		if c.MarketType != domain.MarketTypePerpetual {
			return fmt.Errorf("incorrect 'market_type' param: %s supports only perpetual", c.Platform)
		}
	case PlatformBybit, PlatformHyperliquid:
		if !c.MarketType.IsValid() {
			return fmt.Errorf("incorrect 'market_type' param %q, expected spot or perpetual", c.MarketType)
		}
	default:
		return fmt.Errorf("incorrect 'platform' param %q", c.Platform)
	}

	switch {
	case c.Indicators.NATRPeriod < 1:
		return fmt.Errorf("incorrect 'natr_period' param: must be positive, got %d", c.Indicators.NATRPeriod)
	case c.Indicators.RSIPeriod < 1:
		return fmt.Errorf("incorrect 'rsi_period' param: must be positive, got %d", c.Indicators.RSIPeriod)
	case !c.Indicators.Mode.IsValid():
		return fmt.Errorf("incorrect 'indicator_mode' param %q, expected simple or wilder", c.Indicators.Mode)
	case c.KlineLimit < c.Indicators.MinBars():
		return fmt.Errorf("incorrect 'kline_limit' param: %d bars cannot serve periods needing %d", c.KlineLimit, c.Indicators.MinBars())
	case c.FeedInterval <= 0:
		return fmt.Errorf("incorrect 'feed_interval' param: must be positive")
	case c.FeedRetries < 0:
		return fmt.Errorf("incorrect 'feed_retries' param: must not be negative")
	case c.TickInterval <= 0:
		return fmt.Errorf("incorrect 'tick_interval' param: must be positive")
	case c.RefreshInterval <= 0:
		return fmt.Errorf("incorrect 'refresh_interval' param: must be positive")
	case !c.OrderAmount.IsPositive():
		return fmt.Errorf("incorrect 'order_amount' param: must be positive, got %s", c.OrderAmount.String())
	case c.PricePrecision < 0 || c.AmountPrecision < 0:
		return fmt.Errorf("incorrect 'price_precision' or 'amount_precision' param: must not be negative")
	}

	if err := c.Quote.Validate(); err != nil {
		return errors.Wrap(err, "incorrect quote params")
	}
	return nil
}

// Credentials venue API secrets read from the environment.
type Credentials struct {
	APIKey     string
	APISecret  string
	PrivateKey string
}

// LoadCredentials reads the credentials the platform needs.
func LoadCredentials(platform string) (Credentials, error) {
	switch platform {
	case PlatformBinance, PlatformBinanceFutures:
		return apiKeyPair("BINANCE_API_KEY", "BINANCE_API_SECRET")
	case PlatformBybit:
		return apiKeyPair("BYBIT_API_KEY", "BYBIT_API_SECRET")
	case PlatformHyperliquid:
		key := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if key == "" {
			return Credentials{}, fmt.Errorf("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		return Credentials{PrivateKey: key}, nil
	case PlatformSimulate:
		return Credentials{}, nil
	default:
		return Credentials{}, fmt.Errorf("unsupported platform %q", platform)
	}
}

func apiKeyPair(keyVar, secretVar string) (Credentials, error) {
	apiKey, apiSecret := os.Getenv(keyVar), os.Getenv(secretVar)
	if apiKey == "" || apiSecret == "" {
		return Credentials{}, fmt.Errorf("%s and %s environment variables must be set", keyVar, secretVar)
	}
	return Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}

// parser keeps the first conversion error so Parse reads as a flat list of fields.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("incorrect '%s' param %q: %w", key, value, err)
	}
}

func (p *parser) str(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key, value string, def int) int {
	v := strings.TrimSpace(value)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return n
}

func (p *parser) boolean(key, value string, def bool) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return b
}

func (p *parser) duration(key, value string, def time.Duration) time.Duration {
	v := strings.TrimSpace(value)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return d
}

func (p *parser) dec(key, value string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(value)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return d
}
