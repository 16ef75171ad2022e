package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/config"
	"github.com/vadiminshakov/quoter/internal/domain"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// OutputFile file the wizard writes.
const OutputFile = "config.gen.yaml"

const title = "QUOTER CONFIG WIZARD"

// answers values collected by the wizard.
type answers struct {
	platform        string
	pair            string
	marketType      string
	testnet         bool
	orderAmount     string
	priceMode       string
	refreshInterval string
	klineInterval   string
	statusAddr      string
}

func defaultAnswers() answers {
	return answers{
		platform:        config.PlatformSimulate,
		pair:            "ETH_USDT",
		marketType:      string(domain.MarketTypeSpot),
		orderAmount:     "0.01",
		priceMode:       string(domain.PriceModeFixed),
		refreshInterval: "15s",
		klineInterval:   "1m",
		statusAddr:      ":8080",
	}
}

// RunTUI launches the terminal configuration wizard and writes OutputFile.
func RunTUI() error {
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render(title))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Two quotes around the mid, refreshed on a schedule.\n"))

	// platform
	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance Spot", config.PlatformBinance),
					huh.NewOption("Binance USDⓈ-M Futures", config.PlatformBinanceFutures),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
					huh.NewOption("Simulation", config.PlatformSimulate),
				).
				Value(&a.platform),
			huh.NewConfirm().
				Title("Use the test network?").
				Value(&a.testnet),
		),
	).Run()
	if err != nil {
		return err
	}

	// pair and market
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render("STEP 2: MARKET"))
	fields := []huh.Field{
		huh.NewInput().
			Title("Trading Pair").
			Description("Must contain underscore (e.g. ETH_USDT)").
			Value(&a.pair).
			Validate(validatePair),
	}
	switch a.platform {
	case config.PlatformBybit, config.PlatformHyperliquid:
		fields = append(fields, huh.NewSelect[string]().
			Title("Spot or Perpetual?").
			Options(
				huh.NewOption("Spot", string(domain.MarketTypeSpot)),
				huh.NewOption("Perpetual", string(domain.MarketTypePerpetual)),
			).
			Value(&a.marketType))
	case config.PlatformBinanceFutures:
		a.marketType = string(domain.MarketTypePerpetual)
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	// quoting
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render("STEP 3: QUOTING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Order Amount").
				Description("Base amount of every quote (e.g. 0.01)").
				Value(&a.orderAmount).
				Validate(validateAmount),
			huh.NewSelect[string]().
				Title("Price Mode").
				Options(
					huh.NewOption("Fixed offsets from mid", string(domain.PriceModeFixed)),
					huh.NewOption("Volatility spreads around reference", string(domain.PriceModeSpread)),
				).
				Value(&a.priceMode),
			huh.NewInput().
				Title("Refresh Interval").
				Description("Duration string (e.g. 15s, 1m)").
				Value(&a.refreshInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Candle Interval").
				Description("e.g. 1m, 5m, 1h").
				Value(&a.klineInterval),
			huh.NewInput().
				Title("Status Server Address").
				Value(&a.statusAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s (testnet: %t)\nPair: %s\nMarket: %s\nAmount: %s\nMode: %s\nRefresh: %s\n",
		a.platform, a.testnet, a.pair, a.marketType, a.orderAmount, a.priceMode, a.refreshInterval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := writeConfig(OutputFile, a); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", OutputFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// writeConfig validates the answers and stores them as a one-element yaml list.
func writeConfig(filename string, a answers) error {
	cfgTmp := config.ConfigTmp{
		Platform:        a.platform,
		Pair:            a.pair,
		MarketType:      a.marketType,
		Testnet:         fmt.Sprintf("%t", a.testnet),
		OrderAmount:     a.orderAmount,
		PriceMode:       a.priceMode,
		RefreshInterval: a.refreshInterval,
		KlineInterval:   a.klineInterval,
		StatusAddr:      &a.statusAddr,
	}
	if _, err := cfgTmp.Parse(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal([]config.ConfigTmp{cfgTmp})
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validatePair(s string) error {
	if s == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if _, err := domain.ParsePair(s); err != nil {
		return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. ETH_USDT)")
	}
	return nil
}
