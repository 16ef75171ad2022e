package clients

import (
	"github.com/adshao/go-binance/v2"
)

// SimulateClient wraps a real exchange client for market data of the paper venue.
type SimulateClient struct {
	// use Binance public API for real market prices
	binanceClient *binance.Client
}

// NewSimulateClient creates a new simulate client.
func NewSimulateClient() *SimulateClient {
	// create client without API keys for public data only
	return &SimulateClient{
		binanceClient: binance.NewClient("", ""),
	}
}

// GetBinanceClient returns the underlying Binance client.
func (c *SimulateClient) GetBinanceClient() *binance.Client {
	return c.binanceClient
}
