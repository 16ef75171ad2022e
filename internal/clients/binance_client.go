package clients

import (
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

// NewBinanceClient creates a spot client. testnet switches the package-wide endpoint.
func NewBinanceClient(apiKey, apiSecret string, testnet bool) *binance.Client {
	binance.UseTestnet = testnet
	return binance.NewClient(apiKey, apiSecret)
}

// NewBinanceFuturesClient creates a USDⓈ-M futures client.
func NewBinanceFuturesClient(apiKey, apiSecret string, testnet bool) *futures.Client {
	futures.UseTestnet = testnet
	return binance.NewFuturesClient(apiKey, apiSecret)
}
