package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

const (
	hyperliquidMainnetURL = "https://api.hyperliquid.xyz"
	hyperliquidTestnetURL = "https://api.hyperliquid-testnet.xyz"
)

// HyperliquidBaseURL returns the API endpoint of the main or test network.
func HyperliquidBaseURL(testnet bool) string {
	if testnet {
		return hyperliquidTestnetURL
	}
	return hyperliquidMainnetURL
}

// HyperliquidClient signed exchange handle plus the account the key controls.
type HyperliquidClient struct {
	exchange *hyperliquid.Exchange
	account  string
}

// NewHyperliquidClient builds a client from a hex private key, with or without 0x prefix.
func NewHyperliquidClient(privateKeyHex string, baseURL string) (*HyperliquidClient, error) {
	key, account, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	// meta is fetched lazily by the SDK, so no request is made here
	ex := hyperliquid.NewExchange(context.Background(), key, baseURL, nil, "", account, nil)

	return &HyperliquidClient{exchange: ex, account: account}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, string, error) {
	hexKey = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"), "0X")
	if hexKey == "" {
		return nil, "", errors.New("hyperliquid private key is empty")
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, "", errors.Wrap(err, "invalid hyperliquid private key")
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, "", errors.New("hyperliquid key has no ECDSA public key")
	}

	return key, crypto.PubkeyToAddress(*pub).Hex(), nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) AccountAddress() string          { return c.account }
func (c *HyperliquidClient) Info() *hyperliquid.Info         { return c.exchange.Info() }
