package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/quoter/config"
	"github.com/vadiminshakov/quoter/internal/domain"
)

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), OutputFile)
	a := defaultAnswers()
	a.platform = config.PlatformBybit
	a.marketType = string(domain.MarketTypePerpetual)
	a.testnet = true

	require.NoError(t, writeConfig(path, a))

	configs, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, config.PlatformBybit, configs[0].Platform)
	assert.Equal(t, domain.MarketTypePerpetual, configs[0].MarketType)
	assert.True(t, configs[0].Testnet)
	assert.Equal(t, domain.Pair{From: "ETH", To: "USDT"}, configs[0].Pair)
}

func TestWriteConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), OutputFile)
	a := defaultAnswers()
	a.platform = config.PlatformBinance
	a.marketType = string(domain.MarketTypePerpetual)

	require.Error(t, writeConfig(path, a))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAmount("0.01"))
	assert.Error(t, validateAmount("0"))
	assert.Error(t, validateAmount("abc"))

	assert.NoError(t, validateDuration("15s"))
	assert.Error(t, validateDuration("-1s"))
	assert.Error(t, validateDuration("soon"))

	assert.NoError(t, validatePair("ETH_USDT"))
	assert.Error(t, validatePair(""))
	assert.Error(t, validatePair("ETHUSDT"))
}
