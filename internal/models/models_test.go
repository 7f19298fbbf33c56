package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferAssetClass(t *testing.T) {
	tests := []struct {
		symbol string
		want   AssetClass
	}{
		{"NVDA", AssetEquity},
		{"BRK.B", AssetEquity},
		{"BTC/USD", AssetCrypto},
		{"ETH/USDT", AssetCrypto},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferAssetClass(tt.symbol), tt.symbol)
	}
}

func TestValidateSymbol(t *testing.T) {
	for _, symbol := range []string{"NVDA", "AAPL", "BRK.B", "BTC/USD", "SOL/USDT", "X"} {
		assert.NoError(t, ValidateSymbol(symbol), symbol)
	}
	for _, symbol := range []string{"", "nvda", "TOO LONG SYM", "BTC/USD/EUR", "BTC/", "/USD", "N!"} {
		err := ValidateSymbol(symbol)
		require.Error(t, err, symbol)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr, symbol)
	}
}

func TestNewAnalysisRequestNormalizes(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	req, err := NewAnalysisRequest("  nvda ", asOf)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", req.Symbol)
	assert.Equal(t, AssetEquity, req.AssetClass)
	assert.Equal(t, asOf, req.AsOf)

	req, err = NewAnalysisRequest("btc/usd", asOf)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", req.Symbol)
	assert.Equal(t, AssetCrypto, req.AssetClass)

	_, err = NewAnalysisRequest("not a symbol", asOf)
	require.Error(t, err)
}

func TestRunStateTerminal(t *testing.T) {
	for _, state := range []RunState{RunPending, RunAnalyzing, RunDebating, RunDeciding, RunRiskCheck} {
		assert.False(t, state.Terminal(), string(state))
	}
	assert.True(t, RunDone.Terminal())
	assert.True(t, RunError.Terminal())
}
