package models

import (
	"regexp"
	"strings"
	"time"
)

// symbolPattern accepts equity tickers (NVDA, BRK.B) and crypto pairs with
// a single slash (BTC/USD).
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}(/[A-Z0-9]{2,10})?$`)

// ValidateSymbol rejects malformed symbols before any run starts.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return &ConfigError{Field: "symbol", Reason: "invalid format: " + symbol}
	}
	return nil
}

// AnalysisRequest describes one pipeline run. It is immutable once the run
// starts; the embedded options are a snapshot, so mid-run config edits only
// affect later runs.
type AnalysisRequest struct {
	Symbol     string
	AssetClass AssetClass
	AsOf       time.Time
}

// NewAnalysisRequest normalizes and validates a symbol and infers its asset
// class from the format.
func NewAnalysisRequest(symbol string, asOf time.Time) (*AnalysisRequest, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return &AnalysisRequest{
		Symbol:     symbol,
		AssetClass: InferAssetClass(symbol),
		AsOf:       asOf,
	}, nil
}
