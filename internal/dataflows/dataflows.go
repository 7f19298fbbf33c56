// Package dataflows fetches the raw market, news, social and macro context
// analysts read. The pipeline consumes it through the Provider interface;
// everything here is replaceable collaborator glue.
package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
)

// Provider assembles the textual context for one analyst kind. An empty
// string with a nil error means "nothing found"; errors are absorbed by the
// analyst into a degraded report, never escalated.
type Provider interface {
	Context(ctx context.Context, kind models.AnalystKind, symbol string, asOf time.Time) (string, error)
}

// Service is the live Provider: Yahoo quotes for market context, Finnhub
// and Google News for news, Google News community queries for social, and a
// macro headline sweep. With online_tools disabled every lookup returns
// models.ErrDataUnavailable and analysts run on prompt knowledge alone.
// With cache_enabled, fetched context is memoized per analysis date under
// data_cache_dir; quotes for risk sizing never come from the cache.
type Service struct {
	online  bool
	cache   *diskCache
	yahoo   *YahooClient
	finnhub *FinnhubClient
	news    *GoogleNewsClient
}

func NewService(cfg *config.Config) *Service {
	s := &Service{
		online:  cfg.OnlineTools,
		yahoo:   NewYahooClient(),
		finnhub: NewFinnhubClient(cfg.FinnhubAPIKey),
		news:    NewGoogleNewsClient(),
	}
	if cfg.CacheEnabled {
		s.cache = newDiskCache(cfg.DataCacheDir)
	}
	return s
}

func (s *Service) Context(ctx context.Context, kind models.AnalystKind, symbol string, asOf time.Time) (string, error) {
	if !s.online {
		return "", models.ErrDataUnavailable
	}
	if text, ok := s.cache.get(kind, symbol, asOf); ok {
		return text, nil
	}
	text, err := s.lookup(ctx, kind, symbol, asOf)
	if err == nil {
		s.cache.put(kind, symbol, asOf, text)
	}
	return text, err
}

func (s *Service) lookup(ctx context.Context, kind models.AnalystKind, symbol string, asOf time.Time) (string, error) {
	switch kind {
	case models.AnalystMarket:
		return s.marketContext(ctx, symbol)
	case models.AnalystNews:
		return s.newsContext(ctx, symbol, asOf)
	case models.AnalystSocial:
		return s.news.Search(ctx, fmt.Sprintf("%s investor sentiment", baseSymbol(symbol)), 8)
	case models.AnalystFundamental:
		return s.fundamentalContext(ctx, symbol)
	case models.AnalystMacro:
		return s.news.Search(ctx, macroQuery(symbol), 10)
	default:
		return "", fmt.Errorf("unknown analyst kind %q", kind)
	}
}

// ReferencePrice returns the latest quote price used to value orders in
// risk evaluation. Offline mode reports data unavailable; the gate then
// falls back to the decision's own price target.
func (s *Service) ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !s.online {
		return decimal.Zero, models.ErrDataUnavailable
	}
	md, err := s.yahoo.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return md.Price, nil
}

func (s *Service) marketContext(ctx context.Context, symbol string) (string, error) {
	md, err := s.yahoo.Quote(ctx, symbol)
	if err != nil {
		return "", err
	}
	return md.Describe(), nil
}

func (s *Service) newsContext(ctx context.Context, symbol string, asOf time.Time) (string, error) {
	if s.finnhub.Enabled() && models.InferAssetClass(symbol) == models.AssetEquity {
		text, err := s.finnhub.CompanyNews(ctx, symbol, asOf.AddDate(0, 0, -7), asOf)
		if err == nil && text != "" {
			return text, nil
		}
	}
	return s.news.Search(ctx, fmt.Sprintf("%s stock news", baseSymbol(symbol)), 10)
}

func (s *Service) fundamentalContext(ctx context.Context, symbol string) (string, error) {
	if models.InferAssetClass(symbol) == models.AssetCrypto {
		return s.news.Search(ctx, fmt.Sprintf("%s tokenomics adoption onchain", baseSymbol(symbol)), 8)
	}
	md, err := s.yahoo.Quote(ctx, symbol)
	if err != nil {
		return "", err
	}
	return md.DescribeFundamentals(), nil
}

func macroQuery(symbol string) string {
	if models.InferAssetClass(symbol) == models.AssetCrypto {
		return "crypto market fed policy regulation ETF flows"
	}
	return "fed policy inflation macro outlook equities"
}

// baseSymbol strips the quote currency off a crypto pair: BTC/USD -> BTC.
func baseSymbol(symbol string) string {
	if i := strings.Index(symbol, "/"); i > 0 {
		return symbol[:i]
	}
	return symbol
}
