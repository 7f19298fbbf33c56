package dataflows

import (
	"context"
	"fmt"
	"strings"

	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/internal/models"
)

// MarketData is a point-in-time quote summary used as analyst context.
type MarketData struct {
	Symbol    string
	Price     decimal.Decimal
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	PrevClose decimal.Decimal
	Volume    int64
	Avg50     decimal.Decimal
	Avg200    decimal.Decimal
	YearHigh  decimal.Decimal
	YearLow   decimal.Decimal
	MarketCap int64
	ForwardPE float64
	EPS       float64
}

// YahooClient pulls quotes from Yahoo Finance.
type YahooClient struct{}

func NewYahooClient() *YahooClient {
	return &YahooClient{}
}

// Quote fetches the latest quote. Crypto pairs are translated to Yahoo's
// dash notation (BTC/USD -> BTC-USD).
func (y *YahooClient) Quote(ctx context.Context, symbol string) (*MarketData, error) {
	q, err := equity.Get(yahooSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, models.ErrDataUnavailable)
	}

	return &MarketData{
		Symbol:    symbol,
		Price:     decimal.NewFromFloat(q.RegularMarketPrice),
		Open:      decimal.NewFromFloat(q.RegularMarketOpen),
		High:      decimal.NewFromFloat(q.RegularMarketDayHigh),
		Low:       decimal.NewFromFloat(q.RegularMarketDayLow),
		PrevClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
		Volume:    int64(q.RegularMarketVolume),
		Avg50:     decimal.NewFromFloat(q.FiftyDayAverage),
		Avg200:    decimal.NewFromFloat(q.TwoHundredDayAverage),
		YearHigh:  decimal.NewFromFloat(q.FiftyTwoWeekHigh),
		YearLow:   decimal.NewFromFloat(q.FiftyTwoWeekLow),
		MarketCap: q.MarketCap,
		ForwardPE: q.ForwardPE,
		EPS:       q.EpsTrailingTwelveMonths,
	}, nil
}

// Describe renders the technical picture for the market analyst.
func (m *MarketData) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s last %s (open %s, high %s, low %s, prev close %s), volume %d\n",
		m.Symbol, m.Price, m.Open, m.High, m.Low, m.PrevClose, m.Volume)
	fmt.Fprintf(&b, "50-day avg %s, 200-day avg %s\n", m.Avg50, m.Avg200)
	fmt.Fprintf(&b, "52-week range %s - %s\n", m.YearLow, m.YearHigh)
	return b.String()
}

// DescribeFundamentals renders the valuation picture for the fundamental
// analyst.
func (m *MarketData) DescribeFundamentals() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s last %s\n", m.Symbol, m.Price)
	if m.MarketCap > 0 {
		fmt.Fprintf(&b, "market cap %d\n", m.MarketCap)
	}
	if m.ForwardPE != 0 {
		fmt.Fprintf(&b, "forward P/E %.2f\n", m.ForwardPE)
	}
	if m.EPS != 0 {
		fmt.Fprintf(&b, "trailing EPS %.2f\n", m.EPS)
	}
	return b.String()
}

func yahooSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}
