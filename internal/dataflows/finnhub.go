package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// FinnhubClient fetches company news from the Finnhub REST API.
type FinnhubClient struct {
	client *resty.Client
	apiKey string
}

func NewFinnhubClient(apiKey string) *FinnhubClient {
	client := resty.New()
	client.SetBaseURL("https://finnhub.io/api/v1")
	client.SetTimeout(30 * time.Second)

	return &FinnhubClient{
		client: client,
		apiKey: apiKey,
	}
}

// Enabled reports whether an API key was configured.
func (fc *FinnhubClient) Enabled() bool {
	return fc.apiKey != ""
}

type finnhubNews struct {
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
}

// CompanyNews returns recent headlines for a symbol as one text block.
func (fc *FinnhubClient) CompanyNews(ctx context.Context, symbol string, from, to time.Time) (string, error) {
	if fc.apiKey == "" {
		return "", fmt.Errorf("finnhub API key not configured")
	}

	var articles []finnhubNews
	resp, err := fc.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": strings.ToUpper(symbol),
			"from":   from.Format("2006-01-02"),
			"to":     to.Format("2006-01-02"),
			"token":  fc.apiKey,
		}).
		SetResult(&articles).
		Get("/company-news")
	if err != nil {
		return "", fmt.Errorf("finnhub company news: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("finnhub company news: status %d", resp.StatusCode())
	}

	var b strings.Builder
	for i, a := range articles {
		if i >= 12 {
			break
		}
		ts := time.Unix(a.DateTime, 0).Format("2006-01-02")
		fmt.Fprintf(&b, "- [%s] %s (%s)", ts, a.Headline, a.Source)
		if a.Summary != "" {
			fmt.Fprintf(&b, ": %s", a.Summary)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
