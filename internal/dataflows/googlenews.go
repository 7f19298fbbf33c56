package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

// GoogleNewsClient searches the Google News RSS feed.
type GoogleNewsClient struct {
	client *resty.Client
}

func NewGoogleNewsClient() *GoogleNewsClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &GoogleNewsClient{client: client}
}

// Search runs a query and returns up to limit headlines as one text block.
func (g *GoogleNewsClient) Search(ctx context.Context, query string, limit int) (string, error) {
	feedURL := fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		url.QueryEscape(query),
	)

	resp, err := g.client.R().SetContext(ctx).Get(feedURL)
	if err != nil {
		return "", fmt.Errorf("google news search: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("google news search: status %d", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return "", fmt.Errorf("google news parse: %w", err)
	}

	var b strings.Builder
	for i, item := range feed.Channel.Items {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "- %s", strings.TrimSpace(item.Title))
		if desc := stripHTML(item.Description); desc != "" && desc != strings.TrimSpace(item.Title) {
			fmt.Fprintf(&b, ": %s", desc)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// stripHTML flattens the HTML snippets Google News embeds in descriptions.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
