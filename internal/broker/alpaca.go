package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
)

const (
	liveBaseURL  = "https://api.alpaca.markets"
	paperBaseURL = "https://paper-api.alpaca.markets"
)

// AlpacaBroker implements Brokerage against the Alpaca trading API.
type AlpacaBroker struct {
	client *alpaca.Client
}

var _ Brokerage = (*AlpacaBroker)(nil)

func NewAlpacaBroker(cfg *config.Config) (*AlpacaBroker, error) {
	if cfg.AlpacaAPIKey == "" || cfg.AlpacaSecretKey == "" {
		return nil, &models.ConfigError{Field: "alpaca_api_key", Reason: "brokerage credentials not configured"}
	}
	baseURL := liveBaseURL
	if cfg.AlpacaUsePaper {
		baseURL = paperBaseURL
	}
	return &AlpacaBroker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaSecretKey,
			BaseURL:   baseURL,
		}),
	}, nil
}

func (b *AlpacaBroker) Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	acct, err := b.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("alpaca account: %w", err)
	}
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("alpaca positions: %w", err)
	}

	snapshot := &models.PortfolioSnapshot{
		Positions:   make(map[string]models.Position, len(positions)),
		Equity:      acct.Equity,
		BuyingPower: acct.BuyingPower,
		MarginUsed:  acct.InitialMargin,
		FetchedAt:   time.Now().UTC(),
	}
	for _, p := range positions {
		snapshot.Positions[p.Symbol] = models.Position{
			Symbol:    p.Symbol,
			Quantity:  p.Qty,
			CostBasis: p.CostBasis,
		}
	}
	return snapshot, nil
}

func (b *AlpacaBroker) SubmitOrder(ctx context.Context, intent OrderIntent) (string, error) {
	side := alpaca.Buy
	if intent.Action == models.ActionSell || intent.Action == models.ActionShort {
		side = alpaca.Sell
	}
	// Crypto venues reject day orders.
	tif := alpaca.Day
	if models.InferAssetClass(intent.Symbol) == models.AssetCrypto {
		tif = alpaca.GTC
	}

	qty := intent.Quantity
	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      intent.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: tif,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExecutionFailed, err)
	}
	observ.Log("broker.order_submitted", map[string]any{
		"symbol":   intent.Symbol,
		"action":   string(intent.Action),
		"quantity": intent.Quantity.String(),
		"order_id": order.ID,
	})
	return order.ID, nil
}

func (b *AlpacaBroker) MarketOpen(ctx context.Context, class models.AssetClass) (bool, error) {
	if class == models.AssetCrypto {
		return true, nil
	}
	clock, err := b.client.GetClock()
	if err != nil {
		return false, fmt.Errorf("alpaca clock: %w", err)
	}
	return clock.IsOpen, nil
}
