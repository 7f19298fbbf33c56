package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/internal/models"
)

// Offline is the Brokerage used when no credentials are configured. Risk
// evaluation runs against a synthetic flat account so one-shot analysis
// still produces a gated decision; order submission always fails.
type Offline struct {
	Equity decimal.Decimal
}

var _ Brokerage = (*Offline)(nil)

func NewOffline() *Offline {
	return &Offline{Equity: decimal.NewFromInt(100_000)}
}

func (o *Offline) Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	return &models.PortfolioSnapshot{
		Positions:   map[string]models.Position{},
		Equity:      o.Equity,
		BuyingPower: o.Equity,
		MarginUsed:  decimal.Zero,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (o *Offline) SubmitOrder(ctx context.Context, intent OrderIntent) (string, error) {
	return "", fmt.Errorf("%w: no brokerage configured", models.ErrExecutionFailed)
}

func (o *Offline) MarketOpen(ctx context.Context, class models.AssetClass) (bool, error) {
	return true, nil
}
