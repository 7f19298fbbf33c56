// Package broker is the execution boundary. The rest of the pipeline only
// sees the Brokerage interface; position state is never cached locally.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/internal/models"
)

// OrderIntent is the minimal order the schedule controller forwards for an
// approved decision. Market orders only.
type OrderIntent struct {
	Symbol   string
	Action   models.Action
	Quantity decimal.Decimal
}

// Brokerage is the external account-and-execution capability.
type Brokerage interface {
	// Snapshot fetches current positions and account balances. Callers
	// fetch fresh before every risk evaluation.
	Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error)
	// SubmitOrder places a market order and returns the broker's order id.
	SubmitOrder(ctx context.Context, intent OrderIntent) (string, error)
	// MarketOpen reports whether the venue for the asset class is
	// currently accepting orders. Crypto venues always are.
	MarketOpen(ctx context.Context, class models.AssetClass) (bool, error)
}
