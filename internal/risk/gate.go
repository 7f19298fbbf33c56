// Package risk gates synthesized decisions against live portfolio state and
// configured limits. This is the only place a quantity may change after
// synthesis.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
)

// Outcome is the gate's verdict class.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeScaled   Outcome = "SCALED"
	OutcomeVetoed   Outcome = "VETOED"
)

// Verdict carries the evaluated decision. Decision is a copy; the input is
// never mutated. On VETOED the original decision rides along unexecuted.
type Verdict struct {
	Outcome  Outcome
	Decision models.Decision
	Reason   string
}

// Gate evaluates decisions against a portfolio snapshot. It holds only
// config-derived limits; portfolio truth arrives fresh on every call.
type Gate struct {
	allowEquities  bool
	allowCrypto    bool
	marginEnabled  bool
	maxPositionPct decimal.Decimal
	maxExposurePct decimal.Decimal
}

func NewGate(cfg *config.Config) *Gate {
	return &Gate{
		allowEquities:  cfg.AllowEquities,
		allowCrypto:    cfg.AllowCrypto,
		marginEnabled:  cfg.EnableMarginTrading,
		maxPositionPct: decimal.NewFromFloat(cfg.MaxPositionPct),
		maxExposurePct: decimal.NewFromFloat(cfg.MaxSymbolExposurePct),
	}
}

// Evaluate runs the ordered checks: asset class permitted, buying-power
// headroom, margin headroom for shorts, position-size limit, symbol
// exposure cap. price is the current reference price used to value the
// order; PriceTarget is the fallback. HOLD always passes through APPROVED
// and unchanged.
func (g *Gate) Evaluate(decision *models.Decision, snapshot *models.PortfolioSnapshot, price decimal.Decimal) Verdict {
	out := *decision
	if decision.Action == models.ActionHold {
		return Verdict{Outcome: OutcomeApproved, Decision: out}
	}

	if verdict, vetoed := g.classCheck(decision, out); vetoed {
		return verdict
	}
	if price.IsZero() {
		price = decision.PriceTarget
	}

	if decision.Action == models.ActionSell {
		return g.evaluateSell(decision, snapshot, out)
	}

	// BUY and SHORT are sized in notional terms, so a usable price is
	// mandatory from here on.
	if price.Sign() <= 0 {
		return g.veto(out, "no reference price available to size the order")
	}
	if decision.Quantity.Sign() <= 0 {
		return g.veto(out, "directional order with non-positive quantity")
	}

	maxQty := decision.Quantity
	reason := ""

	if affordable := snapshot.BuyingPower.Div(price); affordable.LessThan(maxQty) {
		if affordable.Sign() <= 0 {
			return g.veto(out, "insufficient buying power")
		}
		maxQty = affordable
		reason = "buying power"
	}

	if decision.Action == models.ActionShort {
		// Shorts are collateralized by equity not already pledged as margin.
		free := snapshot.Equity.Sub(snapshot.MarginUsed)
		if marginCap := free.Div(price); marginCap.LessThan(maxQty) {
			if marginCap.Sign() <= 0 {
				return g.veto(out, "margin fully utilized")
			}
			maxQty = marginCap
			reason = "margin headroom"
		}
	}

	positionCap := snapshot.Equity.Mul(g.maxPositionPct).Div(price)
	if positionCap.LessThan(maxQty) {
		if positionCap.Sign() <= 0 {
			return g.veto(out, "position-size limit leaves no headroom")
		}
		maxQty = positionCap
		reason = "position-size limit"
	}

	exposureQty := g.exposureHeadroom(decision.Symbol, snapshot, price)
	if exposureQty.LessThan(maxQty) {
		if exposureQty.Sign() <= 0 {
			return g.veto(out, "symbol exposure already at configured maximum")
		}
		maxQty = exposureQty
		reason = "symbol exposure cap"
	}

	if reason == "" {
		return Verdict{Outcome: OutcomeApproved, Decision: out}
	}
	maxQty = roundQuantity(maxQty, decision.AssetClass)
	if maxQty.Sign() <= 0 {
		return g.veto(out, "permissible quantity rounds to zero")
	}
	if maxQty.GreaterThanOrEqual(decision.Quantity) {
		return Verdict{Outcome: OutcomeApproved, Decision: out}
	}

	out.Quantity = maxQty
	observ.Log("risk.scaled", map[string]any{
		"symbol":    decision.Symbol,
		"action":    string(decision.Action),
		"requested": decision.Quantity.String(),
		"granted":   maxQty.String(),
		"limit":     reason,
	})
	return Verdict{
		Outcome:  OutcomeScaled,
		Decision: out,
		Reason:   fmt.Sprintf("quantity reduced by %s check", reason),
	}
}

func (g *Gate) classCheck(decision *models.Decision, out models.Decision) (Verdict, bool) {
	switch {
	case decision.AssetClass == models.AssetEquity && !g.allowEquities:
		return g.veto(out, "equity trading disabled by configuration"), true
	case decision.AssetClass == models.AssetCrypto && !g.allowCrypto:
		return g.veto(out, "crypto trading disabled by configuration"), true
	case decision.Action == models.ActionShort && !g.marginEnabled:
		return g.veto(out, "short selling requires margin trading"), true
	case decision.Action == models.ActionShort && decision.AssetClass == models.AssetCrypto:
		return g.veto(out, "short selling is not modeled for crypto"), true
	}
	return Verdict{}, false
}

// evaluateSell caps a sell at the held quantity. Selling with no position is
// a veto, not a short.
func (g *Gate) evaluateSell(decision *models.Decision, snapshot *models.PortfolioSnapshot, out models.Decision) Verdict {
	held := decimal.Zero
	if position, ok := snapshot.Positions[decision.Symbol]; ok {
		held = position.Quantity
	}
	if held.Sign() <= 0 {
		return g.veto(out, "no open position to sell")
	}
	if decision.Quantity.Sign() <= 0 || decision.Quantity.GreaterThan(held) {
		out.Quantity = held
		if decision.Quantity.Sign() <= 0 {
			return Verdict{Outcome: OutcomeScaled, Decision: out, Reason: "sell quantity defaulted to held position"}
		}
		return Verdict{Outcome: OutcomeScaled, Decision: out, Reason: "sell capped at held quantity"}
	}
	return Verdict{Outcome: OutcomeApproved, Decision: out}
}

// exposureHeadroom converts the remaining symbol-exposure budget into a
// quantity at the reference price. Existing exposure is valued at cost.
func (g *Gate) exposureHeadroom(symbol string, snapshot *models.PortfolioSnapshot, price decimal.Decimal) decimal.Decimal {
	budget := snapshot.Equity.Mul(g.maxExposurePct)
	if position, ok := snapshot.Positions[symbol]; ok {
		budget = budget.Sub(position.CostBasis)
	}
	return budget.Div(price)
}

func (g *Gate) veto(out models.Decision, reason string) Verdict {
	observ.Log("risk.vetoed", map[string]any{
		"symbol": out.Symbol,
		"action": string(out.Action),
		"reason": reason,
	})
	return Verdict{Outcome: OutcomeVetoed, Decision: out, Reason: reason}
}

// roundQuantity keeps equity orders in whole shares; crypto venues accept
// fractional quantities.
func roundQuantity(qty decimal.Decimal, class models.AssetClass) decimal.Decimal {
	if class == models.AssetEquity {
		return qty.Floor()
	}
	return qty.RoundDown(6)
}
