// Package agents holds the fixed set of analyst roles and the pool that
// runs them. Variants are a closed enum: extending the system means adding
// an AnalystKind and a prompt here, not runtime registration.
package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/irwinlee/tradecouncil/internal/dataflows"
	"github.com/irwinlee/tradecouncil/internal/llm"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
	"github.com/irwinlee/tradecouncil/internal/ratelimit"
)

// Deps are the external capabilities an analyst consumes. Tests inject
// fakes for all three.
type Deps struct {
	Gen     llm.Generator
	Data    dataflows.Provider
	Limiter *ratelimit.Limiter
}

// Analyst is one report-producing role.
type Analyst struct {
	Kind   models.AnalystKind
	system string
}

var analystPrompts = map[models.AnalystKind]string{
	models.AnalystMarket: "You are a market analyst on a trading research team. " +
		"Assess price action, trend, momentum and volume for the given symbol. " +
		"Write a concise report a portfolio manager can act on; do not hedge with generic disclaimers.",
	models.AnalystSocial: "You are a social sentiment analyst on a trading research team. " +
		"Assess investor chatter, community mood and retail positioning around the given symbol. " +
		"Call out hype divergences from fundamentals.",
	models.AnalystNews: "You are a news analyst on a trading research team. " +
		"Summarize recent headlines for the given symbol and judge their likely price impact.",
	models.AnalystFundamental: "You are a fundamentals analyst on a trading research team. " +
		"Assess valuation, earnings quality and balance-sheet strength for the given symbol.",
	models.AnalystMacro: "You are a macro analyst on a trading research team. " +
		"Assess rates, inflation, policy and cross-asset flows as they bear on the given symbol.",
}

// NewAnalysts returns the five fixed analysts in launch order.
func NewAnalysts() []*Analyst {
	out := make([]*Analyst, 0, len(models.AllAnalystKinds))
	for _, kind := range models.AllAnalystKinds {
		out = append(out, &Analyst{Kind: kind, system: analystPrompts[kind]})
	}
	return out
}

// Produce runs one analyst to a terminal report. Failures never escape as
// errors: timeouts, rate-limit exhaustion and provider faults all degrade
// into the report's status so sibling analysts keep running.
func (a *Analyst) Produce(ctx context.Context, req *models.AnalysisRequest, deps Deps) models.AgentReport {
	report := models.AgentReport{Kind: a.Kind, ProducedAt: time.Now().UTC()}

	dataCtx, err := deps.Data.Context(ctx, a.Kind, req.Symbol, req.AsOf)
	if err != nil {
		// Absorbed: the analyst argues from prompt knowledge and the
		// synthesizer sees the gap in the report text.
		observ.Log("analyst.data_unavailable", map[string]any{
			"symbol": req.Symbol, "kind": string(a.Kind), "error": err.Error(),
		})
		dataCtx = ""
	}
	// Pacing between a tool result and the dependent LLM call.
	if err := deps.Limiter.Acquire(ctx, ratelimit.CapabilityTool); err != nil {
		return a.failed(report, err)
	}
	if err := deps.Limiter.Acquire(ctx, ratelimit.CapabilityLLM); err != nil {
		return a.failed(report, err)
	}

	messages := a.messages(req, dataCtx)
	var content string
	err = deps.Limiter.WithRetry(ctx, func() error {
		var genErr error
		content, genErr = deps.Gen.Generate(ctx, messages)
		return genErr
	})
	if err != nil {
		return a.failed(report, err)
	}

	report.Status = models.ReportOK
	report.Content = content
	report.ProducedAt = time.Now().UTC()
	return report
}

func (a *Analyst) failed(report models.AgentReport, err error) models.AgentReport {
	report.ProducedAt = time.Now().UTC()
	report.Error = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		report.Status = models.ReportTimedOut
	default:
		report.Status = models.ReportFailed
	}
	return report
}

func (a *Analyst) messages(req *models.AnalysisRequest, dataCtx string) []*schema.Message {
	user := fmt.Sprintf("Symbol: %s (%s)\nAnalysis date: %s\n",
		req.Symbol, req.AssetClass, req.AsOf.Format("2006-01-02"))
	if dataCtx != "" {
		user += "\nLatest data:\n" + dataCtx
	} else {
		user += "\nNo live data is available; reason from general knowledge and say so."
	}
	return []*schema.Message{
		schema.SystemMessage(a.system),
		schema.UserMessage(user),
	}
}
