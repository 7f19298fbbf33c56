// Package synthesis reduces the analyst reports and the debate record into
// one trade decision.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/internal/agents"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
	"github.com/irwinlee/tradecouncil/internal/ratelimit"
)

const synthesizerPrompt = "You are the head trader on a research team. Weigh the analyst reports " +
	"and the bull/bear debate, then commit to exactly one action. End your response with lines in " +
	"this exact format:\n" +
	"FINAL TRANSACTION PROPOSAL: **BUY|SELL|SHORT|HOLD**\n" +
	"QUANTITY: <number of shares or units, 0 for HOLD>\n" +
	"PRICE TARGET: <number, or NONE>\n" +
	"CONFIDENCE: <0.0-1.0>"

// Synthesizer produces exactly one Decision per run via a single LLM
// reduction over everything the earlier stages produced.
type Synthesizer struct {
	deps          agents.Deps
	marginEnabled bool
}

func New(marginEnabled bool, deps agents.Deps) *Synthesizer {
	return &Synthesizer{deps: deps, marginEnabled: marginEnabled}
}

// Run returns the synthesized decision. It never invents direction from
// nothing: an all-failed report set short-circuits to HOLD with zero
// confidence. An LLM failure here is fatal to the run.
func (s *Synthesizer) Run(ctx context.Context, req *models.AnalysisRequest, reports map[models.AnalystKind]models.AgentReport, turns []models.DebateTurn) (*models.Decision, error) {
	okCount := 0
	for _, report := range reports {
		if report.Status == models.ReportOK {
			okCount++
		}
	}
	if okCount == 0 {
		return s.insufficientData(req), nil
	}

	if err := s.deps.Limiter.Acquire(ctx, ratelimit.CapabilityLLM); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSynthesisFailed, err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(s.synthesisSystem(req)),
		schema.UserMessage(synthesisContext(req, reports, turns)),
	}
	var raw string
	err := s.deps.Limiter.WithRetry(ctx, func() error {
		var genErr error
		raw, genErr = s.deps.Gen.Generate(ctx, messages)
		return genErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSynthesisFailed, err)
	}

	signal := ParseSignal(raw)
	decision := &models.Decision{
		Symbol:      req.Symbol,
		AssetClass:  req.AssetClass,
		Action:      signal.Action,
		Quantity:    signal.Quantity,
		PriceTarget: signal.PriceTarget,
		Rationale:   signal.Rationale,
		Confidence:  signal.Confidence,
		DecidedAt:   req.AsOf,
	}

	if decision.Action == models.ActionShort && !s.shortAllowed(req.AssetClass) {
		observ.Log("synthesis.short_substituted", map[string]any{
			"symbol": req.Symbol, "asset_class": string(req.AssetClass),
		})
		decision.Action = models.ActionHold
		decision.Quantity = decimal.Zero
		decision.Rationale = "Short signal substituted with HOLD: short selling is not permitted for this configuration. " + decision.Rationale
	}

	if partial := len(reports) - okCount; partial > 0 {
		decision.PartialData = true
		decision.Confidence *= float64(okCount) / float64(len(reports))
		decision.Rationale = fmt.Sprintf("Partial data: %d of %d analyst reports unavailable. %s",
			partial, len(reports), decision.Rationale)
	}
	return decision, nil
}

func (s *Synthesizer) shortAllowed(class models.AssetClass) bool {
	return s.marginEnabled && class == models.AssetEquity
}

func (s *Synthesizer) synthesisSystem(req *models.AnalysisRequest) string {
	prompt := synthesizerPrompt
	if !s.shortAllowed(req.AssetClass) {
		prompt += "\nSHORT is not available for this symbol; choose from BUY, SELL, HOLD."
	}
	return prompt
}

func (s *Synthesizer) insufficientData(req *models.AnalysisRequest) *models.Decision {
	return &models.Decision{
		Symbol:      req.Symbol,
		AssetClass:  req.AssetClass,
		Action:      models.ActionHold,
		Quantity:    decimal.Zero,
		Rationale:   "Insufficient data: no analyst produced a usable report.",
		Confidence:  0.0,
		PartialData: true,
		DecidedAt:   req.AsOf,
	}
}

func synthesisContext(req *models.AnalysisRequest, reports map[models.AnalystKind]models.AgentReport, turns []models.DebateTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s (%s)\nAnalysis date: %s\n\nAnalyst reports:\n",
		req.Symbol, req.AssetClass, req.AsOf.Format("2006-01-02"))
	for _, kind := range models.AllAnalystKinds {
		report, ok := reports[kind]
		if !ok {
			continue
		}
		if report.Status != models.ReportOK {
			fmt.Fprintf(&b, "\n[%s] unavailable (%s)\n", kind, report.Status)
			continue
		}
		fmt.Fprintf(&b, "\n[%s]\n%s\n", kind, report.Content)
	}
	if len(turns) > 0 {
		b.WriteString("\nDebate record:\n")
		for _, turn := range turns {
			if turn.Content == "" {
				continue
			}
			fmt.Fprintf(&b, "\nRound %d %s: %s\n", turn.Round, turn.Stance, turn.Content)
		}
	}
	return b.String()
}
