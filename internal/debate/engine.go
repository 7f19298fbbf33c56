// Package debate runs the structured bull/bear argument over the analyst
// reports. The engine owns turn-taking only; it never scores or summarizes
// the argument.
package debate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/irwinlee/tradecouncil/internal/agents"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
	"github.com/irwinlee/tradecouncil/internal/ratelimit"
)

var stancePrompts = map[models.Stance]string{
	models.StanceBull: "You are the bull researcher in an investment debate. " +
		"Argue the strongest case FOR taking a long position in the given symbol, " +
		"using the analyst reports and rebutting the bear's prior points directly. " +
		"Be specific; concede nothing without a counter.",
	models.StanceBear: "You are the bear researcher in an investment debate. " +
		"Argue the strongest case AGAINST taking a long position in the given symbol, " +
		"using the analyst reports and rebutting the bull's prior points directly. " +
		"Be specific; concede nothing without a counter.",
}

// Engine alternates stances for a fixed number of turns. Turns are strictly
// sequential; each sees all reports and every prior turn.
type Engine struct {
	deps      agents.Deps
	maxRounds int
}

func NewEngine(maxRounds int, deps agents.Deps) *Engine {
	return &Engine{deps: deps, maxRounds: maxRounds}
}

// Run produces exactly maxRounds turns, BULL first then strictly alternating.
// maxRounds 0 skips the debate. A failed turn degrades to empty content and
// the debate continues; cancellation aborts between turns.
func (e *Engine) Run(ctx context.Context, req *models.AnalysisRequest, reports map[models.AnalystKind]models.AgentReport) ([]models.DebateTurn, error) {
	if e.maxRounds <= 0 {
		return nil, nil
	}

	turns := make([]models.DebateTurn, 0, e.maxRounds)
	for i := 0; i < e.maxRounds; i++ {
		if err := ctx.Err(); err != nil {
			return turns, err
		}
		stance := models.StanceBull
		if i%2 == 1 {
			stance = models.StanceBear
		}

		content, err := e.takeTurn(ctx, req, stance, reports, turns)
		if err != nil {
			// A dead turn stays in the sequence so later turns keep
			// their round numbering and the synthesizer sees the gap.
			observ.Log("debate.turn_failed", map[string]any{
				"symbol": req.Symbol,
				"round":  i + 1,
				"stance": string(stance),
				"error":  err.Error(),
			})
			content = ""
		}
		turns = append(turns, models.DebateTurn{Round: i + 1, Stance: stance, Content: content})
	}
	return turns, nil
}

func (e *Engine) takeTurn(ctx context.Context, req *models.AnalysisRequest, stance models.Stance, reports map[models.AnalystKind]models.AgentReport, prior []models.DebateTurn) (string, error) {
	if err := e.deps.Limiter.Acquire(ctx, ratelimit.CapabilityLLM); err != nil {
		return "", err
	}

	messages := []*schema.Message{
		schema.SystemMessage(stancePrompts[stance]),
		schema.UserMessage(turnContext(req, reports, prior)),
	}

	var content string
	err := e.deps.Limiter.WithRetry(ctx, func() error {
		var genErr error
		content, genErr = e.deps.Gen.Generate(ctx, messages)
		return genErr
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// turnContext renders the accumulated debate state: every report, then every
// prior turn in order.
func turnContext(req *models.AnalysisRequest, reports map[models.AnalystKind]models.AgentReport, prior []models.DebateTurn) string {
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

	if len(prior) > 0 {
		b.WriteString("\nDebate so far:\n")
		for _, turn := range prior {
			if turn.Content == "" {
				fmt.Fprintf(&b, "\nRound %d %s: (no argument recorded)\n", turn.Round, turn.Stance)
				continue
			}
			fmt.Fprintf(&b, "\nRound %d %s: %s\n", turn.Round, turn.Stance, turn.Content)
		}
	}
	return b.String()
}
