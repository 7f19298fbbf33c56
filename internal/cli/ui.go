package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/pipeline"
	"github.com/irwinlee/tradecouncil/internal/risk"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(1, 2).
			Width(80)

	symbolStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	vetoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	scaledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
)

func stateStyle(state models.RunState) lipgloss.Style {
	switch state {
	case models.RunPending:
		return pendingStyle
	case models.RunDone:
		return doneStyle
	case models.RunError:
		return errorStyle
	default:
		return runningStyle
	}
}

// StatusBoard renders the run status stream as it arrives, one line per
// transition.
type StatusBoard struct {
	out io.Writer
}

func NewStatusBoard(out io.Writer) *StatusBoard {
	return &StatusBoard{out: out}
}

// Follow drains the status stream until it closes.
func (b *StatusBoard) Follow(events <-chan models.RunStatus) {
	for status := range events {
		line := fmt.Sprintf("%s %s",
			symbolStyle.Render(fmt.Sprintf("%-10s", status.Symbol)),
			stateStyle(status.State).Render(string(status.State)))
		if status.Detail != "" {
			line += " " + pendingStyle.Render(status.Detail)
		}
		fmt.Fprintln(b.out, line)
	}
}

// RenderResult prints the final decision panel for one completed run.
func RenderResult(out io.Writer, result *pipeline.Result) {
	verdict := result.Verdict
	decision := verdict.Decision

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\n", decision.Symbol, decision.AssetClass)
	fmt.Fprintf(&b, "Outcome:    %s\n", renderOutcome(verdict.Outcome))
	fmt.Fprintf(&b, "Action:     %s\n", decision.Action)
	if !decision.Quantity.IsZero() {
		fmt.Fprintf(&b, "Quantity:   %s\n", decision.Quantity)
	}
	if !decision.PriceTarget.IsZero() {
		fmt.Fprintf(&b, "Target:     %s\n", decision.PriceTarget)
	}
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", decision.Confidence*100)
	if verdict.Reason != "" {
		fmt.Fprintf(&b, "Note:       %s\n", verdict.Reason)
	}
	if decision.PartialData {
		fmt.Fprintf(&b, "%s\n", scaledStyle.Render("Based on partial analyst data"))
	}
	fmt.Fprintf(&b, "\nAnalysts: %s\n", renderReportSummary(result.Reports))
	if decision.Rationale != "" {
		fmt.Fprintf(&b, "\n%s\n", wrap(decision.Rationale, 72))
	}

	fmt.Fprintln(out, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderOutcome(outcome risk.Outcome) string {
	switch outcome {
	case risk.OutcomeVetoed:
		return vetoStyle.Render(string(outcome))
	case risk.OutcomeScaled:
		return scaledStyle.Render(string(outcome))
	default:
		return doneStyle.Render(string(outcome))
	}
}

func renderReportSummary(reports map[models.AnalystKind]models.AgentReport) string {
	parts := make([]string, 0, len(reports))
	for _, kind := range models.AllAnalystKinds {
		report, ok := reports[kind]
		if !ok {
			continue
		}
		mark := doneStyle.Render("✓")
		if report.Status != models.ReportOK {
			mark = errorStyle.Render("✗")
		}
		parts = append(parts, fmt.Sprintf("%s %s", strings.ToLower(string(kind)), mark))
	}
	return strings.Join(parts, "  ")
}

func wrap(text string, width int) string {
	words := strings.Fields(text)
	var b strings.Builder
	lineLen := 0
	for _, word := range words {
		if lineLen > 0 && lineLen+len(word)+1 > width {
			b.WriteString("\n")
			lineLen = 0
		} else if lineLen > 0 {
			b.WriteString(" ")
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}
