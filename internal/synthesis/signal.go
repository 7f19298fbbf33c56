package synthesis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/internal/models"
)

// Signal is the structured reading of one synthesis response.
type Signal struct {
	Action      models.Action
	Quantity    decimal.Decimal
	PriceTarget decimal.Decimal
	Confidence  float64
	Rationale   string
}

var (
	proposalPattern   = regexp.MustCompile(`(?i)FINAL TRANSACTION PROPOSAL:?\s*\**\s*(BUY|SELL|SHORT|HOLD)`)
	quantityPattern   = regexp.MustCompile(`(?i)QUANTITY:?\s*\**\s*([0-9]+(?:\.[0-9]+)?)`)
	priceTargetPat    = regexp.MustCompile(`(?i)PRICE TARGET:?\s*\**\s*\$?\s*([0-9]+(?:\.[0-9]+)?)`)
	confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:?\s*\**\s*([0-9]*\.?[0-9]+)`)

	bullishWords = []string{"buy", "long", "bullish", "accumulate", "undervalued", "upside"}
	bearishWords = []string{"sell", "bearish", "overvalued", "downside", "exit", "divest"}
)

// ParseSignal extracts the action, sizing and confidence from free-form
// synthesis text. The explicit proposal line wins; keyword scoring is the
// fallback for models that ignore the output format, and a tie reads HOLD.
func ParseSignal(text string) Signal {
	signal := Signal{
		Action:     models.ActionHold,
		Confidence: 0.5,
		Rationale:  rationaleFrom(text),
	}

	if m := proposalPattern.FindStringSubmatch(text); m != nil {
		signal.Action = models.Action(strings.ToUpper(m[1]))
	} else {
		signal.Action = scoreAction(text)
	}
	if m := quantityPattern.FindStringSubmatch(text); m != nil {
		if q, err := decimal.NewFromString(m[1]); err == nil {
			signal.Quantity = q
		}
	}
	if m := priceTargetPat.FindStringSubmatch(text); m != nil {
		if p, err := decimal.NewFromString(m[1]); err == nil {
			signal.PriceTarget = p
		}
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if c, err := strconv.ParseFloat(m[1], 64); err == nil && c >= 0 && c <= 1 {
			signal.Confidence = c
		}
	}

	if signal.Action == models.ActionHold {
		signal.Quantity = decimal.Zero
	}
	return signal
}

func scoreAction(text string) models.Action {
	lower := strings.ToLower(text)
	bull, bear := 0, 0
	for _, w := range bullishWords {
		bull += strings.Count(lower, w)
	}
	for _, w := range bearishWords {
		bear += strings.Count(lower, w)
	}
	switch {
	case bull > bear:
		return models.ActionBuy
	case bear > bull:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

// rationaleFrom keeps the narrative part of the response, dropping the
// machine-readable proposal lines.
func rationaleFrom(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "FINAL TRANSACTION PROPOSAL") ||
			strings.HasPrefix(upper, "QUANTITY:") ||
			strings.HasPrefix(upper, "PRICE TARGET:") ||
			strings.HasPrefix(upper, "CONFIDENCE:") {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}
