package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/irwinlee/tradecouncil/internal/models"
)

// PromptForSymbols asks for one or more symbols when none were given on the
// command line. Comma or space separated; crypto pairs use a slash.
func PromptForSymbols() ([]string, error) {
	var raw string
	prompt := &survey.Input{
		Message: "Symbols to analyze (e.g. NVDA, AAPL, BTC/USD):",
		Help:    "Separate multiple symbols with commas or spaces. A slash marks a crypto pair.",
	}
	err := survey.AskOne(prompt, &raw, survey.WithValidator(func(val interface{}) error {
		symbols := splitSymbols(val.(string))
		if len(symbols) == 0 {
			return fmt.Errorf("enter at least one symbol")
		}
		for _, symbol := range symbols {
			if err := models.ValidateSymbol(strings.ToUpper(symbol)); err != nil {
				return fmt.Errorf("invalid symbol %q", symbol)
			}
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return splitSymbols(raw), nil
}

// PromptForDate asks for the analysis date, defaulting to today.
func PromptForDate() (time.Time, error) {
	var raw string
	prompt := &survey.Input{
		Message: "Analysis date (YYYY-MM-DD):",
		Default: time.Now().Format("2006-01-02"),
	}
	err := survey.AskOne(prompt, &raw, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return nil
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return fmt.Errorf("use YYYY-MM-DD format")
		}
		return nil
	}))
	if err != nil {
		return time.Time{}, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", raw)
}

// ConfirmAutoExecute double-checks before the scheduler is allowed to place
// live orders.
func ConfirmAutoExecute() (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{
		Message: "Auto-execute approved decisions with real orders?",
		Default: false,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

func splitSymbols(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
