// Package scheduler re-triggers pipeline runs per tracked symbol, gated by
// each asset class's market calendar.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/broker"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
	"github.com/irwinlee/tradecouncil/internal/pipeline"
	"github.com/irwinlee/tradecouncil/internal/risk"
)

// Runner triggers one pipeline run. Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req *models.AnalysisRequest) (*pipeline.Result, error)
}

// Outcome is what one scheduled trigger produced, including the execution
// attempt when auto-execute applies. Execution failures live here; they are
// reported once and never retried.
type Outcome struct {
	Symbol  string
	Result  *pipeline.Result
	RunErr  error
	OrderID string
	ExecErr error
}

// Controller owns the schedule entries. It is the only writer of the entry
// set; runs themselves execute concurrently and are overlap-guarded by the
// orchestrator.
type Controller struct {
	runner   Runner
	broker   broker.Brokerage
	interval time.Duration
	tick     time.Duration
	// autoExecuteAll mirrors auto_execute_trades: when set, every tracked
	// symbol forwards approved decisions, regardless of its entry flag.
	autoExecuteAll bool

	mu      sync.Mutex
	entries map[string]*models.ScheduleEntry

	outcomes chan Outcome
	wg       sync.WaitGroup
}

func NewController(cfg *config.Config, runner Runner, brokerage broker.Brokerage) *Controller {
	return &Controller{
		runner:         runner,
		broker:         brokerage,
		interval:       cfg.ScheduleInterval(),
		tick:           30 * time.Second,
		autoExecuteAll: cfg.AutoExecuteTrades,
		entries:        make(map[string]*models.ScheduleEntry),
		outcomes:       make(chan Outcome, 64),
	}
}

// Track adds a symbol to the schedule, eligible immediately. Tracking an
// already tracked symbol updates its auto-execute flag only.
func (c *Controller) Track(symbol string, autoExecute bool) error {
	req, err := models.NewAnalysisRequest(symbol, time.Now())
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[req.Symbol]; ok {
		entry.AutoExecute = autoExecute
		return nil
	}
	c.entries[req.Symbol] = &models.ScheduleEntry{
		Symbol:      req.Symbol,
		AssetClass:  req.AssetClass,
		Interval:    c.interval,
		NextRunAt:   time.Now(),
		Enabled:     true,
		AutoExecute: autoExecute,
	}
	observ.Log("schedule.tracked", map[string]any{
		"symbol": req.Symbol, "auto_execute": autoExecute, "interval": c.interval.String(),
	})
	return nil
}

// SetInterval applies a new recurrence period to the schedule and to every
// existing entry. Used when a config reload changes schedule_interval.
func (c *Controller) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = interval
	for _, entry := range c.entries {
		entry.Interval = interval
	}
}

// Remove drops a symbol from tracking. An in-flight run for it finishes
// normally.
func (c *Controller) Remove(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

// Entries returns a copy of the current schedule.
func (c *Controller) Entries() []models.ScheduleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ScheduleEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, *entry)
	}
	return out
}

// Outcomes streams the result of every scheduled trigger. Buffered; a slow
// consumer loses outcomes rather than stalling the schedule.
func (c *Controller) Outcomes() <-chan Outcome {
	return c.outcomes
}

// Start runs the tick loop until the context is cancelled, then waits for
// in-flight runs to finish.
func (c *Controller) Start(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.sweep(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return
		case now := <-ticker.C:
			c.sweep(ctx, now)
		}
	}
}

// sweep triggers every due entry whose market is open. A closed equity
// session defers the entry untouched, so it fires on the first tick of the
// next open session rather than queueing up missed runs.
func (c *Controller) sweep(ctx context.Context, now time.Time) {
	for _, entry := range c.due(now) {
		open, err := c.broker.MarketOpen(ctx, entry.AssetClass)
		if err != nil {
			observ.Log("schedule.calendar_error", map[string]any{
				"symbol": entry.Symbol, "error": err.Error(),
			})
			continue
		}
		if !open {
			observ.Log("schedule.deferred", map[string]any{
				"symbol": entry.Symbol, "asset_class": string(entry.AssetClass),
			})
			continue
		}

		c.advance(entry.Symbol, now)
		c.wg.Add(1)
		go func(symbol string, autoExecute bool) {
			defer c.wg.Done()
			c.runOne(ctx, symbol, autoExecute)
		}(entry.Symbol, entry.AutoExecute || c.autoExecuteAll)
	}
}

func (c *Controller) due(now time.Time) []models.ScheduleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due []models.ScheduleEntry
	for _, entry := range c.entries {
		if entry.Enabled && !entry.NextRunAt.After(now) {
			due = append(due, *entry)
		}
	}
	return due
}

func (c *Controller) advance(symbol string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[symbol]; ok {
		entry.NextRunAt = now.Add(entry.Interval)
	}
}

func (c *Controller) runOne(ctx context.Context, symbol string, autoExecute bool) {
	req, err := models.NewAnalysisRequest(symbol, time.Now())
	if err != nil {
		c.report(Outcome{Symbol: symbol, RunErr: err})
		return
	}

	result, err := c.runner.Run(ctx, req)
	if err != nil {
		c.report(Outcome{Symbol: symbol, RunErr: err})
		return
	}

	outcome := Outcome{Symbol: symbol, Result: result}
	if autoExecute && executable(result.Verdict) {
		decision := result.Verdict.Decision
		orderID, execErr := c.broker.SubmitOrder(ctx, broker.OrderIntent{
			Symbol:   decision.Symbol,
			Action:   decision.Action,
			Quantity: decision.Quantity,
		})
		outcome.OrderID = orderID
		outcome.ExecErr = execErr
		if execErr != nil {
			observ.Log("schedule.execution_failed", map[string]any{
				"symbol": symbol, "error": execErr.Error(),
			})
		}
	}
	c.report(outcome)
}

// executable permits only approved or scaled directional decisions.
func executable(verdict risk.Verdict) bool {
	if verdict.Outcome == risk.OutcomeVetoed {
		return false
	}
	return verdict.Decision.Action != models.ActionHold
}

func (c *Controller) report(outcome Outcome) {
	select {
	case c.outcomes <- outcome:
	default:
		observ.Log("schedule.outcome_dropped", map[string]any{"symbol": outcome.Symbol})
	}
}
