// Package pipeline sequences one analysis run per symbol through a fixed
// state machine: PENDING, ANALYZING, DEBATING, DECIDING, RISK_CHECK, then
// DONE or ERROR.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irwinlee/tradecouncil/internal/agents"
	"github.com/irwinlee/tradecouncil/internal/debate"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
	"github.com/irwinlee/tradecouncil/internal/risk"
	"github.com/irwinlee/tradecouncil/internal/synthesis"
)

// PriceSource supplies the reference price orders are valued at during risk
// evaluation.
type PriceSource interface {
	ReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SnapshotSource fetches fresh portfolio state. Satisfied by any Brokerage.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error)
}

// Result is everything one completed run produced.
type Result struct {
	Request *models.AnalysisRequest
	Reports map[models.AnalystKind]models.AgentReport
	Turns   []models.DebateTurn
	Verdict risk.Verdict
}

// Orchestrator owns run sequencing, per-symbol overlap prevention and the
// status stream. Stage components are injected so tests run with fakes.
type Orchestrator struct {
	pool   *agents.Pool
	debate *debate.Engine
	synth  *synthesis.Synthesizer
	gate   *risk.Gate
	port   SnapshotSource
	prices PriceSource

	mu        sync.Mutex
	inflight  map[string]struct{}
	observers map[int]chan models.RunStatus
	nextObs   int
}

func NewOrchestrator(pool *agents.Pool, eng *debate.Engine, synth *synthesis.Synthesizer, gate *risk.Gate, port SnapshotSource, prices PriceSource) *Orchestrator {
	return &Orchestrator{
		pool:      pool,
		debate:    eng,
		synth:     synth,
		gate:      gate,
		port:      port,
		prices:    prices,
		inflight:  make(map[string]struct{}),
		observers: make(map[int]chan models.RunStatus),
	}
}

// Subscribe registers a status observer. The channel is buffered; a slow
// observer loses events rather than blocking any run. The returned cancel
// closes the channel.
func (o *Orchestrator) Subscribe() (<-chan models.RunStatus, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextObs
	o.nextObs++
	ch := make(chan models.RunStatus, 64)
	o.observers[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if existing, ok := o.observers[id]; ok {
			delete(o.observers, id)
			close(existing)
		}
	}
}

func (o *Orchestrator) publish(symbol string, state models.RunState, detail string) {
	status := models.RunStatus{Symbol: symbol, State: state, Detail: detail, At: time.Now().UTC()}
	observ.Log("pipeline.state", map[string]any{
		"symbol": symbol, "state": string(state), "detail": detail,
	})
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.observers {
		select {
		case ch <- status:
		default:
		}
	}
}

// Run executes the full pipeline for one request. A second Run for the same
// symbol before the first reaches a terminal state fails with ErrRunInFlight.
// Failures inside a stage surface as a StageError after the ERROR status is
// published; they never affect other symbols' runs.
func (o *Orchestrator) Run(ctx context.Context, req *models.AnalysisRequest) (*Result, error) {
	o.mu.Lock()
	if _, busy := o.inflight[req.Symbol]; busy {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", models.ErrRunInFlight, req.Symbol)
	}
	o.inflight[req.Symbol] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inflight, req.Symbol)
		o.mu.Unlock()
	}()

	o.publish(req.Symbol, models.RunPending, "")
	result := &Result{Request: req}

	o.publish(req.Symbol, models.RunAnalyzing, "")
	result.Reports = o.pool.Run(ctx, req)
	if err := ctx.Err(); err != nil {
		return nil, o.fail(req.Symbol, "analyze", err)
	}

	o.publish(req.Symbol, models.RunDebating, "")
	turns, err := o.debate.Run(ctx, req, result.Reports)
	if err != nil {
		return nil, o.fail(req.Symbol, "debate", err)
	}
	result.Turns = turns

	o.publish(req.Symbol, models.RunDeciding, "")
	decision, err := o.synth.Run(ctx, req, result.Reports, result.Turns)
	if err != nil {
		return nil, o.fail(req.Symbol, "decide", err)
	}

	o.publish(req.Symbol, models.RunRiskCheck, "")
	snapshot, err := o.port.Snapshot(ctx)
	if err != nil {
		return nil, o.fail(req.Symbol, "risk_check", err)
	}
	price, err := o.prices.ReferencePrice(ctx, req.Symbol)
	if err != nil {
		// Sizing falls back to the decision's price target.
		observ.Log("pipeline.price_unavailable", map[string]any{
			"symbol": req.Symbol, "error": err.Error(),
		})
		price = decimal.Zero
	}
	result.Verdict = o.gate.Evaluate(decision, snapshot, price)

	o.publish(req.Symbol, models.RunDone,
		fmt.Sprintf("%s %s", result.Verdict.Outcome, result.Verdict.Decision.Action))
	return result, nil
}

func (o *Orchestrator) fail(symbol, stage string, cause error) error {
	err := &models.StageError{Stage: stage, Err: cause}
	o.publish(symbol, models.RunError, err.Error())
	return err
}
