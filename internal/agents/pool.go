package agents

import (
	"context"
	"sync"
	"time"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
)

// Pool runs the fixed analyst set for one symbol. The join policy is
// partial success: Run returns when every analyst has reached a terminal
// status, exactly one report per kind, regardless of individual failures.
type Pool struct {
	analysts []*Analyst
	deps     Deps
	parallel bool
	timeout  time.Duration
}

func NewPool(cfg *config.Config, deps Deps) *Pool {
	return &Pool{
		analysts: NewAnalysts(),
		deps:     deps,
		parallel: cfg.ParallelAnalysts,
		timeout:  cfg.AnalystTimeout(),
	}
}

// Run produces one AgentReport per analyst kind. It never returns an error;
// downstream stages reason about non-OK report statuses instead.
func (p *Pool) Run(ctx context.Context, req *models.AnalysisRequest) map[models.AnalystKind]models.AgentReport {
	reports := make(map[models.AnalystKind]models.AgentReport, len(p.analysts))

	if p.parallel {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i, analyst := range p.analysts {
			wg.Add(1)
			go func(n int, a *Analyst) {
				defer wg.Done()
				report := p.runOne(ctx, n, a, req)
				mu.Lock()
				reports[a.Kind] = report
				mu.Unlock()
			}(i, analyst)
		}
		wg.Wait()
	} else {
		for _, analyst := range p.analysts {
			reports[analyst.Kind] = p.runOne(ctx, 0, analyst, req)
		}
	}

	return reports
}

func (p *Pool) runOne(ctx context.Context, stagger int, a *Analyst, req *models.AnalysisRequest) models.AgentReport {
	if err := p.deps.Limiter.StaggerStart(ctx, stagger); err != nil {
		return models.AgentReport{
			Kind:       a.Kind,
			Status:     models.ReportSkipped,
			Error:      err.Error(),
			ProducedAt: time.Now().UTC(),
		}
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	report := a.Produce(taskCtx, req, p.deps)
	observ.Log("analyst.done", map[string]any{
		"symbol":      req.Symbol,
		"kind":        string(a.Kind),
		"status":      string(report.Status),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return report
}
