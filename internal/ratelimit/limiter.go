package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
)

// Capability names the external call class being paced.
type Capability string

const (
	CapabilityLLM  Capability = "llm"
	CapabilityTool Capability = "tool"
)

// Limiter is the single process-wide pacing gate for LLM and data-tool
// calls. All pipeline runs share one Limiter; pacing is never per symbol.
//
// Three delays apply cumulatively: a start stagger before the n-th parallel
// analyst launches, a steady-state delay before each LLM call, and a delay
// between a tool result and the next dependent call.
type Limiter struct {
	llm        *rate.Limiter
	tool       *rate.Limiter
	startDelay time.Duration
	maxRetries int
	backoff    time.Duration
}

func New(cfg *config.Config) *Limiter {
	return &Limiter{
		llm:        newPacer(cfg.AnalystCallDelay()),
		tool:       newPacer(cfg.ToolResultDelay()),
		startDelay: cfg.AnalystStartDelay(),
		maxRetries: cfg.MaxRateLimitRetries,
		backoff:    time.Second,
	}
}

func newPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Acquire blocks until issuing one call of the given capability would not
// exceed the configured pacing, or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context, cap Capability) error {
	lim := l.llm
	if cap == CapabilityTool {
		lim = l.tool
	}
	err := lim.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// rate.Wait refuses up front when the projected wait would overrun the
	// caller's deadline, with an error that is not the context's own. That
	// is still a deadline problem; report it as one.
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// StaggerStart sleeps the launch stagger for the n-th concurrently started
// analyst (zero-based, so the first starts immediately).
func (l *Limiter) StaggerStart(ctx context.Context, n int) error {
	d := time.Duration(n) * l.startDelay
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRetry runs fn, backing off exponentially on externally reported
// rate-limit errors up to the configured attempt bound. Any other error
// returns immediately. After the bound is exhausted the last rate-limit
// error surfaces wrapped in models.ErrRateLimited, so the caller can
// degrade just the affected analyst.
func (l *Limiter) WithRetry(ctx context.Context, fn func() error) error {
	var err error
	wait := l.backoff
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsRateLimit(err) {
			return err
		}
		if attempt >= l.maxRetries {
			break
		}
		observ.Log("ratelimit.backoff", map[string]any{
			"attempt": attempt + 1,
			"wait_ms": wait.Milliseconds(),
		})
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
		wait *= 2
	}
	return errors.Join(models.ErrRateLimited, err)
}

// IsRateLimit reports whether err looks like an external rate-limit
// rejection. Providers are inconsistent, so this matches both the sentinel
// and the usual message shapes.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}
