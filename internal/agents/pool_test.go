package agents

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/ratelimit"
)

type stubGen struct {
	mu      sync.Mutex
	systems []string
	blockOn []string
	err     error
}

func (g *stubGen) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	sys := msgs[0].Content
	g.mu.Lock()
	g.systems = append(g.systems, sys)
	g.mu.Unlock()

	for _, marker := range g.blockOn {
		if strings.Contains(sys, marker) {
			<-ctx.Done()
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return "analysis body", nil
}

type stubData struct {
	err error
}

func (d stubData) Context(ctx context.Context, kind models.AnalystKind, symbol string, asOf time.Time) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return "close 100.00, volume 1.2M", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.AnalystStartDelayMS = 0
	cfg.AnalystCallDelayMS = 0
	cfg.ToolResultDelayMS = 0
	cfg.AnalystTimeoutSec = 1
	cfg.MaxRateLimitRetries = 0
	return cfg
}

func testRequest(t *testing.T) *models.AnalysisRequest {
	t.Helper()
	req, err := models.NewAnalysisRequest("NVDA", time.Now())
	require.NoError(t, err)
	return req
}

func TestPoolOneReportPerKind(t *testing.T) {
	cfg := testConfig(t)
	gen := &stubGen{}
	pool := NewPool(cfg, Deps{Gen: gen, Data: stubData{}, Limiter: ratelimit.New(cfg)})

	reports := pool.Run(context.Background(), testRequest(t))

	require.Len(t, reports, len(models.AllAnalystKinds))
	for _, kind := range models.AllAnalystKinds {
		report, ok := reports[kind]
		require.True(t, ok, "missing report for %s", kind)
		assert.Equal(t, kind, report.Kind)
		assert.Equal(t, models.ReportOK, report.Status)
		assert.Equal(t, "analysis body", report.Content)
	}
}

func TestPoolDegradesTimeouts(t *testing.T) {
	cfg := testConfig(t)
	gen := &stubGen{blockOn: []string{"social sentiment analyst", "news analyst"}}
	pool := NewPool(cfg, Deps{Gen: gen, Data: stubData{}, Limiter: ratelimit.New(cfg)})

	reports := pool.Run(context.Background(), testRequest(t))

	require.Len(t, reports, len(models.AllAnalystKinds))
	assert.Equal(t, models.ReportTimedOut, reports[models.AnalystSocial].Status)
	assert.Equal(t, models.ReportTimedOut, reports[models.AnalystNews].Status)
	for _, kind := range []models.AnalystKind{models.AnalystMarket, models.AnalystFundamental, models.AnalystMacro} {
		assert.Equal(t, models.ReportOK, reports[kind].Status, "kind %s", kind)
	}
}

func TestPoolTimesOutWhenPacingOutlastsDeadline(t *testing.T) {
	cfg := testConfig(t)
	// Pacing so slow that only the burst token fits inside the task deadline.
	cfg.AnalystCallDelayMS = 600_000
	gen := &stubGen{}
	pool := NewPool(cfg, Deps{Gen: gen, Data: stubData{}, Limiter: ratelimit.New(cfg)})

	reports := pool.Run(context.Background(), testRequest(t))

	require.Len(t, reports, len(models.AllAnalystKinds))
	ok, timedOut := 0, 0
	for _, report := range reports {
		switch report.Status {
		case models.ReportOK:
			ok++
		case models.ReportTimedOut:
			timedOut++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(models.AllAnalystKinds)-1, timedOut)
}

func TestPoolSequentialLaunchOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.ParallelAnalysts = false
	gen := &stubGen{}
	pool := NewPool(cfg, Deps{Gen: gen, Data: stubData{}, Limiter: ratelimit.New(cfg)})

	reports := pool.Run(context.Background(), testRequest(t))

	require.Len(t, reports, len(models.AllAnalystKinds))
	require.Len(t, gen.systems, len(models.AllAnalystKinds))
	markers := []string{
		"market analyst",
		"social sentiment analyst",
		"news analyst",
		"fundamentals analyst",
		"macro analyst",
	}
	for i, marker := range markers {
		assert.Contains(t, gen.systems[i], marker)
	}
}

func TestPoolAbsorbsDataFailures(t *testing.T) {
	cfg := testConfig(t)
	gen := &stubGen{}
	pool := NewPool(cfg, Deps{Gen: gen, Data: stubData{err: models.ErrDataUnavailable}, Limiter: ratelimit.New(cfg)})

	reports := pool.Run(context.Background(), testRequest(t))

	require.Len(t, reports, len(models.AllAnalystKinds))
	for _, kind := range models.AllAnalystKinds {
		assert.Equal(t, models.ReportOK, reports[kind].Status, "kind %s", kind)
	}
}

func TestPoolSkipsOnCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.AnalystStartDelayMS = 50
	gen := &stubGen{}
	pool := NewPool(cfg, Deps{Gen: gen, Data: stubData{}, Limiter: ratelimit.New(cfg)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports := pool.Run(ctx, testRequest(t))

	require.Len(t, reports, len(models.AllAnalystKinds))
	skipped := 0
	for _, report := range reports {
		if report.Status == models.ReportSkipped {
			skipped++
		}
		assert.NotEqual(t, models.ReportOK, report.Status)
	}
	// Every staggered analyst sees the dead context before launch.
	assert.GreaterOrEqual(t, skipped, len(models.AllAnalystKinds)-1)
}
