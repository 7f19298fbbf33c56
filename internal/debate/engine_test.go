package debate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/agents"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/ratelimit"
)

type scriptedGen struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	failOn  map[int]error
}

func (g *scriptedGen) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, msgs[len(msgs)-1].Content)
	if err, ok := g.failOn[g.calls]; ok {
		return "", err
	}
	return "argument from call " + string(rune('0'+g.calls)), nil
}

func newTestEngine(t *testing.T, rounds int, gen *scriptedGen) *Engine {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.AnalystStartDelayMS = 0
	cfg.AnalystCallDelayMS = 0
	cfg.ToolResultDelayMS = 0
	cfg.MaxRateLimitRetries = 0
	return NewEngine(rounds, agents.Deps{Gen: gen, Limiter: ratelimit.New(cfg)})
}

func okReports() map[models.AnalystKind]models.AgentReport {
	reports := make(map[models.AnalystKind]models.AgentReport)
	for _, kind := range models.AllAnalystKinds {
		reports[kind] = models.AgentReport{Kind: kind, Status: models.ReportOK, Content: "report for " + string(kind)}
	}
	return reports
}

func debateRequest(t *testing.T) *models.AnalysisRequest {
	t.Helper()
	req, err := models.NewAnalysisRequest("NVDA", time.Now())
	require.NoError(t, err)
	return req
}

func TestEngineAlternatesStances(t *testing.T) {
	for _, rounds := range []int{1, 2, 3, 5} {
		gen := &scriptedGen{}
		engine := newTestEngine(t, rounds, gen)

		turns, err := engine.Run(context.Background(), debateRequest(t), okReports())
		require.NoError(t, err)
		require.Len(t, turns, rounds)

		for i, turn := range turns {
			assert.Equal(t, i+1, turn.Round)
			want := models.StanceBull
			if i%2 == 1 {
				want = models.StanceBear
			}
			assert.Equal(t, want, turn.Stance)
			assert.NotEmpty(t, turn.Content)
		}
	}
}

func TestEngineZeroRoundsSkips(t *testing.T) {
	gen := &scriptedGen{}
	engine := newTestEngine(t, 0, gen)

	turns, err := engine.Run(context.Background(), debateRequest(t), okReports())
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Zero(t, gen.calls)
}

func TestEngineContextAccumulates(t *testing.T) {
	gen := &scriptedGen{}
	engine := newTestEngine(t, 3, gen)

	_, err := engine.Run(context.Background(), debateRequest(t), okReports())
	require.NoError(t, err)
	require.Len(t, gen.prompts, 3)

	// The first turn sees only reports; every later turn also sees every
	// prior argument.
	assert.NotContains(t, gen.prompts[0], "Debate so far")
	assert.Contains(t, gen.prompts[1], "Round 1 BULL")
	assert.Contains(t, gen.prompts[2], "Round 1 BULL")
	assert.Contains(t, gen.prompts[2], "Round 2 BEAR")
	for _, prompt := range gen.prompts {
		assert.Contains(t, prompt, "report for MARKET")
	}
}

func TestEngineDegradesFailedTurn(t *testing.T) {
	gen := &scriptedGen{failOn: map[int]error{2: errors.New("model unavailable")}}
	engine := newTestEngine(t, 4, gen)

	turns, err := engine.Run(context.Background(), debateRequest(t), okReports())
	require.NoError(t, err)
	require.Len(t, turns, 4)

	assert.Empty(t, turns[1].Content)
	assert.Equal(t, models.StanceBear, turns[1].Stance)
	for _, i := range []int{0, 2, 3} {
		assert.NotEmpty(t, turns[i].Content, "turn %d", i)
	}
	// The dead turn is visible to later turns as a gap, not dropped.
	assert.Contains(t, gen.prompts[2], "Round 2 BEAR: (no argument recorded)")
}

func TestEngineMarksDegradedReports(t *testing.T) {
	reports := okReports()
	reports[models.AnalystNews] = models.AgentReport{Kind: models.AnalystNews, Status: models.ReportTimedOut}
	gen := &scriptedGen{}
	engine := newTestEngine(t, 1, gen)

	_, err := engine.Run(context.Background(), debateRequest(t), reports)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "[NEWS] unavailable (TIMED_OUT)")
}

func TestEngineStopsOnCancellation(t *testing.T) {
	gen := &scriptedGen{}
	engine := newTestEngine(t, 6, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	turns, err := engine.Run(ctx, debateRequest(t), okReports())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, turns)
}
