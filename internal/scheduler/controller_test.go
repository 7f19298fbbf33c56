package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/broker"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/pipeline"
	"github.com/irwinlee/tradecouncil/internal/risk"
)

type fakeRunner struct {
	mu      sync.Mutex
	symbols []string
	verdict risk.Verdict
	err     error
}

func (r *fakeRunner) Run(ctx context.Context, req *models.AnalysisRequest) (*pipeline.Result, error) {
	r.mu.Lock()
	r.symbols = append(r.symbols, req.Symbol)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &pipeline.Result{Request: req, Verdict: r.verdict}, nil
}

func (r *fakeRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.symbols...)
}

type fakeBroker struct {
	mu         sync.Mutex
	equityOpen bool
	orders     []broker.OrderIntent
	submitErr  error
}

func (b *fakeBroker) Snapshot(ctx context.Context) (*models.PortfolioSnapshot, error) {
	return &models.PortfolioSnapshot{Positions: map[string]models.Position{}}, nil
}

func (b *fakeBroker) SubmitOrder(ctx context.Context, intent broker.OrderIntent) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return "", b.submitErr
	}
	b.orders = append(b.orders, intent)
	return "order-1", nil
}

func (b *fakeBroker) MarketOpen(ctx context.Context, class models.AssetClass) (bool, error) {
	if class == models.AssetCrypto {
		return true, nil
	}
	return b.equityOpen, nil
}

func (b *fakeBroker) submitted() []broker.OrderIntent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broker.OrderIntent(nil), b.orders...)
}

func approvedBuy(symbol string, qty int64) risk.Verdict {
	return risk.Verdict{
		Outcome: risk.OutcomeApproved,
		Decision: models.Decision{
			Symbol:     symbol,
			AssetClass: models.InferAssetClass(symbol),
			Action:     models.ActionBuy,
			Quantity:   decimal.NewFromInt(qty),
		},
	}
}

func newTestController(t *testing.T, runner Runner, brokerage broker.Brokerage) *Controller {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.ScheduleIntervalMin = 60
	return NewController(cfg, runner, brokerage)
}

func waitForRuns(t *testing.T, runner *fakeRunner, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if len(runner.ran()) >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d runs, saw %v", want, runner.ran())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSweepSkipsClosedEquitySession(t *testing.T) {
	runner := &fakeRunner{verdict: approvedBuy("NVDA", 10)}
	brokerage := &fakeBroker{equityOpen: false}
	ctrl := newTestController(t, runner, brokerage)

	require.NoError(t, ctrl.Track("NVDA", false))
	require.NoError(t, ctrl.Track("BTC/USD", false))

	ctrl.sweep(context.Background(), time.Now())
	waitForRuns(t, runner, 1)
	ctrl.wg.Wait()

	assert.Equal(t, []string{"BTC/USD"}, runner.ran(), "crypto runs regardless of calendar")

	// The deferred equity entry stays due and fires once the session opens.
	brokerage.equityOpen = true
	ctrl.sweep(context.Background(), time.Now())
	waitForRuns(t, runner, 2)
	ctrl.wg.Wait()
	assert.Contains(t, runner.ran(), "NVDA")
}

func TestSweepAdvancesNextRunAt(t *testing.T) {
	runner := &fakeRunner{verdict: approvedBuy("NVDA", 10)}
	ctrl := newTestController(t, runner, &fakeBroker{equityOpen: true})
	require.NoError(t, ctrl.Track("NVDA", false))

	now := time.Now()
	ctrl.sweep(context.Background(), now)
	ctrl.wg.Wait()

	entries := ctrl.Entries()
	require.Len(t, entries, 1)
	assert.WithinDuration(t, now.Add(time.Hour), entries[0].NextRunAt, time.Second)

	// Not due again until the interval elapses.
	ctrl.sweep(context.Background(), now.Add(time.Minute))
	ctrl.wg.Wait()
	assert.Len(t, runner.ran(), 1)

	ctrl.sweep(context.Background(), now.Add(61*time.Minute))
	waitForRuns(t, runner, 2)
	ctrl.wg.Wait()
}

func TestAutoExecuteForwardsApprovedDecision(t *testing.T) {
	runner := &fakeRunner{verdict: approvedBuy("NVDA", 25)}
	brokerage := &fakeBroker{equityOpen: true}
	ctrl := newTestController(t, runner, brokerage)
	require.NoError(t, ctrl.Track("NVDA", true))

	ctrl.sweep(context.Background(), time.Now())
	ctrl.wg.Wait()

	orders := brokerage.submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, "NVDA", orders[0].Symbol)
	assert.Equal(t, models.ActionBuy, orders[0].Action)
	assert.True(t, orders[0].Quantity.Equal(decimal.NewFromInt(25)))

	outcome := <-ctrl.Outcomes()
	assert.Equal(t, "order-1", outcome.OrderID)
	assert.NoError(t, outcome.ExecErr)
}

func TestAutoExecuteTradesConfigForwardsWithoutFlag(t *testing.T) {
	runner := &fakeRunner{verdict: approvedBuy("NVDA", 10)}
	brokerage := &fakeBroker{equityOpen: true}
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.AutoExecuteTrades = true
	ctrl := NewController(cfg, runner, brokerage)

	// Tracked without per-symbol auto-execute; the config switch applies.
	require.NoError(t, ctrl.Track("NVDA", false))

	ctrl.sweep(context.Background(), time.Now())
	ctrl.wg.Wait()

	orders := brokerage.submitted()
	require.Len(t, orders, 1)
	assert.Equal(t, "NVDA", orders[0].Symbol)
}

func TestAutoExecuteNeverForwardsVetoOrHold(t *testing.T) {
	tests := []struct {
		name    string
		verdict risk.Verdict
	}{
		{
			name: "vetoed",
			verdict: risk.Verdict{
				Outcome:  risk.OutcomeVetoed,
				Decision: models.Decision{Symbol: "NVDA", Action: models.ActionBuy},
				Reason:   "insufficient buying power",
			},
		},
		{
			name: "hold",
			verdict: risk.Verdict{
				Outcome:  risk.OutcomeApproved,
				Decision: models.Decision{Symbol: "NVDA", Action: models.ActionHold},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{verdict: tt.verdict}
			brokerage := &fakeBroker{equityOpen: true}
			ctrl := newTestController(t, runner, brokerage)
			require.NoError(t, ctrl.Track("NVDA", true))

			ctrl.sweep(context.Background(), time.Now())
			ctrl.wg.Wait()
			assert.Empty(t, brokerage.submitted())
		})
	}
}

func TestExecutionFailureReportedNotRetried(t *testing.T) {
	runner := &fakeRunner{verdict: approvedBuy("NVDA", 10)}
	brokerage := &fakeBroker{equityOpen: true, submitErr: errors.New("order rejected")}
	ctrl := newTestController(t, runner, brokerage)
	require.NoError(t, ctrl.Track("NVDA", true))

	ctrl.sweep(context.Background(), time.Now())
	ctrl.wg.Wait()

	outcome := <-ctrl.Outcomes()
	require.Error(t, outcome.ExecErr)
	assert.Nil(t, outcome.RunErr)
	assert.Empty(t, brokerage.submitted())

	// No second submission without a new scheduled run.
	select {
	case extra := <-ctrl.Outcomes():
		t.Fatalf("unexpected extra outcome %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunFailureDoesNotBreakSchedule(t *testing.T) {
	runner := &fakeRunner{err: errors.New("pipeline down")}
	ctrl := newTestController(t, runner, &fakeBroker{equityOpen: true})
	require.NoError(t, ctrl.Track("NVDA", false))

	now := time.Now()
	ctrl.sweep(context.Background(), now)
	ctrl.wg.Wait()

	outcome := <-ctrl.Outcomes()
	require.Error(t, outcome.RunErr)

	// The entry advanced; the next interval fires normally.
	ctrl.sweep(context.Background(), now.Add(2*time.Hour))
	waitForRuns(t, runner, 2)
	ctrl.wg.Wait()
}

func TestRemoveDropsEntry(t *testing.T) {
	runner := &fakeRunner{verdict: approvedBuy("NVDA", 10)}
	ctrl := newTestController(t, runner, &fakeBroker{equityOpen: true})
	require.NoError(t, ctrl.Track("NVDA", false))
	require.NoError(t, ctrl.Track("BTC/USD", false))

	ctrl.Remove("NVDA")
	entries := ctrl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "BTC/USD", entries[0].Symbol)
}

func TestTrackRejectsMalformedSymbol(t *testing.T) {
	ctrl := newTestController(t, &fakeRunner{}, &fakeBroker{})
	var cfgErr *models.ConfigError
	require.ErrorAs(t, ctrl.Track("not a symbol!!", false), &cfgErr)
}
