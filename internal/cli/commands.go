package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/agents"
	"github.com/irwinlee/tradecouncil/internal/broker"
	"github.com/irwinlee/tradecouncil/internal/dataflows"
	"github.com/irwinlee/tradecouncil/internal/debate"
	"github.com/irwinlee/tradecouncil/internal/llm"
	"github.com/irwinlee/tradecouncil/internal/models"
	"github.com/irwinlee/tradecouncil/internal/observ"
	"github.com/irwinlee/tradecouncil/internal/pipeline"
	"github.com/irwinlee/tradecouncil/internal/ratelimit"
	"github.com/irwinlee/tradecouncil/internal/risk"
	"github.com/irwinlee/tradecouncil/internal/scheduler"
	"github.com/irwinlee/tradecouncil/internal/synthesis"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	manager, err := config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	current := manager.Get()
	cfg := &current

	rootCmd := &cobra.Command{
		Use:   "tradecouncil",
		Short: "TradeCouncil - multi-agent trading analysis",
		Long: `TradeCouncil runs a team of LLM analysts, a bull/bear debate and a
risk-gated decision pipeline for equities and crypto pairs, one-shot or on
a market-hours schedule.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Debug = true
			}
			if !cfg.Debug {
				observ.SetOutput(io.Discard)
			}
			return cfg.EnsureDirectories()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := PromptForSymbols()
			if err != nil {
				return err
			}
			asOf, err := PromptForDate()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, symbols, asOf)
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(cfg))
	rootCmd.AddCommand(newScheduleCmd(manager))
	rootCmd.AddCommand(newConfigCmd(manager))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL...",
		Short: "Run one analysis pipeline per symbol",
		Long: `Run the full analyst-debate-decision pipeline once for each given
symbol. Equity tickers and crypto pairs mix freely:

  tradecouncil analyze NVDA AAPL BTC/USD --date 2026-03-02`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			asOf := time.Now()
			if dateStr != "" {
				parsed, err := time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", dateStr)
				}
				asOf = parsed
			}
			return runAnalyze(cmd.Context(), cfg, args, asOf)
		},
	}

	cmd.Flags().String("date", "", "Analysis date in YYYY-MM-DD format (defaults to today)")
	return cmd
}

func newScheduleCmd(manager *config.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule SYMBOL...",
		Short: "Track symbols and re-run analysis on a market-hours schedule",
		Long: `Track each symbol on the configured interval. Equity runs wait for an
open exchange session; crypto pairs run around the clock. With
--auto-execute, or auto_execute_trades enabled in the config file,
approved non-HOLD decisions are forwarded as orders.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			autoExecute, _ := cmd.Flags().GetBool("auto-execute")
			if autoExecute {
				confirmed, err := ConfirmAutoExecute()
				if err != nil {
					return err
				}
				autoExecute = confirmed
			}
			return runSchedule(cmd.Context(), manager, args, autoExecute)
		},
	}

	cmd.Flags().Bool("auto-execute", false, "Forward approved decisions to the brokerage (auto_execute_trades in config enables this for every run)")
	return cmd
}

func newConfigCmd(manager *config.Manager) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.MarshalIndent(manager.Get(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(manager.Path())
		},
	})

	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TradeCouncil v0.3.0")
		},
	}
}

// stack is the assembled pipeline behind one CLI invocation.
type stack struct {
	orchestrator *pipeline.Orchestrator
	controller   *scheduler.Controller
}

func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	quick, err := llm.NewQuickGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deep, err := llm.NewDeepGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	data := dataflows.NewService(cfg)
	deps := agents.Deps{Gen: quick, Data: data, Limiter: ratelimit.New(cfg)}
	// The final reduction gets the deep-think model; analysts and debate
	// turns stay on the quick one.
	deepDeps := deps
	deepDeps.Gen = deep

	var brokerage broker.Brokerage
	brokerage, err = broker.NewAlpacaBroker(cfg)
	if err != nil {
		observ.Log("cli.offline_brokerage", map[string]any{"reason": err.Error()})
		brokerage = broker.NewOffline()
	}

	orch := pipeline.NewOrchestrator(
		agents.NewPool(cfg, deps),
		debate.NewEngine(cfg.MaxDebateRounds, deps),
		synthesis.New(cfg.EnableMarginTrading, deepDeps),
		risk.NewGate(cfg),
		brokerage,
		data,
	)

	return &stack{
		orchestrator: orch,
		controller:   scheduler.NewController(cfg, orch, brokerage),
	}, nil
}

func buildRequests(symbols []string, asOf time.Time) ([]*models.AnalysisRequest, error) {
	requests := make([]*models.AnalysisRequest, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		req, err := models.NewAnalysisRequest(symbol, asOf)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[req.Symbol]; dup {
			continue
		}
		seen[req.Symbol] = struct{}{}
		requests = append(requests, req)
	}
	return requests, nil
}

func runAnalyze(ctx context.Context, cfg *config.Config, symbols []string, asOf time.Time) error {
	requests, err := buildRequests(symbols, asOf)
	if err != nil {
		return err
	}

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("TradeCouncil"))

	events, cancel := st.orchestrator.Subscribe()
	board := NewStatusBoard(os.Stdout)
	boardDone := make(chan struct{})
	go func() {
		defer close(boardDone)
		board.Follow(events)
	}()

	type runOutcome struct {
		result *pipeline.Result
		err    error
	}
	outcomes := make([]runOutcome, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(n int, req *models.AnalysisRequest) {
			defer wg.Done()
			result, runErr := st.orchestrator.Run(ctx, req)
			outcomes[n] = runOutcome{result: result, err: runErr}
		}(i, req)
	}
	wg.Wait()
	cancel()
	<-boardDone

	failures := 0
	for i, outcome := range outcomes {
		if outcome.err != nil {
			failures++
			fmt.Printf("%s %s\n",
				errorStyle.Render(requests[i].Symbol),
				outcome.err.Error())
			continue
		}
		RenderResult(os.Stdout, outcome.result)
	}
	if failures == len(requests) {
		return fmt.Errorf("all %d runs failed", failures)
	}
	return nil
}

func runSchedule(ctx context.Context, manager *config.Manager, symbols []string, autoExecute bool) error {
	current := manager.Get()
	cfg := &current
	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}

	for _, symbol := range symbols {
		if err := st.controller.Track(symbol, autoExecute); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pick up schedule_interval edits while the loop runs.
	go func() {
		err := manager.Watch(ctx, func(updated config.Config) {
			st.controller.SetInterval(updated.ScheduleInterval())
		})
		if err != nil && ctx.Err() == nil {
			observ.Log("cli.config_watch_failed", map[string]any{"error": err.Error()})
		}
	}()

	events, cancel := st.orchestrator.Subscribe()
	defer cancel()
	board := NewStatusBoard(os.Stdout)
	go board.Follow(events)

	go func() {
		for outcome := range st.controller.Outcomes() {
			switch {
			case outcome.RunErr != nil:
				fmt.Printf("%s %v\n", errorStyle.Render(outcome.Symbol), outcome.RunErr)
			case outcome.ExecErr != nil:
				fmt.Printf("%s execution failed: %v\n", errorStyle.Render(outcome.Symbol), outcome.ExecErr)
			default:
				if outcome.Result != nil {
					RenderResult(os.Stdout, outcome.Result)
				}
				if outcome.OrderID != "" {
					fmt.Printf("%s order %s submitted\n", doneStyle.Render(outcome.Symbol), outcome.OrderID)
				}
			}
		}
	}()

	fmt.Println(titleStyle.Render("TradeCouncil schedule"))
	fmt.Printf("Tracking %d symbol(s) every %s; Ctrl-C to stop.\n",
		len(symbols), cfg.ScheduleInterval())

	st.controller.Start(ctx)
	return nil
}
