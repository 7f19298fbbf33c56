package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass distinguishes session-bound equities from always-open crypto pairs.
type AssetClass string

const (
	AssetEquity AssetClass = "EQUITY"
	AssetCrypto AssetClass = "CRYPTO"
)

// InferAssetClass classifies a symbol by its format: crypto pairs carry a
// slash ("BTC/USD"), plain tickers ("NVDA") are equities.
func InferAssetClass(symbol string) AssetClass {
	if strings.Contains(symbol, "/") {
		return AssetCrypto
	}
	return AssetEquity
}

// AnalystKind identifies one of the five fixed analyst roles.
type AnalystKind string

const (
	AnalystMarket      AnalystKind = "MARKET"
	AnalystSocial      AnalystKind = "SOCIAL"
	AnalystNews        AnalystKind = "NEWS"
	AnalystFundamental AnalystKind = "FUNDAMENTAL"
	AnalystMacro       AnalystKind = "MACRO"
)

// AllAnalystKinds is the launch order for sequential execution and the
// stagger order for parallel execution.
var AllAnalystKinds = []AnalystKind{
	AnalystMarket,
	AnalystSocial,
	AnalystNews,
	AnalystFundamental,
	AnalystMacro,
}

// ReportStatus is the terminal status of a single analyst task.
type ReportStatus string

const (
	ReportOK       ReportStatus = "OK"
	ReportTimedOut ReportStatus = "TIMED_OUT"
	ReportFailed   ReportStatus = "FAILED"
	ReportSkipped  ReportStatus = "SKIPPED"
)

// AgentReport is the output of one analyst for one run. It is owned by the
// pool run that created it and read-only afterwards.
type AgentReport struct {
	Kind       AnalystKind  `json:"kind"`
	Status     ReportStatus `json:"status"`
	Content    string       `json:"content"`
	Error      string       `json:"error,omitempty"`
	ProducedAt time.Time    `json:"produced_at"`
}

// Stance is the side a debate turn argues.
type Stance string

const (
	StanceBull Stance = "BULL"
	StanceBear Stance = "BEAR"
)

// DebateTurn is one contribution in the bull/bear argument sequence.
// Turns are append-only within a run; Round is 1-based.
type DebateTurn struct {
	Round   int    `json:"round"`
	Stance  Stance `json:"stance"`
	Content string `json:"content"`
}

// Action is the direction of a trade decision.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// Decision is the single synthesized outcome of a pipeline run. Quantity and
// PriceTarget are advisory until the risk gate has evaluated them.
type Decision struct {
	Symbol      string          `json:"symbol"`
	AssetClass  AssetClass      `json:"asset_class"`
	Action      Action          `json:"action"`
	Quantity    decimal.Decimal `json:"quantity"`
	PriceTarget decimal.Decimal `json:"price_target"`
	Rationale   string          `json:"rationale"`
	Confidence  float64         `json:"confidence"`
	PartialData bool            `json:"partial_data"`
	DecidedAt   time.Time       `json:"decided_at"`
}

// Position is one holding inside a portfolio snapshot.
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// PortfolioSnapshot is externally owned truth fetched fresh for every risk
// evaluation. It is never cached across runs or mutated locally.
type PortfolioSnapshot struct {
	Positions   map[string]Position `json:"positions"`
	Equity      decimal.Decimal     `json:"equity"`
	BuyingPower decimal.Decimal     `json:"buying_power"`
	MarginUsed  decimal.Decimal     `json:"margin_used"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// ScheduleEntry is the recurrence record for one tracked symbol. Only the
// schedule controller mutates it.
type ScheduleEntry struct {
	Symbol      string        `json:"symbol"`
	AssetClass  AssetClass    `json:"asset_class"`
	Interval    time.Duration `json:"interval"`
	NextRunAt   time.Time     `json:"next_run_at"`
	Enabled     bool          `json:"enabled"`
	AutoExecute bool          `json:"auto_execute"`
}

// RunState is the externally observable phase of a pipeline run.
type RunState string

const (
	RunPending   RunState = "PENDING"
	RunAnalyzing RunState = "ANALYZING"
	RunDebating  RunState = "DEBATING"
	RunDeciding  RunState = "DECIDING"
	RunRiskCheck RunState = "RISK_CHECK"
	RunDone      RunState = "DONE"
	RunError     RunState = "ERROR"
)

// Terminal reports whether a run in this state has finished.
func (s RunState) Terminal() bool {
	return s == RunDone || s == RunError
}

// RunStatus is one entry in the per-symbol status stream consumed by
// observers such as the CLI status board.
type RunStatus struct {
	Symbol string    `json:"symbol"`
	State  RunState  `json:"state"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}
