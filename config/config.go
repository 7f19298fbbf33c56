package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	LLMProvider    string `json:"llm_provider"`
	DeepThinkLLM   string `json:"deep_think_llm"`
	QuickThinkLLM  string `json:"quick_think_llm"`
	BackendURL     string `json:"backend_url"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`

	// Analyst execution pacing. The three delays are cumulative: start
	// stagger for the n-th parallel analyst, per-LLM-call delay, and the
	// delay between a tool result and the next dependent call.
	ParallelAnalysts    bool `json:"parallel_analysts"`
	AnalystStartDelayMS int  `json:"analyst_start_delay_ms"`
	AnalystCallDelayMS  int  `json:"analyst_call_delay_ms"`
	ToolResultDelayMS   int  `json:"tool_result_delay_ms"`
	AnalystTimeoutSec   int  `json:"analyst_timeout_sec"`
	MaxRateLimitRetries int  `json:"max_rate_limit_retries"`

	MaxDebateRounds int  `json:"max_debate_rounds"`
	OnlineTools     bool `json:"online_tools"`
	CacheEnabled    bool `json:"cache_enabled"`

	// Trading and risk limits.
	EnableMarginTrading  bool    `json:"enable_margin_trading"`
	AutoExecuteTrades    bool    `json:"auto_execute_trades"`
	AllowEquities        bool    `json:"allow_equities"`
	AllowCrypto          bool    `json:"allow_crypto"`
	MaxPositionPct       float64 `json:"max_position_pct"`
	MaxSymbolExposurePct float64 `json:"max_symbol_exposure_pct"`

	ScheduleIntervalMin int `json:"schedule_interval_min"`

	// Brokerage credentials.
	AlpacaAPIKey    string `json:"alpaca_api_key"`
	AlpacaSecretKey string `json:"alpaca_secret_key"`
	AlpacaUsePaper  bool   `json:"alpaca_use_paper"`

	FinnhubAPIKey string `json:"finnhub_api_key"`

	Debug bool `json:"debug"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg
}

func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),

		LLMProvider:   "deepseek",
		DeepThinkLLM:  "deepseek-chat",
		QuickThinkLLM: "deepseek-chat",

		ParallelAnalysts:    true,
		AnalystStartDelayMS: 500,
		AnalystCallDelayMS:  100,
		ToolResultDelayMS:   200,
		AnalystTimeoutSec:   180,
		MaxRateLimitRetries: 3,

		MaxDebateRounds: 2,
		OnlineTools:     true,
		CacheEnabled:    true,

		EnableMarginTrading:  false,
		AutoExecuteTrades:    false,
		AllowEquities:        true,
		AllowCrypto:          true,
		MaxPositionPct:       0.10,
		MaxSymbolExposurePct: 0.20,

		ScheduleIntervalMin: 60,

		AlpacaUsePaper: true,
	}
}

// AnalystStartDelay is the stagger between launching successive analysts.
func (c *Config) AnalystStartDelay() time.Duration {
	return time.Duration(c.AnalystStartDelayMS) * time.Millisecond
}

// AnalystCallDelay is the pacing delay before each LLM call.
func (c *Config) AnalystCallDelay() time.Duration {
	return time.Duration(c.AnalystCallDelayMS) * time.Millisecond
}

// ToolResultDelay is the pacing delay between receiving a tool result and
// issuing the next dependent call.
func (c *Config) ToolResultDelay() time.Duration {
	return time.Duration(c.ToolResultDelayMS) * time.Millisecond
}

// AnalystTimeout is the per-analyst task deadline.
func (c *Config) AnalystTimeout() time.Duration {
	return time.Duration(c.AnalystTimeoutSec) * time.Second
}

// ScheduleInterval is the recurrence period per tracked symbol.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalMin) * time.Minute
}

// Validate fails fast on option combinations no run could honor.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "openai", "deepseek":
	default:
		return fmt.Errorf("unknown llm_provider %q", c.LLMProvider)
	}
	if c.MaxDebateRounds < 0 {
		return fmt.Errorf("max_debate_rounds must be >= 0, got %d", c.MaxDebateRounds)
	}
	if c.AnalystStartDelayMS < 0 || c.AnalystCallDelayMS < 0 || c.ToolResultDelayMS < 0 {
		return fmt.Errorf("pacing delays must be >= 0")
	}
	if c.AnalystTimeoutSec <= 0 {
		return fmt.Errorf("analyst_timeout_sec must be > 0, got %d", c.AnalystTimeoutSec)
	}
	if c.MaxRateLimitRetries < 0 {
		return fmt.Errorf("max_rate_limit_retries must be >= 0, got %d", c.MaxRateLimitRetries)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct must be in (0,1], got %v", c.MaxPositionPct)
	}
	if c.MaxSymbolExposurePct <= 0 || c.MaxSymbolExposurePct > 1 {
		return fmt.Errorf("max_symbol_exposure_pct must be in (0,1], got %v", c.MaxSymbolExposurePct)
	}
	if c.ScheduleIntervalMin <= 0 {
		return fmt.Errorf("schedule_interval_min must be > 0, got %d", c.ScheduleIntervalMin)
	}
	if !c.AllowEquities && !c.AllowCrypto {
		return fmt.Errorf("at least one asset class must be allowed")
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}

	if val := os.Getenv("PARALLEL_ANALYSTS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.ParallelAnalysts = enabled
		}
	}
	if val := os.Getenv("ANALYST_START_DELAY_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AnalystStartDelayMS = v
		}
	}
	if val := os.Getenv("ANALYST_CALL_DELAY_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AnalystCallDelayMS = v
		}
	}
	if val := os.Getenv("TOOL_RESULT_DELAY_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.ToolResultDelayMS = v
		}
	}
	if val := os.Getenv("MAX_DEBATE_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxDebateRounds = v
		}
	}
	if val := os.Getenv("ONLINE_TOOLS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.OnlineTools = enabled
		}
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = enabled
		}
	}
	if val := os.Getenv("ENABLE_MARGIN_TRADING"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EnableMarginTrading = enabled
		}
	}
	if val := os.Getenv("AUTO_EXECUTE_TRADES"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.AutoExecuteTrades = enabled
		}
	}
	if val := os.Getenv("SCHEDULE_INTERVAL_MIN"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.ScheduleIntervalMin = v
		}
	}

	if val := os.Getenv("ALPACA_API_KEY"); val != "" {
		c.AlpacaAPIKey = val
	}
	if val := os.Getenv("ALPACA_SECRET_KEY"); val != "" {
		c.AlpacaSecretKey = val
	}
	if val := os.Getenv("ALPACA_USE_PAPER"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.AlpacaUsePaper = enabled
		}
	}
	if val := os.Getenv("FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}

	if val := os.Getenv("TRADECOUNCIL_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.DataDir, c.DataCacheDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
