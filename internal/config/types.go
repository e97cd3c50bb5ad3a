package config

import "strings"

// Config 是 Antigravity 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Account  AccountConfig  `toml:"account"`
	Market   MarketConfig   `toml:"market"`
	Oracle   OracleConfig   `toml:"oracle"`
	Selector SelectorConfig `toml:"selector"`
	Planner  PlannerConfig  `toml:"planner"`
}

type AppConfig struct {
	Env             string `toml:"env"`
	LogLevel        string `toml:"log_level"`
	HTTPAddr        string `toml:"http_addr"`
	LogPath         string `toml:"log_path"`
	OracleLog       string `toml:"oracle_log_path"`
	OracleDump      bool   `toml:"oracle_dump_payload"`
	OracleLogDBPath string `toml:"oracle_log_db"`
}

// AccountConfig 控制模拟口座的初始资金与快照文件位置。
type AccountConfig struct {
	InitialBalance float64 `toml:"initial_balance"`
	SnapshotPath   string  `toml:"snapshot_path"`
}

type MarketConfig struct {
	QuoteSource     string `toml:"quote_source"`     // "sim" | "yahoo"
	NewsSource      string `toml:"news_source"`      // "sim" | "rss"
	IndicatorSource string `toml:"indicator_source"` // "sim" | "candles"
	CandleDBPath    string `toml:"candle_db"`
	CandleInterval  string `toml:"candle_interval"`
	Seed            int64  `toml:"seed"` // 0 表示按时间播种
	NewsMaxItems    int    `toml:"news_max_items"`
}

type OracleConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKeyEnv      string `toml:"api_key_env"`
	FastModel      string `toml:"fast_model"`
	DeepModel      string `toml:"deep_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	PromptPath     string `toml:"prompt_path"` // 自定义提示词模板（可热更新）
}

type SelectorConfig struct {
	Universe    []string `toml:"universe"`
	Stage1Pool  int      `toml:"stage1_pool"` // 预筛后进入一次扫描的数量
	DeepTopN    int      `toml:"deep_top_n"`  // 二次精密分析数量
	SentimentWt float64  `toml:"sentiment_weight"`
	TechnicalWt float64  `toml:"technical_weight"`
	WarnPenalty float64  `toml:"warn_penalty"`
	NewsCharCap int      `toml:"news_char_cap"`
}

type PlannerConfig struct {
	DefaultRiskPct float64 `toml:"default_risk_pct"`
}

func (o OracleConfig) ModelForTier(tier string) string {
	if strings.EqualFold(strings.TrimSpace(tier), "deep") {
		if o.DeepModel != "" {
			return o.DeepModel
		}
	}
	return o.FastModel
}
