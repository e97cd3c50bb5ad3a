package config

// 默认候选池：美国成长/主力株 + 日経225主力 + ディフェンス/資源/消費。
// 原则上由配置覆盖，这里仅作为开箱即用的兜底。
var defaultUniverse = []string{
	// US Tech / Growth
	"NVDA", "TSLA", "AAPL", "MSFT", "GOOGL", "AMZN", "META", "AMD", "NFLX", "PLTR",
	"CRWD", "PANW", "SNOW", "UBER", "ABNB", "COIN", "MSTR", "SMCI", "ARM", "INTC",
	"QCOM", "AVGO", "TXN", "MU", "LRCX", "AMAT", "KLAC", "ADBE", "CRM", "ORCL",
	"IBM", "CSCO", "NOW", "INTU", "SQ", "PYPL", "SHOP", "SE", "DDOG", "NET",
	// JP Majors / Nikkei 225 Leaders
	"7203.T", "9984.T", "6861.T", "8035.T", "6758.T", "6501.T", "6920.T", "7741.T", "6954.T", "6367.T",
	"6146.T", "4063.T", "6981.T", "6971.T", "6762.T", "7974.T", "9983.T", "4568.T", "4519.T", "6098.T",
	"8306.T", "8316.T", "8411.T", "8766.T", "8058.T", "8001.T", "8031.T", "8053.T", "7011.T", "7012.T",
	// Defense / Industrial / Energy
	"LMT", "RTX", "BA", "CAT", "DE", "XOM", "CVX", "COP", "SLB", "EOG",
	// Consumer / Retail
	"WMT", "COST", "TGT", "HD", "LOW", "NKE", "MCD", "SBUX", "DIS", "KO",
}

const (
	// DefaultInitialBalance 模拟口座默认本金（円）。
	DefaultInitialBalance = 10_000_000.0

	defaultStage1Pool  = 5
	defaultDeepTopN    = 5
	defaultSentimentWt = 0.60
	defaultTechnicalWt = 0.40
	defaultWarnPenalty = 20.0
	defaultNewsCharCap = 2500
)

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9871"
	}
	if c.Account.InitialBalance <= 0 {
		c.Account.InitialBalance = DefaultInitialBalance
	}
	if c.Account.SnapshotPath == "" {
		c.Account.SnapshotPath = "data/demo_account.json"
	}
	if c.Market.QuoteSource == "" {
		c.Market.QuoteSource = "sim"
	}
	if c.Market.NewsSource == "" {
		c.Market.NewsSource = "sim"
	}
	if c.Market.IndicatorSource == "" {
		c.Market.IndicatorSource = "sim"
	}
	if c.Market.CandleInterval == "" {
		c.Market.CandleInterval = "1d"
	}
	if c.Market.NewsMaxItems <= 0 {
		c.Market.NewsMaxItems = 5
	}
	if c.Oracle.BaseURL == "" {
		c.Oracle.BaseURL = "https://api.openai.com/v1"
	}
	if c.Oracle.APIKeyEnv == "" {
		c.Oracle.APIKeyEnv = "ANTIGRAVITY_ORACLE_KEY"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 60
	}
	if c.Oracle.MaxRetries <= 0 {
		c.Oracle.MaxRetries = 2
	}
	if len(c.Selector.Universe) == 0 {
		c.Selector.Universe = append([]string(nil), defaultUniverse...)
	}
	if c.Selector.Stage1Pool <= 0 {
		c.Selector.Stage1Pool = defaultStage1Pool
	}
	if c.Selector.DeepTopN <= 0 {
		c.Selector.DeepTopN = defaultDeepTopN
	}
	if c.Selector.SentimentWt <= 0 {
		c.Selector.SentimentWt = defaultSentimentWt
	}
	if c.Selector.TechnicalWt <= 0 {
		c.Selector.TechnicalWt = defaultTechnicalWt
	}
	if c.Selector.WarnPenalty <= 0 {
		c.Selector.WarnPenalty = defaultWarnPenalty
	}
	if c.Selector.NewsCharCap <= 0 {
		c.Selector.NewsCharCap = defaultNewsCharCap
	}
	if c.Planner.DefaultRiskPct <= 0 {
		c.Planner.DefaultRiskPct = 0.05
	}
}
