package config

import (
	"fmt"
	"math"
	"strings"
)

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Market.QuoteSource) {
	case "sim", "yahoo":
	default:
		return fmt.Errorf("market.quote_source 仅支持 sim/yahoo，得到 %q", cfg.Market.QuoteSource)
	}
	switch strings.ToLower(cfg.Market.NewsSource) {
	case "sim", "rss":
	default:
		return fmt.Errorf("market.news_source 仅支持 sim/rss，得到 %q", cfg.Market.NewsSource)
	}
	switch strings.ToLower(cfg.Market.IndicatorSource) {
	case "sim", "candles":
	default:
		return fmt.Errorf("market.indicator_source 仅支持 sim/candles，得到 %q", cfg.Market.IndicatorSource)
	}
	if cfg.Market.IndicatorSource == "candles" && cfg.Market.CandleDBPath == "" {
		return fmt.Errorf("indicator_source=candles 时必须配置 market.candle_db")
	}
	if cfg.Selector.DeepTopN > cfg.Selector.Stage1Pool {
		return fmt.Errorf("selector.deep_top_n (%d) 不能大于 stage1_pool (%d)",
			cfg.Selector.DeepTopN, cfg.Selector.Stage1Pool)
	}
	if sum := cfg.Selector.SentimentWt + cfg.Selector.TechnicalWt; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("selector 权重之和必须为 1.0，当前 %.4f", sum)
	}
	if cfg.Planner.DefaultRiskPct <= 0 || cfg.Planner.DefaultRiskPct > 1 {
		return fmt.Errorf("planner.default_risk_pct 必须在 (0,1] 区间")
	}
	return nil
}
