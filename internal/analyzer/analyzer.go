package analyzer

import (
	"context"
	"fmt"
	"strings"

	"antigravity/internal/calendar"
	"antigravity/internal/config"
	"antigravity/internal/logger"
	"antigravity/internal/market"
	"antigravity/internal/oracle"
)

// 中文说明：
// 单一银柄的综合分析：技术面子分 + AI 情绪子分加权合成，
// 再按宏观事件警戒状态调整目标价、损切价和操作建议。

// Environment 一次选股流程内所有银柄共享的市场背景，由上游预取一次。
type Environment struct {
	EventContext string
	Status       calendar.MarketStatus
	TimeContext  string
}

// Result 单一银柄的分析结果。
type Result struct {
	Instrument     string  `json:"ticker"`
	Score          float64 `json:"score"`
	SentimentScore float64 `json:"sentiment_score"`
	TechnicalScore float64 `json:"technical_score"`
	CurrentPrice   float64 `json:"current_price"`
	DisplayPrice   string  `json:"display_price"`
	DisplayTarget  string  `json:"display_target"`
	DisplaySL      string  `json:"display_sl"`
	Reason         string  `json:"reason"`
	StopLossReason string  `json:"stop_loss_reason"`
	Action         string  `json:"action"`
	TargetPrice    float64 `json:"target_price"`
	StopLossPrice  float64 `json:"stop_loss_price"`
	OrderKind      string  `json:"rec_order_type"`
	EntryPrice     float64 `json:"rec_entry_price"`
	NewsSource     string  `json:"news_source"`
	Surging        bool    `json:"is_surging"`
	Provenance     string  `json:"provenance"`
	Tier           string  `json:"tier"`
}

// SentimentOracle 情绪判定依赖，测试时注入桩实现。
type SentimentOracle interface {
	AnalyzeSentiment(ctx context.Context, req oracle.SentimentRequest) oracle.SentimentResult
}

// StatusFunc 进度文案回调。
type StatusFunc func(message string)

type Analyzer struct {
	quotes     market.QuoteSource
	news       market.NewsSource
	indicators market.IndicatorSource
	oracle     SentimentOracle
	cfg        config.SelectorConfig
}

func New(quotes market.QuoteSource, news market.NewsSource, indicators market.IndicatorSource, o SentimentOracle, cfg config.SelectorConfig) *Analyzer {
	return &Analyzer{quotes: quotes, news: news, indicators: indicators, oracle: o, cfg: cfg}
}

// Analyze 对单一银柄做完整分析。
// precomputed 传入初筛阶段已拿到的指标快照可省一次拉取，传 nil 则现场取。
func (a *Analyzer) Analyze(ctx context.Context, instrument string, precomputed *market.Indicators, env Environment, tier oracle.Tier, status StatusFunc) (Result, error) {
	if status == nil {
		status = func(string) {}
	}

	var ind market.Indicators
	if precomputed != nil {
		ind = *precomputed
	} else {
		var err error
		ind, err = a.indicators.GetIndicators(ctx, instrument)
		if err != nil {
			return Result{}, fmt.Errorf("analyzer: 指标取得失败 %s: %w", instrument, err)
		}
	}

	price, err := a.quotes.GetCurrentPrice(ctx, instrument)
	if err != nil {
		return Result{}, fmt.Errorf("analyzer: 现值取得失败 %s: %w", instrument, err)
	}

	tScore, techReasons := technicalScore(ind)

	// AI 情绪子分。
	items, err := a.news.FetchNews(ctx, instrument)
	if err != nil {
		logger.Warnf("新闻取得失败 %s: %v", instrument, err)
		items = nil
	}

	var (
		corpus     string
		newsSource string
	)
	if len(items) > 0 {
		titles := make([]string, 0, len(items))
		for _, it := range items {
			if it.Title != "" {
				titles = append(titles, it.Title)
			}
		}
		combined := fmt.Sprintf("News %s Events %s", strings.Join(titles, " "), env.EventContext)
		corpus = truncateRunes(combined, a.cfg.NewsCharCap)
		newsSource = items[0].Publisher
		if newsSource == "" {
			newsSource = "System Context"
		}
		if tier == oracle.TierDeep {
			status(fmt.Sprintf("精密分析 %s ... ニュースとマクロから深層推論・損切ライン算出", instrument))
		}
	} else {
		// ニュースゼロでも中立には逃がさない。宏观强制推理。
		status(fmt.Sprintf("分析中 %s ... ニュースなし (%s) マクロ環境から推論", instrument, tier))
		newsSource = "Macro AI Inference"
	}

	sentiment := a.oracle.AnalyzeSentiment(ctx, oracle.SentimentRequest{
		Instrument:   instrument,
		NewsCorpus:   corpus,
		MacroContext: env.EventContext,
		TimeContext:  env.TimeContext,
		Tier:         tier,
	})
	aiReason := sentiment.Reason
	if sentiment.Provenance == oracle.ProvenanceMacro {
		aiReason += " (推論)"
	}

	total := sentiment.Score*a.cfg.SentimentWt + tScore*a.cfg.TechnicalWt

	// 事件引力：重要イベント接近中はボラ調整。
	upsideMult := 1.15
	downsideMult := 0.95
	warning := env.Status.Status == calendar.StatusWarning

	reason := ""
	if warning {
		upsideMult = 1.05
		downsideMult = 0.97
		total -= a.cfg.WarnPenalty
		reason = fmt.Sprintf("⚠️ %s (不確実性回避のため 目標/損切 を調整)", env.Status.Message)
	}
	reason += fmt.Sprintf("【テクニカル】%s 【AI分析】%s", strings.Join(techReasons, ", "), aiReason)

	action := "様子見"
	orderKind := "成行"
	entry := price

	switch {
	case warning:
		action = "様子見 (警戒)"
		if total < 40 {
			action = "リスク回避 (Sell)"
		}
	case total >= 80:
		action = "成行買い (Strong Buy)"
	case total >= 65:
		action = "押し目買い (Accumulate)"
		orderKind = "指値"
		entry = price * 0.98
		upsideMult = 1.08
	case total >= 50:
		action = "中立 (Hold)"
		upsideMult = 1.02
	default:
		action = "売り推奨 (Sell)"
		upsideMult = 0.90
		downsideMult = 1.02
	}

	target := price * upsideMult
	stopLoss := price * downsideMult

	return Result{
		Instrument:     instrument,
		Score:          total,
		SentimentScore: sentiment.Score,
		TechnicalScore: tScore,
		CurrentPrice:   price,
		DisplayPrice:   FormatPrice(instrument, price),
		DisplayTarget:  FormatPrice(instrument, target),
		DisplaySL:      FormatPrice(instrument, stopLoss),
		Reason:         reason,
		StopLossReason: sentiment.StopLossReason,
		Action:         action,
		TargetPrice:    target,
		StopLossPrice:  stopLoss,
		OrderKind:      orderKind,
		EntryPrice:     entry,
		NewsSource:     newsSource,
		Surging:        ind.VolumeSurge,
		Provenance:     sentiment.Provenance,
		Tier:           string(sentiment.Tier),
	}, nil
}

// technicalScore 技术面子分。基准 50 分，各信号加减后收敛到 0-100。
func technicalScore(ind market.Indicators) (float64, []string) {
	score := 50.0
	var reasons []string

	if ind.VolumeSurge {
		score += 15
		reasons = append(reasons, "出来高急増中(機関投資家の参入可能性)")
	}
	if ind.RSI < 30 {
		score += 20
		reasons = append(reasons, fmt.Sprintf("RSI売られすぎ(%.0f)", ind.RSI))
	} else if ind.RSI > 70 {
		score -= 10
		reasons = append(reasons, fmt.Sprintf("RSI過熱感あり(%.0f)", ind.RSI))
	}
	if ind.Momentum > 60 {
		score += 20
		reasons = append(reasons, "MACD好転")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, reasons
}

// FormatPrice 银柄计价货币格式化。円は整数、ドルは小数2桁。
func FormatPrice(instrument string, price float64) string {
	symbol := market.CurrencySymbol(instrument)
	if market.IsJPInstrument(instrument) {
		return symbol + groupDigits(fmt.Sprintf("%.0f", price))
	}
	return symbol + groupDigits(fmt.Sprintf("%.2f", price))
}

func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
