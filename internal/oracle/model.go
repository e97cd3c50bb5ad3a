package oracle

// Tier 分析档位。快档用于海选，深档用于精选。
type Tier string

const (
	TierFast Tier = "fast"
	TierDeep Tier = "deep"
)

// Sentiment 多空方向。
const (
	SentimentBullish = "BULLISH"
	SentimentBearish = "BEARISH"
	SentimentNeutral = "NEUTRAL"
)

// Provenance 判断依据来源。
const (
	ProvenanceNews     = "news"
	ProvenanceMacro    = "macro_inference"
	ProvenanceDegraded = "degraded"
)

// SentimentRequest 一次情绪判定的输入。
// NewsCorpus 为空时切换到宏观强制推理模式，不允许默认中性。
type SentimentRequest struct {
	Instrument   string
	NewsCorpus   string
	MacroContext string
	TimeContext  string
	Tier         Tier
}

// SentimentResult 情绪判定结果。Degraded 表示模型全部失败后的兜底值。
type SentimentResult struct {
	Score          float64 `json:"score"`
	Sentiment      string  `json:"sentiment"`
	Reason         string  `json:"reason"`
	StopLossReason string  `json:"stop_loss_reason,omitempty"`
	Provenance     string  `json:"provenance"`
	Tier           Tier    `json:"tier"`
	Degraded       bool    `json:"degraded"`
}

// Mover 新闻里挖出的市场关键人物。
type Mover struct {
	Person   string  `json:"person"`
	Asset    string  `json:"asset"`
	Impact   float64 `json:"impact"`
	Strategy string  `json:"strategy"`
	Reason   string  `json:"reason"`
}

// StanceForecast 关键人物过往发言回溯后的立场预测。
type StanceForecast struct {
	HawkProb        float64 `json:"hawk_prob"`
	PredictionScore float64 `json:"prediction_score"`
	Reason          string  `json:"reason"`
}

func degradedResult(tier Tier, reason string) SentimentResult {
	return SentimentResult{
		Score:      50,
		Sentiment:  SentimentNeutral,
		Reason:     reason,
		Provenance: ProvenanceDegraded,
		Tier:       tier,
		Degraded:   true,
	}
}
