package oracle

import (
	"context"
	"fmt"
	"time"

	"antigravity/internal/config"
	"antigravity/internal/logger"
)

// Oracle 情绪判定服务。深档失败自动降级到快档，两档全灭时返回中性兜底值，
// 调用方永远能拿到一个可用的结果。
type Oracle struct {
	client  ChatCaller
	cfg     config.OracleConfig
	prompts *PromptStore
	log     *CallLog
}

func New(client ChatCaller, cfg config.OracleConfig, prompts *PromptStore, log *CallLog) *Oracle {
	if prompts == nil {
		prompts = &PromptStore{system: defaultSystemPrompt}
	}
	return &Oracle{client: client, cfg: cfg, prompts: prompts, log: log}
}

// AnalyzeSentiment 对单一银柄做情绪判定。
// 新闻语料为空时切换到宏观强制推理，结果打上 macro_inference 来源标记。
func (o *Oracle) AnalyzeSentiment(ctx context.Context, req SentimentRequest) SentimentResult {
	if req.Tier == "" {
		req.Tier = TierFast
	}

	provenance := ProvenanceNews
	forced := req.NewsCorpus == "" || len([]rune(req.NewsCorpus)) < 5
	if forced {
		provenance = ProvenanceMacro
	}

	tiers := []Tier{req.Tier}
	if req.Tier == TierDeep {
		// 深档失败后用快档再试一次。
		tiers = append(tiers, TierFast)
	}

	var lastErr error
	for _, tier := range tiers {
		result, err := o.callSentiment(ctx, req, tier, forced)
		if err == nil {
			result.Tier = tier
			result.Provenance = provenance
			return result
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warnf("情绪判定失败 instrument=%s tier=%s: %v", req.Instrument, tier, err)
	}

	reason := fmt.Sprintf("Analysis Failed: %s", truncate(lastErr.Error(), 60))
	return degradedResult(req.Tier, reason)
}

func (o *Oracle) callSentiment(ctx context.Context, req SentimentRequest, tier Tier, forced bool) (SentimentResult, error) {
	var userPrompt string
	switch {
	case forced:
		userPrompt = forcedInferencePrompt(req)
	case tier == TierDeep:
		userPrompt = deepPrompt(req)
	default:
		userPrompt = fastPrompt(req)
	}

	model := o.cfg.ModelForTier(string(tier))
	system := o.prompts.System()
	logger.LogOracleRequest(string(tier), req.Instrument, system, userPrompt, "")

	start := time.Now()
	raw, err := o.client.CallWithMessages(ctx, model, system, userPrompt)
	o.record(ctx, CallRecord{
		Tier:       string(tier),
		Model:      model,
		Instrument: req.Instrument,
		Forced:     forced,
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		return SentimentResult{}, err
	}
	logger.LogOracleResponse(string(tier), req.Instrument, raw)
	return parseSentiment(raw)
}

// DiscoverMovers 从新闻语料里挖掘正在影响行情的关键人物，最多 3 人。
func (o *Oracle) DiscoverMovers(ctx context.Context, newsText string) ([]Mover, error) {
	model := o.cfg.ModelForTier(string(TierFast))
	system := o.prompts.System()
	userPrompt := discoverMoversPrompt(newsText)
	logger.LogOracleRequest(string(TierFast), "movers", system, userPrompt, "")

	start := time.Now()
	raw, err := o.client.CallWithMessages(ctx, model, system, userPrompt)
	o.record(ctx, CallRecord{
		Tier:       string(TierFast),
		Model:      model,
		Instrument: "movers",
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		return nil, err
	}
	logger.LogOracleResponse(string(TierFast), "movers", raw)
	return parseMovers(raw)
}

// AnalyzePastStatements 回溯关键人物近期发言并预测立场。
func (o *Oracle) AnalyzePastStatements(ctx context.Context, person, marketContext string) (StanceForecast, error) {
	model := o.cfg.ModelForTier(string(TierDeep))
	system := o.prompts.System()
	userPrompt := backtracePrompt(person, marketContext)
	logger.LogOracleRequest(string(TierDeep), person, system, userPrompt, "")

	start := time.Now()
	raw, err := o.client.CallWithMessages(ctx, model, system, userPrompt)
	o.record(ctx, CallRecord{
		Tier:       string(TierDeep),
		Model:      model,
		Instrument: person,
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		return StanceForecast{}, err
	}
	logger.LogOracleResponse(string(TierDeep), person, raw)
	return parseStance(raw)
}

func (o *Oracle) record(ctx context.Context, rec CallRecord) {
	if o.log == nil {
		return
	}
	if err := o.log.Append(ctx, rec); err != nil {
		logger.Warnf("调用日志写入失败: %v", err)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
