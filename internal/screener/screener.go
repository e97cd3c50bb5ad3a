package screener

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"antigravity/internal/logger"
	"antigravity/internal/market"
)

// Candidate 轻量技术面初筛的产物，指标快照随候选一起往下游传，
// 避免深度分析阶段重复拉取。
type Candidate struct {
	Instrument string            `json:"ticker"`
	PreScore   int               `json:"pre_score"`
	Indicators market.Indicators `json:"indicators"`
}

// PreScreener 对整个候选池做快速技术面打分。
// 打分规则：放量 +50，RSI 超买超卖 +30，动能走强 +20，再叠加 ±10 的市场噪声。
type PreScreener struct {
	indicators market.IndicatorSource

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPreScreener(indicators market.IndicatorSource, seed int64) *PreScreener {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &PreScreener{
		indicators: indicators,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Screen 给池内全部银柄打分并按分数降序返回。
// 单个银柄的指标拉取失败只跳过该银柄，不中断整体初筛。
func (p *PreScreener) Screen(ctx context.Context, pool []string) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(pool))
	for _, instrument := range pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ind, err := p.indicators.GetIndicators(ctx, instrument)
		if err != nil {
			logger.Warnf("初筛指标取得失败 %s: %v", instrument, err)
			continue
		}
		candidates = append(candidates, Candidate{
			Instrument: instrument,
			PreScore:   p.score(ind),
			Indicators: ind,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PreScore > candidates[j].PreScore
	})
	return candidates, nil
}

func (p *PreScreener) score(ind market.Indicators) int {
	score := 0
	if ind.VolumeSurge {
		score += 50
	}
	if ind.RSI < 30 || ind.RSI > 70 {
		score += 30
	}
	if ind.Momentum > 60 {
		score += 20
	}
	p.mu.Lock()
	score += p.rng.Intn(21) - 10
	p.mu.Unlock()
	return score
}
