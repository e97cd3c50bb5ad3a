package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Indicators 筛选与分析两个阶段共用的技术指标快照。
type Indicators struct {
	RSI         float64 `json:"rsi"`
	Momentum    float64 `json:"momentum"`
	VolumeSurge bool    `json:"volume_surge"`
}

// IndicatorSource 技术指标源。
type IndicatorSource interface {
	GetIndicators(ctx context.Context, instrument string) (Indicators, error)
}

// SimIndicatorSource 种子可控的模拟指标源。同一个实例内多次调用
// 同一银柄返回同一份快照，保证一次选股流程里筛选和分析看到的数据一致。
type SimIndicatorSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	taken map[string]Indicators
}

func NewSimIndicatorSource(seed int64) *SimIndicatorSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimIndicatorSource{
		rng:   rand.New(rand.NewSource(seed)),
		taken: make(map[string]Indicators),
	}
}

func (s *SimIndicatorSource) GetIndicators(_ context.Context, instrument string) (Indicators, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ind, ok := s.taken[instrument]; ok {
		return ind, nil
	}
	ind := Indicators{
		RSI:         30 + s.rng.Float64()*50,
		Momentum:    30 + s.rng.Float64()*50,
		VolumeSurge: s.rng.Float64() < 0.3,
	}
	s.taken[instrument] = ind
	return ind, nil
}
