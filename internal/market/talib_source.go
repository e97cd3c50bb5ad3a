package market

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// CandleProvider 提供指标计算所需的最近 K 线序列，按时间升序返回。
type CandleProvider interface {
	RecentCandles(ctx context.Context, instrument string, limit int) ([]Candle, error)
}

// CandleIndicatorSource 基于真实 K 线计算指标。
// RSI 取 14 周期，动能由 MACD 柱状值归一化到 0-100，
// 放量判定为最新成交量超过 20 根均量的 1.5 倍。
type CandleIndicatorSource struct {
	provider CandleProvider
}

func NewCandleIndicatorSource(provider CandleProvider) *CandleIndicatorSource {
	return &CandleIndicatorSource{provider: provider}
}

const indicatorLookback = 120

func (c *CandleIndicatorSource) GetIndicators(ctx context.Context, instrument string) (Indicators, error) {
	candles, err := c.provider.RecentCandles(ctx, instrument, indicatorLookback)
	if err != nil {
		return Indicators{}, fmt.Errorf("market: load candles %s: %w", instrument, err)
	}
	// RSI14 + MACD(12,26,9) 至少要 35 根才稳定。
	if len(candles) < 35 {
		return Indicators{}, fmt.Errorf("market: %s K线不足, 仅 %d 根", instrument, len(candles))
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, k := range candles {
		closes[i] = k.Close
		volumes[i] = k.Volume
	}

	rsiSeries := talib.Rsi(closes, 14)
	rsi := lastValid(rsiSeries)

	_, _, hist := talib.Macd(closes, 12, 26, 9)
	momentum := macdMomentum(lastValid(hist), closes[len(closes)-1])

	return Indicators{
		RSI:         rsi,
		Momentum:    momentum,
		VolumeSurge: volumeSurge(volumes),
	}, nil
}

// macdMomentum 把 MACD 柱状值相对现值的比例压缩到 0-100，50 为中性。
func macdMomentum(hist, lastClose float64) float64 {
	if lastClose <= 0 {
		return 50
	}
	ratio := hist / lastClose
	return 50 + 50*math.Tanh(ratio*100)
}

func volumeSurge(volumes []float64) bool {
	const window = 20
	if len(volumes) < window+1 {
		return false
	}
	recent := volumes[len(volumes)-1-window : len(volumes)-1]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	avg := sum / window
	return avg > 0 && volumes[len(volumes)-1] > avg*1.5
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if v != 0 && !math.IsNaN(v) {
			return v
		}
	}
	return 0
}
