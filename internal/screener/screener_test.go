package screener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antigravity/internal/market"
)

type fixedIndicators map[string]market.Indicators

func (f fixedIndicators) GetIndicators(_ context.Context, instrument string) (market.Indicators, error) {
	if ind, ok := f[instrument]; ok {
		return ind, nil
	}
	return market.Indicators{RSI: 50, Momentum: 50}, nil
}

func TestScreenSortedDescending(t *testing.T) {
	src := fixedIndicators{
		"HOT":  {RSI: 25, Momentum: 70, VolumeSurge: true}, // 50+30+20 = 100 前后
		"WARM": {RSI: 75, Momentum: 40},                    // 30 前后
		"COLD": {RSI: 50, Momentum: 40},                    // 0 前后
	}
	p := NewPreScreener(src, 1)

	out, err := p.Screen(context.Background(), []string{"COLD", "WARM", "HOT"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "HOT", out[0].Instrument)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].PreScore, out[i].PreScore)
	}
}

func TestScoreComponentsWithinNoiseBand(t *testing.T) {
	src := fixedIndicators{}
	p := NewPreScreener(src, 1)

	full := p.score(market.Indicators{RSI: 25, Momentum: 70, VolumeSurge: true})
	assert.GreaterOrEqual(t, full, 90)
	assert.LessOrEqual(t, full, 110)

	none := p.score(market.Indicators{RSI: 50, Momentum: 40})
	assert.GreaterOrEqual(t, none, -10)
	assert.LessOrEqual(t, none, 10)
}

func TestScreenDeterministicWithSeed(t *testing.T) {
	src := fixedIndicators{
		"A": {RSI: 25, Momentum: 70, VolumeSurge: true},
		"B": {RSI: 75, Momentum: 40},
	}
	pool := []string{"A", "B"}

	first, err := NewPreScreener(src, 42).Screen(context.Background(), pool)
	require.NoError(t, err)
	second, err := NewPreScreener(src, 42).Screen(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScreenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPreScreener(fixedIndicators{}, 1).Screen(ctx, []string{"A"})
	assert.ErrorIs(t, err, context.Canceled)
}
