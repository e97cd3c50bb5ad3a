package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePositionSize(t *testing.T) {
	// 1,000,000 × 10% = 100,000 の予算で単価 2,000 → 50 株。
	plan := CalculatePositionSize(1_000_000, 2_000, 0.10)
	assert.Equal(t, 50, plan.Quantity)
	assert.Equal(t, "100000", plan.Amount.String())
	assert.Equal(t, 10.0, plan.RiskPct)
}

func TestCalculatePositionSizeFloors(t *testing.T) {
	// 予算 50,000 で単価 30,000 → 1.66 株は 1 株に切り捨て。
	plan := CalculatePositionSize(1_000_000, 30_000, 0.05)
	assert.Equal(t, 1, plan.Quantity)
	assert.Equal(t, "30000", plan.Amount.String())
}

func TestCalculatePositionSizeMinimumOneShare(t *testing.T) {
	// 予算が 1 株分に届かなくても予算が正なら 1 株。
	plan := CalculatePositionSize(100, 10_000, 0.05)
	assert.Equal(t, 1, plan.Quantity)
	assert.Equal(t, "10000", plan.Amount.String())
}

func TestCalculatePositionSizeInvalidPrice(t *testing.T) {
	plan := CalculatePositionSize(1_000_000, 0, 0.05)
	assert.Equal(t, 0, plan.Quantity)
	assert.True(t, plan.Amount.IsZero())

	plan = CalculatePositionSize(1_000_000, -100, 0.05)
	assert.Equal(t, 0, plan.Quantity)
}

func TestCalculatePositionSizeZeroBalance(t *testing.T) {
	plan := CalculatePositionSize(0, 1_000, 0.05)
	assert.Equal(t, 0, plan.Quantity)
}

func TestCompoundInterestOneYear(t *testing.T) {
	rows := CalculateCompoundInterest(100_000, 30_000, 0.20, 1)
	require.Len(t, rows, 1)

	// 月次で (残高+30,000)×(1+0.20/12) を 12 回手計算した値。
	current := 100_000.0
	invested := 100_000.0
	for i := 0; i < 12; i++ {
		current = (current + 30_000) * (1 + 0.20/12)
		invested += 30_000
	}
	assert.Equal(t, 1, rows[0].Year)
	assert.InDelta(t, current, rows[0].TotalAssets, 0.01)
	assert.Equal(t, 460_000.0, rows[0].Principal)
	assert.InDelta(t, current-invested, rows[0].Gain, 0.01)
}

func TestCompoundInterestRowPerYear(t *testing.T) {
	rows := CalculateCompoundInterest(1_000_000, 0, 0.12, 10)
	require.Len(t, rows, 10)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Year)
		assert.Equal(t, 1_000_000.0, row.Principal)
		if i > 0 {
			assert.Greater(t, row.TotalAssets, rows[i-1].TotalAssets)
		}
		assert.InDelta(t, row.TotalAssets-row.Principal, row.Gain, 0.011)
	}
}

func TestCompoundInterestInvalidYears(t *testing.T) {
	assert.Nil(t, CalculateCompoundInterest(100_000, 30_000, 0.20, 0))
	assert.Nil(t, CalculateCompoundInterest(100_000, 30_000, 0.20, -3))
}
