package planner

import (
	"math"

	"github.com/shopspring/decimal"
)

// PositionPlan 資金管理に基づく推奨購入数。
type PositionPlan struct {
	Quantity int             `json:"qty"`
	Amount   decimal.Decimal `json:"amount"`
	RiskPct  float64         `json:"pct"`
}

// CalculatePositionSize 残高×リスク比率の予算内で買える株数を整数で返す。
// 予算が 1 株分に届かなくても予算が正なら最低 1 株に切り上げる。
func CalculatePositionSize(balance, price float64, riskPct float64) PositionPlan {
	plan := PositionPlan{Amount: decimal.Zero, RiskPct: riskPct * 100}
	if price <= 0 {
		return plan
	}
	target := balance * riskPct

	qty := int(math.Floor(target / price))
	if qty == 0 && target > 0 {
		qty = 1
	}
	plan.Quantity = qty
	plan.Amount = decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
	return plan
}
