package ledger

import "github.com/shopspring/decimal"

// PositionPL 单银柄的含み損益明细。
type PositionPL struct {
	Instrument   string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PL           decimal.Decimal `json:"pl"`
	PLPct        decimal.Decimal `json:"pl_pct"`
}

// PLReport 全持仓的含み損益。
type PLReport struct {
	Total   decimal.Decimal `json:"total_pl"`
	Details []PositionPL    `json:"details"`
}

// PortfolioValue 现金 + 持仓评估额。报价缺失的银柄用取得单价代替，
// 评估永远不会因缺报价而失败。
func (a *Account) PortfolioValue(prices map[string]decimal.Decimal) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := a.balance
	for ticker, pos := range a.positions {
		price, ok := prices[ticker]
		if !ok {
			price = pos.AvgPrice
		}
		total = total.Add(price.Mul(pos.Quantity))
	}
	return total
}

// UnrealizedPL 计算全持仓含み損益。成本为零时收益率记 0，不做除零。
func (a *Account) UnrealizedPL(prices map[string]decimal.Decimal) PLReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	report := PLReport{Total: decimal.Zero}
	for ticker, pos := range a.positions {
		price, ok := prices[ticker]
		if !ok {
			price = pos.AvgPrice
		}
		cost := pos.AvgPrice.Mul(pos.Quantity)
		pl := price.Sub(pos.AvgPrice).Mul(pos.Quantity)
		plPct := decimal.Zero
		if cost.IsPositive() {
			plPct = pl.Div(cost).Mul(decimal.NewFromInt(100))
		}
		report.Total = report.Total.Add(pl)
		report.Details = append(report.Details, PositionPL{
			Instrument:   ticker,
			Quantity:     pos.Quantity,
			AvgPrice:     pos.AvgPrice,
			CurrentPrice: price,
			PL:           pl,
			PLPct:        plPct,
		})
	}
	return report
}
