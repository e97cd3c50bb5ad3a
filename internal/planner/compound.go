package planner

import "math"

// CompoundRow 複利シミュレーションの年次行。
type CompoundRow struct {
	Year        int     `json:"year"`
	TotalAssets float64 `json:"total_assets"`
	Principal   float64 `json:"principal"`
	Gain        float64 `json:"gain"`
}

// CalculateCompoundInterest 毎月積立の複利シミュレーション。
// 月次で (残高+積立)×(1+年利/12) を回し、12ヶ月ごとに 1 行出力する。
func CalculateCompoundInterest(principal, monthlyContribution, rateOfReturn float64, years int) []CompoundRow {
	if years <= 0 {
		return nil
	}
	monthlyRate := rateOfReturn / 12
	current := principal
	invested := principal

	rows := make([]CompoundRow, 0, years)
	for month := 1; month <= years*12; month++ {
		current = (current + monthlyContribution) * (1 + monthlyRate)
		invested += monthlyContribution
		if month%12 == 0 {
			rows = append(rows, CompoundRow{
				Year:        month / 12,
				TotalAssets: round2(current),
				Principal:   round2(invested),
				Gain:        round2(current - invested),
			})
		}
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
