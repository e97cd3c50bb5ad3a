package apihttp

import (
	"fmt"
	"net/http"
	"strconv"

	"antigravity/internal/ledger"
	"antigravity/internal/logger"
	"antigravity/internal/planner"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/shopspring/decimal"
)

const (
	dashChartWidth  = 1000
	dashChartHeight = 420

	colorAssets    = "#5470c6"
	colorPrincipal = "#91cc75"
	colorEquity    = "#fac858"
)

// handleDashboard 渲染资产ダッシュボード：複利シミュレーション + 現金推移。
// クエリで principal/monthly/rate/years を上書きできる。
func (r *Router) handleDashboard(c *gin.Context) {
	bal, _ := r.Account.InitialBalance().Float64()
	principal, _ := strconv.ParseFloat(c.DefaultQuery("principal", fmt.Sprintf("%.0f", bal)), 64)
	monthly, _ := strconv.ParseFloat(c.DefaultQuery("monthly", "50000"), 64)
	rate, _ := strconv.ParseFloat(c.DefaultQuery("rate", "0.05"), 64)
	years, _ := strconv.Atoi(c.DefaultQuery("years", "10"))
	if years <= 0 || years > 100 {
		years = 10
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = "Antigravity 資産ダッシュボード"

	rows := planner.CalculateCompoundInterest(principal, monthly, rate, years)
	page.AddCharts(buildCompoundChart(rows, rate))

	history := r.Account.History()
	if len(history) > 0 {
		page.AddCharts(buildEquityChart(r.Account.InitialBalance(), history))
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(c.Writer); err != nil {
		logger.Errorf("[api] dashboard render failed ip=%s err=%v", c.ClientIP(), err)
	}
}

func dashInit() opts.Initialization {
	return opts.Initialization{
		Theme:  types.ThemeWesteros,
		Width:  fmt.Sprintf("%dpx", dashChartWidth),
		Height: fmt.Sprintf("%dpx", dashChartHeight),
	}
}

func buildCompoundChart(rows []planner.CompoundRow, rate float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(dashInit()),
		charts.WithTitleOpts(opts.Title{
			Title:    "複利シミュレーション",
			Subtitle: fmt.Sprintf("想定年利 %.1f%% / 毎月積立", rate*100),
			Left:     "left",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	xAxis := make([]string, len(rows))
	assets := make([]opts.LineData, len(rows))
	principal := make([]opts.LineData, len(rows))
	for i, row := range rows {
		xAxis[i] = fmt.Sprintf("%d年目", row.Year)
		assets[i] = opts.LineData{Value: row.TotalAssets}
		principal[i] = opts.LineData{Value: row.Principal}
	}
	line.SetXAxis(xAxis).
		AddSeries("総資産", assets, charts.WithLineStyleOpts(opts.LineStyle{Color: colorAssets, Width: 2})).
		AddSeries("元本", principal, charts.WithLineStyleOpts(opts.LineStyle{Color: colorPrincipal, Width: 2}))
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}),
	)
	return line
}

// buildEquityChart 按成交顺序重放履历，画出现金残高的推移。
func buildEquityChart(initialBalance decimal.Decimal, history []ledger.Trade) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(dashInit()),
		charts.WithTitleOpts(opts.Title{Title: "現金残高の推移", Left: "left"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	xAxis := make([]string, 0, len(history)+1)
	data := make([]opts.LineData, 0, len(history)+1)

	cash := initialBalance
	xAxis = append(xAxis, "開始")
	v, _ := cash.Float64()
	data = append(data, opts.LineData{Value: v})
	for _, trade := range history {
		switch trade.Side {
		case ledger.SideBuy:
			cash = cash.Sub(trade.Notional)
		case ledger.SideSell:
			cash = cash.Add(trade.Notional)
		}
		xAxis = append(xAxis, trade.Timestamp.Format("01/02 15:04"))
		v, _ := cash.Float64()
		data = append(data, opts.LineData{Value: v})
	}
	line.SetXAxis(xAxis).
		AddSeries("現金残高", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	return line
}
