package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestAccount(balance string) *Account {
	a := NewAccount(d(balance))
	a.SetClock(func() time.Time { return time.Date(2026, 1, 24, 10, 0, 0, 0, time.UTC) })
	return a
}

func buy(a *Account, ticker, qty, price string) (bool, string) {
	return a.ExecuteOrder(OrderRequest{Instrument: ticker, Side: SideBuy, Quantity: d(qty), Price: d(price)})
}

func sell(a *Account, ticker, qty, price string) (bool, string) {
	return a.ExecuteOrder(OrderRequest{Instrument: ticker, Side: SideSell, Quantity: d(qty), Price: d(price)})
}

// JSON 往返后 decimal 内部表示会变，逐字段用 Equal 比较。
func assertSamePositions(t *testing.T, want, got map[string]Position) {
	t.Helper()
	require.Len(t, got, len(want))
	for ticker, w := range want {
		g, ok := got[ticker]
		require.True(t, ok, "missing position %s", ticker)
		assert.True(t, g.Quantity.Equal(w.Quantity), "%s quantity=%s", ticker, g.Quantity)
		assert.True(t, g.AvgPrice.Equal(w.AvgPrice), "%s avg_price=%s", ticker, g.AvgPrice)
		assert.True(t, g.TakeProfit.Equal(w.TakeProfit), "%s tp=%s", ticker, g.TakeProfit)
		assert.True(t, g.StopLoss.Equal(w.StopLoss), "%s sl=%s", ticker, g.StopLoss)
	}
}

func TestExecuteOrder_BuyDebitsCashAndAveragesCost(t *testing.T) {
	a := newTestAccount("1000000")

	ok, msg := buy(a, "7203.T", "100", "2000")
	require.True(t, ok, msg)
	assert.True(t, a.Balance().Equal(d("800000")), "balance=%s", a.Balance())

	ok, _ = buy(a, "7203.T", "100", "3000")
	require.True(t, ok)
	assert.True(t, a.Balance().Equal(d("500000")))

	pos := a.Positions()["7203.T"]
	assert.True(t, pos.Quantity.Equal(d("200")))
	// (100×2000 + 100×3000) / 200 = 2500
	assert.True(t, pos.AvgPrice.Equal(d("2500")), "avg=%s", pos.AvgPrice)
}

func TestExecuteOrder_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	a := newTestAccount("10000")

	ok, msg := buy(a, "NVDA", "10", "5000")
	assert.False(t, ok)
	assert.Contains(t, msg, "資金不足")
	assert.True(t, a.Balance().Equal(d("10000")))
	assert.Empty(t, a.Positions())
	assert.Empty(t, a.History())
}

func TestExecuteOrder_SellFullQuantityRemovesPosition(t *testing.T) {
	a := newTestAccount("1000000")
	buy(a, "AAPL", "50", "100")

	ok, _ := sell(a, "AAPL", "50", "120")
	require.True(t, ok)
	_, held := a.Positions()["AAPL"]
	assert.False(t, held, "position must be removed, not kept at zero")
	// 1000000 - 5000 + 6000
	assert.True(t, a.Balance().Equal(d("1001000")))
}

func TestExecuteOrder_SellWithoutPosition(t *testing.T) {
	a := newTestAccount("100000")
	ok, msg := sell(a, "TSLA", "1", "200")
	assert.False(t, ok)
	assert.Contains(t, msg, "保有していません")
	assert.Empty(t, a.History())
}

func TestExecuteOrder_SellMoreThanHeldLeavesStateUnchanged(t *testing.T) {
	a := newTestAccount("100000")
	buy(a, "TSLA", "10", "100")
	before := a.Balance()

	ok, msg := sell(a, "TSLA", "11", "100")
	assert.False(t, ok)
	assert.Contains(t, msg, "保有数量が不足")
	assert.True(t, a.Balance().Equal(before))
	assert.True(t, a.Positions()["TSLA"].Quantity.Equal(d("10")))
	assert.Len(t, a.History(), 1)
}

func TestExecuteOrder_InvalidSide(t *testing.T) {
	a := newTestAccount("100000")
	ok, msg := a.ExecuteOrder(OrderRequest{Instrument: "TSLA", Side: "SHORT", Quantity: d("1"), Price: d("100")})
	assert.False(t, ok)
	assert.Contains(t, msg, "無効な取引タイプ")
}

func TestExecuteOrder_RejectsNonPositiveQuantityAndPrice(t *testing.T) {
	a := newTestAccount("100000")

	ok, _ := a.ExecuteOrder(OrderRequest{Instrument: "TSLA", Side: SideBuy, Quantity: decimal.Zero, Price: d("100")})
	assert.False(t, ok)

	ok, _ = a.ExecuteOrder(OrderRequest{Instrument: "TSLA", Side: SideBuy, Quantity: d("-5"), Price: d("100")})
	assert.False(t, ok)

	ok, _ = a.ExecuteOrder(OrderRequest{Instrument: "TSLA", Side: SideBuy, Quantity: d("1"), Price: decimal.Zero})
	assert.False(t, ok)
	assert.Empty(t, a.History())
}

func TestExecuteOrder_HistoryAppendsExactlyOncePerSuccess(t *testing.T) {
	a := newTestAccount("1000000")

	ok, _ := buy(a, "NVDA", "2", "500")
	require.True(t, ok)
	assert.Len(t, a.History(), 1)

	ok, _ = sell(a, "NVDA", "5", "500") // 失败，不追加
	require.False(t, ok)
	assert.Len(t, a.History(), 1)

	ok, _ = sell(a, "NVDA", "2", "600")
	require.True(t, ok)
	require.Len(t, a.History(), 2)

	last := a.History()[1]
	assert.Equal(t, SideSell, last.Side)
	assert.True(t, last.Notional.Equal(d("1200")))
}

func TestExecuteOrder_TakeProfitStopLossLastWriteWins(t *testing.T) {
	a := newTestAccount("1000000")
	a.ExecuteOrder(OrderRequest{
		Instrument: "7203.T", Side: SideBuy, Quantity: d("10"), Price: d("3000"),
		TakeProfit: d("3300"), StopLoss: d("2850"),
	})
	a.ExecuteOrder(OrderRequest{
		Instrument: "7203.T", Side: SideBuy, Quantity: d("10"), Price: d("3000"),
		TakeProfit: d("3500"),
	})

	pos := a.Positions()["7203.T"]
	assert.True(t, pos.TakeProfit.Equal(d("3500")), "latest TP wins")
	assert.True(t, pos.StopLoss.Equal(d("2850")), "unset SL keeps previous value")
}

func TestPortfolioValue_FallsBackToAvgPrice(t *testing.T) {
	a := newTestAccount("100000")
	buy(a, "AAPL", "10", "150") // 残高 98500

	prices := map[string]decimal.Decimal{"AAPL": d("170")}
	assert.True(t, a.PortfolioValue(prices).Equal(d("100200")))

	// 報価なし → 取得単価で代用
	assert.True(t, a.PortfolioValue(nil).Equal(d("100000")))
}

func TestUnrealizedPL(t *testing.T) {
	a := newTestAccount("1000000")
	buy(a, "AAPL", "10", "150")

	report := a.UnrealizedPL(map[string]decimal.Decimal{"AAPL": d("165")})
	require.Len(t, report.Details, 1)
	det := report.Details[0]
	assert.True(t, det.PL.Equal(d("150")))
	assert.True(t, det.PLPct.Equal(d("10")), "pl_pct=%s", det.PLPct)
	assert.True(t, report.Total.Equal(d("150")))
}

func TestAddFundsAndReset(t *testing.T) {
	a := newTestAccount("100000")
	ok, _ := a.AddFunds(d("50000"))
	require.True(t, ok)
	assert.True(t, a.Balance().Equal(d("150000")))

	ok, _ = a.AddFunds(d("-1"))
	assert.False(t, ok)

	buy(a, "AAPL", "1", "100")
	a.Reset()
	assert.True(t, a.Balance().Equal(d("100000")))
	assert.Empty(t, a.Positions())
	assert.Empty(t, a.History())

	a.ResetTo(d("999"))
	assert.True(t, a.Balance().Equal(d("999")))
	assert.True(t, a.InitialBalance().Equal(d("999")))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := newTestAccount("1000000")
	buy(a, "7203.T", "100", "2500")
	buy(a, "NVDA", "3", "800")
	sell(a, "7203.T", "40", "2600")

	snap := a.Snapshot()

	b := NewAccount(d("1"))
	b.Restore(snap)

	assert.True(t, b.Balance().Equal(a.Balance()))
	assert.True(t, b.InitialBalance().Equal(a.InitialBalance()))
	assert.Equal(t, a.Positions(), b.Positions())
	assert.Equal(t, a.History(), b.History())
}

func TestRestore_PartialSnapshotDegradesToDefaults(t *testing.T) {
	a := newTestAccount("5")
	a.Restore(Snapshot{})

	assert.True(t, a.Balance().Equal(d("10000000")))
	assert.True(t, a.InitialBalance().Equal(d("10000000")))
	assert.Empty(t, a.Positions())
	assert.Empty(t, a.History())
}

func TestRestore_DropsNonPositiveQuantityPositions(t *testing.T) {
	a := newTestAccount("1000000")
	a.Restore(Snapshot{
		Positions: map[string]Position{
			"AAPL":   {Quantity: d("10"), AvgPrice: d("150")},
			"7203.T": {Quantity: d("0"), AvgPrice: d("2500")},
			"NVDA":   {Quantity: d("-3"), AvgPrice: d("800")},
		},
	})

	got := a.Positions()
	require.Len(t, got, 1)
	assert.True(t, got["AAPL"].Quantity.Equal(d("10")))
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo_account.json")

	a := newTestAccount("1000000")
	buy(a, "AAPL", "10", "150")
	require.NoError(t, a.Save(path))

	b := NewAccount(d("1"))
	b.Load(path)
	assert.True(t, b.Balance().Equal(a.Balance()))
	assertSamePositions(t, a.Positions(), b.Positions())

	// 不存在的文件是 no-op
	c := newTestAccount("777")
	c.Load(filepath.Join(dir, "missing.json"))
	assert.True(t, c.Balance().Equal(d("777")))
}
