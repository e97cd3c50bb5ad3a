package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"antigravity/internal/analyzer"
	"antigravity/internal/calendar"
	"antigravity/internal/config"
	"antigravity/internal/ledger"
	"antigravity/internal/market"
	"antigravity/internal/oracle"
	"antigravity/internal/screener"
	"antigravity/internal/selector"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedQuote map[string]float64

func (f fixedQuote) GetCurrentPrice(_ context.Context, instrument string) (float64, error) {
	if price, ok := f[instrument]; ok {
		return price, nil
	}
	return 0, market.ErrPriceUnavailable
}

type listScreener struct{ candidates []screener.Candidate }

func (s listScreener) Screen(_ context.Context, _ []string) ([]screener.Candidate, error) {
	return s.candidates, nil
}

type scoreAnalyzer map[string]float64

func (a scoreAnalyzer) Analyze(_ context.Context, instrument string, _ *market.Indicators,
	_ analyzer.Environment, tier oracle.Tier, _ analyzer.StatusFunc) (analyzer.Result, error) {
	return analyzer.Result{Instrument: instrument, Score: a[instrument], Tier: string(tier)}, nil
}

func newTestServer(t *testing.T, account *ledger.Account, quotes market.QuoteSource, runs *selector.Manager) http.Handler {
	t.Helper()
	api := NewRouter(RouterConfig{
		Account:      account,
		Quotes:       quotes,
		Runs:         runs,
		Calendar:     calendar.NewService(),
		PlannerCfg:   config.PlannerConfig{DefaultRiskPct: 0.1},
		SnapshotPath: filepath.Join(t.TempDir(), "snapshot.json"),
	})
	srv, err := NewServer(":0", api)
	require.NoError(t, err)
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	}
	return rec, payload
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1000000)), fixedQuote{}, nil)
	rec, payload := doJSON(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
}

func TestAccountExecuteAndQuery(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": "7203.T", "side": "BUY", "quantity": 100, "price": 2500,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["ok"])

	rec, payload = doJSON(t, h, http.MethodGet, "/api/account", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "750000", payload["balance"])
	positions := payload["positions"].(map[string]any)
	require.Contains(t, positions, "7203.T")
	history := payload["history"].([]any)
	assert.Len(t, history, 1)
}

func TestAccountExecuteRejected(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": "AAPL", "side": "BUY", "quantity": 100, "price": 500,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, payload["ok"])
	assert.Contains(t, payload["message"], "資金不足")
	// 约定失败时账户不变
	assert.Equal(t, "1000", account.Balance().String())
}

func TestAccountExecuteLowercaseNormalized(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": " aapl ", "side": "buy", "quantity": 1, "price": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, account.Positions(), "AAPL")
}

func TestAccountFundsAndReset(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/account/funds", jsonBody{"amount": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1500", account.Balance().String())

	rec, _ = doJSON(t, h, http.MethodPost, "/api/account/funds", jsonBody{"amount": -5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/account/reset", jsonBody{"balance": 2000000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2000000", account.Balance().String())
	assert.Empty(t, account.History())
}

func TestAccountSaveAndLoad(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	_, _ = doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": "NVDA", "side": "BUY", "quantity": 10, "price": 100,
	})
	rec, _ := doJSON(t, h, http.MethodPost, "/api/account/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	account.Reset()
	require.Empty(t, account.Positions())

	rec, _ = doJSON(t, h, http.MethodPost, "/api/account/load", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, account.Positions(), "NVDA")
	assert.Equal(t, "999000", account.Balance().String())
}

func TestAccountValueAndPL(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000000))
	quotes := fixedQuote{"NVDA": 150}
	h := newTestServer(t, account, quotes, nil)

	_, _ = doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": "NVDA", "side": "BUY", "quantity": 10, "price": 100,
	})
	// MSFT は報価が取れず取得単価で評価される
	_, _ = doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": "MSFT", "side": "BUY", "quantity": 5, "price": 200,
	})

	rec, payload := doJSON(t, h, http.MethodGet, "/api/account/value", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// 998000 現金 + 10×150 + 5×200
	assert.Equal(t, "1000500", payload["total_value"])

	rec, payload = doJSON(t, h, http.MethodGet, "/api/account/pl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "500", payload["total_pl"])
	details := payload["details"].([]any)
	assert.Len(t, details, 2)
}

func TestSelectionLifecycle(t *testing.T) {
	scr := listScreener{candidates: []screener.Candidate{
		{Instrument: "A", PreScore: 90},
		{Instrument: "B", PreScore: 80},
	}}
	ana := scoreAnalyzer{"A": 70, "B": 85}
	sel := selector.New(scr, ana, calendar.NewService(), config.SelectorConfig{
		Universe: []string{"A", "B"}, Stage1Pool: 10,
	})
	runs := selector.NewManager(sel)
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1000000)), fixedQuote{}, runs)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/selection", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id, ok := payload["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	deadline := time.Now().Add(2 * time.Second)
	var snap map[string]any
	for {
		rec, snap = doJSON(t, h, http.MethodGet, "/api/selection/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		if snap["state"] == string(selector.RunDone) {
			break
		}
		require.True(t, time.Now().Before(deadline), "selection did not finish")
		time.Sleep(10 * time.Millisecond)
	}
	assert.EqualValues(t, 100, snap["progress"])
	results := snap["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "B", first["ticker"])
}

func TestSelectionNotFound(t *testing.T) {
	runs := selector.NewManager(selector.New(listScreener{}, scoreAnalyzer{}, calendar.NewService(), config.SelectorConfig{}))
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1)), fixedQuote{}, runs)

	rec, _ := doJSON(t, h, http.MethodGet, "/api/selection/no-such-run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = doJSON(t, h, http.MethodDelete, "/api/selection/no-such-run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectionDisabled(t *testing.T) {
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1)), fixedQuote{}, nil)
	rec, _ := doJSON(t, h, http.MethodPost, "/api/selection", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPositionPlan(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/plan?price=2000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// 残高 1000000 × デフォルト 10% ÷ 2000 = 50 株
	assert.EqualValues(t, 50, payload["qty"])

	rec, payload = doJSON(t, h, http.MethodGet, "/api/plan?price=100&balance=5000&risk_pct=0.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 25, payload["qty"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/plan?price=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompoundPlan(t *testing.T) {
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1)), fixedQuote{}, nil)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/plan/compound?principal=1000000&monthly=0&rate=0&years=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := payload["rows"].([]any)
	require.Len(t, rows, 3)
	last := rows[2].(map[string]any)
	assert.EqualValues(t, 3, last["year"])
	assert.EqualValues(t, 1000000, last["total_assets"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/plan/compound?years=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarEndpoint(t *testing.T) {
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1)), fixedQuote{}, nil)

	rec, payload := doJSON(t, h, http.MethodGet, "/api/calendar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, payload, "status")
	require.Contains(t, payload, "session")
	assert.Contains(t, payload, "event_context")
}

func TestOracleCallsDisabled(t *testing.T) {
	h := newTestServer(t, ledger.NewAccount(decimal.NewFromInt(1)), fixedQuote{}, nil)
	rec, _ := doJSON(t, h, http.MethodGet, "/api/oracle/calls", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type cannedCaller struct{ response string }

func (c cannedCaller) CallWithMessages(_ context.Context, _, _, _ string) (string, error) {
	return c.response, nil
}

func newOracleServer(t *testing.T, response string) http.Handler {
	t.Helper()
	svc := oracle.New(cannedCaller{response: response},
		config.OracleConfig{FastModel: "fast-model", DeepModel: "deep-model"}, nil, nil)
	api := NewRouter(RouterConfig{
		Account:  ledger.NewAccount(decimal.NewFromInt(1)),
		Quotes:   fixedQuote{},
		Calendar: calendar.NewService(),
		Oracle:   svc,
	})
	srv, err := NewServer(":0", api)
	require.NoError(t, err)
	return srv.Handler()
}

func TestMoversEndpoint(t *testing.T) {
	h := newOracleServer(t, `[{"person":"Jerome Powell","asset":"NVDA","impact":80,"strategy":"BUY","reason":"利下げ期待"}]`)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/oracle/movers", jsonBody{"news_text": "FRB議長が利下げを示唆"})
	require.Equal(t, http.StatusOK, rec.Code)
	movers := payload["movers"].([]any)
	require.Len(t, movers, 1)
	first := movers[0].(map[string]any)
	assert.Equal(t, "Jerome Powell", first["person"])

	// 语料为空且无新闻源时拒绝
	rec, _ = doJSON(t, h, http.MethodPost, "/api/oracle/movers", jsonBody{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBacktraceEndpoint(t *testing.T) {
	h := newOracleServer(t, `{"hawk_prob":65,"prediction_score":70,"reason":"過去発言はタカ派寄り"}`)

	rec, payload := doJSON(t, h, http.MethodPost, "/api/oracle/backtrace", jsonBody{"person": "Jerome Powell"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 65, payload["hawk_prob"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/oracle/backtrace", jsonBody{"person": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardRenders(t *testing.T) {
	account := ledger.NewAccount(decimal.NewFromInt(1000000))
	h := newTestServer(t, account, fixedQuote{}, nil)

	_, _ = doJSON(t, h, http.MethodPost, "/api/account/execute", jsonBody{
		"ticker": "NVDA", "side": "BUY", "quantity": 10, "price": 100,
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "複利シミュレーション")
	assert.Contains(t, body, "現金残高の推移")
}

// jsonBody 避免测试里到处写 map[string]any。
type jsonBody = map[string]any
