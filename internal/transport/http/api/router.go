package apihttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"antigravity/internal/calendar"
	"antigravity/internal/config"
	"antigravity/internal/ledger"
	"antigravity/internal/logger"
	"antigravity/internal/market"
	"antigravity/internal/oracle"
	"antigravity/internal/planner"
	"antigravity/internal/selector"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const quoteTimeout = 5 * time.Second

// RouterConfig 描述 API router 的依赖。可选依赖为 nil 时对应接口返回 503。
type RouterConfig struct {
	Account      *ledger.Account
	Quotes       market.QuoteSource
	News         market.NewsSource
	Runs         *selector.Manager
	Calendar     *calendar.Service
	Oracle       *oracle.Oracle
	OracleLog    *oracle.CallLog
	PlannerCfg   config.PlannerConfig
	SnapshotPath string

	// 选股任务挂在这个 ctx 下，进程退出时统一取消。nil 则挂在 Background 下。
	RunCtx context.Context
}

// Router 暴露模拟口座 / 选股 / 资金计划 / 日历 / AI 相关的接口。
type Router struct {
	Account      *ledger.Account
	Quotes       market.QuoteSource
	News         market.NewsSource
	Runs         *selector.Manager
	Calendar     *calendar.Service
	Oracle       *oracle.Oracle
	OracleLog    *oracle.CallLog
	PlannerCfg   config.PlannerConfig
	SnapshotPath string

	runCtx context.Context
}

// NewRouter 构造 API router。
func NewRouter(cfg RouterConfig) *Router {
	runCtx := cfg.RunCtx
	if runCtx == nil {
		runCtx = context.Background()
	}
	return &Router{
		Account:      cfg.Account,
		Quotes:       cfg.Quotes,
		News:         cfg.News,
		Runs:         cfg.Runs,
		Calendar:     cfg.Calendar,
		Oracle:       cfg.Oracle,
		OracleLog:    cfg.OracleLog,
		PlannerCfg:   cfg.PlannerCfg,
		SnapshotPath: cfg.SnapshotPath,
		runCtx:       runCtx,
	}
}

// Register 将接口挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/account", r.handleAccount)
	group.POST("/account/execute", r.handleExecute)
	group.POST("/account/funds", r.handleAddFunds)
	group.POST("/account/reset", r.handleReset)
	group.POST("/account/save", r.handleSave)
	group.POST("/account/load", r.handleLoad)
	group.GET("/account/value", r.handleValue)
	group.GET("/account/pl", r.handlePL)

	group.POST("/selection", r.handleSelectionStart)
	group.GET("/selection/:id", r.handleSelectionGet)
	group.DELETE("/selection/:id", r.handleSelectionCancel)

	group.GET("/plan", r.handlePositionPlan)
	group.GET("/plan/compound", r.handleCompound)

	group.GET("/calendar", r.handleCalendar)
	group.GET("/oracle/calls", r.handleOracleCalls)
	group.POST("/oracle/movers", r.handleMovers)
	group.POST("/oracle/backtrace", r.handleBacktrace)
}

func (r *Router) handleAccount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"balance":         r.Account.Balance(),
		"initial_balance": r.Account.InitialBalance(),
		"positions":       r.Account.Positions(),
		"history":         r.Account.History(),
	})
}

type executeRequest struct {
	Instrument string  `json:"ticker"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	OrderKind  string  `json:"type"`
	TakeProfit float64 `json:"tp"`
	StopLoss   float64 `json:"sl"`
}

func (r *Router) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Errorf("[api] execute bind failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	instrument := strings.ToUpper(strings.TrimSpace(req.Instrument))
	if instrument == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "銘柄コードを指定してください。"})
		return
	}
	ok, msg := r.Account.ExecuteOrder(ledger.OrderRequest{
		Instrument: instrument,
		Side:       strings.ToUpper(strings.TrimSpace(req.Side)),
		Quantity:   decimal.NewFromFloat(req.Quantity),
		Price:      decimal.NewFromFloat(req.Price),
		OrderKind:  strings.TrimSpace(req.OrderKind),
		TakeProfit: decimal.NewFromFloat(req.TakeProfit),
		StopLoss:   decimal.NewFromFloat(req.StopLoss),
	})
	if !ok {
		logger.Warnf("[api] execute rejected ip=%s ticker=%s side=%s msg=%s", c.ClientIP(), instrument, req.Side, msg)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "message": msg})
		return
	}
	logger.Infof("[api] execute ip=%s ticker=%s side=%s qty=%.2f price=%.2f", c.ClientIP(), instrument, req.Side, req.Quantity, req.Price)
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": msg, "balance": r.Account.Balance()})
}

type fundsRequest struct {
	Amount float64 `json:"amount"`
}

func (r *Router) handleAddFunds(c *gin.Context) {
	var req fundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, msg := r.Account.AddFunds(decimal.NewFromFloat(req.Amount))
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "message": msg})
		return
	}
	logger.Infof("[api] add funds ip=%s amount=%.2f", c.ClientIP(), req.Amount)
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": msg, "balance": r.Account.Balance()})
}

type resetRequest struct {
	Balance float64 `json:"balance"`
}

func (r *Router) handleReset(c *gin.Context) {
	var req resetRequest
	// body 可省略，省略时回到当前初始资金
	_ = c.ShouldBindJSON(&req)
	if req.Balance > 0 {
		r.Account.ResetTo(decimal.NewFromFloat(req.Balance))
	} else {
		r.Account.Reset()
	}
	logger.Infof("[api] account reset ip=%s balance=%s", c.ClientIP(), r.Account.Balance().String())
	c.JSON(http.StatusOK, gin.H{"ok": true, "balance": r.Account.Balance()})
}

func (r *Router) handleSave(c *gin.Context) {
	if strings.TrimSpace(r.SnapshotPath) == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "スナップショットの保存先が未設定です。"})
		return
	}
	if err := r.Account.Save(r.SnapshotPath); err != nil {
		logger.Errorf("[api] account save failed ip=%s path=%s err=%v", c.ClientIP(), r.SnapshotPath, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] account saved ip=%s path=%s", c.ClientIP(), r.SnapshotPath)
	c.JSON(http.StatusOK, gin.H{"ok": true, "path": r.SnapshotPath})
}

func (r *Router) handleLoad(c *gin.Context) {
	if strings.TrimSpace(r.SnapshotPath) == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "スナップショットの保存先が未設定です。"})
		return
	}
	r.Account.Load(r.SnapshotPath)
	logger.Infof("[api] account loaded ip=%s path=%s", c.ClientIP(), r.SnapshotPath)
	c.JSON(http.StatusOK, gin.H{"ok": true, "balance": r.Account.Balance()})
}

// currentPrices 为全持仓拉取现价。拉取失败的银柄不放入 map，
// 评估逻辑会自动回退到取得单价。
func (r *Router) currentPrices(ctx context.Context) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	if r.Quotes == nil {
		return prices
	}
	for ticker := range r.Account.Positions() {
		callCtx, cancel := context.WithTimeout(ctx, quoteTimeout)
		price, err := r.Quotes.GetCurrentPrice(callCtx, ticker)
		cancel()
		if err != nil {
			logger.Warnf("[api] quote failed ticker=%s err=%v", ticker, err)
			continue
		}
		prices[ticker] = decimal.NewFromFloat(price)
	}
	return prices
}

func (r *Router) handleValue(c *gin.Context) {
	prices := r.currentPrices(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"balance":     r.Account.Balance(),
		"total_value": r.Account.PortfolioValue(prices),
	})
}

func (r *Router) handlePL(c *gin.Context) {
	prices := r.currentPrices(c.Request.Context())
	c.JSON(http.StatusOK, r.Account.UnrealizedPL(prices))
}

func (r *Router) handleSelectionStart(c *gin.Context) {
	if r.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "選定パイプラインが無効です。"})
		return
	}
	// 任务生命周期跟随进程而非本次请求
	id := r.Runs.Start(r.runCtx)
	logger.Infof("[api] selection started ip=%s run=%s", c.ClientIP(), id)
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (r *Router) handleSelectionGet(c *gin.Context) {
	if r.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "選定パイプラインが無効です。"})
		return
	}
	snap, err := r.Runs.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleSelectionCancel(c *gin.Context) {
	if r.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "選定パイプラインが無効です。"})
		return
	}
	id := c.Param("id")
	if err := r.Runs.Cancel(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] selection cancelled ip=%s run=%s", c.ClientIP(), id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handlePositionPlan(c *gin.Context) {
	price, _ := strconv.ParseFloat(c.Query("price"), 64)
	if price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price は正の値を指定してください。"})
		return
	}
	balance, _ := strconv.ParseFloat(c.Query("balance"), 64)
	if balance <= 0 {
		bal, _ := r.Account.Balance().Float64()
		balance = bal
	}
	riskPct, _ := strconv.ParseFloat(c.Query("risk_pct"), 64)
	if riskPct <= 0 {
		riskPct = r.PlannerCfg.DefaultRiskPct
	}
	plan := planner.CalculatePositionSize(balance, price, riskPct)
	c.JSON(http.StatusOK, plan)
}

func (r *Router) handleCompound(c *gin.Context) {
	principal, _ := strconv.ParseFloat(c.DefaultQuery("principal", "1000000"), 64)
	monthly, _ := strconv.ParseFloat(c.DefaultQuery("monthly", "50000"), 64)
	rate, _ := strconv.ParseFloat(c.DefaultQuery("rate", "0.05"), 64)
	years, _ := strconv.Atoi(c.DefaultQuery("years", "10"))
	if years <= 0 || years > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "years は 1〜100 で指定してください。"})
		return
	}
	rows := planner.CalculateCompoundInterest(principal, monthly, rate, years)
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (r *Router) handleCalendar(c *gin.Context) {
	if r.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "カレンダーが無効です。"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 {
		limit = 10
	}
	c.JSON(http.StatusOK, gin.H{
		"events":        r.Calendar.UpcomingEvents(limit),
		"status":        r.Calendar.Status(),
		"session":       r.Calendar.CurrentSession(),
		"event_context": r.Calendar.EventContext(),
		"key_people":    r.Calendar.UpcomingKeyPeople(),
	})
}

func (r *Router) handleOracleCalls(c *gin.Context) {
	if r.OracleLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AIコールログが無効です。"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	entries, err := r.OracleLog.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] oracle calls failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": entries})
}

type moversRequest struct {
	NewsText string `json:"news_text"`
}

// handleMovers 发现当前影响行情的关键人物/资产。news_text 省略时
// 自动抓取市场整体（^GSPC）新闻作为语料。
func (r *Router) handleMovers(c *gin.Context) {
	if r.Oracle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AIオラクルが無効です。"})
		return
	}
	var req moversRequest
	_ = c.ShouldBindJSON(&req)
	corpus := strings.TrimSpace(req.NewsText)
	if corpus == "" && r.News != nil {
		items, err := r.News.FetchNews(c.Request.Context(), "^GSPC")
		if err != nil {
			logger.Warnf("[api] movers news fetch failed ip=%s err=%v", c.ClientIP(), err)
		} else {
			corpus = market.FormatNewsCorpus(items, 2500)
		}
	}
	if corpus == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "分析対象のニュースがありません。"})
		return
	}
	movers, err := r.Oracle.DiscoverMovers(c.Request.Context(), corpus)
	if err != nil {
		logger.Errorf("[api] movers failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movers": movers})
}

type backtraceRequest struct {
	Person        string `json:"person"`
	MarketContext string `json:"market_context"`
}

// handleBacktrace 回溯关键人物近期发言，估计鹰派/鸽派概率。
func (r *Router) handleBacktrace(c *gin.Context) {
	if r.Oracle == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AIオラクルが無効です。"})
		return
	}
	var req backtraceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	person := strings.TrimSpace(req.Person)
	if person == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "person を指定してください。"})
		return
	}
	marketContext := strings.TrimSpace(req.MarketContext)
	if marketContext == "" && r.Calendar != nil {
		marketContext = r.Calendar.EventContext()
	}
	forecast, err := r.Oracle.AnalyzePastStatements(c.Request.Context(), person, marketContext)
	if err != nil {
		logger.Errorf("[api] backtrace failed ip=%s person=%s err=%v", c.ClientIP(), person, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, forecast)
}
