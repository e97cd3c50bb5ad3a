package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"antigravity/internal/analyzer"
	"antigravity/internal/calendar"
	agcfg "antigravity/internal/config"
	"antigravity/internal/ledger"
	"antigravity/internal/logger"
	"antigravity/internal/market"
	"antigravity/internal/oracle"
	"antigravity/internal/screener"
	"antigravity/internal/selector"
	apihttp "antigravity/internal/transport/http/api"

	"github.com/shopspring/decimal"
)

const quoteCacheTTL = 30 * time.Second

// MarketStack 行情三件套：現値 / ニュース / テクニカル指標。
type MarketStack struct {
	Quotes     market.QuoteSource
	News       market.NewsSource
	Indicators market.IndicatorSource

	// candles モード時のみ非 nil、終了時に Close する
	CandleStore *market.CandleStore
}

type AppBuilder struct {
	cfg *agcfg.Config

	marketStackFn func(*agcfg.Config) (*MarketStack, error)
	oracleFn      func(*agcfg.Config) (*oracle.Oracle, *oracle.PromptStore, *oracle.CallLog, error)
	httpServerFn  func(string, *apihttp.Router) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *agcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		marketStackFn: buildMarketStack,
		oracleFn:      buildOracleStack,
		httpServerFn:  apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	account := ledger.NewAccount(decimal.NewFromFloat(cfg.Account.InitialBalance))
	if path := strings.TrimSpace(cfg.Account.SnapshotPath); path != "" {
		account.Load(path)
	}
	logger.Infof("✓ 模拟口座已初始化，残高=%s", account.Balance().String())

	marketStack, err := b.marketStackFn(cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 行情源: quote=%s news=%s indicator=%s",
		cfg.Market.QuoteSource, cfg.Market.NewsSource, cfg.Market.IndicatorSource)

	oracleSvc, prompts, callLog, err := b.oracleFn(cfg)
	if err != nil {
		marketStack.close()
		return nil, err
	}

	cal := calendar.NewService()
	scr := screener.NewPreScreener(marketStack.Indicators, marketSeed(cfg))
	ana := analyzer.New(marketStack.Quotes, marketStack.News, marketStack.Indicators, oracleSvc, cfg.Selector)
	sel := selector.New(scr, ana, cal, cfg.Selector)
	runs := selector.NewManager(sel)
	logger.Infof("✓ 选股管线就绪，候选池 %d 只 / 一次扫描 %d 只", len(cfg.Selector.Universe), cfg.Selector.Stage1Pool)

	api := apihttp.NewRouter(apihttp.RouterConfig{
		Account:      account,
		Quotes:       marketStack.Quotes,
		News:         marketStack.News,
		Runs:         runs,
		Calendar:     cal,
		Oracle:       oracleSvc,
		OracleLog:    callLog,
		PlannerCfg:   cfg.Planner,
		SnapshotPath: cfg.Account.SnapshotPath,
		RunCtx:       ctx,
	})
	server, err := b.httpServerFn(cfg.App.HTTPAddr, api)
	if err != nil {
		marketStack.close()
		closeOracleStack(prompts, callLog)
		return nil, err
	}

	return &App{
		cfg:          cfg,
		account:      account,
		server:       server,
		marketStack:  marketStack,
		prompts:      prompts,
		callLog:      callLog,
		snapshotPath: cfg.Account.SnapshotPath,
	}, nil
}

func buildMarketStack(cfg *agcfg.Config) (*MarketStack, error) {
	seed := marketSeed(cfg)
	stack := &MarketStack{}

	switch strings.ToLower(cfg.Market.QuoteSource) {
	case "yahoo":
		stack.Quotes = market.NewCachedQuoteSource(market.YahooQuoteSource{}, quoteCacheTTL)
	default:
		stack.Quotes = market.NewSimQuoteSource(seed)
	}

	switch strings.ToLower(cfg.Market.NewsSource) {
	case "rss":
		stack.News = market.NewRSSNewsSource(cfg.Market.NewsMaxItems)
	default:
		stack.News = market.SimNewsSource{}
	}

	switch strings.ToLower(cfg.Market.IndicatorSource) {
	case "candles":
		store, err := market.NewCandleStore(cfg.Market.CandleDBPath, cfg.Market.CandleInterval)
		if err != nil {
			return nil, fmt.Errorf("打开K线库失败: %w", err)
		}
		stack.CandleStore = store
		// 缓存不足时自动从 Yahoo 补齐历史日线。
		provider := market.NewBackfillProvider(store, market.YahooHistorySource{})
		stack.Indicators = market.NewCandleIndicatorSource(provider)
	default:
		stack.Indicators = market.NewSimIndicatorSource(seed)
	}
	return stack, nil
}

func buildOracleStack(cfg *agcfg.Config) (*oracle.Oracle, *oracle.PromptStore, *oracle.CallLog, error) {
	prompts, err := oracle.NewPromptStore(cfg.Oracle.PromptPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("加载提示词失败: %w", err)
	}

	var callLog *oracle.CallLog
	if path := strings.TrimSpace(cfg.App.OracleLogDBPath); path != "" {
		callLog, err = oracle.NewCallLog(path)
		if err != nil {
			prompts.Close()
			return nil, nil, nil, fmt.Errorf("打开AI调用日志库失败: %w", err)
		}
	}

	apiKey := os.Getenv(cfg.Oracle.APIKeyEnv)
	if apiKey == "" {
		logger.Warnf("环境变量 %s 未设置，AI请求将在认证处失败并退化为中性判断", cfg.Oracle.APIKeyEnv)
	}
	client := &oracle.ChatClient{
		BaseURL:    cfg.Oracle.BaseURL,
		APIKey:     apiKey,
		Timeout:    time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Oracle.MaxRetries,
	}
	return oracle.New(client, cfg.Oracle, prompts, callLog), prompts, callLog, nil
}

func marketSeed(cfg *agcfg.Config) int64 {
	if cfg.Market.Seed != 0 {
		return cfg.Market.Seed
	}
	return time.Now().UnixNano()
}

func (m *MarketStack) close() {
	if m == nil {
		return
	}
	if m.CandleStore != nil {
		if err := m.CandleStore.Close(); err != nil {
			logger.Warnf("关闭K线库失败: %v", err)
		}
	}
}

func closeOracleStack(prompts *oracle.PromptStore, callLog *oracle.CallLog) {
	if prompts != nil {
		prompts.Close()
	}
	if callLog != nil {
		if err := callLog.Close(); err != nil {
			logger.Warnf("关闭AI调用日志库失败: %v", err)
		}
	}
}
