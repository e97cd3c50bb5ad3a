package selector

import (
	"context"
	"fmt"
	"sort"

	"antigravity/internal/analyzer"
	"antigravity/internal/calendar"
	"antigravity/internal/config"
	"antigravity/internal/logger"
	"antigravity/internal/market"
	"antigravity/internal/oracle"
	"antigravity/internal/screener"
)

// 中文说明：
// 两段式选股流水线（Two-Stage Rocket）：
// 1. 全候选池轻量技术面初筛，取最活跃的前 N 名
// 2. 快档模型扫描初筛结果并排名
// 3. 前 deep_top_n 名用深档模型精密分析、生成损切逻辑，再按最终得分排序

// Hooks 进度与状态回调，展示层用来驱动进度条。
type Hooks struct {
	Progress func(pct int)
	Status   analyzer.StatusFunc
}

func (h Hooks) progress(pct int) {
	if h.Progress != nil {
		h.Progress(pct)
	}
}

func (h Hooks) status(msg string) {
	if h.Status != nil {
		h.Status(msg)
	}
}

// CandidateScreener 初筛依赖。
type CandidateScreener interface {
	Screen(ctx context.Context, pool []string) ([]screener.Candidate, error)
}

// StockAnalyzer 单一银柄分析依赖。
type StockAnalyzer interface {
	Analyze(ctx context.Context, instrument string, precomputed *market.Indicators, env analyzer.Environment, tier oracle.Tier, status analyzer.StatusFunc) (analyzer.Result, error)
}

type Selector struct {
	screener CandidateScreener
	analyzer StockAnalyzer
	calendar *calendar.Service
	cfg      config.SelectorConfig
}

func New(scr CandidateScreener, ana StockAnalyzer, cal *calendar.Service, cfg config.SelectorConfig) *Selector {
	return &Selector{screener: scr, analyzer: ana, calendar: cal, cfg: cfg}
}

const defaultDeepTopN = 5

// deepTopN 晋级深档精密分析的名额，配置缺失时退回 5。
func (s *Selector) deepTopN() int {
	if s.cfg.DeepTopN > 0 {
		return s.cfg.DeepTopN
	}
	return defaultDeepTopN
}

// SelectBest 跑完整两段式流水线，返回按最终得分降序的前 N 名。
// 单个银柄失败只降低结果数量，不中断整个流程。
func (s *Selector) SelectBest(ctx context.Context, hooks Hooks) ([]analyzer.Result, error) {
	hooks.progress(0)
	hooks.status("候補銘柄をスキャン中 ...")

	// 全银柄共享的市场背景只取一次。
	env := analyzer.Environment{
		EventContext: s.calendar.EventContext(),
		Status:       s.calendar.Status(),
		TimeContext:  s.calendar.CurrentSession().Message,
	}

	candidates, err := s.screener.Screen(ctx, s.cfg.Universe)
	if err != nil {
		return nil, fmt.Errorf("selector: 初筛失败: %w", err)
	}
	pool := candidates
	if len(pool) > s.cfg.Stage1Pool {
		pool = pool[:s.cfg.Stage1Pool]
	}
	hooks.progress(30)

	// --- STAGE 1: 快档扫描 ---
	var ranked []analyzer.Result
	total := len(pool)
	for i, candidate := range pool {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hooks.progress(30 + int(float64(i)/float64(total)*50))
		hooks.status(fmt.Sprintf("1次スキャン(Flash) %s ... 高速スクリーニング中", candidate.Instrument))

		ind := candidate.Indicators
		res, err := s.analyzer.Analyze(ctx, candidate.Instrument, &ind, env, oracle.TierFast, hooks.Status)
		if err != nil {
			logger.Warnf("1次スキャン失败 %s: %v", candidate.Instrument, err)
			continue
		}
		ranked = append(ranked, res)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	topN := s.deepTopN()
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	// --- STAGE 2: 深档精密分析 ---
	var final []analyzer.Result
	for i, stock := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hooks.progress(80 + int(float64(i)/float64(topN)*20))
		hooks.status(fmt.Sprintf("最終分析(Pro) %s ... 損切ラインと詳細理由を生成中", stock.Instrument))

		res, err := s.analyzer.Analyze(ctx, stock.Instrument, nil, env, oracle.TierDeep, hooks.Status)
		if err != nil {
			logger.Warnf("最終分析失败 %s: %v", stock.Instrument, err)
			continue
		}
		final = append(final, res)
	}
	sort.SliceStable(final, func(i, j int) bool { return final[i].Score > final[j].Score })

	hooks.progress(100)
	return final, nil
}
