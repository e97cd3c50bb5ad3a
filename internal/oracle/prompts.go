package oracle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"antigravity/internal/logger"
)

const defaultSystemPrompt = `You are a bold hedge fund analyst covering Japanese and US equities.
Always answer with a single valid JSON object and nothing else.
All free-text fields must be written in Japanese.`

// PromptStore 管理系统提示词。支持从外部文件加载并用 fsnotify 热更新，
// 便于不重启进程调试提示词。
type PromptStore struct {
	mu      sync.RWMutex
	system  string
	watcher *fsnotify.Watcher
}

func NewPromptStore(path string) (*PromptStore, error) {
	ps := &PromptStore{system: defaultSystemPrompt}
	if strings.TrimSpace(path) == "" {
		return ps, nil
	}
	if err := ps.loadFile(path); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	ps.watcher = watcher
	go ps.watchLoop(path)
	return ps, nil
}

func (ps *PromptStore) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("oracle: 读取提示词文件失败: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return fmt.Errorf("oracle: 提示词文件为空: %s", path)
	}
	ps.mu.Lock()
	ps.system = text
	ps.mu.Unlock()
	return nil
}

func (ps *PromptStore) watchLoop(path string) {
	base := filepath.Base(path)
	for {
		select {
		case ev, ok := <-ps.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := ps.loadFile(path); err != nil {
				logger.Warnf("提示词热更新失败: %v", err)
				continue
			}
			logger.Infof("提示词已热更新: %s", path)
		case err, ok := <-ps.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("提示词监听错误: %v", err)
		}
	}
}

func (ps *PromptStore) System() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.system
}

func (ps *PromptStore) Close() error {
	if ps.watcher == nil {
		return nil
	}
	return ps.watcher.Close()
}

// fastPrompt 快档提示词：只要求方向和简短理由。
func fastPrompt(req SentimentRequest) string {
	return fmt.Sprintf(`Target: %s
News Source: %s
Time Context: %s
Macro Environment: %s

Mission:
Analyze the provided news and the current time context to predict the immediate stock price movement.

Output valid JSON:
{
    "score": Integer 0 (Bearish) to 100 (Bullish),
    "reason": "Brief explanation in Japanese (max 100 chars)",
    "sentiment": "BULLISH"/"BEARISH"/"NEUTRAL"
}`, req.Instrument, req.NewsCorpus, req.TimeContext, req.MacroContext)
}

// deepPrompt 深档提示词：额外要求止损逻辑。
func deepPrompt(req SentimentRequest) string {
	return fmt.Sprintf(`Target: %s
News Source: %s
Time Context: %s
Macro Environment: %s

Mission:
Perform a Deep Analysis of the provided news and market context to predict the stock price movement and suggest a Stop Loss strategy.

Output valid JSON:
{
    "score": Integer 0 (Bearish) to 100 (Bullish),
    "reason": "Detailed reasoning in Japanese (max 150 chars)",
    "sentiment": "BULLISH"/"BEARISH"/"NEUTRAL",
    "stop_loss_reason": "Stop Loss Strategy: [Calculate a logical stop loss %% based on volatility risk] (in Japanese)"
}`, req.Instrument, req.NewsCorpus, req.TimeContext, req.MacroContext)
}

// forcedInferencePrompt 无新闻时的强制推理提示词。
// 市場が動いていない休日や深夜でも知能を無理やり起動させる。
func forcedInferencePrompt(req SentimentRequest) string {
	return fmt.Sprintf(`Target: %s
Situation: Latest specific news NOT available.
Time Context: %s
Macro Environment: %s

Mission:
You are a Bold Hedge Fund Manager. Even without specific news, you MUST predict the likely stock movement for the Next Opening Bell based on:
1. The Sector's typical correlation with the Macro Environment (e.g. Export sector vs Weak Yen).
2. The Time Context (Weekends/Holidays trigger gap predictions).

CRITICAL: DO NOT DEFAULT TO NEUTRAL. Take a stance based on the macro trend.

Output valid JSON:
{
    "score": Integer 0 (Bearish) to 100 (Bullish),
    "reason": "Macro Inference: [Explain sector correlation & macro trend] (max 120 chars)",
    "sentiment": "BULLISH"/"BEARISH"/"NEUTRAL",
    "stop_loss_reason": "Volatility Risk: [Suggest SL logic based on macro volatility]"
}`, req.Instrument, req.TimeContext, req.MacroContext)
}

// discoverMoversPrompt 从新闻语料里挖掘正在影响行情的关键人物。
func discoverMoversPrompt(newsText string) string {
	return fmt.Sprintf(`You are a top-tier hedge fund AI. Analyze the following news text to identify key influential figures (CEOs, Central Bankers, Politicians) who are currently moving the market.

News Text: "%s"

Identify up to 3 key persons. For each, provide:
1. Name
2. Related Stock/Asset (Ticker if possible, e.g. TSLA, USD/JPY)
3. Market Impact Score (0-100)
4. Trading Strategy (Buy/Sell/Wait) based on their recent actions.
5. Reason (Brief explanation in Japanese).

Output a valid JSON list of objects. Example:
[
    {
        "person": "Elon Musk",
        "asset": "TSLA",
        "impact": 95,
        "strategy": "Buy on Dip",
        "reason": "新モデルの発表を示唆しており期待感が高まっているため。"
    }
]`, newsText)
}

// backtracePrompt 关键人物过往发言回溯。
func backtracePrompt(person, marketContext string) string {
	return fmt.Sprintf(`You are an expert geopolitical and financial analyst.
Target Person: %s
Current Market Context: %s

Task:
1. Recall this person's major statements from the LAST 3 MONTHS.
2. Compare their past tone with the Current Market Context (e.g. If Yen is weak, will they become Hawkish?).
3. Predict their stance for the UPCOMING event.

Output a valid JSON object:
{
    "hawk_prob": Integer 0 (Dovish) to 100 (Hawkish),
    "prediction_score": Integer 0 (Negative Impact) to 100 (Positive Impact on Stocks),
    "reason": "Brief reasoning in Japanese (max 80 chars)"
}`, person, marketContext)
}
