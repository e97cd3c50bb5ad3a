package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"antigravity/internal/logger"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 账户持久化为单个 JSON 快照文件（全量，非增量）。
// 加载必须永不 panic：文件缺失是 no-op，字段缺失/损坏逐字段退回默认值。

// Snapshot 账户全量快照。
type Snapshot struct {
	Balance        *decimal.Decimal    `json:"balance,omitempty"`
	InitialBalance *decimal.Decimal    `json:"initial_balance,omitempty"`
	Positions      map[string]Position `json:"positions,omitempty"`
	History        []Trade             `json:"trade_history,omitempty"`
}

// Snapshot 导出当前全量状态。
func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	balance := a.balance
	initial := a.initialBalance
	snap := Snapshot{
		Balance:        &balance,
		InitialBalance: &initial,
		Positions:      make(map[string]Position, len(a.positions)),
		History:        append([]Trade(nil), a.history...),
	}
	for k, v := range a.positions {
		snap.Positions[k] = *v
	}
	return snap
}

// Restore 用快照整体替换当前状态。缺失字段按默认值补齐：
// 余额 1000万、空持仓、空履历。
func (a *Account) Restore(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defaultBalance := decimal.NewFromInt(10_000_000)
	if snap.Balance != nil {
		a.balance = *snap.Balance
	} else {
		a.balance = defaultBalance
	}
	if snap.InitialBalance != nil {
		a.initialBalance = *snap.InitialBalance
	} else {
		a.initialBalance = defaultBalance
	}
	a.positions = make(map[string]*Position, len(snap.Positions))
	for k, v := range snap.Positions {
		// 数量非正的持仓不允许存在，坏快照里的此类条目直接丢弃。
		if !v.Quantity.IsPositive() {
			logger.Warnf("快照中持仓 %s 数量非正 (%s)，已忽略", k, v.Quantity)
			continue
		}
		pos := v
		a.positions[k] = &pos
	}
	a.history = append([]Trade(nil), snap.History...)
}

// Save 将快照写入文件。
func (a *Account) Save(path string) error {
	snap := a.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Load 从文件恢复。文件不存在时保持当前状态；内容损坏时记录日志并
// 按可解析的部分逐字段恢复，绝不向上抛错。
func (a *Account) Load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("账户快照读取失败 (%s): %v", path, err)
		}
		return
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warnf("账户快照解析失败 (%s)，恢复为默认状态: %v", path, err)
	}
	a.Restore(snap)
}
