package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 模拟口座（デモ取引）核心：现金余额、加权平均成本持仓、只追加的成交履历。
// 所有金额计算使用 decimal，避免浮点误差累积。

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderKindMarket = "MARKET"
	OrderKindLimit  = "LIMIT"
)

// Position 单只股票的持仓。数量减到零时整条记录被删除，不保留零持仓。
type Position struct {
	Quantity   decimal.Decimal `json:"quantity"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	TakeProfit decimal.Decimal `json:"tp,omitempty"`
	StopLoss   decimal.Decimal `json:"sl,omitempty"`
}

// Trade 一条成交记录，成功执行后追加，之后不可变。
type Trade struct {
	Timestamp  time.Time       `json:"timestamp"`
	Instrument string          `json:"ticker"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TakeProfit decimal.Decimal `json:"tp,omitempty"`
	StopLoss   decimal.Decimal `json:"sl,omitempty"`
	OrderKind  string          `json:"type"`
	Notional   decimal.Decimal `json:"total"`
}

// OrderRequest 下单参数。TakeProfit/StopLoss 为零值时表示未指定。
type OrderRequest struct {
	Instrument string
	Side       string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	OrderKind  string
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// Account 模拟交易账户。仅 ExecuteOrder / AddFunds / Reset / Restore 会修改状态，
// 分析管线不触碰账户。
type Account struct {
	mu             sync.Mutex
	balance        decimal.Decimal
	initialBalance decimal.Decimal
	positions      map[string]*Position
	history        []Trade

	now func() time.Time
}

func NewAccount(initialBalance decimal.Decimal) *Account {
	return &Account{
		balance:        initialBalance,
		initialBalance: initialBalance,
		positions:      make(map[string]*Position),
		now:            time.Now,
	}
}

// SetClock 注入时间源，测试用。
func (a *Account) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// ExecuteOrder 执行一笔模拟订单。不抛错误：返回 (是否成功, 给用户看的消息)，
// 失败时账户状态保持不变，成功时恰好追加一条成交记录。
func (a *Account) ExecuteOrder(req OrderRequest) (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return false, "数量は正の値を指定してください。"
	}
	if req.Price.LessThanOrEqual(decimal.Zero) {
		return false, "価格は正の値を指定してください。"
	}
	orderKind := strings.TrimSpace(req.OrderKind)
	if orderKind == "" {
		orderKind = OrderKindMarket
	}
	notional := req.Quantity.Mul(req.Price)

	switch req.Side {
	case SideBuy:
		if notional.GreaterThan(a.balance) {
			return false, fmt.Sprintf("資金不足です。必要額: %s, 残高: %s",
				formatAmount(notional), formatAmount(a.balance))
		}
		a.balance = a.balance.Sub(notional)
		if pos, ok := a.positions[req.Instrument]; ok {
			// 加权平均取得单价: (旧数量×旧单价 + 本次金额) / (旧数量 + 本次数量)
			newQty := pos.Quantity.Add(req.Quantity)
			pos.AvgPrice = pos.Quantity.Mul(pos.AvgPrice).Add(notional).Div(newQty)
			pos.Quantity = newQty
			// TP/SL は最新の注文が上書き（last-write-wins）
			if !req.TakeProfit.IsZero() {
				pos.TakeProfit = req.TakeProfit
			}
			if !req.StopLoss.IsZero() {
				pos.StopLoss = req.StopLoss
			}
		} else {
			a.positions[req.Instrument] = &Position{
				Quantity:   req.Quantity,
				AvgPrice:   req.Price,
				TakeProfit: req.TakeProfit,
				StopLoss:   req.StopLoss,
			}
		}

	case SideSell:
		pos, ok := a.positions[req.Instrument]
		if !ok {
			return false, "この銘柄は保有していません。"
		}
		if pos.Quantity.LessThan(req.Quantity) {
			return false, fmt.Sprintf("保有数量が不足しています。保有: %s", pos.Quantity.String())
		}
		a.balance = a.balance.Add(notional)
		pos.Quantity = pos.Quantity.Sub(req.Quantity)
		if pos.Quantity.LessThanOrEqual(decimal.Zero) {
			delete(a.positions, req.Instrument)
		}

	default:
		return false, "無効な取引タイプです(BUY/SELLのみ)。"
	}

	a.history = append(a.history, Trade{
		Timestamp:  a.now(),
		Instrument: req.Instrument,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		OrderKind:  orderKind,
		Notional:   notional,
	})

	return true, fmt.Sprintf("%s注文が約定しました: %s x %s @ %s",
		req.Side, req.Instrument, req.Quantity.String(), formatAmount(req.Price))
}

// AddFunds 入金。amount<=0 は拒否。
func (a *Account) AddFunds(amount decimal.Decimal) (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, "入金額は正の値を指定してください。"
	}
	a.balance = a.balance.Add(amount)
	return true, fmt.Sprintf("入金しました: %s (残高: %s)", formatAmount(amount), formatAmount(a.balance))
}

// Reset 清空持仓与履历，现金回到初始资金。不可逆，调用方自己决定是否先持久化。
func (a *Account) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked(a.initialBalance)
}

// ResetTo 同 Reset，同时把初始资金改为 newBalance。
func (a *Account) ResetTo(newBalance decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialBalance = newBalance
	a.resetLocked(newBalance)
}

func (a *Account) resetLocked(balance decimal.Decimal) {
	a.balance = balance
	a.positions = make(map[string]*Position)
	a.history = nil
}

func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

func (a *Account) InitialBalance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialBalance
}

// Positions 返回持仓副本，调用方可随意修改。
func (a *Account) Positions() map[string]Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Position, len(a.positions))
	for k, v := range a.positions {
		out[k] = *v
	}
	return out
}

// History 返回成交履历副本（时间顺序）。
func (a *Account) History() []Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Trade(nil), a.history...)
}

func formatAmount(d decimal.Decimal) string {
	return d.Round(0).String()
}
