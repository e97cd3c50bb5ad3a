package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Importance 事件重要度。
type Importance string

const (
	ImportanceHigh   Importance = "High"
	ImportanceMedium Importance = "Medium"
	ImportanceLow    Importance = "Low"
)

// EventType 事件类型。
type EventType string

const (
	EventCentralBank EventType = "CentralBank"
	EventEconomic    EventType = "Economic"
	EventVIP         EventType = "VIP"
)

// Event 宏观经济事件。Date 为 JST 日期（YYYY-MM-DD）。
type Event struct {
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Title      string     `json:"title"`
	Importance Importance `json:"importance"`
	Country    string     `json:"country"`
	Type       EventType  `json:"type"`
}

// SessionState 市况状态。
type SessionState string

const (
	StateWeekend SessionState = "WEEKEND"
	StateOpen    SessionState = "OPEN"
	StateClosed  SessionState = "CLOSED"
)

// Session 当前市况与展示层使用的标签。
type Session struct {
	State   SessionState `json:"state"`
	Message string       `json:"message"`
	Label   string       `json:"label"`
}

// MarketStatus 高重要度事件临近时的警戒信号。
type MarketStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const (
	StatusNormal  = "NORMAL"
	StatusWarning = "WARNING"
)

// 近期重要事件的静态清单。生产环境应接经济日历 API，
// 演示场景用固定数据保证可复现。
var staticEvents = []Event{
	{Date: "2026-01-28", Time: "28:00", Title: "FOMC 政策金利発表 (Federal Funds Rate)", Importance: ImportanceHigh, Country: "US", Type: EventCentralBank},
	{Date: "2026-01-28", Time: "28:30", Title: "パウエル議長 定例記者会見", Importance: ImportanceHigh, Country: "US", Type: EventVIP},
	{Date: "2026-02-06", Time: "22:30", Title: "米 雇用統計 (Non-Farm Payrolls)", Importance: ImportanceHigh, Country: "US", Type: EventEconomic},
	{Date: "2026-01-30", Time: "08:30", Title: "東京消費者物価指数 (CPI)", Importance: ImportanceMedium, Country: "JP", Type: EventEconomic},
	{Date: "2026-02-14", Time: "15:30", Title: "植田日銀総裁 講演", Importance: ImportanceHigh, Country: "JP", Type: EventVIP},
}

var jst = time.FixedZone("JST", 9*60*60)

// Service 事件日历。时钟可注入便于测试。
type Service struct {
	events []Event
	now    func() time.Time
}

func NewService() *Service {
	events := make([]Event, len(staticEvents))
	copy(events, staticEvents)
	return &Service{events: events, now: time.Now}
}

// SetClock 注入测试时钟。
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// UpcomingEvents 返回今天起按日期升序的事件，最多 limit 条。
func (s *Service) UpcomingEvents(limit int) []Event {
	if limit <= 0 {
		limit = 5
	}
	today := s.now().In(jst).Format("2006-01-02")
	sorted := make([]Event, len(s.events))
	copy(sorted, s.events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	var future []Event
	for _, e := range sorted {
		if e.Date >= today {
			future = append(future, e)
		}
	}
	if len(future) > limit {
		future = future[:limit]
	}
	return future
}

// NextMajorEvent 返回下一个关键事件，高重要度优先。没有事件时返回 false。
func (s *Service) NextMajorEvent() (Event, bool) {
	events := s.UpcomingEvents(10)
	for _, e := range events {
		if e.Importance == ImportanceHigh {
			return e, true
		}
	}
	if len(events) > 0 {
		return events[0], true
	}
	return Event{}, false
}

// Status 高重要度事件剩余 1 天以内时给出 WARNING。
func (s *Service) Status() MarketStatus {
	next, ok := s.NextMajorEvent()
	if !ok {
		return MarketStatus{Status: StatusNormal}
	}
	eventDate, err := time.ParseInLocation("2006-01-02", next.Date, jst)
	if err != nil {
		return MarketStatus{Status: StatusNormal}
	}
	now := s.now().In(jst)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, jst)
	daysLeft := int(eventDate.Sub(today).Hours() / 24)
	if daysLeft <= 1 && next.Importance == ImportanceHigh {
		return MarketStatus{
			Status:  StatusWarning,
			Message: fmt.Sprintf("🚨 %s が接近中 (残り%d日)。ポジション調整を推奨。", next.Title, daysLeft),
		}
	}
	return MarketStatus{Status: StatusNormal}
}

// CurrentSession 以 JST 粗略判断当前开市状态。
// 东京时段 9-15 点，美股时段近似为 JST 22 点后到次日 6 点前。
func (s *Service) CurrentSession() Session {
	now := s.now().In(jst)
	weekday := now.Weekday()
	hour := now.Hour()

	if weekday == time.Saturday || weekday == time.Sunday {
		// 周六凌晨对应美东周五下午，美股仍在盘中。
		if !(weekday == time.Saturday && hour < 6) {
			return Session{
				State:   StateWeekend,
				Message: "週末戦略モード (Weekend Strategy)",
				Label:   "月曜日の注目株",
			}
		}
		return Session{
			State:   StateOpen,
			Message: "米国市場 開場中 (US Market Open)",
			Label:   "今買うべき米国株",
		}
	}

	if hour >= 9 && hour < 15 {
		return Session{
			State:   StateOpen,
			Message: "東京市場 開場中 (Real-time Scan)",
			Label:   "今買うべき日本株",
		}
	}

	usOpen := hour >= 22 || hour < 6
	if weekday == time.Monday && hour < 6 {
		// 周一凌晨对应美东周日，休市。
		usOpen = false
	}
	if usOpen {
		return Session{
			State:   StateOpen,
			Message: "米国市場 開場中 (US Market Open)",
			Label:   "今買うべき米国株",
		}
	}

	return Session{
		State:   StateClosed,
		Message: "市場閉鎖中 (After-Hours Analysis)",
		Label:   "翌営業日の注目株",
	}
}

// EventContext 给大模型用的事件背景摘要。
func (s *Service) EventContext() string {
	events := s.UpcomingEvents(3)
	if len(events) == 0 {
		return "直近の重要経済イベントはありません。"
	}
	parts := make([]string, 0, len(events))
	for _, e := range events {
		parts = append(parts, fmt.Sprintf("%s (%s)", e.Title, e.Date))
	}
	return "直近の重要イベント: " + strings.Join(parts, ", ")
}

// UpcomingKeyPeople 从下一个关键事件标题里提取相关人物，供新闻回溯检索。
func (s *Service) UpcomingKeyPeople() []string {
	next, ok := s.NextMajorEvent()
	if !ok {
		return nil
	}
	var people []string
	title := next.Title
	if strings.Contains(title, "植田") || strings.Contains(title, "日銀") || strings.Contains(title, "BOJ") {
		people = append(people, "Kazuo Ueda")
	}
	if strings.Contains(title, "パウエル") || strings.Contains(title, "FOMC") || strings.Contains(title, "Fed") {
		people = append(people, "Jerome Powell")
	}
	if strings.Contains(title, "ラガルド") || strings.Contains(title, "ECB") {
		people = append(people, "Christine Lagarde")
	}
	return people
}
