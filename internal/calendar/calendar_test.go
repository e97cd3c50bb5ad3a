package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUpcomingEventsSortedAndFiltered(t *testing.T) {
	svc := NewService()
	svc.SetClock(fixedClock(time.Date(2026, 1, 24, 10, 0, 0, 0, jst)))

	events := svc.UpcomingEvents(10)
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Date, events[i].Date)
	}
	assert.Equal(t, "2026-01-28", events[0].Date)
}

func TestNextMajorEventPrefersHigh(t *testing.T) {
	svc := NewService()
	svc.SetClock(fixedClock(time.Date(2026, 1, 29, 10, 0, 0, 0, jst)))

	// 1/29 时点最近的事件是 1/30 东京CPI(Medium)，但 2/6 雇用統計是 High。
	next, ok := svc.NextMajorEvent()
	require.True(t, ok)
	assert.Equal(t, ImportanceHigh, next.Importance)
	assert.Equal(t, "2026-02-06", next.Date)
}

func TestStatusWarningWithinOneDay(t *testing.T) {
	svc := NewService()

	svc.SetClock(fixedClock(time.Date(2026, 1, 27, 9, 0, 0, 0, jst)))
	st := svc.Status()
	assert.Equal(t, StatusWarning, st.Status)
	assert.Contains(t, st.Message, "FOMC")
	assert.Contains(t, st.Message, "残り1日")

	svc.SetClock(fixedClock(time.Date(2026, 1, 20, 9, 0, 0, 0, jst)))
	assert.Equal(t, StatusNormal, svc.Status().Status)

	svc.SetClock(fixedClock(time.Date(2027, 1, 1, 9, 0, 0, 0, jst)))
	assert.Equal(t, StatusNormal, svc.Status().Status)
}

func TestCurrentSession(t *testing.T) {
	svc := NewService()

	// 周三 10 点，东京盘中。
	svc.SetClock(fixedClock(time.Date(2026, 1, 28, 10, 0, 0, 0, jst)))
	sess := svc.CurrentSession()
	assert.Equal(t, StateOpen, sess.State)
	assert.Equal(t, "今買うべき日本株", sess.Label)

	// 周三 23 点，美股盘中。
	svc.SetClock(fixedClock(time.Date(2026, 1, 28, 23, 0, 0, 0, jst)))
	sess = svc.CurrentSession()
	assert.Equal(t, StateOpen, sess.State)
	assert.Equal(t, "今買うべき米国株", sess.Label)

	// 周日，周末模式。
	svc.SetClock(fixedClock(time.Date(2026, 1, 25, 12, 0, 0, 0, jst)))
	sess = svc.CurrentSession()
	assert.Equal(t, StateWeekend, sess.State)
	assert.Equal(t, "月曜日の注目株", sess.Label)

	// 周六凌晨 3 点对应美东周五下午，视为美股盘中。
	svc.SetClock(fixedClock(time.Date(2026, 1, 24, 3, 0, 0, 0, jst)))
	assert.Equal(t, StateOpen, svc.CurrentSession().State)

	// 周一凌晨 3 点对应美东周日，休市。
	svc.SetClock(fixedClock(time.Date(2026, 1, 26, 3, 0, 0, 0, jst)))
	sess = svc.CurrentSession()
	assert.Equal(t, StateClosed, sess.State)
	assert.Equal(t, "翌営業日の注目株", sess.Label)

	// 周三 17 点，两市皆休。
	svc.SetClock(fixedClock(time.Date(2026, 1, 28, 17, 0, 0, 0, jst)))
	assert.Equal(t, StateClosed, svc.CurrentSession().State)
}

func TestEventContext(t *testing.T) {
	svc := NewService()
	svc.SetClock(fixedClock(time.Date(2026, 1, 24, 10, 0, 0, 0, jst)))
	ctx := svc.EventContext()
	assert.Contains(t, ctx, "直近の重要イベント: ")
	assert.Contains(t, ctx, "FOMC")

	svc.SetClock(fixedClock(time.Date(2027, 6, 1, 10, 0, 0, 0, jst)))
	assert.Equal(t, "直近の重要経済イベントはありません。", svc.EventContext())
}

func TestUpcomingKeyPeople(t *testing.T) {
	svc := NewService()
	svc.SetClock(fixedClock(time.Date(2026, 1, 24, 10, 0, 0, 0, jst)))
	people := svc.UpcomingKeyPeople()
	assert.Contains(t, people, "Jerome Powell")

	svc.SetClock(fixedClock(time.Date(2026, 2, 10, 10, 0, 0, 0, jst)))
	people = svc.UpcomingKeyPeople()
	assert.Contains(t, people, "Kazuo Ueda")
}
