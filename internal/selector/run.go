package selector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"antigravity/internal/analyzer"
	"antigravity/internal/logger"
)

// RunState 一次选股任务的状态。
type RunState string

const (
	RunRunning   RunState = "running"
	RunDone      RunState = "done"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// RunSnapshot 轮询接口返回的任务快照。
type RunSnapshot struct {
	ID        string            `json:"id"`
	State     RunState          `json:"state"`
	Progress  int               `json:"progress"`
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Results   []analyzer.Result `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type run struct {
	mu        sync.Mutex
	id        string
	state     RunState
	progress  int
	status    string
	startedAt time.Time
	results   []analyzer.Result
	err       error
	cancel    context.CancelFunc
}

func (r *run) snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := RunSnapshot{
		ID:        r.id,
		State:     r.state,
		Progress:  r.progress,
		Status:    r.status,
		StartedAt: r.startedAt,
		Results:   r.results,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	return snap
}

// Manager 管理后台选股任务，HTTP 层轮询进度用。
type Manager struct {
	selector *Selector

	mu   sync.Mutex
	runs map[string]*run
}

func NewManager(sel *Selector) *Manager {
	return &Manager{selector: sel, runs: make(map[string]*run)}
}

// Start 启动一次后台选股，立即返回任务 ID。
func (m *Manager) Start(parent context.Context) string {
	ctx, cancel := context.WithCancel(parent)
	r := &run{
		id:        uuid.NewString(),
		state:     RunRunning,
		status:    "候補銘柄をスキャン中 ...",
		startedAt: time.Now(),
		cancel:    cancel,
	}
	m.mu.Lock()
	m.runs[r.id] = r
	m.mu.Unlock()

	go func() {
		defer cancel()
		hooks := Hooks{
			Progress: func(pct int) {
				r.mu.Lock()
				r.progress = pct
				r.mu.Unlock()
			},
			Status: func(msg string) {
				r.mu.Lock()
				r.status = msg
				r.mu.Unlock()
			},
		}
		results, err := m.selector.SelectBest(ctx, hooks)

		r.mu.Lock()
		defer r.mu.Unlock()
		switch {
		case ctx.Err() != nil && err != nil:
			r.state = RunCancelled
			r.status = "キャンセルされました"
			r.err = err
		case err != nil:
			r.state = RunFailed
			r.err = err
			logger.Errorf("选股任务失败 run=%s: %v", r.id, err)
		default:
			r.state = RunDone
			r.progress = 100
			r.status = "完了"
			r.results = results
		}
	}()
	return r.id
}

// Get 返回任务快照。
func (m *Manager) Get(id string) (RunSnapshot, error) {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return RunSnapshot{}, fmt.Errorf("selector: 任务不存在: %s", id)
	}
	return r.snapshot(), nil
}

// Cancel 取消运行中的任务。
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("selector: 任务不存在: %s", id)
	}
	r.cancel()
	return nil
}
