package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CallLog 模型调用日志，SQLite 落盘，方便后续排查限流和降级情况。
type CallLog struct {
	mu sync.Mutex
	db *sql.DB
}

// CallRecord 一次模型调用的摘要。
type CallRecord struct {
	Tier       string
	Model      string
	Instrument string
	Forced     bool
	Duration   time.Duration
	Err        error
}

// CallLogEntry 查询返回的日志行。
type CallLogEntry struct {
	ID         int64  `json:"id"`
	Timestamp  int64  `json:"ts"`
	Tier       string `json:"tier"`
	Model      string `json:"model"`
	Instrument string `json:"instrument"`
	Forced     bool   `json:"forced"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

const callLogSchema = `
CREATE TABLE IF NOT EXISTS oracle_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	tier TEXT NOT NULL,
	model TEXT NOT NULL,
	instrument TEXT NOT NULL,
	forced INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_oracle_calls_ts ON oracle_calls(ts);
CREATE INDEX IF NOT EXISTS idx_oracle_calls_instrument ON oracle_calls(instrument);
`

// NewCallLog 初始化 SQLite 调用日志。
func NewCallLog(path string) (*CallLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("oracle: 调用日志路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if _, err := db.Exec(callLogSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &CallLog{db: db}, nil
}

func (l *CallLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// Append 写入一条调用摘要。
func (l *CallLog) Append(ctx context.Context, rec CallRecord) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return fmt.Errorf("oracle: 调用日志未初始化")
	}
	errText := ""
	if rec.Err != nil {
		errText = rec.Err.Error()
	}
	forced := 0
	if rec.Forced {
		forced = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO oracle_calls (ts, tier, model, instrument, forced, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), rec.Tier, rec.Model, rec.Instrument, forced,
		rec.Duration.Milliseconds(), errText)
	return err
}

// Recent 按时间倒序返回最近 limit 条调用。
func (l *CallLog) Recent(ctx context.Context, limit int) ([]CallLogEntry, error) {
	if l == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil, fmt.Errorf("oracle: 调用日志未初始化")
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ts, tier, model, instrument, forced, duration_ms, error
		 FROM oracle_calls ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CallLogEntry
	for rows.Next() {
		var e CallLogEntry
		var forced int
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Tier, &e.Model, &e.Instrument, &forced, &e.DurationMS, &e.Error); err != nil {
			return nil, err
		}
		e.Forced = forced != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
