package market

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// CandleStore K 线缓存，Gorm + SQLite 落盘。
// 只是指标计算的本地缓存，账户状态不经过这里。
type CandleStore struct {
	db       *gorm.DB
	interval string
}

type candleModel struct {
	ID         int64   `gorm:"column:id;primaryKey"`
	Instrument string  `gorm:"column:instrument;uniqueIndex:idx_candle_key"`
	Interval   string  `gorm:"column:interval;uniqueIndex:idx_candle_key"`
	OpenTime   int64   `gorm:"column:open_time;uniqueIndex:idx_candle_key"`
	CloseTime  int64   `gorm:"column:close_time"`
	Open       float64 `gorm:"column:open"`
	High       float64 `gorm:"column:high"`
	Low        float64 `gorm:"column:low"`
	Close      float64 `gorm:"column:close"`
	Volume     float64 `gorm:"column:volume"`
}

func (candleModel) TableName() string { return "candles" }

// NewCandleStore 打开（必要时创建）K 线缓存库。
func NewCandleStore(path, interval string) (*CandleStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("candle store: K线缓存路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// DSN 用的是 modernc.org/sqlite 的 _pragma 语法；CGO_ENABLED=0 下
	// 也只有纯 Go 驱动可用，所以显式指定 DriverName 走 modernc。
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&candleModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL 下留少量并发给 HTTP 侧读取。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	if interval == "" {
		interval = "1d"
	}
	return &CandleStore{db: db, interval: interval}, nil
}

func (s *CandleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertCandles 批量写入，同一 (instrument, interval, open_time) 覆盖旧值。
func (s *CandleStore) UpsertCandles(ctx context.Context, instrument string, candles []Candle) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("candle store 未初始化")
	}
	if len(candles) == 0 {
		return nil
	}
	models := make([]candleModel, 0, len(candles))
	for _, k := range candles {
		models = append(models, candleModel{
			Instrument: strings.ToUpper(strings.TrimSpace(instrument)),
			Interval:   s.interval,
			OpenTime:   k.OpenTime.UnixMilli(),
			CloseTime:  k.CloseTime.UnixMilli(),
			Open:       k.Open,
			High:       k.High,
			Low:        k.Low,
			Close:      k.Close,
			Volume:     k.Volume,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "instrument"}, {Name: "interval"}, {Name: "open_time"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"close_time", "open", "high", "low", "close", "volume",
			}),
		}).
		Create(&models).Error
}

// RecentCandles 取最近 limit 根 K 线，按时间升序返回。
func (s *CandleStore) RecentCandles(ctx context.Context, instrument string, limit int) ([]Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("candle store 未初始化")
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var models []candleModel
	if err := s.db.WithContext(ctx).
		Where("instrument = ? AND interval = ?", strings.ToUpper(strings.TrimSpace(instrument)), s.interval).
		Order("open_time DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(models))
	for _, m := range models {
		out = append(out, Candle{
			OpenTime:  time.UnixMilli(m.OpenTime),
			CloseTime: time.UnixMilli(m.CloseTime),
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

var _ CandleProvider = (*CandleStore)(nil)
