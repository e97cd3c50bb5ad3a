package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"golang.org/x/sync/singleflight"

	"antigravity/internal/logger"
)

// HistorySource 历史 K 线来源。
type HistorySource interface {
	HistoricalCandles(ctx context.Context, instrument string, start, end time.Time) ([]Candle, error)
}

// YahooHistorySource 从 Yahoo Finance 拉取日线历史。
type YahooHistorySource struct{}

func (YahooHistorySource) HistoricalCandles(ctx context.Context, instrument string, start, end time.Time) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &chart.Params{
		Symbol:   strings.ToUpper(strings.TrimSpace(instrument)),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)
	var out []Candle
	for iter.Next() {
		bar := iter.Bar()
		open, _ := bar.Open.Float64()
		high, _ := bar.High.Float64()
		low, _ := bar.Low.Float64()
		cls, _ := bar.Close.Float64()
		ts := time.Unix(int64(bar.Timestamp), 0)
		out = append(out, Candle{
			OpenTime:  ts,
			CloseTime: ts.Add(24 * time.Hour),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    float64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("market: yahoo 历史K线 %s: %w", instrument, err)
	}
	return out, nil
}

const (
	// 120 根日线约需半年交易日，窗口取一年留足假日余量。
	backfillWindowDays = 365
	candleFreshness    = 24 * time.Hour
)

// BackfillProvider 优先读本地缓存，K 线不足且过期时回源补齐后再读。
// singleflight 保证同一银柄不会并发重复拉取。
type BackfillProvider struct {
	store  *CandleStore
	source HistorySource
	sf     singleflight.Group
	now    func() time.Time
}

func NewBackfillProvider(store *CandleStore, source HistorySource) *BackfillProvider {
	return &BackfillProvider{store: store, source: source, now: time.Now}
}

func (p *BackfillProvider) RecentCandles(ctx context.Context, instrument string, limit int) ([]Candle, error) {
	cached, err := p.store.RecentCandles(ctx, instrument, limit)
	if err != nil {
		return nil, err
	}
	if len(cached) >= limit && limit > 0 {
		return cached, nil
	}
	// 缓存没满但最新一根还新鲜，多半是上市时间短，不再回源。
	if n := len(cached); n > 0 && p.now().Sub(cached[n-1].CloseTime) < candleFreshness {
		return cached, nil
	}

	key := strings.ToUpper(strings.TrimSpace(instrument))
	_, err, _ = p.sf.Do(key, func() (any, error) {
		end := p.now()
		start := end.AddDate(0, 0, -backfillWindowDays)
		fetched, err := p.source.HistoricalCandles(ctx, instrument, start, end)
		if err != nil {
			return nil, err
		}
		if len(fetched) == 0 {
			return nil, nil
		}
		return nil, p.store.UpsertCandles(ctx, instrument, fetched)
	})
	if err != nil {
		if len(cached) > 0 {
			logger.Warnf("历史K线补齐失败 %s，沿用缓存 %d 根: %v", instrument, len(cached), err)
			return cached, nil
		}
		return nil, fmt.Errorf("market: 补齐历史K线 %s: %w", instrument, err)
	}
	return p.store.RecentCandles(ctx, instrument, limit)
}

var _ CandleProvider = (*BackfillProvider)(nil)
