package market

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/piquette/finance-go/quote"
)

// ErrPriceUnavailable 报价拿不到时返回。调用方用取得单价等兜底，不让流程中断。
var ErrPriceUnavailable = errors.New("market: price unavailable")

// QuoteSource 现值报价源。
type QuoteSource interface {
	GetCurrentPrice(ctx context.Context, instrument string) (float64, error)
}

// IsJPInstrument 以 ".T" 后缀判断东证银柄。
func IsJPInstrument(instrument string) bool {
	return strings.HasSuffix(instrument, ".T")
}

// CurrencySymbol 返回银柄计价货币符号。
func CurrencySymbol(instrument string) string {
	if IsJPInstrument(instrument) {
		return "¥"
	}
	return "$"
}

// SimQuoteSource 确定性模拟报价：基准价由银柄名散列得出（同一银柄稳定），
// 在 ±2% 内用注入的随机源抖动。
type SimQuoteSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimQuoteSource(seed int64) *SimQuoteSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimQuoteSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimQuoteSource) GetCurrentPrice(_ context.Context, instrument string) (float64, error) {
	base := basePriceFor(instrument)
	s.mu.Lock()
	jitter := 1 + (s.rng.Float64()*0.04 - 0.02)
	s.mu.Unlock()
	return base * jitter, nil
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func basePriceFor(instrument string) float64 {
	frac := float64(hash32(instrument)%10_000) / 10_000
	if IsJPInstrument(instrument) {
		return 3000 + frac*30000
	}
	return 50 + frac*500
}

// YahooQuoteSource 通过 Yahoo Finance 取现值。
type YahooQuoteSource struct{}

func (YahooQuoteSource) GetCurrentPrice(_ context.Context, instrument string) (float64, error) {
	q, err := quote.Get(instrument)
	if err != nil {
		return 0, fmt.Errorf("market: yahoo quote %s: %w", instrument, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return 0, ErrPriceUnavailable
	}
	return q.RegularMarketPrice, nil
}

// CachedQuoteSource 给底层报价源加 TTL 缓存，并用 singleflight 合并并发请求，
// 防止展示层轮询打穿外部接口。
type CachedQuoteSource struct {
	inner QuoteSource
	ttl   time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedQuote
}

type cachedQuote struct {
	price float64
	at    time.Time
}

func NewCachedQuoteSource(inner QuoteSource, ttl time.Duration) *CachedQuoteSource {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedQuoteSource{inner: inner, ttl: ttl, cache: make(map[string]cachedQuote)}
}

func (c *CachedQuoteSource) GetCurrentPrice(ctx context.Context, instrument string) (float64, error) {
	c.mu.RLock()
	hit, ok := c.cache[instrument]
	c.mu.RUnlock()
	if ok && time.Since(hit.at) < c.ttl {
		return hit.price, nil
	}
	v, err, _ := c.group.Do(instrument, func() (any, error) {
		price, err := c.inner.GetCurrentPrice(ctx, instrument)
		if err != nil {
			return 0.0, err
		}
		c.mu.Lock()
		c.cache[instrument] = cachedQuote{price: price, at: time.Now()}
		c.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}
