package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"antigravity/internal/logger"
)

// NewsItem 单条新闻。Publisher 为空时展示层回退为 "不明"。
type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Publisher string `json:"publisher"`
}

// NewsSource 银柄新闻源。返回空切片不算错误，由上层决定兜底策略。
type NewsSource interface {
	FetchNews(ctx context.Context, instrument string) ([]NewsItem, error)
}

// FormatNewsCorpus 把新闻拼成给大模型的文本语料，按字符数截断。
// 一条新闻都没有时返回空串，调用方切换到强制推理提示词。
func FormatNewsCorpus(items []NewsItem, charCap int) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, it := range items {
		pub := it.Publisher
		if pub == "" {
			pub = "不明"
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, pub, it.Title)
	}
	s := b.String()
	if charCap > 0 && len([]rune(s)) > charCap {
		s = string([]rune(s)[:charCap])
	}
	return s
}

// SimNewsSource 离线演示用的新闻源：按银柄生成固定话术的标题。
type SimNewsSource struct{}

var simHeadlineTemplates = []struct {
	title     string
	publisher string
}{
	{"%s、第3四半期決算が市場予想を上回る", "Nikkei Simulation"},
	{"アナリスト、%s の目標株価を引き上げ", "Market Watch Sim"},
	{"%s 関連セクターに資金流入の兆し", "Reuters Sim"},
}

func (SimNewsSource) FetchNews(_ context.Context, instrument string) ([]NewsItem, error) {
	// 散列低位用于决定条数，0 条的银柄走 [Market Context] 兜底路径。
	n := int(hash32(instrument) % 4)
	items := make([]NewsItem, 0, n)
	for i := 0; i < n; i++ {
		tpl := simHeadlineTemplates[i%len(simHeadlineTemplates)]
		items = append(items, NewsItem{
			Title:     fmt.Sprintf(tpl.title, instrument),
			Link:      fmt.Sprintf("https://example.com/news/%s/%d", instrument, i),
			Publisher: tpl.publisher,
		})
	}
	return items, nil
}

// RSSNewsSource 从 Yahoo Finance RSS 抓取银柄新闻，
// 个股没有新闻时退回宏观频道并给标题打上 [Market Context] 前缀。
type RSSNewsSource struct {
	client   *http.Client
	maxItems int
}

func NewRSSNewsSource(maxItems int) *RSSNewsSource {
	if maxItems <= 0 {
		maxItems = 5
	}
	return &RSSNewsSource{
		client:   &http.Client{Timeout: 20 * time.Second},
		maxItems: maxItems,
	}
}

func (r *RSSNewsSource) FetchNews(ctx context.Context, instrument string) ([]NewsItem, error) {
	feedURL := fmt.Sprintf("https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US", instrument)
	items, err := r.fetchFeed(ctx, feedURL)
	if err != nil {
		logger.Warnf("个股新闻抓取失败 %s: %v", instrument, err)
	}
	if len(items) > 0 {
		return items, nil
	}

	// 个股无新闻，退回宏观频道兜底。
	macro, err := r.fetchFeed(ctx, "https://feeds.finance.yahoo.com/rss/2.0/headline?s=^GSPC&region=US&lang=en-US")
	if err != nil {
		return nil, fmt.Errorf("market: rss fetch %s: %w", instrument, err)
	}
	for i := range macro {
		macro[i].Title = "[Market Context] " + macro[i].Title
	}
	return macro, nil
}

func (r *RSSNewsSource) fetchFeed(ctx context.Context, feedURL string) ([]NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; antigravity/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var items []NewsItem
	doc.Find("item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find("title").Text())
		if title == "" {
			return true
		}
		items = append(items, NewsItem{
			Title:     title,
			Link:      strings.TrimSpace(s.Find("link").Text()),
			Publisher: strings.TrimSpace(s.Find("source").Text()),
		})
		return len(items) < r.maxItems
	})
	return items, nil
}
