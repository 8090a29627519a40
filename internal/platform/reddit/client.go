// Package reddit — клиент поиска постов на платформе. Только чтение:
// выполнение действий и обновление OAuth-токена остаются за внешним сервисом.
package reddit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"serotonyl.ru/engagement-guard/internal/features/opportunity"
)

// Config — параметры клиента.
type Config struct {
	BaseURL     string
	AccessToken string
	UserAgent   string
	Timeout     time.Duration
}

// Client ходит в API платформы.
type Client struct {
	http *resty.Client
}

// NewClient создаёт клиент. Каждый запрос ограничен cfg.Timeout.
func NewClient(cfg Config) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.AccessToken != "" {
		c.SetAuthToken(cfg.AccessToken)
	}
	return &Client{http: c}
}

type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
}

// Search ищет свежие посты в сообществе по ключевым словам (через OR).
func (c *Client) Search(ctx context.Context, q opportunity.SearchQuery) ([]opportunity.Item, error) {
	if q.Community == "" {
		return nil, fmt.Errorf("не указано сообщество")
	}
	sort := q.Sort
	if sort == "" {
		sort = "new"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}

	var out listing
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("community", q.Community).
		SetQueryParams(map[string]string{
			"q":           strings.Join(q.Keywords, " OR "),
			"sort":        sort,
			"t":           "day",
			"limit":       strconv.Itoa(limit),
			"type":        "link",
			"restrict_sr": "true",
		}).
		SetResult(&out).
		Get("/r/{community}/search")
	if err != nil {
		return nil, fmt.Errorf("запрос к платформе: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("платформа ответила %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	items := make([]opportunity.Item, 0, len(out.Data.Children))
	for _, ch := range out.Data.Children {
		items = append(items, toItem(ch.Data))
	}
	return items, nil
}

func toItem(p post) opportunity.Item {
	sec, frac := math.Modf(p.CreatedUTC)
	return opportunity.Item{
		ID:         p.ID,
		Title:      p.Title,
		Body:       p.SelfText,
		Community:  p.Subreddit,
		Popularity: p.Score,
		Comments:   p.NumComments,
		CreatedAt:  time.Unix(int64(sec), int64(frac*1e9)).UTC(),
		Permalink:  "https://reddit.com" + p.Permalink,
	}
}

// truncate обрезает строку до n байт, не разрывая символ UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
