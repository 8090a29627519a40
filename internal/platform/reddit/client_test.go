package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/engagement-guard/internal/features/opportunity"
)

const searchResponse = `{
	"kind": "Listing",
	"data": {
		"children": [
			{"kind": "t3", "data": {
				"id": "abc123",
				"title": "Goroutine leak in worker pool",
				"selftext": "How do I find it?",
				"subreddit": "golang",
				"score": 42,
				"num_comments": 3,
				"created_utc": 1740823200.0,
				"permalink": "/r/golang/comments/abc123/goroutine_leak/"
			}}
		]
	}
}`

func TestSearch(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponse))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", AccessToken: "tok", UserAgent: "guard-test/1.0", Timeout: time.Second})
	items, err := c.Search(context.Background(), opportunity.SearchQuery{
		Keywords:  []string{"goroutine", "channel"},
		Community: "golang",
		Limit:     10,
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/r/golang/search", got.URL.Path)
	assert.Equal(t, "goroutine OR channel", got.URL.Query().Get("q"))
	assert.Equal(t, "new", got.URL.Query().Get("sort"))
	assert.Equal(t, "10", got.URL.Query().Get("limit"))
	assert.Equal(t, "true", got.URL.Query().Get("restrict_sr"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "guard-test/1.0", got.Header.Get("User-Agent"))

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "abc123", it.ID)
	assert.Equal(t, 42, it.Popularity)
	assert.Equal(t, 3, it.Comments)
	assert.Equal(t, "How do I find it?", it.Body)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), it.CreatedAt)
	assert.Equal(t, "https://reddit.com/r/golang/comments/abc123/goroutine_leak/", it.Permalink)
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Too Many Requests"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.Search(context.Background(), opportunity.SearchQuery{Keywords: []string{"go"}, Community: "golang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSearchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Search(context.Background(), opportunity.SearchQuery{Keywords: []string{"go"}, Community: "golang"})
	assert.Error(t, err)
}

func TestSearchRequiresCommunity(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Search(context.Background(), opportunity.SearchQuery{Keywords: []string{"go"}})
	assert.Error(t, err)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("я", 150) // 300 байт
	out := truncate(s, 201)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("я", 100)+"…", out)
	assert.Equal(t, "short", truncate("short", 200))
}
