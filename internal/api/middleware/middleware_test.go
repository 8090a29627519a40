package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	allowed, _ := rl.Allow("1.2.3.4")
	assert.True(t, allowed)
	current = current.Add(20 * time.Second)
	allowed, _ = rl.Allow("1.2.3.4")
	assert.True(t, allowed)

	allowed, retry := rl.Allow("1.2.3.4")
	assert.False(t, allowed)
	assert.Equal(t, 40*time.Second, retry)

	allowed, _ = rl.Allow("5.6.7.8")
	assert.True(t, allowed, "лимит считается по клиенту")

	current = current.Add(41 * time.Second)
	allowed, _ = rl.Allow("1.2.3.4")
	assert.True(t, allowed, "первый запрос вышел из окна")
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()
	h := rl.Middleware(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req.RemoteAddr = "10.0.0.1:6666"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "порт клиента не важен")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"too_many_requests"}`, rec.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	hash := HashAPIKey("s3cret-key", []byte("0123456789abcdef"))
	require.True(t, VerifyAPIKey("s3cret-key", hash))
	require.False(t, VerifyAPIKey("wrong", hash))
	require.False(t, VerifyAPIKey("s3cret-key", "plain-text"))

	h := NewAPIKeyAuth(hash).Middleware(ok)
	cases := map[string]int{
		"Bearer s3cret-key": http.StatusNoContent,
		"Bearer wrong":      http.StatusUnauthorized,
		"s3cret-key":        http.StatusUnauthorized,
		"":                  http.StatusUnauthorized,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, header)
		if want == http.StatusUnauthorized {
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), header)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String(), header)
		}
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
