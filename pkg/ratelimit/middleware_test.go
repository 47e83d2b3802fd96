package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/pkg/metrics"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return false, errors.New("redis down")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("LimitsPerIP", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		clock := newFakeClock()
		mw := NewMiddleware(NewMemoryLimiter(1, time.Minute, WithClock(clock.Now)), "login", WithMetrics(m))
		h := mw.Handler(okHandler())

		send := func(ip string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.RemoteAddr = ip + ":40000"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, http.StatusNoContent, send("1.1.1.1").Code)

		rec := send("1.1.1.1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, MsgTooManyRequests, body["message"])

		assert.Equal(t, http.StatusNoContent, send("2.2.2.2").Code)
		expected := `
# HELP simple_auth_rate_limited_total Requests refused by the rate limiter
# TYPE simple_auth_rate_limited_total counter
simple_auth_rate_limited_total{route="login"} 1
`
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "simple_auth_rate_limited_total"))
	})

	t.Run("ForwardedHeadersIgnoredByDefault", func(t *testing.T) {
		h := NewMiddleware(NewMemoryLimiter(2, time.Minute), "login").Handler(okHandler())

		admitted := 0
		for i := 0; i < 20; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.RemoteAddr = "192.0.2.7:5555"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
			req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code == http.StatusNoContent {
				admitted++
			} else {
				assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			}
		}
		assert.Equal(t, 2, admitted)
	})

	t.Run("TrustedProxyKeysOnForwardedFor", func(t *testing.T) {
		h := NewMiddleware(NewMemoryLimiter(1, time.Minute), "login", WithTrustedProxy(true)).Handler(okHandler())

		send := func(client string) int {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:443"
			req.Header.Set("X-Forwarded-For", client+", 10.0.0.1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec.Code
		}

		assert.Equal(t, http.StatusNoContent, send("203.0.113.9"))
		assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.9"))
		assert.Equal(t, http.StatusNoContent, send("203.0.113.10"))
	})

	t.Run("LimiterFailureAdmits", func(t *testing.T) {
		h := NewMiddleware(brokenLimiter{}, "login").Handler(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", getClientIP(req, false))
	assert.Equal(t, "192.0.2.7", getClientIP(req, true))

	req.Header.Set("X-Real-IP", " 198.51.100.1 ")
	assert.Equal(t, "192.0.2.7", getClientIP(req, false))
	assert.Equal(t, "198.51.100.1", getClientIP(req, true))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.7", getClientIP(req, false))
	assert.Equal(t, "203.0.113.9", getClientIP(req, true))

	req.RemoteAddr = "[2001:db8::1]:5555"
	assert.Equal(t, "2001:db8::1", getClientIP(req, false))
}
