package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/metrics"
)

const MsgTooManyRequests = "Too many requests. Please try again later."

// Middleware limits requests per client IP for one named route
type Middleware struct {
	limiter    Limiter
	route      string
	retryAfter time.Duration
	trustProxy bool
	metrics    *metrics.Metrics
}

// MiddlewareOption configures a Middleware
type MiddlewareOption func(*Middleware)

// WithMetrics counts rejected requests per route
func WithMetrics(m *metrics.Metrics) MiddlewareOption {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// WithRetryAfter sets the Retry-After hint sent with 429 responses
func WithRetryAfter(d time.Duration) MiddlewareOption {
	return func(mw *Middleware) {
		mw.retryAfter = d
	}
}

// WithTrustedProxy keys requests on X-Forwarded-For / X-Real-IP. Enable it
// only behind a proxy that overwrites those headers; otherwise clients can
// pick their own key.
func WithTrustedProxy(trust bool) MiddlewareOption {
	return func(mw *Middleware) {
		mw.trustProxy = trust
	}
}

// NewMiddleware creates a per-IP limit for route. Keys are namespaced by
// route so each route keeps its own budget.
func NewMiddleware(limiter Limiter, route string, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		limiter:    limiter,
		route:      route,
		retryAfter: time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler returns the rate limiting middleware handler. A limiter failure
// admits the request.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, m.trustProxy)
		allowed, err := m.limiter.Allow(r.Context(), m.route+":"+ip)
		if err != nil {
			slog.Error("Failed to check rate limit", "route", m.route, "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			m.rateLimitExceeded(w, r, ip)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string) {
	slog.Warn("Rate limit exceeded",
		"route", m.route,
		"ip", ip,
		"path", r.URL.Path,
		"method", r.Method,
	)
	m.metrics.RateLimited(m.route)

	w.Header().Set("Retry-After", strconv.Itoa(int(m.retryAfter.Seconds())))
	render.Status(r, apperrors.MapErrorCodeToHTTPStatus(apperrors.ErrCodeRateLimitExceeded))
	render.JSON(w, r, map[string]string{
		"status":  "error",
		"reason":  "rate-limited",
		"message": MsgTooManyRequests,
	})
}

// getClientIP returns the peer address, or the forwarded client address
// when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// X-Forwarded-For can contain multiple IPs, take the first one
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			return strings.TrimSpace(ips[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
