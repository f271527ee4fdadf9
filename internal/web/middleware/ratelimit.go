package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	webcontext "github.com/conduit-lang/locallibrary/internal/web/context"
	"github.com/conduit-lang/locallibrary/internal/web/ratelimit"
	"go.uber.org/zap"
)

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	// Limiter is the rate limiter implementation to use
	Limiter ratelimit.Limiter
	// KeyFunc extracts the rate limit key from the request
	KeyFunc func(*http.Request) string
	// Methods limits throttling to these methods; empty means all
	Methods []string
	// FailOpen lets requests through when the limiter itself errors
	FailOpen bool
}

// RateLimit throttles requests per key. Denied requests get 429 with a
// Retry-After header.
func RateLimit(config RateLimitConfig) Middleware {
	if config.KeyFunc == nil {
		config.KeyFunc = IPKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !methodMatches(config.Methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			info, err := config.Limiter.Allow(r.Context(), config.KeyFunc(r))
			if err != nil {
				webcontext.Logger(r.Context()).Warn("rate limiter failed", zap.Error(err))
				if config.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))

			if !info.Allowed {
				wait := info.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func methodMatches(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// IPKeyFunc keys requests by client address. The first X-Forwarded-For entry
// wins when present.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return "ip:" + ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
