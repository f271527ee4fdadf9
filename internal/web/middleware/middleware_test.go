package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	webcontext "github.com/conduit-lang/locallibrary/internal/web/context"
	"github.com/conduit-lang/locallibrary/internal/web/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = webcontext.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "edge-1234")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "edge-1234", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "<script>", seen, "malformed ids are replaced")
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mw := Logging(LoggingConfig{Logger: zap.New(core), SkipPrefixes: []string{"/static/"}})

	h := RequestID()(mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webcontext.Logger(r.Context()).Debug("inside handler")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		ok(w, r)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/catalog/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/site.css", nil))

	requests := logs.FilterMessage("request").All()
	require.Len(t, requests, 2)

	first := requests[0].ContextMap()
	assert.Equal(t, "/catalog/", first["path"])
	assert.Equal(t, int64(http.StatusOK), first["status"])
	assert.Equal(t, int64(2), first["bytes"])
	assert.NotEmpty(t, first["request_id"])
	assert.Equal(t, zapcore.InfoLevel, requests[0].Level)

	assert.Equal(t, zapcore.WarnLevel, requests[1].Level)

	inside := logs.FilterMessage("inside handler").All()
	require.Len(t, inside, 3)
	assert.Equal(t, first["request_id"], inside[0].ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Recovery(RecoveryConfig{EnableStackTrace: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("shelf collapsed")
	}))

	req := httptest.NewRequest(http.MethodGet, "/catalog/", nil)
	req = req.WithContext(webcontext.SetLogger(req.Context(), zap.New(core)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error\n", rec.Body.String())

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "shelf collapsed", entries[0].ContextMap()["panic"])
	assert.Contains(t, entries[0].ContextMap(), "stack")
}

func TestRecovery_ShowDetails(t *testing.T) {
	h := Recovery(RecoveryConfig{ShowDetails: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	h := Recovery(RecoveryConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*ratelimit.Decision, error) {
	return nil, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 2, Period: time.Minute})
	defer limiter.Close()

	h := RateLimit(RateLimitConfig{Limiter: limiter, Methods: []string{http.MethodPost}})(http.HandlerFunc(ok))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/accounts/login/", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post().Code)
	assert.Equal(t, http.StatusOK, post().Code)

	rec := post()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// GET is not throttled
	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/accounts/login/", nil))
	assert.Equal(t, http.StatusOK, get.Code)
}

func TestRateLimit_LimiterFailure(t *testing.T) {
	open := RateLimit(RateLimitConfig{Limiter: failingLimiter{}, FailOpen: true})(http.HandlerFunc(ok))
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	closed := RateLimit(RateLimitConfig{Limiter: failingLimiter{}})(http.HandlerFunc(ok))
	rec = httptest.NewRecorder()
	closed.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	assert.Equal(t, "ip:198.51.100.7", IPKeyFunc(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", IPKeyFunc(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "unix"
	assert.Equal(t, "ip:unix", IPKeyFunc(req))
}
