package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		OK(w, r, map[string]string{"subject": GetSubject(r), "role": GetRole(r)})
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(testSecret, []string{"/api/v1/devices/register", "/api/v1/agent/", "POST /api/v1/alerts"})(okHandler())
	token, _, err := GenerateJWT("dash", "parent", testSecret, time.Hour)
	require.NoError(t, err)
	expired, _, err := GenerateJWT("dash", "parent", testSecret, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		header string
		status int
	}{
		{"skip exact", http.MethodGet, "/api/v1/devices/register", "", 200},
		{"skip prefix", http.MethodGet, "/api/v1/agent/ping", "", 200},
		{"skip method", http.MethodPost, "/api/v1/alerts", "", 200},
		{"method not skipped", http.MethodGet, "/api/v1/alerts", "", 401},
		{"non api", http.MethodGet, "/health", "", 200},
		{"no token", http.MethodGet, "/api/v1/children", "", 401},
		{"bad token", http.MethodGet, "/api/v1/children", "Bearer nope", 401},
		{"expired", http.MethodGet, "/api/v1/children", "Bearer " + expired, 401},
		{"valid", http.MethodGet, "/api/v1/children", "Bearer " + token, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuthMiddleware_ExpiredCode(t *testing.T) {
	h := AuthMiddleware(testSecret, nil)(okHandler())
	expired, _, err := GenerateJWT("dash", "parent", testSecret, -time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/children", nil)
	req.AddCookie(&http.Cookie{Name: "zh_token", Value: expired})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), ErrTokenExpired.Code)
}

func TestRequireRole(t *testing.T) {
	inner := func(w http.ResponseWriter, r *http.Request) { OK(w, r, nil) }
	h := RequireRole(inner, "parent")

	// no claims: auth disabled
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h(w, SetClaims(httptest.NewRequest(http.MethodPost, "/x", nil), "dash", "readonly"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	h(w, SetClaims(httptest.NewRequest(http.MethodPost, "/x", nil), "dash", "parent"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := NewRateLimiter(2, time.Minute, ctx)
	h := RateLimitMiddleware(limiter, []string{"/api/v1/devices/register"})(okHandler())

	codes := make([]int, 0, 4)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/devices/register", nil))
		codes = append(codes, w.Code)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	codes = append(codes, w.Code)

	assert.Equal(t, []int{200, 200, 429, 200}, codes)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		RequestIDMiddleware, RecoveryMiddleware)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_KeepsInbound(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "agent-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "agent-123", seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Regexp(t, `^req_[0-9a-f]{16}$`, seen)
}

func TestInputSanitizeMiddleware(t *testing.T) {
	h := InputSanitizeMiddleware(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/activity?deviceId=%3Cscript%3E", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/activity?deviceId=3", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"http://dash.local"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/children", nil)
	req.Header.Set("Origin", "http://dash.local")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://dash.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/children", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
