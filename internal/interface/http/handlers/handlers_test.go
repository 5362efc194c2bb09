package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCompositeHealthChecker(t *testing.T) {
	tests := []struct {
		name        string
		store       error
		cache       error
		wantHealthy bool
		wantReady   bool
	}{
		{name: "all up", wantHealthy: true, wantReady: true},
		{name: "cache down", cache: errors.New("redis down"), wantHealthy: false, wantReady: true},
		{name: "store down", store: errors.New("locked"), wantHealthy: false, wantReady: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("test")
			c.AddCheck("store", NewPingCheck(pinger{tt.store}))
			c.AddOptionalCheck("redis", NewPingCheck(pinger{tt.cache}))

			status := c.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Len(t, status.Checks, 2)
			assert.Equal(t, "test", status.Version)
		})
	}
}

func TestCompositeHealthChecker_Empty(t *testing.T) {
	status := NewCompositeHealthChecker("v").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
}

func TestAPIKeyAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	var deniedCode string
	auth, err := NewAPIKeyAuth("X-API-Key", []string{string(hash), ""}, func(w http.ResponseWriter, _ *http.Request, code, _ string) {
		deniedCode = code
		w.WriteHeader(http.StatusUnauthorized)
	})
	require.NoError(t, err)
	require.True(t, auth.Enabled())

	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
		denied   string
	}{
		{name: "missing", wantCode: http.StatusUnauthorized, denied: "missing_api_key"},
		{name: "wrong", header: "X-API-Key", value: "nope", wantCode: http.StatusUnauthorized, denied: "invalid_api_key"},
		{name: "header", header: "X-API-Key", value: "s3cret", wantCode: http.StatusNoContent},
		{name: "bearer", header: "Authorization", value: "Bearer s3cret", wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deniedCode = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/classes", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.denied, deniedCode)
		})
	}
}

func TestAPIKeyAuth_DisabledAndInvalidHash(t *testing.T) {
	auth, err := NewAPIKeyAuth("X-API-Key", nil, nil)
	require.NoError(t, err)
	assert.False(t, auth.Enabled())

	_, err = NewAPIKeyAuth("X-API-Key", []string{"plain-text-key"}, nil)
	assert.Error(t, err)
}

func TestHashAPIKey(t *testing.T) {
	h, err := HashAPIKey("abc")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("abc")))

	_, err = HashAPIKey("  ")
	assert.Error(t, err)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mw("a"), mw("b"), SecurityHeadersMiddleware)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
