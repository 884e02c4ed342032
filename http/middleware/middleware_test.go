package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceIDMiddleware(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	t.Run("propagates header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceIDHeader, "abc")
		h.ServeHTTP(rr, req)

		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", rr.Header().Get(TraceIDHeader))
	})

	t.Run("generates when missing", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get(TraceIDHeader))
	})

	t.Run("replaces oversized header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceIDHeader, strings.Repeat("x", 500))
		h.ServeHTTP(rr, req)

		assert.Len(t, seen, 36)
	})
}

func TestTimingMiddleware(t *testing.T) {
	assert.Equal(t, int64(0), GetRequestDuration(context.Background()))

	var hasStart bool
	h := TimingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasStart = r.Context().Value(StartTimeKey).(interface{ IsZero() bool })
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, hasStart)
}

func TestIdentityFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, " alice ")
	req.Header.Set(RolesHeader, "admin, ,manager,")

	id := IdentityFromRequest(req)
	assert.Equal(t, "alice", id.User)
	assert.Equal(t, []string{"admin", "manager"}, id.Roles)

	var got Identity
	h := IdentityMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, id, got)

	assert.Equal(t, Identity{}, GetIdentity(context.Background()))
}
