package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"graderservice/internal/ctxdata"
	"graderservice/internal/errdefs"
	"graderservice/internal/logging"
	"graderservice/internal/model"
)

type authFunc func(r *http.Request) (model.Principal, error)

func (f authFunc) Authenticate(r *http.Request) (model.Principal, error) {
	return f(r)
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("challenge on failure", func(t *testing.T) {
		mw := NewAuthMiddleware(authFunc(func(*http.Request) (model.Principal, error) {
			return model.Principal{}, errdefs.ErrAuthentication
		}), "grader")
		called := false
		h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/lectures/x/assignments/y/info/refs", nil))

		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, `Basic realm="grader"`, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("principal in context", func(t *testing.T) {
		mw := NewAuthMiddleware(authFunc(func(*http.Request) (model.Principal, error) {
			return model.Principal{Username: "alice"}, nil
		}), "grader")
		var got model.Principal
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = ctxdata.GetPrincipal(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "alice", got.Username)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := logging.New(zap.New(core))

	var traceID string
	h := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = ctxdata.GetTraceID(r.Context())
		_, ok := logging.GetFromContext(r.Context())
		assert.True(t, ok)

		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
		require.NoError(t, http.NewResponseController(w).Flush())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, rec.Header().Get("X-Trace-Id"))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(len("short and stout")), fields["bytes"])
	assert.Equal(t, traceID, fields["request_id"])
}

func TestLoggingMiddleware_Abort(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLoggingMiddleware(logging.New(zap.New(core)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithError(t, http.ErrAbortHandler.Error(), func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil))
	})
	assert.Len(t, logs.FilterMessage("request aborted").All(), 1)
}
