package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var got []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = append(got, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "upstream-42", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36, "oversized id is replaced")

	assert.Empty(t, RequestIDFromContext(req.Context()))
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart/add", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic in handler", logs.All()[0].Message)
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Inside")
		w.WriteHeader(http.StatusTeapot)
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	find := MakeRouteFinder(mux)

	h := Wrap(mux, RequestID(), InjectLogger(zap.New(core)), LogRequests(find))

	req := httptest.NewRequest(http.MethodGet, "/products?q=rice", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Inside", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])

	fields := entries[1].ContextMap()
	assert.Equal(t, "Request", entries[1].Message)
	assert.Equal(t, "GET /products", fields["route"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
	last := logs.All()[logs.Len()-1]
	assert.Equal(t, zapcore.DebugLevel, last.Level)
}

func TestMakeRouteFinder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cart/items/{id}/increase", func(http.ResponseWriter, *http.Request) {})
	find := MakeRouteFinder(mux)

	assert.Equal(t, "POST /api/cart/items/{id}/increase",
		find(httptest.NewRequest(http.MethodPost, "/api/cart/items/atta/increase", nil)))
	assert.Empty(t, find(httptest.NewRequest(http.MethodGet, "/nope", nil)))
}
