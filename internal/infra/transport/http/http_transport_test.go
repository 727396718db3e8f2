package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	context_ "github.com/mkrupp/lostbuddy/internal/infra/context"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	http_ "github.com/mkrupp/lostbuddy/internal/infra/transport/http"
)

func echoContext(w http.ResponseWriter, r *http.Request) {
	traceID, _ := context_.TraceIDFromContext(r.Context())
	clientID, _ := context_.ClientIDFromContext(r.Context())

	_ = json.NewEncoder(w).Encode(map[string]string{"trace": traceID, "client": clientID})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	return body
}

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	handler := http_.TracingMiddleware(http.HandlerFunc(echoContext))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(http_.TraceIDHeader, "abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc123", decode(t, rec)["trace"])
	assert.Equal(t, "abc123", rec.Header().Get(http_.TraceIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	generated := decode(t, rec)["trace"]
	assert.Len(t, generated, 26)
	assert.Equal(t, generated, rec.Header().Get(http_.TraceIDHeader))
}

func TestClientIdentityMiddleware(t *testing.T) {
	t.Parallel()

	handler := http_.ClientIdentityMiddleware(http.HandlerFunc(echoContext), logging.NewNopLogger())

	// New client gets a cookie.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, http_.ClientIDCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, cookies[0].Value, decode(t, rec)["client"])

	// Known client keeps its ID, no new cookie.
	known := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: http_.ClientIDCookie, Value: known})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, known, decode(t, rec)["client"])

	// Malformed cookie is replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: http_.ClientIDCookie, Value: "../../etc"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "../../etc", cookies[0].Value)
	_, err := uuid.Parse(decode(t, rec)["client"])
	assert.NoError(t, err)
}

func TestRescueingMiddleware(t *testing.T) {
	t.Parallel()

	handler := http_.RescueingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), logging.NewNopLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal","message":"internal server error"}`, rec.Body.String())
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := http_.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = fmt.Fprint(w, "short and stout")
	}), logging.NewNopLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	sock, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() {
		errc <- http_.Serve(ctx, sock, http.HandlerFunc(echoContext), http_.HTTPTransportConfig{
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   time.Second,
		})
	}()

	resp, err := http.Get("http://" + sock.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(http_.TraceIDHeader))

	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
