package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"relaybot/internal/catalog"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *harness, *Pool) {
	t.Helper()
	h := newHarness(t, Deps{})
	pool := NewPool(2, 8, time.Second)
	s := NewServer(context.Background(), cfg, h.d, pool, zerolog.Nop())
	return s, h, pool
}

func post(t *testing.T, handler http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	s, h, pool := newTestServer(t, ServerConfig{WebhookPath: "/hook"})

	body := `{"update_id":1,"message":{"message_id":3,"from":{"id":100,"username":"alice"},"chat":{"id":100,"type":"private"},"text":"/order"}}`
	rr := post(t, s.Handler(), "/hook", body, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	require.NoError(t, pool.Shutdown(context.Background()))
	sent := h.rec.To(100)
	require.Len(t, sent, 1)
	assert.Equal(t, catalog.TextAskProduct, sent[0].Text)
}

func TestWebhookAcknowledgesUnknownUpdates(t *testing.T) {
	s, h, pool := newTestServer(t, ServerConfig{})

	rr := post(t, s.Handler(), "/webhook", `{"update_id":2,"poll":{"id":"p"}}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Empty(t, h.rec.All())
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	s, _, pool := newTestServer(t, ServerConfig{})
	defer pool.Shutdown(context.Background())

	rr := post(t, s.Handler(), "/webhook", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookSecret(t *testing.T) {
	s, _, pool := newTestServer(t, ServerConfig{Secret: "s3cret"})
	defer pool.Shutdown(context.Background())

	rr := post(t, s.Handler(), "/webhook", `{"update_id":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(t, s.Handler(), "/webhook", `{"update_id":1}`, map[string]string{secretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookBusyStillAcknowledges(t *testing.T) {
	h := newHarness(t, Deps{})
	pool := NewPool(1, 1, time.Millisecond)
	require.NoError(t, pool.Shutdown(context.Background()))
	s := NewServer(context.Background(), ServerConfig{}, h.d, pool, zerolog.Nop())

	rr := post(t, s.Handler(), "/webhook", `{"update_id":1,"message":{"message_id":1,"from":{"id":5},"chat":{"id":5},"text":"hi"}}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, h.rec.All())
}

func TestHealthAndReady(t *testing.T) {
	var readyErr error
	s, _, pool := newTestServer(t, ServerConfig{Ready: func(context.Context) error { return readyErr }})
	defer pool.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "running", rr.Body.String())

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	readyErr = errors.New("redis down")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
