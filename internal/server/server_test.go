package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/codesense/internal/audit"
	"github.com/raaihank/codesense/internal/cache"
	"github.com/raaihank/codesense/internal/completion"
	"github.com/raaihank/codesense/internal/config"
	"github.com/raaihank/codesense/internal/explain"
	"github.com/raaihank/codesense/internal/logger"
	"github.com/raaihank/codesense/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	answer string
	err    error
	last   completion.Request
}

func (s *stubCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	s.last = req
	return s.answer, s.err
}

type testServer struct {
	handler   http.Handler
	completer *stubCompleter
	store     *audit.CSVStore
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.Metrics.Enabled = false
	cfg.Security.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewNop()
	detector, err := privacy.New(cfg.Privacy, log)
	require.NoError(t, err)

	store := audit.NewCSVStore(filepath.Join(t.TempDir(), "history.csv"), log)
	completer := &stubCompleter{answer: `{"meaning":"m","cause":"c","fix_code":"f","prevention":"p"}`}
	service := explain.New(cfg, detector, completer, store, log)

	srv := New(cfg, "test", Deps{Detector: detector, Service: service, Store: store}, log)
	return &testServer{handler: srv.Handler(), completer: completer, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestInfo(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "csv", body["audit_backend"])
	assert.NotContains(t, body, "websocket")
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/", "/dashboard"} {
		rec := ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "/api/explain")
	}
}

func TestExplainEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":"KeyError for bob@example.com","level":"advanced","model":"accurate"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		body := decode(t, rec)
		assert.Equal(t, "Success", body["mode"])
		assert.Equal(t, true, body["pii_detected"])
		assert.NotContains(t, ts.completer.last.Prompt, "bob@example.com")
		assert.Equal(t, "openai/gpt-oss-20b", ts.completer.last.Model)

		rows, err := ts.store.Tail(context.Background(), 10)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("PrivacyOverride", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":"KeyError for bob@example.com","privacy":false}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decode(t, rec)["pii_detected"])
		assert.Contains(t, ts.completer.last.Prompt, "bob@example.com")
	})

	t.Run("EmptyInput", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, explain.ErrEmptyInput.Error(), decode(t, rec)["error"])
	})

	t.Run("UnknownLevel", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":"boom","level":"expert"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("BadJSON", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ts.do(t, http.MethodPost, "/api/explain", `{"error":"boom","unknown":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.completer.err = &completion.Failure{Kind: completion.KindRateLimit, StatusCode: 429, Err: errors.New("slow down")}

		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":"boom"}`)
		require.Equal(t, http.StatusBadGateway, rec.Code)

		body := decode(t, rec)
		assert.True(t, strings.HasPrefix(body["error"].(string), "API Error: "))
		assert.Equal(t, "rate_limit", body["kind"])
		outcome := body["outcome"].(map[string]interface{})
		assert.Equal(t, "Error", outcome["mode"])
	})
}

func TestRedactEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/redact", `{"error":"mail bob@example.com","code":"api_key = abcdefghijklmnopqrstuvwx"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "mail [EMAIL]", body["error"])
	assert.Equal(t, "[API_KEY]", body["code"])
	assert.Equal(t, true, body["detected"])
	assert.Len(t, body["findings"], 2)

	rows, err := ts.store.Tail(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/explain", `{"error":"boom"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 6, decode(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/api/history?n=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	rows := body["rows"].([]interface{})
	assert.Equal(t, "Success", rows[1].(map[string]interface{})["mode"])

	rec = ts.do(t, http.MethodGet, "/api/history?n=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "fast", body["default"])
	assert.Equal(t, "Beginner", body["default_level"])
	assert.Equal(t, []interface{}{"Beginner", "Intermediate", "Advanced"}, body["levels"])
	models := body["models"].(map[string]interface{})
	assert.Equal(t, "llama-3.1-8b-instant", models["fast"])
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.Enabled = true
		cfg.Security.RateLimit.RequestsPerMin = 1
		cfg.Security.RateLimit.Burst = 1
	})

	rec := ts.do(t, http.MethodGet, "/api/models", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/models", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health is outside the limited subrouter
	rec = ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDetectorsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/detectors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["available"], 7)
	assert.Len(t, body["enabled"], 7)

	rec = ts.do(t, http.MethodPut, "/api/detectors/phone", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, decode(t, rec)["enabled"], "phone")

	rec = ts.do(t, http.MethodPost, "/api/redact", `{"error":"call 555-123-4567"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "call 555-123-4567", decode(t, rec)["error"])

	rec = ts.do(t, http.MethodPut, "/api/detectors/phone", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["enabled"], "phone")

	rec = ts.do(t, http.MethodPut, "/api/detectors/ssn", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/detectors/phone", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, http.MethodDelete, "/api/cache", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, http.MethodGet, "/info", "")
		assert.NotContains(t, decode(t, rec), "cache")
	})

	t.Run("Unreachable", func(t *testing.T) {
		cfg := config.GetDefaults()
		cfg.Metrics.Enabled = false
		cfg.Security.RateLimit.Enabled = false
		log := logger.NewNop()

		detector, err := privacy.New(cfg.Privacy, log)
		require.NoError(t, err)
		client := redis.NewClient(&redis.Options{Addr: "localhost:0", MaxRetries: -1})
		respCache := cache.NewWithClient(client, cfg.Cache, log)
		defer respCache.Close()

		store := audit.NewCSVStore(filepath.Join(t.TempDir(), "history.csv"), log)
		service := explain.New(cfg, detector, &stubCompleter{}, store, log)
		ts := &testServer{handler: New(cfg, "test", Deps{
			Detector: detector,
			Service:  service,
			Store:    store,
			Cache:    respCache,
		}, log).Handler()}

		rec := ts.do(t, http.MethodGet, "/info", "")
		require.Equal(t, http.StatusOK, rec.Code)
		stats, ok := decode(t, rec)["cache"].(map[string]interface{})
		require.True(t, ok)
		assert.EqualValues(t, 0, stats["hits"])

		rec = ts.do(t, http.MethodDelete, "/api/cache", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
