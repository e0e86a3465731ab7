package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/cache"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/config"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/engine"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/storage/sqlite"
	"github.com/PandyaSumit/mini--AI-tutor-sub006/internal/vector"
)

type stubGenerator struct{}

func (stubGenerator) Complete(_ context.Context, _ string) (string, error) {
	return "a short summary", nil
}
func (stubGenerator) Model() string { return "stub" }

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (stubEmbedder) Model() string { return "stub-embedder" }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewChromemIndex("", nil)
	require.NoError(t, err)

	eng := engine.New(store, index, stubGenerator{}, stubEmbedder{},
		cache.NewTiered(cache.NewLRU(64, time.Hour)), engine.Options{}, nil)

	hub := NewHub(nil)
	t.Cleanup(hub.Stop)
	hub.Run()
	eng.SetEventFunc(hub.Broadcast)

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 0, RateLimitPerSec: 1000, RateLimitBurst: 1000}
	return New(cfg, eng, hub, nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAppendTurnAndGetContext(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/turns", map[string]string{
		"user_id":         "u1",
		"conversation_id": "c1",
		"role":            "user",
		"content":         "I'm Alex and I work as a backend engineer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = postJSON(t, handler, "/v1/context", map[string]string{
		"user_id":         "u1",
		"conversation_id": "c1",
		"message":         "can you explain interfaces?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var assembled engine.AssembledContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assembled))
	assert.Contains(t, assembled.Text, "I'm Alex")
	assert.LessOrEqual(t, assembled.TokensUsed, assembled.TokenBudget)
}

func TestAppendTurnRejectsBadRole(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/v1/turns", map[string]string{
		"user_id":         "u1",
		"conversation_id": "c1",
		"role":            "system",
		"content":         "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsolidateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/turns", map[string]string{
		"user_id":         "u1",
		"conversation_id": "c1",
		"role":            "user",
		"content":         "I'm Alex and I work as a backend engineer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler, "/v1/consolidate", map[string]string{
		"user_id":         "u1",
		"conversation_id": "c1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result engine.ConsolidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.ConsolidatedCount)
}

func TestConsolidateEmptyConversation(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/v1/consolidate", map[string]string{
		"user_id":         "u1",
		"conversation_id": "never-happened",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result engine.ConsolidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result.ConsolidatedCount)
	assert.Equal(t, "no messages", result.Reason)
}

func TestDecayEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/v1/decay", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var report engine.DecayReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "u1", report.UserID)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/health?user_id=u1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report engine.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "u1", report.UserID)
}

func TestMissingFieldsRejected(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/context", map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/v1/decay", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewChromemIndex("", nil)
	require.NoError(t, err)

	eng := engine.New(store, index, stubGenerator{}, stubEmbedder{},
		cache.NewTiered(cache.NewLRU(64, time.Hour)), engine.Options{}, nil)
	hub := NewHub(nil)
	t.Cleanup(hub.Stop)

	cfg := config.ServerConfig{RateLimitPerSec: 1, RateLimitBurst: 1}
	srv := New(cfg, eng, hub, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
