package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"FoodBot/internal/aggregate"
	"FoodBot/internal/metrics"
	"FoodBot/internal/snapshot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "s3cret"

type recordingHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (h *recordingHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

type staticSnapshots struct {
	snap *snapshot.Snapshot
}

func (s staticSnapshots) Current() (*snapshot.Snapshot, bool) {
	return s.snap, s.snap != nil
}

func newTestServer(snap *snapshot.Snapshot) (*Server, *recordingHandler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	metrics.MustNewMetrics(reg).SetSnapshot(3, 40)
	handler := &recordingHandler{}
	s := New(":0", testSecret, handler, staticSnapshots{snap: snap}, reg, zap.NewNop().Sugar())
	return s, handler, reg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhookDeliversUpdate(t *testing.T) {
	s, handler, _ := newTestServer(nil)

	rec := do(t, s, http.MethodPost, "/webhook/"+testSecret,
		`{"update_id": 10, "message": {"message_id": 1, "chat": {"id": 5, "type": "private"}, "text": "обед"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, handler.updates, 1)
	assert.Equal(t, 10, handler.updates[0].UpdateID)
	assert.Equal(t, "обед", handler.updates[0].Message.Text)
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	s, handler, _ := newTestServer(nil)

	rec := do(t, s, http.MethodPost, "/webhook/guess", `{"update_id": 10}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, handler.updates)
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	s, handler, _ := newTestServer(nil)

	rec := do(t, s, http.MethodPost, "/webhook/"+testSecret, `{"update_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, handler.updates)
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDebugWithoutSnapshot(t *testing.T) {
	s, _, _ := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/debug", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"snapshot": null}`, rec.Body.String())
}

func TestDebugShowsSnapshot(t *testing.T) {
	snap := &snapshot.Snapshot{
		ID:           "abc",
		FetchedAt:    time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
		Messages:     12,
		Observations: 0,
		Table:        aggregate.Build(nil, aggregate.DefaultMinThreshold),
	}
	s, _, _ := newTestServer(snap)

	rec := do(t, s, http.MethodGet, "/debug", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Snapshot struct {
			ID          string `json:"id"`
			Messages    int    `json:"messages"`
			Restaurants int    `json:"restaurants"`
			Stale       bool   `json:"stale"`
		} `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "abc", body.Snapshot.ID)
	assert.Equal(t, 12, body.Snapshot.Messages)
	assert.Equal(t, 0, body.Snapshot.Restaurants)
	assert.False(t, body.Snapshot.Stale)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "foodbot_restaurants 3")
	assert.Contains(t, rec.Body.String(), "foodbot_observations 40")
}
