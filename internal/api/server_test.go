package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netspec/alertbatch/internal/alerter"
	"github.com/netspec/alertbatch/internal/config"
	"github.com/netspec/alertbatch/internal/types"
	"github.com/netspec/alertbatch/internal/webui"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu        sync.Mutex
	reported  []types.Alert
	pending   map[types.AlertType]int
	last      alerter.CycleResult
	triggered int
}

func (f *fakeSubscriber) Report(a types.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, a)
}

func (f *fakeSubscriber) Pending() map[types.AlertType]int { return f.pending }

func (f *fakeSubscriber) LastCycle() alerter.CycleResult { return f.last }

func (f *fakeSubscriber) Trigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered++
	return f.triggered == 1
}

type fakeRecorder struct {
	keys []string
	at   []time.Time
	err  error
}

func (f *fakeRecorder) MarkRecovered(_ context.Context, key string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.at = append(f.at, at)
	return nil
}

func newTestServer() (*Server, *fakeSubscriber, *fakeRecorder) {
	sub := &fakeSubscriber{pending: map[types.AlertType]int{"DISK": 2, "CPU": 1}}
	rec := &fakeRecorder{}
	return NewServer(sub, rec, zerolog.Nop(), "0"), sub, rec
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHandleReport_Single(t *testing.T) {
	s, sub, _ := newTestServer()

	rr := do(t, s.Handler(), http.MethodPost, "/api/v1/alerts",
		`{"type":"DISK","device":"db-1","entity":"/var","severity":"critical","message":"92% used"}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["accepted"])
	require.Len(t, sub.reported, 1)
	assert.Equal(t, types.AlertType("DISK"), sub.reported[0].Type)
	assert.Equal(t, "/var", sub.reported[0].Entity)
	assert.Equal(t, "critical", sub.reported[0].Severity)
}

func TestHandleReport_Batch(t *testing.T) {
	s, sub, _ := newTestServer()

	rr := do(t, s.Handler(), http.MethodPost, "/api/v1/alerts",
		`[{"type":"DISK","device":"db-1"},{"type":"CPU","device":"web-1","fired_at":"2026-01-02T03:04:05Z"}]`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, sub.reported, 2)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), sub.reported[1].FiredAt.UTC())
}

func TestHandleReport_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"empty array", http.MethodPost, "[]", http.StatusBadRequest},
		{"missing device", http.MethodPost, `{"type":"DISK"}`, http.StatusBadRequest},
		{"one bad in batch", http.MethodPost, `[{"type":"DISK","device":"a"},{"device":"b"}]`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sub, _ := newTestServer()
			rr := do(t, s.Handler(), tt.method, "/api/v1/alerts", tt.body)
			assert.Equal(t, tt.code, rr.Code)
			assert.Empty(t, sub.reported, "rejected requests must not reach the buffer")
		})
	}
}

func TestHandleRecoveries(t *testing.T) {
	s, _, rec := newTestServer()

	rr := do(t, s.Handler(), http.MethodPost, "/api/v1/recoveries",
		`{"type":"DISK","device":"db-1","entity":"/var","recovered_at":"2026-01-02T03:04:05Z"}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"DISK:db-1:/var"}, rec.keys)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), rec.at[0].UTC())
}

func TestHandleRecoveries_StoreError(t *testing.T) {
	s, _, rec := newTestServer()
	rec.err = errors.New("redis down")

	rr := do(t, s.Handler(), http.MethodPost, "/api/v1/recoveries", `{"type":"DISK","device":"db-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, decode(t, rr)["error"], "redis down")
}

func TestHandleFlush(t *testing.T) {
	s, sub, _ := newTestServer()
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/api/v1/flush", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, true, decode(t, rr)["triggered"])

	rr = do(t, h, http.MethodPost, "/api/v1/flush", "")
	assert.Equal(t, false, decode(t, rr)["triggered"])
	assert.Equal(t, 2, sub.triggered)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/flush", "").Code)
}

func TestHandleStatus(t *testing.T) {
	s, sub, _ := newTestServer()
	s.SetVersion("1.2.3", "abc123", "today")
	s.SetInterval(30 * time.Minute)
	sub.last = alerter.CycleResult{ID: "cycle-1", Stage: alerter.StageDone, Snapshot: 3, Sent: 2}

	rr := do(t, s.Handler(), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	out := decode(t, rr)
	assert.Equal(t, float64(3), out["pending_total"])
	assert.Equal(t, "1.2.3", out["version"])
	assert.Equal(t, "30m0s", out["interval"])

	last, ok := out["last_cycle"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cycle-1", last["id"])
	assert.Equal(t, "done", last["stage"])
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer()
	rr := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decode(t, rr)["status"])
}

func TestHandleReload(t *testing.T) {
	s, _, _ := newTestServer()
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/api/reload", "")
	assert.Equal(t, false, decode(t, rr)["success"])

	s.SetReloadFunc(func() (*config.PolicyConfig, error) {
		return &config.PolicyConfig{Routes: make([]config.Route, 2)}, nil
	})
	rr = do(t, h, http.MethodPost, "/api/reload", "")
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(2), out["routes"])

	s.SetReloadFunc(func() (*config.PolicyConfig, error) {
		return nil, errors.New("bad yaml")
	})
	rr = do(t, h, http.MethodPost, "/api/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "bad yaml", decode(t, rr)["error"])
}

func TestHandleLogsAPI(t *testing.T) {
	s, _, _ := newTestServer()
	lb := webui.NewLogBuffer(10)
	s.SetLogBuffer(lb)
	logger := zerolog.New(lb)
	logger.Info().Msg("Flush cycle complete")

	rr := do(t, s.Handler(), http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode(t, rr)["count"])
}

func TestHandleWebUI(t *testing.T) {
	s, sub, _ := newTestServer()
	sub.last = alerter.CycleResult{ID: "cycle-7", StartedAt: time.Now(), Stage: alerter.StageFailed, Err: "resolver down"}
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Pending alerts (3)")
	assert.Contains(t, body, "DISK")
	assert.Contains(t, body, "cycle-7")
	assert.Contains(t, body, "resolver down")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer()
	rr := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
