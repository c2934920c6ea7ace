package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/quakewatch-service/internal/adapter/http"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/mapview"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockFeed struct {
	mu       sync.Mutex
	readyErr error
	window   domain.FeedWindow
	paused   bool
	status   domain.Status
}

func (m *mockFeed) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockFeed) SetFeedWindow(w domain.FeedWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window = w
}

func (m *mockFeed) SetPaused(p bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = p
}

func (m *mockFeed) Window() domain.FeedWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window
}

func (m *mockFeed) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockFeed) Status() domain.Status { return m.status }

type mockEvents struct {
	events []domain.Event
}

func (m *mockEvents) Snapshot() []domain.Event { return m.events }

type mockScene struct {
	svg string
	err error
}

func (m *mockScene) WriteSVG(w io.Writer) error {
	if m.err != nil {
		return m.err
	}
	_, err := io.WriteString(w, m.svg)
	return err
}

func newTestServer(feed *mockFeed, events *mockEvents, scene httpadapter.SceneWriter) *httpadapter.Server {
	return httpadapter.NewServer(":0", httpadapter.Deps{
		Feed:       feed,
		Events:     events,
		Scene:      scene,
		Clock:      clockwork.NewFakeClockAt(now),
		StaleAfter: 3 * time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(srv *httpadapter.Server, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockFeed{}, &mockEvents{}, nil)
	rec := serve(srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockFeed{}, &mockEvents{}, nil)
	rec := serve(srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockFeed{readyErr: fmt.Errorf("no successful poll yet")}, &mockEvents{}, nil)
	rec := serve(srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no successful poll yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockFeed{}, &mockEvents{}, nil)
	rec := serve(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEventsEndpoint(t *testing.T) {
	events := &mockEvents{events: []domain.Event{
		{ID: "us7000abcd", Lon: 142.1, Lat: 38.2, Depth: 35, Mag: 6.1, Place: "off the east coast of Honshu", Time: now.UnixMilli()},
	}}
	srv := newTestServer(&mockFeed{window: domain.WindowDay}, events, nil)
	rec := serve(srv, http.MethodGet, "/api/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body httpadapter.EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.WindowDay, body.FeedWindow)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, events.events, body.Events)
}

func TestEventsEndpoint_EmptyIsArray(t *testing.T) {
	srv := newTestServer(&mockFeed{window: domain.WindowHour}, &mockEvents{}, nil)
	rec := serve(srv, http.MethodGet, "/api/events", "")

	assert.Contains(t, rec.Body.String(), `"events":[]`)
}

func TestStatusEndpoint_ReportsStaleAfterThreshold(t *testing.T) {
	tests := []struct {
		name    string
		updated time.Time
		want    domain.Tone
	}{
		{"fresh", now.Add(-time.Minute), domain.ToneLive},
		{"old", now.Add(-5 * time.Minute), domain.ToneStale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &mockFeed{window: domain.WindowHour, paused: true, status: domain.LiveStatus(tt.updated)}
			rec := serve(newTestServer(feed, &mockEvents{}, nil), http.MethodGet, "/api/status", "")

			require.Equal(t, http.StatusOK, rec.Code)
			var body httpadapter.StatusResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status.Tone)
			assert.True(t, body.Paused)
			assert.Equal(t, domain.WindowHour, body.FeedWindow)
		})
	}
}

func TestFeedWindowEndpoint(t *testing.T) {
	feed := &mockFeed{window: domain.WindowHour}
	srv := newTestServer(feed, &mockEvents{}, nil)

	rec := serve(srv, http.MethodPost, "/api/feed-window", `{"window":"Week"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.WindowWeek, feed.Window())

	rec = serve(srv, http.MethodPost, "/api/feed-window", `{"window":"month"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown feed window")

	rec = serve(srv, http.MethodPost, "/api/feed-window", `{"windw":"day"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.WindowWeek, feed.Window())
}

func TestPausedEndpoint(t *testing.T) {
	feed := &mockFeed{}
	srv := newTestServer(feed, &mockEvents{}, nil)

	rec := serve(srv, http.MethodPost, "/api/paused", `{"paused":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, feed.Paused())

	rec = serve(srv, http.MethodPost, "/api/paused", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, feed.Paused())
}

func TestMapEndpoint(t *testing.T) {
	srv := newTestServer(&mockFeed{}, &mockEvents{}, &mockScene{svg: `<svg class="eq-map"></svg>`})
	rec := serve(srv, http.MethodGet, "/map.svg", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, `<svg class="eq-map"></svg>`, rec.Body.String())
}

func TestMapEndpoint_Errors(t *testing.T) {
	srv := newTestServer(&mockFeed{}, &mockEvents{}, &mockScene{err: mapview.ErrNotInitialized})
	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, http.MethodGet, "/map.svg", "").Code)

	srv = newTestServer(&mockFeed{}, &mockEvents{}, &mockScene{err: errors.New("boom")})
	assert.Equal(t, http.StatusInternalServerError, serve(srv, http.MethodGet, "/map.svg", "").Code)
}

func TestMapEndpoint_AbsentWithoutScene(t *testing.T) {
	srv := newTestServer(&mockFeed{}, &mockEvents{}, nil)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/map.svg", "").Code)
}
