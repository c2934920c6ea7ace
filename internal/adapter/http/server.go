package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/mapview"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// FeedState exposes the poller to the REST API.
type FeedState interface {
	ReadinessChecker
	FeedController
	Window() domain.FeedWindow
	Paused() bool
	Status() domain.Status
}

// EventSource returns the current reconciled events, newest first.
type EventSource interface {
	Snapshot() []domain.Event
}

// SceneWriter encodes the current map scene.
type SceneWriter interface {
	WriteSVG(w io.Writer) error
}

// Deps are the collaborators served over HTTP. Hub and Scene may be nil when
// the map is disabled.
type Deps struct {
	Feed       FeedState
	Events     EventSource
	Scene      SceneWriter
	Hub        http.Handler
	Clock      clockwork.Clock
	StaleAfter time.Duration
}

// EventsResponse is the body of GET /api/events.
type EventsResponse struct {
	FeedWindow domain.FeedWindow `json:"feedWindow"`
	Count      int               `json:"count"`
	Events     []domain.Event    `json:"events"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status     domain.Status     `json:"status"`
	FeedWindow domain.FeedWindow `json:"feedWindow"`
	Paused     bool              `json:"paused"`
}

// Server exposes the health endpoints, the REST API, the map scene and the
// WebSocket hub.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, the
// /api routes, /map.svg and /ws.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(deps.Feed))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/feed-window", s.handleFeedWindow)
	mux.HandleFunc("POST /api/paused", s.handlePaused)

	if deps.Scene != nil {
		mux.HandleFunc("GET /map.svg", s.handleMap)
	}
	if deps.Hub != nil {
		mux.Handle("GET /ws", deps.Hub)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.deps.Events.Snapshot()
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{
		FeedWindow: s.deps.Feed.Window(),
		Count:      len(events),
		Events:     events,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:     s.deps.Feed.Status().Effective(s.deps.Clock.Now(), s.deps.StaleAfter),
		FeedWindow: s.deps.Feed.Window(),
		Paused:     s.deps.Feed.Paused(),
	})
}

func (s *Server) handleFeedWindow(w http.ResponseWriter, r *http.Request) {
	var body feedWindowCommand
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	window, err := domain.ParseFeedWindow(body.Window)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.deps.Feed.SetFeedWindow(window)
	s.logger.Info("feed window changed", "window", window)
	writeJSON(w, http.StatusOK, map[string]domain.FeedWindow{"feedWindow": window})
}

func (s *Server) handlePaused(w http.ResponseWriter, r *http.Request) {
	var body pausedCommand
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.deps.Feed.SetPaused(body.Paused)
	s.logger.Info("feed pause toggled", "paused", body.Paused)
	writeJSON(w, http.StatusOK, map[string]bool{"paused": body.Paused})
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.deps.Scene.WriteSVG(&buf); err != nil {
		if errors.Is(err, mapview.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		s.logger.Error("render map", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client went away
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
