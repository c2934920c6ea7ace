package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/mapview"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
)

// Server-pushed message types.
const (
	MsgUpdate          = "update"
	MsgStatus          = "status"
	MsgHover           = "hover"
	MsgHoverOut        = "hoverOut"
	MsgZoomState       = "zoomState"
	MsgQuakeClick      = "quakeClick"
	MsgBackgroundClick = "backgroundClick"
	MsgScene           = "scene"
	MsgError           = "error"
)

// Client command types.
const (
	CmdPointerMove  = "pointerMove"
	CmdPointerLeave = "pointerLeave"
	CmdClick        = "click"
	CmdZoom         = "zoom"
	CmdPan          = "pan"
	CmdResetZoom    = "resetZoom"
	CmdHeatmap      = "heatmap"
	CmdTectonic     = "tectonic"
	CmdFeedWindow   = "feedWindow"
	CmdPaused       = "paused"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64

	// FrameInterval paces scene pushes while the map animates.
	FrameInterval = 50 * time.Millisecond
)

// MapController is the interactive map driven by connected viewers.
type MapController interface {
	PointerMove(x, y float64)
	PointerLeave()
	Click(x, y float64)
	Zoom(x, y, factor float64)
	Pan(dx, dy float64)
	ResetZoom()
	SetHeatmapEnabled(enabled bool)
	SetTectonicEnabled(enabled bool)
	Tick() bool
	View() mapview.View
}

// FeedController switches and pauses the live feed.
type FeedController interface {
	SetFeedWindow(window domain.FeedWindow)
	SetPaused(paused bool)
}

// Envelope frames every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HoverMessage is pushed while the pointer is over a marker.
type HoverMessage struct {
	Event domain.Event `json:"event"`
	X     float64      `json:"x"`
	Y     float64      `json:"y"`
}

type pointerCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type zoomCommand struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor"`
}

type panCommand struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type toggleCommand struct {
	Enabled bool `json:"enabled"`
}

type feedWindowCommand struct {
	Window string `json:"window"`
}

type pausedCommand struct {
	Paused bool `json:"paused"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans server messages out to every connected WebSocket viewer and
// applies their commands to the map and the feed.
type Hub struct {
	upgrader websocket.Upgrader
	scene    MapController
	feed     FeedController
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	replay  map[string][]byte
	closed  bool
}

// NewHub creates a hub with no clients.
func NewHub(scene MapController, feed FeedController, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		scene:    scene,
		feed:     feed,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		clients:  make(map[*client]struct{}),
		replay:   make(map[string][]byte),
	}
}

// Broadcast sends a message to every client. The latest update and status
// are also replayed to clients that connect later.
func (h *Hub) Broadcast(msgType string, data any) {
	frame, err := encode(msgType, data)
	if err != nil {
		h.logger.Error("encode websocket message", "type", msgType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if msgType == MsgUpdate || msgType == MsgStatus {
		h.replay[msgType] = frame
	}
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("websocket client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

// MapCallbacks returns map callbacks that forward interaction to viewers.
func (h *Hub) MapCallbacks() mapview.Callbacks {
	return mapview.Callbacks{
		OnHover: func(e domain.Event, x, y float64) {
			h.Broadcast(MsgHover, HoverMessage{Event: e, X: x, Y: y})
		},
		OnHoverOut:        func() { h.Broadcast(MsgHoverOut, nil) },
		OnQuakeClick:      func(e domain.Event) { h.Broadcast(MsgQuakeClick, e) },
		OnBackgroundClick: func() { h.Broadcast(MsgBackgroundClick, nil) },
		OnZoomStateChange: func(zoomed bool) { h.Broadcast(MsgZoomState, map[string]bool{"zoomed": zoomed}) },
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run advances map animations every FrameInterval and pushes the scene while
// anything moves. It returns when ctx is cancelled, after disconnecting all
// clients.
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(FrameInterval)
	defer ticker.Stop()

	moving := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.Chan():
			busy := h.scene.Tick()
			if busy || moving {
				h.Broadcast(MsgScene, h.scene.View())
			}
			moving = busy
		}
	}
}

// ServeHTTP upgrades the request and serves one viewer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close() //nolint:errcheck // hub shut down
		return
	}
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	frame, err := encode(MsgScene, h.scene.View())

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.WebSocketClients.Inc()
	for _, t := range []string{MsgStatus, MsgUpdate} {
		if frame, ok := h.replay[t]; ok {
			c.send <- frame
		}
	}
	if err == nil {
		c.send <- frame
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.metrics.WebSocketClients.Dec()
	c.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close() //nolint:errcheck // connection is done
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // surfaced by ReadMessage
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if err := h.handle(message); err != nil {
			h.logger.Debug("rejected websocket command", "error", err)
			if frame, encErr := encode(MsgError, map[string]string{"error": err.Error()}); encErr == nil {
				h.trySend(c, frame)
			}
		}
	}
}

func (h *Hub) trySend(c *client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // connection is done
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // surfaced by the write
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck // best-effort close
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // surfaced by the write
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle applies one client command. View-changing commands push the new
// scene to every client.
func (h *Hub) handle(message []byte) error {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}

	switch env.Type {
	case CmdPointerMove:
		var cmd pointerCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.scene.PointerMove(cmd.X, cmd.Y)
		return nil
	case CmdPointerLeave:
		h.scene.PointerLeave()
		return nil
	case CmdClick:
		var cmd pointerCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.scene.Click(cmd.X, cmd.Y)
	case CmdZoom:
		var cmd zoomCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.scene.Zoom(cmd.X, cmd.Y, cmd.Factor)
	case CmdPan:
		var cmd panCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.scene.Pan(cmd.DX, cmd.DY)
	case CmdResetZoom:
		h.scene.ResetZoom()
	case CmdHeatmap:
		var cmd toggleCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.scene.SetHeatmapEnabled(cmd.Enabled)
	case CmdTectonic:
		var cmd toggleCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.scene.SetTectonicEnabled(cmd.Enabled)
	case CmdFeedWindow:
		var cmd feedWindowCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		window, err := domain.ParseFeedWindow(cmd.Window)
		if err != nil {
			return err
		}
		h.feed.SetFeedWindow(window)
		return nil
	case CmdPaused:
		var cmd pausedCommand
		if err := decodeData(env, &cmd); err != nil {
			return err
		}
		h.feed.SetPaused(cmd.Paused)
		return nil
	default:
		return fmt.Errorf("unknown command %q", env.Type)
	}

	h.Broadcast(MsgScene, h.scene.View())
	return nil
}

func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return errors.New(env.Type + ": missing data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}

func encode(msgType string, data any) ([]byte, error) {
	env := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: msgType, Data: data}
	return json.Marshal(env)
}
