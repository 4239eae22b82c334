package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

// ==============================================================================
// 1. Stream Configuration & Constants
// ==============================================================================

const (
	// Comment line sent on idle SSE streams so proxies keep them open.
	DefaultHeartbeat = 15 * time.Second

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// The stream is one-way; inbound frames are control traffic only.
	maxMessageSize = 512
)

// EventsHandler streams health.changed and session.invalidated events to the
// UI over SSE or WebSocket. Every stream opens with a health snapshot.
type EventsHandler struct {
	source    EventSource
	health    HealthReader
	origins   []string
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewEventsHandler(source EventSource, health HealthReader, allowedOrigins []string) *EventsHandler {
	h := &EventsHandler{
		source:    source,
		health:    health,
		origins:   allowedOrigins,
		heartbeat: DefaultHeartbeat,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// WithHeartbeat overrides the SSE keep-alive period.
func (h *EventsHandler) WithHeartbeat(d time.Duration) *EventsHandler {
	if d > 0 {
		h.heartbeat = d
	}
	return h
}

// checkOrigin accepts non-browser clients, same-host pages and the CORS
// allow-list.
func (h *EventsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (h *EventsHandler) snapshot() domain.Event {
	return domain.NewEvent(domain.TopicHealth, domain.EventHealthChanged, h.health.State())
}

// subscribe merges the health and session topics into one channel that closes
// when ctx ends or both topics close.
func (h *EventsHandler) subscribe(ctx context.Context) <-chan domain.Event {
	health, cancelHealth := h.source.Subscribe(domain.TopicHealth)
	session, cancelSession := h.source.Subscribe(domain.TopicSession)

	out := make(chan domain.Event)
	go func() {
		defer close(out)
		defer cancelHealth()
		defer cancelSession()

		for health != nil || session != nil {
			var (
				e  domain.Event
				ok bool
			)
			select {
			case <-ctx.Done():
				return
			case e, ok = <-health:
				if !ok {
					health = nil
					continue
				}
			case e, ok = <-session:
				if !ok {
					session = nil
					continue
				}
			}

			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// ==============================================================================
// 2. Server-Sent Events
// ==============================================================================

// Stream handles GET /bridge/events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events := h.subscribe(ctx)

	w.WriteHeader(http.StatusOK)
	if err := writeSSE(w, h.snapshot()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Error().Err(err).Msg("event stream cannot be flushed")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("SSE client disconnected")
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, e); err != nil {
				logger.Warn().Err(err).Msg("failed to write to SSE client")
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		// Force push the buffer to the UI
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return err
}

// ==============================================================================
// 3. WebSocket
// ==============================================================================

// WebSocket handles GET /bridge/ws.
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	// The server stops watching a hijacked connection; the read pump decides
	// when the stream ends.
	ctx, cancel := context.WithCancel(r.Context())
	events := h.subscribe(ctx)

	go h.readPump(ws, cancel, logger)
	h.writePump(ctx, ws, events, logger)
	cancel()
}

func (h *EventsHandler) writePump(ctx context.Context, ws *websocket.Conn, events <-chan domain.Event, logger *zerolog.Logger) {
	defer ws.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(h.snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case e, ok := <-events:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream closed"))
				return
			}
			if err := ws.WriteJSON(e); err != nil {
				logger.Warn().Err(err).Msg("failed to write JSON to WebSocket")
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) readPump(ws *websocket.Conn, done context.CancelFunc, logger *zerolog.Logger) {
	defer done()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}
	}
}
