package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ashureev/supportdesk/internal/identity"
	"github.com/ashureev/supportdesk/internal/session"
	"github.com/ashureev/supportdesk/internal/workflow"
)

const writeTimeout = 10 * time.Second

// Inbound message types.
const (
	typeMessage      = "message"
	typeUpdateStatus = "update_status"
	typePing         = "ping"
)

// Config holds channel settings.
type Config struct {
	AllowedOrigins []string
	IsDev          bool
	// MessageRate and MessageBurst throttle inbound messages per channel.
	// Excess messages wait rather than being dropped.
	MessageRate  float64
	MessageBurst int
}

// WebSocketHandler serves /ws/{clientID}.
type WebSocketHandler struct {
	sessions *session.Registry
	workflow *workflow.Orchestrator
	hub      *Hub
	cfg      Config
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(sessions *session.Registry, wf *workflow.Orchestrator, hub *Hub, cfg Config) *WebSocketHandler {
	return &WebSocketHandler{sessions: sessions, workflow: wf, hub: hub, cfg: cfg}
}

// inboundMessage is any client-to-server message.
type inboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
	WithDB  bool   `json:"with_db,omitempty"`
}

// wsEmitter writes workflow events to the socket as JSON text frames.
type wsEmitter struct {
	ws *websocket.Conn
}

func (e wsEmitter) Emit(ctx context.Context, event any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, e.ws, event)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "client_id", clientID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client_id", clientID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "client_id", clientID)
		}
	}()

	c := &conn{id: uuid.NewString(), ws: ws}
	h.hub.Register(clientID, c)
	defer h.hub.Unregister(clientID, c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	entry, release := h.sessions.Connect(ctx, clientID)
	defer release()
	out := wsEmitter{ws: ws}
	if err := h.workflow.SendInit(ctx, entry, out); err != nil {
		slog.Debug("Failed to send init", "error", err, "client_id", clientID)
		return
	}

	h.readLoop(ctx, ws, entry, out, clientID, c.id)
	slog.Info("Chat session ended", "client_id", clientID, "connection_id", c.id)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigins)
	return false
}

func (h *WebSocketHandler) newLimiter() *rate.Limiter {
	if h.cfg.MessageRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(h.cfg.MessageBurst, 1)
	return rate.NewLimiter(rate.Limit(h.cfg.MessageRate), burst)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, entry *session.Entry, out wsEmitter, clientID, connID string) {
	limiter := h.newLimiter()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "client_id", clientID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "client_id", clientID)
			}
			return
		}
		entry.Touch()

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Ignoring malformed message", "error", err, "client_id", clientID)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}

		switch msg.Type {
		case typeMessage:
			if err := h.workflow.HandleMessage(ctx, entry, msg.Content, out); err != nil {
				slog.Debug("Channel write failed during workflow", "error", err, "client_id", clientID, "connection_id", connID)
				return
			}
		case typeUpdateStatus:
			if err := h.workflow.HandleStatusUpdate(ctx, entry, msg.Status, msg.WithDB, out); err != nil {
				slog.Debug("Failed to send status update result", "error", err, "client_id", clientID)
				return
			}
		case typePing:
			if err := out.Emit(ctx, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		default:
			slog.Debug("Ignoring unknown message type", "type", msg.Type, "client_id", clientID)
		}
	}
}
