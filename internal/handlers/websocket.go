package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for all WebSocket messages
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams turn events to connected clients. Each turn
// transition emitted by the orchestrator is broadcast as a "turn_event"
// message; slow clients are disconnected rather than blocking the
// orchestrator's observer callback.
type WebSocketHandler struct {
	orchestrator     interfaces.OrchestratorService
	logger           arbor.ILogger
	mu               sync.RWMutex
	clients          map[*websocket.Conn]chan []byte
	unsubscribe      func()
	serverInstanceID string
}

// NewWebSocketHandler creates a WebSocket handler subscribed to turn events
func NewWebSocketHandler(orchestrator interfaces.OrchestratorService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		orchestrator:     orchestrator,
		logger:           logger,
		clients:          make(map[*websocket.Conn]chan []byte),
		serverInstanceID: uuid.New().String(),
	}

	h.unsubscribe = orchestrator.Subscribe(h.broadcastTurnEvent)

	logger.Info().
		Str("server_instance_id", h.serverInstanceID).
		Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket handles GET /ws/turns upgrade requests
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	send := make(chan []byte, 64)

	h.mu.Lock()
	h.clients[conn] = send
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Str("remote", r.RemoteAddr).
		Int("clients", count).
		Msg("WebSocket client connected")

	h.sendHello(send)

	common.SafeGo(h.logger, "websocket write loop", func() { h.writeLoop(conn, send) })
	common.SafeGo(h.logger, "websocket read loop", func() { h.readLoop(conn) })
}

// Close unsubscribes from turn events and disconnects all clients
func (h *WebSocketHandler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]chan []byte)
	h.mu.Unlock()
}

// broadcastTurnEvent fans a turn event out to all connected clients.
// Runs on the orchestrator's goroutine, so sends are non-blocking: a
// client with a full buffer drops the event.
func (h *WebSocketHandler) broadcastTurnEvent(event models.TurnEvent) {
	data, err := json.Marshal(WSMessage{Type: "turn_event", Payload: event})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal turn event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, send := range h.clients {
		select {
		case send <- data:
		default:
			h.logger.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Msg("WebSocket client buffer full, dropping event")
		}
	}
}

func (h *WebSocketHandler) sendHello(send chan []byte) {
	data, err := json.Marshal(WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
		},
	})
	if err != nil {
		return
	}

	select {
	case send <- data:
	default:
	}
}

func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, send chan []byte) {
	for data := range send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, removing client")
			h.removeClient(conn)
			return
		}
	}
}

// readLoop drains client messages so pings are answered and close frames
// are observed
func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.removeClient(conn)
			return
		}
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
	}
}
