package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cargo-market/internal/domain/user"
	"cargo-market/internal/general/jwt"
	"cargo-market/internal/general/logger"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocket handles WebSocket connections with JWT auth. A single endpoint
// serves every role; entitlement decisions live in the hub, not here.
type WebSocket struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	hub        *hub.Hub
	tracking   ports.TrackingService
	writeLocks sync.Map // key: *websocket.Conn -> *sync.Mutex
}

// NewWebSocket creates a WebSocket transport bound to the hub and tracking service.
func NewWebSocket(logger *logger.Logger, jwtMgr *jwt.Manager, h *hub.Hub, tracking ports.TrackingService) *WebSocket {
	return &WebSocket{
		logger:   logger,
		jwtMgr:   jwtMgr,
		hub:      h,
		tracking: tracking,
	}
}

// pingLoop pings the peer every 30s until done closes (the hub closes it on
// disconnect) or a ping fails.
func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			mu := ws.lockOf(conn)
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				// Close socket to unblock reader; goroutine exits.
				_ = conn.Close()
				ws.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err, nil)
				return
			}
		}
	}
}

// Serve handles a client WebSocket connection end to end.
func (ws *WebSocket) Serve(w http.ResponseWriter, r *http.Request) {
	// 1) Upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	// Teardown order (LIFO on return):
	defer conn.Close()               // close the socket last
	defer ws.writeLocks.Delete(conn) // forget per-connection mutex (idempotent)

	// 2) Set auth deadline
	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		ws.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		ws.sendAuthError(conn, "internal server error")
		return
	}

	// 3) First frame must be the auth message
	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			ws.logger.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			ws.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		ws.sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		return
	}

	if msgType != websocket.TextMessage {
		ws.logger.Error(r.Context(), "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		ws.sendAuthError(conn, "auth message must be in text format")
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, ws.jwtMgr, user.RoleCustomer, user.RoleDriver, user.RoleAdmin)
	if err != nil {
		ws.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		ws.sendAuthError(conn, "authentication failed: invalid token")
		return
	}
	userID := res.Claims.Subject
	role := res.Claims.Role

	// 4) Register with the hub; this hands us the outbox to drain
	client := ws.hub.Connect(r.Context(), userID, role)
	defer ws.hub.Disconnect(r.Context(), client.ID)

	// 5) Send authentication success message
	if err := ws.sendAuthSuccess(conn, userID, role); err != nil {
		ws.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}

	ws.logger.Info(r.Context(), "ws_connected", "Client WebSocket connected",
		map[string]any{"user_id": userID, "role": role.String(), "conn_id": client.ID})

	// 6) Reset read deadline after auth
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// 7) Writer pump: drain the hub outbox onto the socket
	go ws.eventPump(conn, client)

	// 8) Ping loop (every 30s) using the per-connection writer lock
	go ws.pingLoop(r.Context(), conn, client.Done())

	// 9) Read loop: route frames
	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Error(r.Context(), "ws_unexpected_close", "Client connection closed unexpectedly", err, map[string]any{
					"user_id": userID,
				})
				ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				ws.logger.Info(r.Context(), "ws_connection_closed", "Client connection closed normally", map[string]any{
					"user_id": userID,
				})
				ws.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			break
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}

		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","data":{"error":"bad json"}}`))
			continue
		}

		switch msg.Type {
		case "subscribe":
			ws.handleSubscribe(r.Context(), conn, client.ID, msg.Data)

		case "unsubscribe":
			ws.handleUnsubscribe(r.Context(), conn, client.ID, msg.Data)

		case "location_update":
			ws.handleLocationUpdate(r.Context(), conn, client.ID, msg.Data)

		default:
			_ = ws.wsWriteMessage(conn, websocket.TextMessage, []byte(`{"type":"error","data":{"error":"unknown message type"}}`))
		}
	}
}
