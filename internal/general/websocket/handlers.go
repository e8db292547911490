package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cargo-market/internal/general/contracts"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"

	"github.com/gorilla/websocket"
)

// handleSubscribe parses a subscribe frame and asks the hub to register interest.
func (ws *WebSocket) handleSubscribe(ctx context.Context, conn *websocket.Conn, connID string, data json.RawMessage) {
	var req contracts.WSSubscribeData
	if err := json.Unmarshal(data, &req); err != nil {
		ws.writeErrorFrame(conn, "bad subscribe payload")
		return
	}

	topic, err := hub.ParseTopic(req.Topic)
	if err != nil {
		ws.writeErrorFrame(conn, "unknown topic format")
		return
	}

	if err := ws.hub.Subscribe(ctx, connID, topic); err != nil {
		ws.logger.Error(ctx, "ws_subscribe_failed", "Subscription rejected", err, map[string]any{
			"conn_id": connID,
			"topic":   topic.String(),
		})
		ws.writeErrorFrame(conn, hubErrorText(err))
		return
	}

	_ = ws.writeJSON(conn, contracts.WSServerFrame{
		Type: "subscribe_ack",
		Data: contracts.WSAck{Status: "ok", Topic: topic.String()},
	})
}

// handleUnsubscribe drops the connection's interest in a topic. Always acks:
// removing an unknown subscription is a no-op, not an error.
func (ws *WebSocket) handleUnsubscribe(ctx context.Context, conn *websocket.Conn, connID string, data json.RawMessage) {
	var req contracts.WSSubscribeData
	if err := json.Unmarshal(data, &req); err != nil {
		ws.writeErrorFrame(conn, "bad unsubscribe payload")
		return
	}

	topic, err := hub.ParseTopic(req.Topic)
	if err != nil {
		ws.writeErrorFrame(conn, "unknown topic format")
		return
	}

	ws.hub.Unsubscribe(ctx, connID, topic)
	_ = ws.writeJSON(conn, contracts.WSServerFrame{
		Type: "unsubscribe_ack",
		Data: contracts.WSAck{Status: "ok", Topic: topic.String()},
	})
}

// handleLocationUpdate routes a driver fix through the tracking service, which
// persists it, fans it out and publishes it for downstream audit.
func (ws *WebSocket) handleLocationUpdate(ctx context.Context, conn *websocket.Conn, connID string, data json.RawMessage) {
	var req contracts.WSLocationData
	if err := json.Unmarshal(data, &req); err != nil {
		ws.writeErrorFrame(conn, "bad location payload")
		return
	}

	var recordedAt time.Time
	if req.RecordedAt != "" {
		ts, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			ws.writeErrorFrame(conn, "recorded_at must be RFC3339")
			return
		}
		recordedAt = ts
	}

	result, err := ws.tracking.ReportLocation(ctx, ports.ReportLocationInput{
		ConnID:     connID,
		OrderID:    req.OrderID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		RecordedAt: recordedAt,
	})
	if err != nil {
		ws.logger.Error(ctx, "ws_location_rejected", "Location fix rejected", err, map[string]any{
			"conn_id":  connID,
			"order_id": req.OrderID,
		})
		ws.writeErrorFrame(conn, hubErrorText(err))
		return
	}

	status := "broadcast"
	if !result.Broadcast {
		// accepted for audit, held back from fan-out as out of order
		status = "held"
	}
	_ = ws.writeJSON(conn, contracts.WSServerFrame{
		Type: "report_ack",
		Data: contracts.WSAck{Status: status},
	})
}

// hubErrorText maps hub errors to stable client-facing strings.
func hubErrorText(err error) string {
	switch {
	case errors.Is(err, hub.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, hub.ErrForbidden):
		return "forbidden"
	case errors.Is(err, hub.ErrInvalidState):
		return "invalid order state"
	case errors.Is(err, hub.ErrNotFound):
		return "not found"
	default:
		return "internal error"
	}
}
