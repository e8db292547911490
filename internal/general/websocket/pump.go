package websocket

import (
	"context"
	"time"

	"cargo-market/internal/general/contracts"
	"cargo-market/internal/hub"

	"github.com/gorilla/websocket"
)

// eventPump drains the hub outbox of a connection onto its socket. It exits
// when the hub closes the connection (eviction, disconnect) or a write fails;
// closing the raw socket unblocks the read loop, which then tears down the rest.
func (ws *WebSocket) eventPump(conn *websocket.Conn, client *hub.Conn) {
	for {
		select {
		case <-client.Done():
			_ = conn.Close()
			return
		case event, ok := <-client.Events():
			if !ok {
				_ = conn.Close()
				return
			}
			if err := ws.writeJSON(conn, serverFrame(event)); err != nil {
				ws.logger.Error(context.Background(), "ws_event_write_failed", "Failed to push event to client", err, map[string]any{
					"conn_id": client.ID,
					"event":   event.EventType(),
				})
				_ = conn.Close()
				return
			}
		}
	}
}

// serverFrame translates a hub event into its wire representation.
func serverFrame(event hub.Event) contracts.WSServerFrame {
	switch e := event.(type) {
	case hub.LocationUpdate:
		return contracts.WSServerFrame{
			Type: "location_update",
			Data: map[string]any{
				"driver_id":   e.DriverID,
				"order_id":    e.OrderID,
				"latitude":    e.Latitude,
				"longitude":   e.Longitude,
				"recorded_at": e.RecordedAt.UTC().Format(time.RFC3339),
			},
		}
	case hub.TopicClosed:
		return contracts.WSServerFrame{
			Type: "topic_closed",
			Data: map[string]any{
				"topic":  e.Topic,
				"reason": e.Reason,
			},
		}
	case hub.Notification:
		return contracts.WSServerFrame{
			Type: "notification",
			Data: e.Payload,
		}
	default:
		return contracts.WSServerFrame{Type: event.EventType()}
	}
}
