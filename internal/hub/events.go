package hub

import (
	"encoding/json"
	"time"
)

// Event is a single outbound push delivered to a connection's outbox. The
// transport layer marshals events into wire frames; the hub never touches the
// socket itself.
type Event interface {
	EventType() string
}

// LocationUpdate is fanned out to every subscriber of an order topic when a
// driver reports a fix newer than the held one.
type LocationUpdate struct {
	DriverID   string    `json:"driver_id"`
	OrderID    string    `json:"order_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (LocationUpdate) EventType() string { return "location_update" }

// TopicClosed tells subscribers the topic is gone (order completed/cancelled,
// server-side teardown). Receivers should not expect further updates.
type TopicClosed struct {
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

func (TopicClosed) EventType() string { return "topic_closed" }

// Notification carries an opaque one-shot payload to a specific user's
// connections. The hub forwards the payload without interpreting it.
type Notification struct {
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

func (Notification) EventType() string { return "notification" }
