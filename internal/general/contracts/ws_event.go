package contracts

import "encoding/json"

// WSClientFrame is the minimal envelope every inbound WebSocket message uses:
// { "type": "...", "data": { ... } }.
type WSClientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WSSubscribeData is the data of "subscribe"/"unsubscribe" frames.
type WSSubscribeData struct {
	Topic string `json:"topic"` // "order:<id>" or "user:<id>"
}

// WSLocationData is the data of "location_update" frames sent by drivers.
type WSLocationData struct {
	OrderID    string  `json:"order_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	RecordedAt string  `json:"recorded_at,omitempty"` // ISO-8601; defaults to server time
}

// WSServerFrame is the outbound envelope mirrored back to clients.
type WSServerFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// WSError is the data of "error" frames.
type WSError struct {
	Error string `json:"error"`
}

// WSAck is the data of acknowledgement frames ("subscribe_ack", "report_ack").
type WSAck struct {
	Status  string `json:"status"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message,omitempty"`
}
