package contracts

import "time"

// LocationUpdateMessage is broadcast by the tracking service for every fix it
// fans out, so sibling services (analytics, history writers) can consume them.
// Exchange: ExchangeLocationFanout (fanout, no routing key).
type LocationUpdateMessage struct {
	DriverID  string    `json:"driver_id"`
	OrderID   string    `json:"order_id"`
	Location  GeoPoint  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
