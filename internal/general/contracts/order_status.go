package contracts

import "time"

// OrderStatusMessage is published by the order back-office on every status
// change. Routing key: "order.status.{status}" on ExchangeOrderTopic. The
// tracking service consumes it to tear down topics whose order is no longer
// trackable (including out-of-band admin cancels).
type OrderStatusMessage struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"` // DRAFT|PENDING_*|IN_PROGRESS|HEADING_TO_ORIGIN|COMPLETED|CANCELLED
	DriverID  string    `json:"driver_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
