package ports

import (
	"context"
	"encoding/json"
	"time"
)

// ReportLocationInput carries one GPS fix reported by a connected driver.
type ReportLocationInput struct {
	ConnID     string
	OrderID    string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

// ReportLocationResult describes what happened to a reported fix.
type ReportLocationResult struct {
	// Broadcast is true when the fix was newer than the last accepted one
	// and was fanned out to order subscribers.
	Broadcast bool
}

// NotifyUserInput targets every live connection of one user with a payload.
type NotifyUserInput struct {
	UserID  string
	Payload json.RawMessage
}

// NotifyUserResult reports how many live connections received the notice.
type NotifyUserResult struct {
	Delivered int
}

// Publisher sends a message to a broker exchange with a routing key.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// TrackingService is the application surface of the realtime tracking hub.
type TrackingService interface {
	// ReportLocation validates, persists and fans out a driver location fix.
	ReportLocation(ctx context.Context, input ReportLocationInput) (ReportLocationResult, error)
	// NotifyUser pushes a payload to every live connection of a user.
	// Zero delivered connections is not an error.
	NotifyUser(ctx context.Context, input NotifyUserInput) (NotifyUserResult, error)
	// StartBackgroundConsumers launches the RabbitMQ consumers that feed the
	// hub: ticket reply notices and order status events.
	StartBackgroundConsumers(ctx context.Context)
}
