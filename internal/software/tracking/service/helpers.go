package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"cargo-market/internal/general/contracts"
)

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405")
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// broadcastLocationUpdate broadcasts a location update using the fanout exchange.
// Fanout ignores routing keys; pass an empty routing key.
func (service *trackingService) broadcastLocationUpdate(ctx context.Context, msg contracts.LocationUpdateMessage) error {
	// marshal and publish (fanout exchange -> routingKey must be "")
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := service.pub.Publish(contracts.ExchangeLocationFanout, "", body); err != nil {
		return err
	}

	service.logger.Debug(ctx, "location_update_published", "Broadcasted location update to RabbitMQ", map[string]any{
		"driver_id": msg.DriverID,
		"order_id":  msg.OrderID,
		"lat":       msg.Location.Lat,
		"lng":       msg.Location.Lng,
	})

	return nil
}
