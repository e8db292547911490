package service

import (
	"context"
	"fmt"

	"cargo-market/internal/domain/geo"
	"cargo-market/internal/general/contracts"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"
)

// ReportLocation ingests one driver GPS fix: the hub validates entitlement and
// order state and fans the fix out to subscribers, then the fix is archived
// and the fanout exchange is fed for downstream consumers.
//
// Persistence and publish failures after a successful hub accept are logged
// and swallowed: subscribers already saw the update, and the audit queue is
// best effort by design of the fanout exchange.
func (service *trackingService) ReportLocation(ctx context.Context, in ports.ReportLocationInput) (ports.ReportLocationResult, error) {
	corrID := generateCorrelationID()

	conn, ok := service.hub.Connection(in.ConnID)
	if !ok {
		return ports.ReportLocationResult{}, fmt.Errorf("unknown connection %q: %w", in.ConnID, hub.ErrNotFound)
	}

	// the reporting identity is the connection's identity; clients never name
	// a driver id themselves
	fix, err := geo.NewFix(conn.UserID, in.OrderID, in.Latitude, in.Longitude, in.RecordedAt)
	if err != nil {
		return ports.ReportLocationResult{}, err
	}

	broadcast, err := service.hub.ReportLocation(ctx, in.ConnID, fix)
	if err != nil {
		return ports.ReportLocationResult{}, err
	}

	// archive every accepted fix, including the out-of-order ones that were
	// held back from broadcast; the latest table stays monotonic on its own
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.locations.Archive(ctx, fix); err != nil {
			return err
		}
		return service.locations.UpsertLatest(ctx, fix)
	})
	if err != nil {
		service.logger.Error(ctx, "location_persist_failed", "Failed to persist location fix", err, map[string]any{
			"driver_id":  fix.DriverID,
			"order_id":   fix.OrderID,
			"request_id": corrID,
		})
	}

	if broadcast {
		msg := contracts.LocationUpdateMessage{
			DriverID:  fix.DriverID,
			OrderID:   fix.OrderID,
			Location:  contracts.GeoPoint{Lat: fix.Latitude, Lng: fix.Longitude},
			Timestamp: fix.RecordedAt,
			Envelope: contracts.Envelope{
				Producer:      "tracking-service",
				CorrelationID: corrID,
			},
		}
		if err := service.broadcastLocationUpdate(ctx, msg); err != nil {
			service.logger.Error(ctx, "location_update_publish_failed", "Failed to broadcast location update to RabbitMQ", err, map[string]any{
				"driver_id":  fix.DriverID,
				"order_id":   fix.OrderID,
				"request_id": corrID,
			})
		}
	}

	service.logger.Info(ctx, "location_reported", "Driver location fix processed", map[string]any{
		"driver_id":  fix.DriverID,
		"order_id":   fix.OrderID,
		"lat":        fix.Latitude,
		"lng":        fix.Longitude,
		"broadcast":  broadcast,
		"request_id": corrID,
	})

	return ports.ReportLocationResult{Broadcast: broadcast}, nil
}
