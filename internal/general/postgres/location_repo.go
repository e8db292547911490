package postgres

import (
	"context"
	"fmt"

	"cargo-market/internal/domain/geo"
	"cargo-market/internal/ports"
)

// LocationRepo persists driver location fixes using pgx and plain SQL.
type LocationRepo struct{}

// NewLocationRepo constructs a new LocationRepo.
func NewLocationRepo() ports.LocationRepository {
	return &LocationRepo{}
}

// UpsertLatest stores fix as the latest known position for its (driver, order)
// pair. An older or equal fix leaves the row untouched, so the table stays
// monotonic per pair even when fixes arrive out of order.
func (repo *LocationRepo) UpsertLatest(ctx context.Context, fix geo.Fix) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// validate domain invariants
	if err := fix.Validate(); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_locations (driver_id, order_id, latitude, longitude, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (driver_id, order_id) DO UPDATE
		SET latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude,
		    recorded_at = EXCLUDED.recorded_at
		WHERE driver_locations.recorded_at < EXCLUDED.recorded_at
	`,
		fix.DriverID,
		fix.OrderID,
		fix.Latitude,
		fix.Longitude,
		fix.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert latest location: %w", err)
	}

	return nil
}

// Archive appends fix to the location history, regardless of ordering. Every
// accepted fix lands here, including the out-of-order ones held back from
// broadcast.
func (repo *LocationRepo) Archive(ctx context.Context, fix geo.Fix) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := fix.Validate(); err != nil {
		return err
	}

	var insertedID string
	err = tx.QueryRow(ctx, `
		INSERT INTO location_history (driver_id, order_id, latitude, longitude, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		fix.DriverID,
		fix.OrderID,
		fix.Latitude,
		fix.Longitude,
		fix.RecordedAt,
	).Scan(&insertedID)
	if err != nil {
		return fmt.Errorf("archive location fix: %w", err)
	}

	return nil
}
