package ports

import (
	"context"

	"cargo-market/internal/domain/geo"
	"cargo-market/internal/domain/order"
)

// UnitOfWork runs a function within a database transaction boundary.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository reads order tracking state.
type OrderRepository interface {
	// GetTrackingState returns the tracking view of an order:
	// its status, the customer that placed it and the assigned driver, if any.
	GetTrackingState(ctx context.Context, orderID string) (order.TrackingState, error)
}

// LocationRepository persists driver location fixes.
// Both methods must be called within UnitOfWork.WithinTx.
type LocationRepository interface {
	// UpsertLatest stores fix as the latest known position for its
	// (driver, order) pair, but only if it is newer than what is stored.
	UpsertLatest(ctx context.Context, fix geo.Fix) error
	// Archive appends fix to the location history, regardless of ordering.
	Archive(ctx context.Context, fix geo.Fix) error
}
