package hub

import (
	"context"

	"cargo-market/internal/domain/order"
)

// OrderDirectory is the narrow, injected view onto the order back-office.
// The hub re-reads it on every gated call instead of caching a verdict: the
// order status can change out-of-band (admin force-cancel) at any moment.
type OrderDirectory interface {
	GetTrackingState(ctx context.Context, orderID string) (order.TrackingState, error)
}

// OrderDirectoryFunc adapts a function to the OrderDirectory interface;
// handy for tests and small adapters.
type OrderDirectoryFunc func(ctx context.Context, orderID string) (order.TrackingState, error)

func (fn OrderDirectoryFunc) GetTrackingState(ctx context.Context, orderID string) (order.TrackingState, error) {
	return fn(ctx, orderID)
}
