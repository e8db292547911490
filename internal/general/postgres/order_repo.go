package postgres

import (
	"context"
	"errors"
	"fmt"

	"cargo-market/internal/domain/order"
	"cargo-market/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrOrderNotFound is returned when an order id matches no row.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepo reads orders using pgx and plain SQL.
//
// Unlike the write-side repositories it holds the pool directly: tracking
// reads happen on the hot path, outside any UnitOfWork.
type OrderRepo struct {
	pool *pgxpool.Pool
}

// NewOrderRepo constructs a new OrderRepo.
func NewOrderRepo(pool *pgxpool.Pool) ports.OrderRepository {
	return &OrderRepo{pool: pool}
}

// GetTrackingState returns the tracking view of an order.
func (repo *OrderRepo) GetTrackingState(ctx context.Context, orderID string) (order.TrackingState, error) {
	var (
		state     order.TrackingState
		rawStatus string
	)

	err := repo.pool.QueryRow(ctx, `
		SELECT id, status, customer_id, assigned_driver_id
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&state.OrderID,
		&rawStatus,
		&state.CustomerID,
		&state.AssignedDriverID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.TrackingState{}, fmt.Errorf("order %q: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return order.TrackingState{}, fmt.Errorf("query order tracking state: %w", err)
	}

	status, err := order.ParseStatus(rawStatus)
	if err != nil {
		return order.TrackingState{}, fmt.Errorf("order %q: %w", orderID, err)
	}
	state.Status = status

	return state, nil
}
