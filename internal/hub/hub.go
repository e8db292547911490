package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"cargo-market/internal/domain/geo"
	"cargo-market/internal/domain/order"
	"cargo-market/internal/domain/user"
	"cargo-market/internal/general/logger"
)

// Hub is the realtime order-tracking and notification core. It owns the
// connection registry, the topic subscription table and the latest-fix table,
// and fans events out through per-connection outboxes.
//
// Every public method is safe for concurrent use. Directory reads and any
// other I/O happen strictly outside the table locks.
type Hub struct {
	directory OrderDirectory
	logger    *logger.Logger

	registry *Registry
	subs     *Subscriptions
	latest   *latestTable
}

// New constructs a Hub around the injected order directory.
func New(directory OrderDirectory, log *logger.Logger) *Hub {
	return &Hub{
		directory: directory,
		logger:    log,
		registry:  NewRegistry(),
		subs:      NewSubscriptions(),
		latest:    newLatestTable(),
	}
}

// Connect records a fresh connection for an already-validated identity and
// returns it. The transport drains conn.Events() and calls Disconnect when
// the socket closes.
func (h *Hub) Connect(ctx context.Context, userID string, role user.Role) *Conn {
	conn := h.registry.Connect(userID, role)
	h.logger.Info(ctx, "hub_connected", "Client connection registered", map[string]any{
		"conn_id": conn.ID,
		"user_id": userID,
		"role":    role.String(),
	})
	return conn
}

// Disconnect removes a connection and cascades removal of every subscription
// it owns. Idempotent and locally complete: no caller waits on anything.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	conn := h.registry.Disconnect(connID)
	h.subs.DropConn(connID)
	if conn == nil {
		return
	}
	h.logger.Info(ctx, "hub_disconnected", "Client connection removed", map[string]any{
		"conn_id": connID,
		"user_id": conn.UserID,
	})
}

// Connection looks up a live connection by id.
func (h *Hub) Connection(connID string) (*Conn, bool) {
	conn := h.registry.Get(connID)
	return conn, conn != nil
}

// ConnectionsFor exposes the live connections of a user (notification path).
func (h *Hub) ConnectionsFor(userID string) []*Conn {
	return h.registry.ConnectionsFor(userID)
}

// SubscribersOf snapshots the connection ids subscribed to topic.
func (h *Hub) SubscribersOf(topic Topic) []string {
	return h.subs.SubscribersOf(topic)
}

// Subscribe registers the connection's interest in a topic after checking
// entitlement:
//   - order topics: the customer of record, the assigned driver, or any admin;
//   - user topics: the owning identity or any admin.
//
// Subscribing twice is a no-op yielding the same subscriber set.
func (h *Hub) Subscribe(ctx context.Context, connID string, topic Topic) error {
	conn := h.registry.Get(connID)
	if conn == nil {
		return fmt.Errorf("unknown connection %q: %w", connID, ErrNotFound)
	}
	if !conn.Role.Valid() {
		return ErrUnauthorized
	}

	switch {
	case topic.IsOrder():
		// directory read happens before any table lock is taken
		state, err := h.directory.GetTrackingState(ctx, topic.ID())
		if err != nil {
			return fmt.Errorf("order %q: %w", topic.ID(), ErrNotFound)
		}
		if err := entitledToOrder(conn, state); err != nil {
			return err
		}
	case topic.IsUser():
		if conn.UserID != topic.ID() && !conn.Role.IsAdmin() {
			return ErrForbidden
		}
	default:
		return fmt.Errorf("topic %q: %w", topic, ErrNotFound)
	}

	h.subs.Add(connID, topic)
	h.logger.Debug(ctx, "hub_subscribed", "Connection subscribed to topic", map[string]any{
		"conn_id": connID,
		"topic":   topic.String(),
	})
	return nil
}

// Unsubscribe removes the connection's interest in a topic. Removing an
// unknown pair is a no-op, not an error.
func (h *Hub) Unsubscribe(ctx context.Context, connID string, topic Topic) {
	h.subs.Remove(connID, topic)
	h.logger.Debug(ctx, "hub_unsubscribed", "Connection unsubscribed from topic", map[string]any{
		"conn_id": connID,
		"topic":   topic.String(),
	})
}

// ReportLocation ingests a driver fix for an order. Preconditions: the
// connection's identity is the order's assigned driver and the order is in a
// trackable status, re-checked against the directory on every call.
//
// It returns whether the fix was broadcast: an out-of-order fix (not newer
// than the held one) is accepted but never fanned out, so subscribers observe
// monotonic timestamps per (driver, order) pair.
func (h *Hub) ReportLocation(ctx context.Context, connID string, fix geo.Fix) (bool, error) {
	conn := h.registry.Get(connID)
	if conn == nil {
		return false, fmt.Errorf("unknown connection %q: %w", connID, ErrNotFound)
	}
	if !conn.Role.IsDriver() {
		return false, ErrUnauthorized
	}

	state, err := h.directory.GetTrackingState(ctx, fix.OrderID)
	if err != nil {
		return false, fmt.Errorf("order %q: %w", fix.OrderID, ErrNotFound)
	}
	if !state.DriverAssigned(conn.UserID) {
		return false, ErrForbidden
	}
	if !state.CanStream() {
		// a terminal order proactively tears its topic down instead of
		// letting subscribers dangle
		if state.Status.Terminal() {
			h.CloseOrderTopic(ctx, fix.OrderID, "order "+state.Status.String())
		}
		return false, fmt.Errorf("order %q status %s: %w", fix.OrderID, state.Status, ErrInvalidState)
	}

	if !h.latest.Apply(fix) {
		h.logger.Debug(ctx, "hub_fix_stale", "Out-of-order fix held back from broadcast", map[string]any{
			"driver_id": fix.DriverID,
			"order_id":  fix.OrderID,
		})
		return false, nil
	}

	h.broadcast(ctx, OrderTopic(fix.OrderID), LocationUpdate{
		DriverID:   fix.DriverID,
		OrderID:    fix.OrderID,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		RecordedAt: fix.RecordedAt,
	})
	return true, nil
}

// Notify pushes an opaque payload to every live connection of userID. An
// identity with no connections is success: the event is simply dropped, there
// is no durable inbox in this core.
func (h *Hub) Notify(ctx context.Context, userID string, payload json.RawMessage) int {
	event := Notification{UserID: userID, Payload: payload}

	delivered := 0
	for _, conn := range h.registry.ConnectionsFor(userID) {
		if conn.deliver(event) {
			delivered++
			continue
		}
		h.evict(ctx, conn)
	}

	h.logger.Debug(ctx, "hub_notified", "Notification dispatched", map[string]any{
		"user_id":   userID,
		"delivered": delivered,
	})
	return delivered
}

// CloseOrderTopic signals TopicClosed to every subscriber of an order topic
// and tears the topic down. Invoked when an order leaves a trackable status,
// including out-of-band transitions observed via the status event stream.
func (h *Hub) CloseOrderTopic(ctx context.Context, orderID, reason string) {
	topic := OrderTopic(orderID)
	event := TopicClosed{Topic: topic.String(), Reason: reason}

	for _, connID := range h.subs.DropTopic(topic) {
		if conn := h.registry.Get(connID); conn != nil {
			if !conn.deliver(event) {
				h.evict(ctx, conn)
			}
		}
	}
	h.latest.DropOrder(orderID)

	h.logger.Info(ctx, "hub_topic_closed", "Order topic torn down", map[string]any{
		"topic":  topic.String(),
		"reason": reason,
	})
}

// Latest returns the most recent in-memory fix for a (driver, order) pair.
func (h *Hub) Latest(driverID, orderID string) (geo.Fix, bool) {
	return h.latest.Latest(driverID, orderID)
}

// ConnectionCount reports how many connections are live (health surface).
func (h *Hub) ConnectionCount() int {
	return h.registry.Len()
}

// broadcast delivers an event to every subscriber of a topic. A stale entry
// (a subscription whose connection is no longer registered) is pruned silently
// rather than treated as an error; a full outbox evicts the laggard.
func (h *Hub) broadcast(ctx context.Context, topic Topic, event Event) {
	for _, connID := range h.subs.SubscribersOf(topic) {
		conn := h.registry.Get(connID)
		if conn == nil {
			h.subs.Remove(connID, topic)
			continue
		}
		if !conn.deliver(event) {
			h.evict(ctx, conn)
		}
	}
}

// evict drops a connection that is closed or can no longer keep up.
func (h *Hub) evict(ctx context.Context, conn *Conn) {
	h.logger.Info(ctx, "hub_evicted", "Slow or closed connection evicted", map[string]any{
		"conn_id": conn.ID,
		"user_id": conn.UserID,
	})
	h.Disconnect(ctx, conn.ID)
}

// entitledToOrder applies the order-topic entitlement rule.
func entitledToOrder(conn *Conn, state order.TrackingState) error {
	switch conn.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleCustomer:
		if state.CustomerOfRecord(conn.UserID) {
			return nil
		}
	case user.RoleDriver:
		if state.DriverAssigned(conn.UserID) {
			return nil
		}
	default:
		return ErrUnauthorized
	}
	return ErrForbidden
}
