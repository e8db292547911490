package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"cargo-market/internal/domain/geo"
	"cargo-market/internal/domain/order"
	"cargo-market/internal/domain/user"
	"cargo-market/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(states map[string]order.TrackingState) *Hub {
	directory := OrderDirectoryFunc(func(_ context.Context, orderID string) (order.TrackingState, error) {
		state, ok := states[orderID]
		if !ok {
			return order.TrackingState{}, ErrNotFound
		}
		return state, nil
	})
	return New(directory, logger.New("hub-test"))
}

func trackedOrder(orderID, customerID, driverID string, status order.Status) order.TrackingState {
	return order.TrackingState{
		OrderID:          orderID,
		Status:           status,
		CustomerID:       customerID,
		AssignedDriverID: &driverID,
	}
}

func fixAt(driverID, orderID string, unixSec int64) geo.Fix {
	return geo.Fix{
		DriverID:   driverID,
		OrderID:    orderID,
		Latitude:   51.1,
		Longitude:  71.4,
		RecordedAt: time.Unix(unixSec, 0),
	}
}

// drain empties a connection outbox without blocking.
func drain(conn *Conn) []Event {
	var events []Event
	for {
		select {
		case event, ok := <-conn.Events():
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestSubscribeEntitlement(t *testing.T) {
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}

	tests := []struct {
		name    string
		userID  string
		role    user.Role
		topic   Topic
		wantErr error
	}{
		{name: "customer of record", userID: "cust-1", role: user.RoleCustomer, topic: OrderTopic("order-42")},
		{name: "assigned driver", userID: "drv-1", role: user.RoleDriver, topic: OrderTopic("order-42")},
		{name: "admin on any order", userID: "adm-1", role: user.RoleAdmin, topic: OrderTopic("order-42")},
		{name: "other customer", userID: "cust-2", role: user.RoleCustomer, topic: OrderTopic("order-42"), wantErr: ErrForbidden},
		{name: "other driver", userID: "drv-2", role: user.RoleDriver, topic: OrderTopic("order-42"), wantErr: ErrForbidden},
		{name: "own user topic", userID: "cust-1", role: user.RoleCustomer, topic: UserTopic("cust-1")},
		{name: "admin on foreign user topic", userID: "adm-1", role: user.RoleAdmin, topic: UserTopic("cust-1")},
		{name: "foreign user topic", userID: "cust-2", role: user.RoleCustomer, topic: UserTopic("cust-1"), wantErr: ErrForbidden},
		{name: "driver on foreign user topic", userID: "drv-1", role: user.RoleDriver, topic: UserTopic("cust-1"), wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newTestHub(states)
			conn := h.Connect(ctx, tt.userID, tt.role)

			err := h.Subscribe(ctx, conn.ID, tt.topic)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, h.SubscribersOf(tt.topic))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, h.SubscribersOf(tt.topic), conn.ID)
		})
	}
}

func TestSubscribeUnknownOrderIsNotFound(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(nil)
	conn := h.Connect(ctx, "cust-1", user.RoleCustomer)

	err := h.Subscribe(ctx, conn.ID, OrderTopic("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeUnknownConnectionIsNotFound(t *testing.T) {
	h := newTestHub(nil)

	err := h.Subscribe(context.Background(), "no-such-conn", UserTopic("u-1"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeTwiceYieldsOneSubscription(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)
	conn := h.Connect(ctx, "cust-1", user.RoleCustomer)

	require.NoError(t, h.Subscribe(ctx, conn.ID, OrderTopic("order-42")))
	require.NoError(t, h.Subscribe(ctx, conn.ID, OrderTopic("order-42")))

	assert.Len(t, h.SubscribersOf(OrderTopic("order-42")), 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, OrderTopic("order-42")))

	broadcast, err := h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.NoError(t, err)
	require.True(t, broadcast)
	require.Len(t, drain(customer), 1)

	h.Unsubscribe(ctx, customer.ID, OrderTopic("order-42"))

	broadcast, err = h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 200))
	require.NoError(t, err)
	require.True(t, broadcast)
	assert.Empty(t, drain(customer), "unsubscribed connection must not receive fixes")

	// unsubscribing twice is a no-op
	h.Unsubscribe(ctx, customer.ID, OrderTopic("order-42"))
}

func TestDisconnectCascadesSubscriptions(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, OrderTopic("order-42")))
	require.NoError(t, h.Subscribe(ctx, customer.ID, UserTopic("cust-1")))

	h.Disconnect(ctx, customer.ID)

	assert.Empty(t, h.SubscribersOf(OrderTopic("order-42")))
	assert.Empty(t, h.SubscribersOf(UserTopic("cust-1")))
	assert.Equal(t, 0, h.ConnectionCount())

	// disconnecting again is harmless
	h.Disconnect(ctx, customer.ID)
}

func TestReportLocationMonotonicPerPair(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, OrderTopic("order-42")))

	broadcast, err := h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.NoError(t, err)
	assert.True(t, broadcast)

	// older fix arrives late: accepted, never fanned out
	broadcast, err = h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 50))
	require.NoError(t, err)
	assert.False(t, broadcast)

	// equal timestamp is not newer either
	broadcast, err = h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.NoError(t, err)
	assert.False(t, broadcast)

	events := drain(customer)
	require.Len(t, events, 1, "subscribers observe monotonic timestamps")
	update := events[0].(LocationUpdate)
	assert.Equal(t, time.Unix(100, 0), update.RecordedAt)

	latest, ok := h.Latest("drv-1", "order-42")
	require.True(t, ok)
	assert.Equal(t, time.Unix(100, 0), latest.RecordedAt)
}

func TestReportLocationRequiresDriverRole(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	_, err := h.ReportLocation(ctx, customer.ID, fixAt("cust-1", "order-42", 100))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestReportLocationRejectsUnassignedDriver(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	other := h.Connect(ctx, "drv-2", user.RoleDriver)
	_, err := h.ReportLocation(ctx, other.ID, fixAt("drv-2", "order-42", 100))
	require.ErrorIs(t, err, ErrForbidden)
}

func TestReportLocationRejectsUntrackableOrder(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusPendingAdminApproval),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	_, err := h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestReportLocationAcceptedAfterOrderBecomesTrackable(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusPendingAdminApproval),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, OrderTopic("order-42")))

	fix := fixAt("drv-1", "order-42", 100)
	broadcast, err := h.ReportLocation(ctx, driver.ID, fix)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.False(t, broadcast)
	_, ok := h.Latest("drv-1", "order-42")
	assert.False(t, ok, "rejected fix must not be recorded")
	assert.Empty(t, drain(customer))

	// dispatch approves the order out-of-band; the identical call now flows
	states["order-42"] = trackedOrder("order-42", "cust-1", "drv-1", order.StatusHeadingToOrigin)

	broadcast, err = h.ReportLocation(ctx, driver.ID, fix)
	require.NoError(t, err)
	assert.True(t, broadcast)

	latest, ok := h.Latest("drv-1", "order-42")
	require.True(t, ok)
	assert.Equal(t, fix.RecordedAt, latest.RecordedAt)

	events := drain(customer)
	require.Len(t, events, 1)
	update, ok := events[0].(LocationUpdate)
	require.True(t, ok)
	assert.Equal(t, "order-42", update.OrderID)
}

func TestReportLocationOnTerminalOrderClosesTopic(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, OrderTopic("order-42")))

	// the order completes out-of-band; the next gated call observes it
	states["order-42"] = trackedOrder("order-42", "cust-1", "drv-1", order.StatusCompleted)

	_, err := h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.ErrorIs(t, err, ErrInvalidState)

	events := drain(customer)
	require.Len(t, events, 1)
	closed := events[0].(TopicClosed)
	assert.Equal(t, "order:order-42", closed.Topic)
	assert.Empty(t, h.SubscribersOf(OrderTopic("order-42")))
}

func TestNotifyReachesEveryDevice(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(nil)

	phone := h.Connect(ctx, "cust-1", user.RoleCustomer)
	laptop := h.Connect(ctx, "cust-1", user.RoleCustomer)
	bystander := h.Connect(ctx, "cust-2", user.RoleCustomer)

	delivered := h.Notify(ctx, "cust-1", json.RawMessage(`{"kind":"ticket_reply"}`))
	assert.Equal(t, 2, delivered)

	assert.Len(t, drain(phone), 1)
	assert.Len(t, drain(laptop), 1)
	assert.Empty(t, drain(bystander))
}

func TestNotifyWithoutConnectionsIsZero(t *testing.T) {
	h := newTestHub(nil)
	assert.Equal(t, 0, h.Notify(context.Background(), "ghost", json.RawMessage(`{}`)))
}

func TestCloseOrderTopicDropsLatestFix(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	_, err := h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.NoError(t, err)

	_, ok := h.Latest("drv-1", "order-42")
	require.True(t, ok)

	h.CloseOrderTopic(ctx, "order-42", "order COMPLETED")

	_, ok = h.Latest("drv-1", "order-42")
	assert.False(t, ok, "a closed topic must not pin fixes in memory")
}

func TestBroadcastPrunesStaleSubscriptions(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": trackedOrder("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	h := newTestHub(states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)

	// a subscription entry whose connection is long gone
	h.subs.Add("stale-conn", OrderTopic("order-42"))

	broadcast, err := h.ReportLocation(ctx, driver.ID, fixAt("drv-1", "order-42", 100))
	require.NoError(t, err)
	require.True(t, broadcast)

	assert.False(t, h.subs.Has("stale-conn", OrderTopic("order-42")), "fan-out heals stale entries")
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(nil)

	slow := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, slow.ID, UserTopic("cust-1")))

	// never drained: the outbox fills and the next delivery evicts
	for i := 0; i <= outboxSize; i++ {
		h.Notify(ctx, "cust-1", json.RawMessage(`{}`))
	}

	assert.Equal(t, 0, h.ConnectionCount())
	select {
	case <-slow.Done():
	default:
		t.Fatal("expected the laggard to be closed")
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("order-%d", i)
		states[id] = trackedOrder(id, "cust-1", fmt.Sprintf("drv-%d", i), order.StatusInProgress)
	}
	h := newTestHub(states)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			orderID := fmt.Sprintf("order-%d", i)

			driver := h.Connect(ctx, fmt.Sprintf("drv-%d", i), user.RoleDriver)
			customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
			_ = h.Subscribe(ctx, customer.ID, OrderTopic(orderID))

			for ts := int64(1); ts <= 50; ts++ {
				_, _ = h.ReportLocation(ctx, driver.ID, fixAt(driver.UserID, orderID, ts))
				drain(customer)
			}

			h.Disconnect(ctx, customer.ID)
			h.Disconnect(ctx, driver.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, h.ConnectionCount())
}
