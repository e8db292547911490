package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cargo-market/internal/domain/geo"
	"cargo-market/internal/domain/order"
	"cargo-market/internal/domain/user"
	"cargo-market/internal/general/contracts"
	"cargo-market/internal/general/logger"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLocations struct {
	mu       sync.Mutex
	archived []geo.Fix
	upserted []geo.Fix
}

func (f *fakeLocations) Archive(_ context.Context, fix geo.Fix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, fix)
	return nil
}

func (f *fakeLocations) UpsertLatest(_ context.Context, fix geo.Fix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, fix)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []struct {
		Exchange   string
		RoutingKey string
		Body       []byte
	}
}

func (f *fakePublisher) Publish(exchange, routingKey string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, struct {
		Exchange   string
		RoutingKey string
		Body       []byte
	}{exchange, routingKey, body})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func directoryFor(states map[string]order.TrackingState) hub.OrderDirectory {
	return hub.OrderDirectoryFunc(func(_ context.Context, orderID string) (order.TrackingState, error) {
		state, ok := states[orderID]
		if !ok {
			return order.TrackingState{}, hub.ErrNotFound
		}
		return state, nil
	})
}

func newTestService(t *testing.T, states map[string]order.TrackingState) (*trackingService, *hub.Hub, *fakeLocations, *fakePublisher) {
	t.Helper()

	log := logger.New("tracking-service-test")
	h := hub.New(directoryFor(states), log)
	locations := &fakeLocations{}
	pub := &fakePublisher{}

	svc := NewTrackingService(log, fakeUOW{}, locations, h, pub, nil).(*trackingService)
	return svc, h, locations, pub
}

func assigned(orderID, customerID, driverID string, status order.Status) order.TrackingState {
	return order.TrackingState{
		OrderID:          orderID,
		Status:           status,
		CustomerID:       customerID,
		AssignedDriverID: &driverID,
	}
}

func TestReportLocationBroadcastsPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": assigned("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	svc, h, locations, pub := newTestService(t, states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)
	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, hub.OrderTopic("order-42")))

	result, err := svc.ReportLocation(ctx, ports.ReportLocationInput{
		ConnID:     driver.ID,
		OrderID:    "order-42",
		Latitude:   51.1,
		Longitude:  71.4,
		RecordedAt: time.Unix(100, 0),
	})
	require.NoError(t, err)
	assert.True(t, result.Broadcast)

	select {
	case event := <-customer.Events():
		update, ok := event.(hub.LocationUpdate)
		require.True(t, ok)
		assert.Equal(t, "drv-1", update.DriverID)
		assert.Equal(t, "order-42", update.OrderID)
	default:
		t.Fatal("expected a location update in the subscriber outbox")
	}

	require.Len(t, locations.archived, 1)
	require.Len(t, locations.upserted, 1)

	require.Equal(t, 1, pub.count())
	assert.Equal(t, contracts.ExchangeLocationFanout, pub.published[0].Exchange)
	var msg contracts.LocationUpdateMessage
	require.NoError(t, json.Unmarshal(pub.published[0].Body, &msg))
	assert.Equal(t, "drv-1", msg.DriverID)
	assert.Equal(t, "tracking-service", msg.Producer)
}

func TestReportLocationOutOfOrderIsArchivedNotBroadcast(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": assigned("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	svc, h, locations, pub := newTestService(t, states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)

	first, err := svc.ReportLocation(ctx, ports.ReportLocationInput{
		ConnID: driver.ID, OrderID: "order-42", Latitude: 1, Longitude: 1, RecordedAt: time.Unix(100, 0),
	})
	require.NoError(t, err)
	assert.True(t, first.Broadcast)

	second, err := svc.ReportLocation(ctx, ports.ReportLocationInput{
		ConnID: driver.ID, OrderID: "order-42", Latitude: 2, Longitude: 2, RecordedAt: time.Unix(50, 0),
	})
	require.NoError(t, err)
	assert.False(t, second.Broadcast, "older fix must be held back from fan-out")

	// both fixes land in the archive, only the first was published
	assert.Len(t, locations.archived, 2)
	assert.Equal(t, 1, pub.count())

	latest, ok := h.Latest("drv-1", "order-42")
	require.True(t, ok)
	assert.Equal(t, time.Unix(100, 0), latest.RecordedAt)
}

func TestReportLocationRejectsUnassignedDriver(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": assigned("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	svc, h, locations, pub := newTestService(t, states)

	other := h.Connect(ctx, "drv-2", user.RoleDriver)

	_, err := svc.ReportLocation(ctx, ports.ReportLocationInput{
		ConnID: other.ID, OrderID: "order-42", Latitude: 1, Longitude: 1, RecordedAt: time.Unix(100, 0),
	})
	require.ErrorIs(t, err, hub.ErrForbidden)
	assert.Empty(t, locations.archived)
	assert.Equal(t, 0, pub.count())
}

func TestReportLocationRejectsUntrackableStatus(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": assigned("order-42", "cust-1", "drv-1", order.StatusPendingAdminApproval),
	}
	svc, h, locations, _ := newTestService(t, states)

	driver := h.Connect(ctx, "drv-1", user.RoleDriver)

	_, err := svc.ReportLocation(ctx, ports.ReportLocationInput{
		ConnID: driver.ID, OrderID: "order-42", Latitude: 1, Longitude: 1, RecordedAt: time.Unix(100, 0),
	})
	require.ErrorIs(t, err, hub.ErrInvalidState)
	assert.Empty(t, locations.archived)
}

func TestNotifyUserDeliversToEveryConnection(t *testing.T) {
	ctx := context.Background()
	svc, h, _, _ := newTestService(t, nil)

	phone := h.Connect(ctx, "cust-1", user.RoleCustomer)
	laptop := h.Connect(ctx, "cust-1", user.RoleCustomer)

	result, err := svc.NotifyUser(ctx, ports.NotifyUserInput{
		UserID:  "cust-1",
		Payload: json.RawMessage(`{"kind":"ticket_reply"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Delivered)

	for _, conn := range []*hub.Conn{phone, laptop} {
		select {
		case event := <-conn.Events():
			_, ok := event.(hub.Notification)
			assert.True(t, ok)
		default:
			t.Fatal("expected a notification in the outbox")
		}
	}
}

func TestNotifyUserWithNoConnectionsIsSuccess(t *testing.T) {
	svc, _, _, _ := newTestService(t, nil)

	result, err := svc.NotifyUser(context.Background(), ports.NotifyUserInput{
		UserID:  "ghost",
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Delivered)
}

func TestHandleTicketReplyForwardsToOwner(t *testing.T) {
	ctx := context.Background()
	svc, h, _, _ := newTestService(t, nil)

	owner := h.Connect(ctx, "cust-7", user.RoleCustomer)

	body, err := json.Marshal(contracts.TicketReplyMessage{
		TicketOwnerID: "cust-7",
		TicketID:      "ticket-9",
		Payload:       json.RawMessage(`{"text":"we are on it"}`),
	})
	require.NoError(t, err)

	require.NoError(t, svc.handleTicketReply(ctx, amqp.Delivery{Body: body}))

	select {
	case event := <-owner.Events():
		notice, ok := event.(hub.Notification)
		require.True(t, ok)
		assert.Equal(t, "cust-7", notice.UserID)
		assert.Contains(t, string(notice.Payload), "ticket-9")
	default:
		t.Fatal("expected the reply to reach the owner")
	}
}

func TestHandleOrderStatusClosesTopicOnTerminalStatus(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": assigned("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	svc, h, _, _ := newTestService(t, states)

	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, hub.OrderTopic("order-42")))

	body, err := json.Marshal(contracts.OrderStatusMessage{
		OrderID: "order-42",
		Status:  order.StatusCancelled.String(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.handleOrderStatus(ctx, amqp.Delivery{Body: body}))

	select {
	case event := <-customer.Events():
		closed, ok := event.(hub.TopicClosed)
		require.True(t, ok)
		assert.Equal(t, hub.OrderTopic("order-42").String(), closed.Topic)
	default:
		t.Fatal("expected a topic_closed event")
	}
	assert.Empty(t, h.SubscribersOf(hub.OrderTopic("order-42")))
}

func TestHandleOrderStatusIgnoresTrackableStatus(t *testing.T) {
	ctx := context.Background()
	states := map[string]order.TrackingState{
		"order-42": assigned("order-42", "cust-1", "drv-1", order.StatusInProgress),
	}
	svc, h, _, _ := newTestService(t, states)

	customer := h.Connect(ctx, "cust-1", user.RoleCustomer)
	require.NoError(t, h.Subscribe(ctx, customer.ID, hub.OrderTopic("order-42")))

	body, err := json.Marshal(contracts.OrderStatusMessage{
		OrderID: "order-42",
		Status:  order.StatusHeadingToOrigin.String(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.handleOrderStatus(ctx, amqp.Delivery{Body: body}))
	assert.Len(t, h.SubscribersOf(hub.OrderTopic("order-42")), 1)
}
