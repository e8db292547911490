package service

import (
	"context"
	"encoding/json"

	"cargo-market/internal/domain/order"
	"cargo-market/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartBackgroundConsumers starts the RabbitMQ consumers that feed the hub:
// ticket reply notices become user notifications, order status events tear
// down topics whose order left a trackable status.
func (service *trackingService) StartBackgroundConsumers(ctx context.Context) {
	go service.rabbitmq.Consume(ctx, contracts.QueueTicketReplies, "tracking-ticket-replies", 10,
		service.handleTicketReply)

	go service.rabbitmq.Consume(ctx, contracts.QueueOrderStatusEvents, "tracking-order-status", 10,
		service.handleOrderStatus)

	service.logger.Info(ctx, "mq_consumers_started", "Tracking service MQ consumers started",
		map[string]any{"queues": []string{contracts.QueueTicketReplies, contracts.QueueOrderStatusEvents}})
}

// handleTicketReply forwards a support reply to the ticket owner's connections.
func (service *trackingService) handleTicketReply(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.TicketReplyMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		service.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse ticket reply notice", err,
			map[string]any{"routing_key": d.RoutingKey})
		return err
	}
	if msg.TicketOwnerID == "" {
		service.logger.Error(ctx, "ticket_reply_invalid", "Ticket reply notice without owner id", nil,
			map[string]any{"ticket_id": msg.TicketID})
		return nil // nothing to retry; drop
	}

	notice, err := json.Marshal(map[string]any{
		"kind":      "ticket_reply",
		"ticket_id": msg.TicketID,
		"payload":   msg.Payload,
	})
	if err != nil {
		return err
	}

	delivered := service.hub.Notify(ctx, msg.TicketOwnerID, notice)
	service.logger.Info(ctx, "ticket_reply_forwarded", "Ticket reply forwarded to owner connections", map[string]any{
		"ticket_id": msg.TicketID,
		"owner_id":  msg.TicketOwnerID,
		"delivered": delivered,
	})
	return nil
}

// handleOrderStatus reacts to out-of-band status changes. A transition out of
// a trackable status closes the order topic so subscribers do not dangle.
func (service *trackingService) handleOrderStatus(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.OrderStatusMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		service.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse order status event", err,
			map[string]any{"routing_key": d.RoutingKey})
		return err
	}

	status, err := order.ParseStatus(msg.Status)
	if err != nil {
		service.logger.Error(ctx, "order_status_invalid", "Order status event carries unknown status", err,
			map[string]any{"order_id": msg.OrderID, "status": msg.Status})
		return nil // poison message; drop
	}

	if status.Trackable() {
		return nil
	}

	service.hub.CloseOrderTopic(ctx, msg.OrderID, "order "+status.String())
	return nil
}
