package contracts

// Exchanges
const (
	ExchangeOrderTopic     = "order_topic"
	ExchangeTicketTopic    = "ticket_topic"
	ExchangeLocationFanout = "location_fanout"
)

// Queues
const (
	QueueOrderStatusEvents = "order_status_events"
	QueueTicketReplies     = "ticket_reply_notices"
	QueueLocationAudit     = "location_updates_audit"
)

// Routing patterns
const (
	RouteOrderStatusPrefix = "order.status."  // {status}
	RouteTicketReplyPrefix = "ticket.reply."  // {ticket_id}
)
