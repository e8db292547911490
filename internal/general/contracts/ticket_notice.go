package contracts

import (
	"encoding/json"
	"time"
)

// TicketReplyMessage is published by the support back-office after it persists
// a new reply. Routing key: "ticket.reply.{ticket_id}" on ExchangeTicketTopic.
// The payload travels to the ticket owner's connections untouched.
type TicketReplyMessage struct {
	TicketOwnerID string          `json:"ticket_owner_id"`
	TicketID      string          `json:"ticket_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Envelope
}
