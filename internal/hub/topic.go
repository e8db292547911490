package hub

import (
	"fmt"
	"strings"
)

// Topic is a named fan-out channel. Two kinds exist: order topics carrying
// live location updates, and user topics carrying personal notifications.
type Topic string

const (
	topicKindOrder = "order"
	topicKindUser  = "user"
)

// OrderTopic builds the topic for an order's location stream.
func OrderTopic(orderID string) Topic {
	return Topic(topicKindOrder + ":" + orderID)
}

// UserTopic builds the personal notification topic of a user.
func UserTopic(userID string) Topic {
	return Topic(topicKindUser + ":" + userID)
}

// ParseTopic validates a raw topic string of the form "order:<id>" or
// "user:<id>". Malformed topics are structurally unknown references.
func ParseTopic(raw string) (Topic, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("malformed topic %q: %w", raw, ErrNotFound)
	}
	switch kind {
	case topicKindOrder, topicKindUser:
		return Topic(kind + ":" + id), nil
	default:
		return "", fmt.Errorf("unknown topic kind %q: %w", kind, ErrNotFound)
	}
}

// IsOrder reports whether the topic is an order location stream.
func (topic Topic) IsOrder() bool {
	return strings.HasPrefix(string(topic), topicKindOrder+":")
}

// IsUser reports whether the topic is a personal notification channel.
func (topic Topic) IsUser() bool {
	return strings.HasPrefix(string(topic), topicKindUser+":")
}

// ID returns the order/user id part of the topic.
func (topic Topic) ID() string {
	_, id, _ := strings.Cut(string(topic), ":")
	return id
}

// String returns the wire representation of the topic.
func (topic Topic) String() string {
	return string(topic)
}
