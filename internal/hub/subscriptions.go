package hub

import "sync"

// Subscriptions is the topic -> connection interest table. Entries are
// ephemeral: explicit unsubscribe, topic teardown, or connection teardown
// removes them. At most one entry exists per (connection, topic) pair.
type Subscriptions struct {
	mu      sync.RWMutex
	byTopic map[Topic]map[string]struct{}
	byConn  map[string]map[Topic]struct{}
}

// NewSubscriptions constructs an empty subscription table.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		byTopic: make(map[Topic]map[string]struct{}),
		byConn:  make(map[string]map[Topic]struct{}),
	}
}

// Add inserts (topic, connID) if absent. Idempotent.
func (subs *Subscriptions) Add(connID string, topic Topic) {
	subs.mu.Lock()
	defer subs.mu.Unlock()

	if subs.byTopic[topic] == nil {
		subs.byTopic[topic] = make(map[string]struct{})
	}
	subs.byTopic[topic][connID] = struct{}{}

	if subs.byConn[connID] == nil {
		subs.byConn[connID] = make(map[Topic]struct{})
	}
	subs.byConn[connID][topic] = struct{}{}
}

// Remove deletes (topic, connID) if present. Removing an unknown pair is a
// no-op, not an error.
func (subs *Subscriptions) Remove(connID string, topic Topic) {
	subs.mu.Lock()
	defer subs.mu.Unlock()
	subs.removeLocked(connID, topic)
}

func (subs *Subscriptions) removeLocked(connID string, topic Topic) {
	if set := subs.byTopic[topic]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(subs.byTopic, topic)
		}
	}
	if topics := subs.byConn[connID]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(subs.byConn, connID)
		}
	}
}

// SubscribersOf snapshots the connection ids currently interested in topic.
// Order is unspecified.
func (subs *Subscriptions) SubscribersOf(topic Topic) []string {
	subs.mu.RLock()
	defer subs.mu.RUnlock()

	set := subs.byTopic[topic]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Has reports whether (connID, topic) is currently subscribed.
func (subs *Subscriptions) Has(connID string, topic Topic) bool {
	subs.mu.RLock()
	defer subs.mu.RUnlock()
	_, ok := subs.byTopic[topic][connID]
	return ok
}

// DropConn cascades removal of every subscription owned by connID.
func (subs *Subscriptions) DropConn(connID string) {
	subs.mu.Lock()
	defer subs.mu.Unlock()

	for topic := range subs.byConn[connID] {
		subs.removeLocked(connID, topic)
	}
	delete(subs.byConn, connID)
}

// DropTopic removes the whole topic and returns the connection ids that were
// subscribed to it.
func (subs *Subscriptions) DropTopic(topic Topic) []string {
	subs.mu.Lock()
	defer subs.mu.Unlock()

	set := subs.byTopic[topic]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
		subs.removeLocked(id, topic)
	}
	return ids
}
