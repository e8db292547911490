package hub

import (
	"sync"

	"cargo-market/internal/domain/user"

	"github.com/google/uuid"
)

// Registry tracks live connections keyed by connection id and by owning user.
// A user may hold any number of simultaneous connections (multi-tab, multi-
// device); each gets its own id and outbox.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	byUser map[string]map[string]*Conn
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
	}
}

// Connect records a fresh connection for an already-validated identity. It
// never fails: identity and role were asserted by the auth collaborator
// before this call.
func (registry *Registry) Connect(userID string, role user.Role) *Conn {
	conn := newConn(uuid.NewString(), userID, role)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.conns[conn.ID] = conn
	if registry.byUser[userID] == nil {
		registry.byUser[userID] = make(map[string]*Conn)
	}
	registry.byUser[userID][conn.ID] = conn

	return conn
}

// Disconnect removes a connection and signals its writer. Idempotent; unknown
// ids return nil.
func (registry *Registry) Disconnect(connID string) *Conn {
	registry.mu.Lock()
	conn, ok := registry.conns[connID]
	if ok {
		delete(registry.conns, connID)
		if owned := registry.byUser[conn.UserID]; owned != nil {
			delete(owned, connID)
			if len(owned) == 0 {
				delete(registry.byUser, conn.UserID)
			}
		}
	}
	registry.mu.Unlock()

	if !ok {
		return nil
	}
	conn.close()
	return conn
}

// Get returns the connection for connID, or nil when it is gone.
func (registry *Registry) Get(connID string) *Conn {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.conns[connID]
}

// ConnectionsFor returns every live connection owned by userID. An identity
// with no connections yields an empty slice, not an error.
func (registry *Registry) ConnectionsFor(userID string) []*Conn {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	owned := registry.byUser[userID]
	conns := make([]*Conn, 0, len(owned))
	for _, conn := range owned {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of live connections (admin/health surface).
func (registry *Registry) Len() int {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return len(registry.conns)
}
