package hub

import (
	"sync"

	"cargo-market/internal/domain/geo"
)

type latestKey struct {
	driverID string
	orderID  string
}

// latestTable holds the most recent known fix per (driver, order) pair, in
// memory, for distribution only. Durable history belongs to the persistence
// collaborator.
type latestTable struct {
	mu    sync.Mutex
	fixes map[latestKey]geo.Fix
}

func newLatestTable() *latestTable {
	return &latestTable{fixes: make(map[latestKey]geo.Fix)}
}

// Apply installs fix as the latest for its (driver, order) pair when it is
// strictly newer than the held one. It returns whether the fix was installed;
// an out-of-order fix leaves the table untouched and must not be broadcast.
func (table *latestTable) Apply(fix geo.Fix) bool {
	key := latestKey{driverID: fix.DriverID, orderID: fix.OrderID}

	table.mu.Lock()
	defer table.mu.Unlock()

	if held, ok := table.fixes[key]; ok && !fix.Newer(held) {
		return false
	}
	table.fixes[key] = fix
	return true
}

// Latest returns the held fix for a (driver, order) pair.
func (table *latestTable) Latest(driverID, orderID string) (geo.Fix, bool) {
	table.mu.Lock()
	defer table.mu.Unlock()
	fix, ok := table.fixes[latestKey{driverID: driverID, orderID: orderID}]
	return fix, ok
}

// DropOrder forgets held fixes for an order once its topic is torn down.
func (table *latestTable) DropOrder(orderID string) {
	table.mu.Lock()
	defer table.mu.Unlock()
	for key := range table.fixes {
		if key.orderID == orderID {
			delete(table.fixes, key)
		}
	}
}
