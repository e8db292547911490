package order

import "strings"

// TrackingState is the read-only view of an order that the realtime hub
// consults. The hub never mutates orders; the order back-office owns them.
type TrackingState struct {
	OrderID          string
	Status           Status
	CustomerID       string
	AssignedDriverID *string
}

// DriverAssigned reports whether driverID is the driver of record.
func (state TrackingState) DriverAssigned(driverID string) bool {
	if state.AssignedDriverID == nil {
		return false
	}
	return strings.TrimSpace(driverID) != "" && *state.AssignedDriverID == driverID
}

// CustomerOfRecord reports whether userID placed the order.
func (state TrackingState) CustomerOfRecord(userID string) bool {
	return strings.TrimSpace(userID) != "" && state.CustomerID == userID
}

// CanStream reports whether location ingestion/broadcast is currently
// permitted for the order.
func (state TrackingState) CanStream() bool {
	return state.Status.Trackable()
}
