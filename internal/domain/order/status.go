package order

import (
	"errors"
	"strings"
)

// Status is an order status as stored in the `order_status` table.
type Status string

const (
	StatusDraft                Status = "DRAFT"
	StatusPendingPayment       Status = "PENDING_PAYMENT"
	StatusPendingCustomerConf  Status = "PENDING_CUSTOMER_CONFIRMATION"
	StatusPendingAdminApproval Status = "PENDING_ADMIN_APPROVAL"
	StatusInProgress           Status = "IN_PROGRESS"
	StatusHeadingToOrigin      Status = "HEADING_TO_ORIGIN"
	StatusCompleted            Status = "COMPLETED"
	StatusCancelled            Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed order status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusDraft, StatusPendingPayment, StatusPendingCustomerConf, StatusPendingAdminApproval,
		StatusInProgress, StatusHeadingToOrigin, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// The en-route pair toggles back and forth: a driver heading to the pickup
// origin re-enters IN_PROGRESS on arrival.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusDraft:
		return next == StatusPendingPayment || next == StatusCancelled

	case StatusPendingPayment:
		return next == StatusPendingCustomerConf || next == StatusCancelled

	case StatusPendingCustomerConf:
		return next == StatusPendingAdminApproval || next == StatusCancelled

	case StatusPendingAdminApproval:
		return next == StatusInProgress || next == StatusCancelled

	case StatusInProgress:
		return next == StatusHeadingToOrigin || next == StatusCompleted || next == StatusCancelled

	case StatusHeadingToOrigin:
		return next == StatusInProgress || next == StatusCancelled

	case StatusCompleted, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal/completed state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Trackable reports whether live location streaming is permitted for an order
// in this status.
func (status Status) Trackable() bool {
	return status == StatusInProgress || status == StatusHeadingToOrigin
}
