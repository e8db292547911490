package hub

import "errors"

// Error taxonomy reported synchronously to callers. None of these mutate hub
// state and none escalate; the hub keeps serving other connections.
var (
	ErrUnauthorized = errors.New("caller is not authorized for this action")
	ErrForbidden    = errors.New("caller is not entitled to this topic")
	ErrInvalidState = errors.New("order is not in a trackable state")
	ErrNotFound     = errors.New("unknown topic or order reference")
)
