package service

import (
	"context"

	"cargo-market/internal/ports"
)

// NotifyUser pushes an opaque payload to every live connection of a user. A
// user with no live connections is a success with zero deliveries: there is no
// durable inbox here, the back-office owns persistence of notices.
func (service *trackingService) NotifyUser(ctx context.Context, in ports.NotifyUserInput) (ports.NotifyUserResult, error) {
	delivered := service.hub.Notify(ctx, in.UserID, in.Payload)

	service.logger.Info(ctx, "user_notified", "Notification dispatched to user connections", map[string]any{
		"user_id":   in.UserID,
		"delivered": delivered,
	})

	return ports.NotifyUserResult{Delivered: delivered}, nil
}
