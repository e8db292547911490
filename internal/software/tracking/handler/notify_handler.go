package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"cargo-market/internal/general/jwt"
	"cargo-market/internal/ports"
)

// ----- Handler: POST /internal/notify -----

// handleNotify pushes an opaque payload to every live connection of a user.
// Reserved for back-office services; guarded by the admin role.
func (handler *TrackingHTTPHandler) handleNotify(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req struct {
		UserID  string          `json:"user_id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	if len(req.Payload) == 0 {
		handler.httpError(ctx, w, http.StatusBadRequest, "payload is required", nil)
		return
	}

	result, err := handler.svc.NotifyUser(ctx, ports.NotifyUserInput{
		UserID:  req.UserID,
		Payload: req.Payload,
	})
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to notify user", err)
		return
	}

	if claims := jwt.RequireClaims(r); claims != nil {
		handler.logger.Info(ctx, "notify_requested", "Back-office notification accepted", map[string]any{
			"requested_by": claims.Subject,
			"user_id":      req.UserID,
			"delivered":    result.Delivered,
		})
	}

	type resp struct {
		Delivered int `json:"delivered"`
	}
	handler.jsonResponse(ctx, w, http.StatusOK, resp{Delivered: result.Delivered})
}
