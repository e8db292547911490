package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cargo-market/internal/domain/user"
)

// ----- Handler: POST /tokens -----

// handleIssueToken mints a JWT for a user id and role. The marketplace's
// identity service owns real logins; this endpoint exists so local setups and
// integration suites can obtain tokens without standing that service up.
func (handler *TrackingHTTPHandler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be CUSTOMER, DRIVER or ADMIN", err)
		return
	}

	token, claims, err := handler.auth.IssueUserToken(req.UserID, role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	type resp struct {
		Token     string `json:"token"`
		UserID    string `json:"user_id"`
		Role      string `json:"role"`
		ExpiresAt string `json:"expires_at"`
	}
	handler.jsonResponse(ctx, w, http.StatusOK, resp{
		Token:     token,
		UserID:    claims.Subject,
		Role:      role.String(),
		ExpiresAt: claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}
