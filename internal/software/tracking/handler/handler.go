package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"cargo-market/internal/domain/user"
	"cargo-market/internal/general/jwt"
	"cargo-market/internal/general/logger"
	"cargo-market/internal/general/websocket"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"
)

// TrackingHTTPHandler adapts HTTP requests to the TrackingService.
type TrackingHTTPHandler struct {
	svc    ports.TrackingService
	logger *logger.Logger
	auth   *jwt.Manager
	ws     *websocket.WebSocket
	hub    *hub.Hub
}

// NewTrackingHTTPHandler wires an HTTP handler around the TrackingService.
func NewTrackingHTTPHandler(svc ports.TrackingService, logger *logger.Logger, auth *jwt.Manager, ws *websocket.WebSocket, h *hub.Hub) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{svc: svc, logger: logger, auth: auth, ws: ws, hub: h}
}

// RegisterRoutes mounts tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", handler.ws.Serve)
	mux.HandleFunc("POST /internal/notify",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleNotify),
	)
	mux.HandleFunc("POST /tokens", handler.handleIssueToken)
	mux.HandleFunc("GET /tracking/health", handler.handleHealth)
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
