package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cargo-market/internal/domain/order"
	"cargo-market/internal/domain/user"
	"cargo-market/internal/general/jwt"
	"cargo-market/internal/general/logger"
	"cargo-market/internal/general/websocket"
	"cargo-market/internal/hub"
	"cargo-market/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTracking struct {
	notified []ports.NotifyUserInput
}

func (s *stubTracking) ReportLocation(context.Context, ports.ReportLocationInput) (ports.ReportLocationResult, error) {
	return ports.ReportLocationResult{}, nil
}

func (s *stubTracking) NotifyUser(_ context.Context, in ports.NotifyUserInput) (ports.NotifyUserResult, error) {
	s.notified = append(s.notified, in)
	return ports.NotifyUserResult{Delivered: 1}, nil
}

func (s *stubTracking) StartBackgroundConsumers(context.Context) {}

func newTestMux(t *testing.T) (*http.ServeMux, *stubTracking, *jwt.Manager) {
	t.Helper()

	log := logger.New("handler-test")
	auth := jwt.NewManager("test-secret", time.Hour)
	h := hub.New(hub.OrderDirectoryFunc(func(context.Context, string) (order.TrackingState, error) {
		return order.TrackingState{}, hub.ErrNotFound
	}), log)

	svc := &stubTracking{}
	ws := websocket.NewWebSocket(log, auth, h, svc)

	mux := http.NewServeMux()
	NewTrackingHTTPHandler(svc, log, auth, ws, h).RegisterRoutes(mux)
	return mux, svc, auth
}

func TestHealthEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tracking/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Connections)
}

func TestIssueTokenEndpoint(t *testing.T) {
	mux, _, auth := newTestMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tokens",
		strings.NewReader(`{"user_id":"cust-1","role":"CUSTOMER"}`))
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CUSTOMER", body.Role)

	_, claims, err := auth.ParseAndValidate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", claims.Subject)
	assert.Equal(t, user.RoleCustomer, claims.Role)
}

func TestIssueTokenRejectsUnknownRole(t *testing.T) {
	mux, _, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tokens",
		strings.NewReader(`{"user_id":"cust-1","role":"PIRATE"}`))
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifyRequiresAdminToken(t *testing.T) {
	mux, svc, auth := newTestMux(t)

	body := `{"user_id":"cust-1","payload":{"kind":"ticket_reply"}}`

	// no token
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// non-admin token
	customerToken, _, err := auth.IssueUserToken("cust-1", user.RoleCustomer)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+customerToken)
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.notified)

	// admin token
	adminToken, _, err := auth.IssueUserToken("adm-1", user.RoleAdmin)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/internal/notify", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.notified, 1)
	assert.Equal(t, "cust-1", svc.notified[0].UserID)
}
