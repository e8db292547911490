package jwt

import (
	"encoding/json"
	"testing"
	"time"

	"cargo-market/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	token, claims, err := mgr.IssueUserToken("cust-1", user.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", claims.Subject)

	_, parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", parsed.Subject)
	assert.Equal(t, user.RoleCustomer, parsed.Role)
}

func TestIssueRejectsInvalidRole(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	_, _, err := mgr.IssueUserToken("u-1", user.Role("SUPERUSER"))
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour).IssueUserToken("drv-1", user.RoleDriver)
	require.NoError(t, err)

	_, _, err = NewManager("secret-b", time.Hour).ParseAndValidate(token)
	assert.Error(t, err)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("drv-1", user.RoleDriver)
	require.NoError(t, err)

	frame, _ := json.Marshal(ClientAuthMessage{Type: "auth", Token: "Bearer " + token})

	res, err := ValidateWSAuth(frame, mgr, user.RoleCustomer, user.RoleDriver, user.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "drv-1", res.Claims.Subject)
	assert.Equal(t, user.RoleDriver, res.Claims.Role)

	// role not in the allow list
	_, err = ValidateWSAuth(frame, mgr, user.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleForbidden)

	// missing Bearer wrapping
	badFrame, _ := json.Marshal(ClientAuthMessage{Type: "auth", Token: token})
	_, err = ValidateWSAuth(badFrame, mgr, user.RoleDriver)
	assert.ErrorIs(t, err, ErrBadTokenWrap)

	// wrong message type
	wrongType, _ := json.Marshal(ClientAuthMessage{Type: "subscribe", Token: "Bearer " + token})
	_, err = ValidateWSAuth(wrongType, mgr, user.RoleDriver)
	assert.ErrorIs(t, err, ErrBadAuthMsg)
}
