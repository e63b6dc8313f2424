package e2e

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gabbaiLogin(t *testing.T, s *TestServer) string {
	t.Helper()

	resp := s.Do(t, http.MethodPost, "/gabbai/otp/send", gin.H{"phone": GabbaiPhone}, "")
	require.Equal(t, http.StatusOK, resp.Status, "send response: %v", resp.Body)

	resp = s.Do(t, http.MethodPost, "/gabbai/otp/verify", gin.H{"phone": GabbaiPhone, "code": ValidCode}, "")
	require.Equal(t, http.StatusOK, resp.Status, "verify response: %v", resp.Body)
	assert.Equal(t, "Bearer", resp.Data()["token_type"])
	assert.Equal(t, float64(1800), resp.Data()["expires_in"])
	return resp.Data()["access_token"].(string)
}

func TestAdmin_RequiresGabbaiToken(t *testing.T) {
	s := NewTestServer(t)

	resp := s.Do(t, http.MethodGet, "/admin/config", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = s.Do(t, http.MethodGet, "/admin/config", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "Invalid token", resp.Body["error"])

	resp = s.Do(t, http.MethodPost, "/gabbai/otp/send", gin.H{"phone": KnownDonorPhone}, "")
	assert.Equal(t, http.StatusForbidden, resp.Status, "donors are not gabbaim")
}

func TestAdmin_GabbaiLockAfterFailures(t *testing.T) {
	s := NewTestServer(t)

	resp := s.Do(t, http.MethodPost, "/gabbai/otp/send", gin.H{"phone": GabbaiPhone}, "")
	require.Equal(t, http.StatusOK, resp.Status)

	for i := 2; i >= 1; i-- {
		resp = s.Do(t, http.MethodPost, "/gabbai/otp/verify", gin.H{"phone": GabbaiPhone, "code": "999999"}, "")
		require.Equal(t, http.StatusUnauthorized, resp.Status)
		assert.Equal(t, float64(i), resp.Body["attempts_remaining"])
	}
	resp = s.Do(t, http.MethodPost, "/gabbai/otp/verify", gin.H{"phone": GabbaiPhone, "code": "999999"}, "")
	assert.Equal(t, http.StatusLocked, resp.Status)

	resp = s.Do(t, http.MethodPost, "/gabbai/otp/send", gin.H{"phone": GabbaiPhone}, "")
	assert.Equal(t, http.StatusLocked, resp.Status)
}

func TestAdmin_ConfigAndLedger(t *testing.T) {
	s := NewTestServer(t)
	token := gabbaiLogin(t, s)

	resp := s.Do(t, http.MethodGet, "/admin/config", nil, token)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "E2E Kiosk", resp.Data()["name"])

	cfg := TestKioskConfig()
	cfg.Name = "Renamed Kiosk"
	cfg.Settings.CompanyID = "company-2"
	resp = s.Do(t, http.MethodPut, "/admin/config", cfg, token)
	require.Equal(t, http.StatusOK, resp.Status, "update response: %v", resp.Body)

	// New sessions run against the updated configuration
	path := startToPaymentMethod(t, s, gin.H{"quickAmount": 36})
	s.Do(t, http.MethodPost, path+"/payment-method", gin.H{"type": "credit_card"}, "")
	s.Do(t, http.MethodPost, path+"/card", gin.H{
		"cardNumber": ApprovedCard,
		"cardHolder": "Moshe Cohen",
		"expiry":     "12/30",
		"cvv":        "123",
		"nationalId": ValidNationalID,
	}, "")
	resp = s.Do(t, http.MethodPost, path+"/pay", nil, "")
	require.Equal(t, "success", resp.Step())
	assert.Equal(t, "company-2", s.Remote.Initiated()[0]["companyId"])

	resp = s.Do(t, http.MethodGet, "/admin/attempts", nil, token)
	require.Equal(t, http.StatusOK, resp.Status)
	rows := resp.Data()["attempts"].([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "approved", row["status"])
	assert.Equal(t, float64(36), row["amount"])
	assert.Equal(t, "101", row["item_id"])

	resp = s.Do(t, http.MethodPost, "/admin/config/reset", nil, token)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "E2E Kiosk", resp.Data()["name"])

	resp = s.Do(t, http.MethodGet, "/admin/policies", nil, token)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Len(t, resp.Body["data"], 1)

	grant := map[string]string{"role": "gabbai", "resource": "/admin/*", "action": "(GET)|(PUT)|(POST)|(DELETE)"}
	resp = s.Do(t, http.MethodDelete, "/admin/policies", grant, token)
	assert.Equal(t, http.StatusConflict, resp.Status)

	auditor := map[string]string{"role": "auditor", "resource": "/admin/attempts", "action": "GET"}
	resp = s.Do(t, http.MethodPost, "/admin/policies", auditor, token)
	require.Equal(t, http.StatusNoContent, resp.Status)
	resp = s.Do(t, http.MethodGet, "/admin/policies", nil, token)
	assert.Len(t, resp.Body["data"], 2)

	resp = s.Do(t, http.MethodDelete, "/admin/policies", auditor, token)
	require.Equal(t, http.StatusNoContent, resp.Status)
	resp = s.Do(t, http.MethodDelete, "/admin/policies", auditor, token)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
