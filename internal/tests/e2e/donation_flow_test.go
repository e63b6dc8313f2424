package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startToPaymentMethod drives a verified donor to method selection and returns the session path
func startToPaymentMethod(t *testing.T, s *TestServer, amount gin.H) string {
	t.Helper()

	created := s.Do(t, http.MethodPost, "/sessions", nil, "")
	require.Equal(t, http.StatusCreated, created.Status)
	assert.Equal(t, "target_selection", created.Step())
	snapshot := created.Data()["config"].(map[string]interface{})
	assert.Equal(t, true, snapshot["has_recurring"])

	path := "/sessions/" + created.Session()["id"].(string)

	resp := s.Do(t, http.MethodPost, path+"/target", gin.H{"targetId": "torah"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "amount", resp.Step())

	resp = s.Do(t, http.MethodPost, path+"/amount", amount, "")
	require.Equal(t, http.StatusOK, resp.Status, "amount response: %v", resp.Body)
	assert.Equal(t, "phone_verification", resp.Step())

	resp = s.Do(t, http.MethodPost, path+"/phone/send", gin.H{"phone": "050-123-4567"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "code_verification", resp.Step())
	assert.Equal(t, float64(60), resp.Data()["resend_in"])

	resp = s.Do(t, http.MethodPost, path+"/phone/verify", gin.H{"code": ValidCode}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "details", resp.Step())
	donor := resp.Session()["donor"].(map[string]interface{})
	assert.Equal(t, "Moshe", donor["first_name"])
	assert.Equal(t, true, resp.Session()["is_phone_locked"])

	resp = s.Do(t, http.MethodPost, path+"/donor", gin.H{
		"firstName":  "Moshe",
		"lastName":   "Cohen",
		"nationalId": ValidNationalID,
		"email":      "moshe@example.com",
	}, "")
	require.Equal(t, http.StatusOK, resp.Status, "donor response: %v", resp.Body)
	assert.Equal(t, "confirmation", resp.Step())

	resp = s.Do(t, http.MethodPost, path+"/confirm", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "payment_method", resp.Step())
	return path
}

func TestDonationFlow_CardApproved(t *testing.T) {
	s := NewTestServer(t)
	path := startToPaymentMethod(t, s, gin.H{"quickAmount": 36})

	methods := s.Do(t, http.MethodGet, path+"/payment-methods", nil, "")
	require.Equal(t, http.StatusOK, methods.Status)
	options := methods.Data()["payment_methods"].([]interface{})
	require.Len(t, options, 2, "one-time donations see only one-time options")

	resp := s.Do(t, http.MethodPost, path+"/payment-method", gin.H{"type": "credit_card"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "credit_card", resp.Step())

	resp = s.Do(t, http.MethodPost, path+"/card", gin.H{
		"cardNumber": ApprovedCard,
		"cardHolder": "Moshe Cohen",
		"expiry":     "12/30",
		"cvv":        "123",
		"nationalId": ValidNationalID,
	}, "")
	require.Equal(t, http.StatusOK, resp.Status, "card response: %v", resp.Body)
	assert.Equal(t, "processing", resp.Step())

	resp = s.Do(t, http.MethodPost, path+"/pay", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "success", resp.Step())
	outcome := resp.Session()["outcome"].(map[string]interface{})
	assert.NotEmpty(t, outcome["document_id"])

	initiated := s.Remote.Initiated()
	require.Len(t, initiated, 1)
	assert.Equal(t, "company-1", initiated[0]["companyId"])
	assert.NotNil(t, initiated[0]["cardData"])

	resp = s.Do(t, http.MethodPost, path+"/receipt", gin.H{"channel": "email"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	receipts := s.Remote.Receipts()
	require.Len(t, receipts, 1)
	assert.Equal(t, "moshe@example.com", receipts[0]["contact"])
	assert.Equal(t, outcome["document_id"], receipts[0]["documentId"])

	assert.Equal(t, 0, s.Container.Vault.Len(), "no card data survives the attempt")

	resp = s.Do(t, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.Status)
	resp = s.Do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestDonationFlow_DeclineThenRetry(t *testing.T) {
	s := NewTestServer(t)
	path := startToPaymentMethod(t, s, gin.H{"customAmount": "100"})

	resp := s.Do(t, http.MethodPost, path+"/payment-method", gin.H{"type": "credit_card"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	firstTxn := resp.Session()["attempt"].(map[string]interface{})["transaction_id"]

	resp = s.Do(t, http.MethodPost, path+"/card", gin.H{
		"cardNumber": DeclinedCard,
		"cardHolder": "Moshe Cohen",
		"expiry":     "12/30",
		"cvv":        "123",
		"nationalId": ValidNationalID,
	}, "")
	require.Equal(t, http.StatusOK, resp.Status)

	resp = s.Do(t, http.MethodPost, path+"/pay", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "error", resp.Step())
	outcome := resp.Session()["outcome"].(map[string]interface{})
	assert.Contains(t, outcome["message"], "001")

	resp = s.Do(t, http.MethodPost, path+"/retry", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "payment_method", resp.Step())

	resp = s.Do(t, http.MethodPost, path+"/payment-method", gin.H{"type": "credit_card"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	secondTxn := resp.Session()["attempt"].(map[string]interface{})["transaction_id"]
	assert.NotEqual(t, firstTxn, secondTxn, "a declined attempt is never reused")
}

func TestDonationFlow_BitConfirmedByPolling(t *testing.T) {
	s := NewTestServer(t)
	path := startToPaymentMethod(t, s, gin.H{"quickAmount": 18})

	resp := s.Do(t, http.MethodPost, path+"/payment-method", gin.H{"type": "bit"}, "")
	require.Equal(t, http.StatusOK, resp.Status, "bit response: %v", resp.Body)
	require.Equal(t, "hosted_payment", resp.Step())
	assert.Contains(t, resp.Session()["payment_url"], "https://pay.example.com/")

	require.Eventually(t, func() bool {
		return s.Do(t, http.MethodGet, path, nil, "").Step() == "success"
	}, 3*time.Second, 20*time.Millisecond)

	resp = s.Do(t, http.MethodGet, path, nil, "")
	outcome := resp.Session()["outcome"].(map[string]interface{})
	assert.NotEmpty(t, outcome["document_id"])
}

func TestDonationFlow_RecurringTotals(t *testing.T) {
	s := NewTestServer(t)
	path := startToPaymentMethod(t, s, gin.H{"customAmount": "50", "recurring": true, "months": 12})

	resp := s.Do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, float64(600), resp.Data()["total_amount"])

	methods := s.Do(t, http.MethodGet, path+"/payment-methods", nil, "")
	options := methods.Data()["payment_methods"].([]interface{})
	require.Len(t, options, 1)
	assert.Equal(t, "credit_card_recurring_payment", options[0].(map[string]interface{})["type"])
}

func TestDonationFlow_UnknownDonorGoesToDetails(t *testing.T) {
	s := NewTestServer(t)

	created := s.Do(t, http.MethodPost, "/sessions", nil, "")
	path := "/sessions/" + created.Session()["id"].(string)
	s.Do(t, http.MethodPost, path+"/target", gin.H{"targetId": "tzedakah"}, "")
	s.Do(t, http.MethodPost, path+"/amount", gin.H{"quickAmount": 18}, "")

	resp := s.Do(t, http.MethodPost, path+"/phone/send", gin.H{"phone": "0527777777"}, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "details", resp.Step())
	assert.Equal(t, true, resp.Session()["is_new_donor"])

	resp = s.Do(t, http.MethodPost, path+"/donor", gin.H{"firstName": "A", "lastName": "Levi", "phone": "0527777777"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "first_name", resp.Body["field"])
}

func TestDonationFlow_ValidationAndStepErrors(t *testing.T) {
	s := NewTestServer(t)

	created := s.Do(t, http.MethodPost, "/sessions", nil, "")
	path := "/sessions/" + created.Session()["id"].(string)

	resp := s.Do(t, http.MethodPost, path+"/pay", nil, "")
	assert.Equal(t, http.StatusConflict, resp.Status)

	resp = s.Do(t, http.MethodPost, path+"/target", gin.H{"targetId": "missing"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	s.Do(t, http.MethodPost, path+"/target", gin.H{"targetId": "torah"}, "")
	resp = s.Do(t, http.MethodPost, path+"/amount", gin.H{"quickAmount": 17}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = s.Do(t, http.MethodGet, "/sessions/does-not-exist", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
