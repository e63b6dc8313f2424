package e2e

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/you/kioskpay/domain"
)

// Test data shared by the e2e scenarios
const (
	KnownDonorPhone = "0501234567"
	GabbaiPhone     = "0549998888"
	ValidCode       = "123456"
	ValidNationalID = "123456782"
	ApprovedCard    = "4580000000000000"
	DeclinedCard    = "4580000000000001"
	StatusPollsToOK = 3
)

// TestKioskConfig is the seed configuration the test server starts with
func TestKioskConfig() *domain.KioskConfig {
	return &domain.KioskConfig{
		Name: "E2E Kiosk",
		Targets: []domain.Target{
			{ID: "torah", ItemID: "101", Name: "Torah"},
			{ID: "tzedakah", ItemID: "102", Name: "Tzedakah"},
		},
		QuickAmounts: []int{18, 36, 100},
		PaymentOptions: []domain.PaymentOption{
			{Type: "credit_card", NextAction: domain.NextActionTyping, Name: "Credit card", Sort: 1},
			{Type: "bit", NextAction: domain.NextActionIframe, Name: "Bit", Sort: 2, Async: true},
			{Type: "credit_card_recurring_payment", NextAction: domain.NextActionTyping, Name: "Monthly", Sort: 1},
		},
		Settings: domain.KioskSettings{
			CompanyID:         "company-1",
			AutoReturnSeconds: 300,
			BitOption:         true,
		},
	}
}

// FakeRemote serves the gateway and donor directory APIs
type FakeRemote struct {
	Server *httptest.Server

	mu          sync.Mutex
	statusCalls map[string]int
	receipts    []gin.H
	initiated   []gin.H
}

// NewFakeRemote starts the fake remote services
func NewFakeRemote(t *testing.T) *FakeRemote {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeRemote{statusCalls: make(map[string]int)}
	r := gin.New()
	r.POST("/gateway/initiate-payment", f.initiate)
	r.POST("/gateway/send-receipt", f.receipt)
	r.POST("/gateway/status", f.status)
	r.POST("/directory/send-code", f.sendCode)
	r.POST("/directory/verify-code", f.verifyCode)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// GatewayURL is the initiate-payment base
func (f *FakeRemote) GatewayURL() string { return f.Server.URL + "/gateway" }

// StatusURL is the asynchronous confirmation endpoint
func (f *FakeRemote) StatusURL() string { return f.Server.URL + "/gateway/status" }

// DirectoryURL is the donor directory base
func (f *FakeRemote) DirectoryURL() string { return f.Server.URL + "/directory" }

// Receipts returns the receipt requests received so far
func (f *FakeRemote) Receipts() []gin.H {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gin.H(nil), f.receipts...)
}

// Initiated returns the initiate-payment bodies received so far
func (f *FakeRemote) Initiated() []gin.H {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gin.H(nil), f.initiated...)
}

func (f *FakeRemote) initiate(c *gin.Context) {
	var body gin.H
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.mu.Lock()
	f.initiated = append(f.initiated, body)
	f.mu.Unlock()

	txn, _ := body["transactionId"].(string)
	if body["nextAction"] == string(domain.NextActionIframe) {
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"transactionId": txn,
			"docToken":      "doc-" + txn,
			"idDoc":         "DOC-" + txn,
			"paymentUrl":    "https://pay.example.com/" + txn,
		})
		return
	}

	card, _ := body["cardData"].(map[string]interface{})
	if card != nil && card["cardNumber"] == DeclinedCard {
		c.JSON(http.StatusOK, gin.H{"success": true, "transactionId": txn, "shvaCode": "001", "message": "Card refused"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactionId": txn, "idDoc": "DOC-" + txn, "shvaCode": "000"})
}

func (f *FakeRemote) status(c *gin.Context) {
	token := c.PostForm("docToken")
	f.mu.Lock()
	f.statusCalls[token]++
	n := f.statusCalls[token]
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": n >= StatusPollsToOK})
}

func (f *FakeRemote) receipt(c *gin.Context) {
	var body gin.H
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.mu.Lock()
	f.receipts = append(f.receipts, body)
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (f *FakeRemote) sendCode(c *gin.Context) {
	var req struct {
		Phone  string `json:"phone"`
		Gabbai bool   `json:"gabbai"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	known := req.Phone == KnownDonorPhone
	if req.Gabbai {
		known = req.Phone == GabbaiPhone
	}
	if !known {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": "dir-" + req.Phone})
}

func (f *FakeRemote) verifyCode(c *gin.Context) {
	var req struct {
		Phone     string `json:"phone"`
		Code      string `json:"code"`
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Code != ValidCode || req.SessionID != "dir-"+req.Phone {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "wrong code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"donor": gin.H{
			"firstName": "Moshe",
			"lastName":  "Cohen",
			"phone":     req.Phone,
			"idNumber":  ValidNationalID,
			"email":     "moshe@example.com",
		},
	})
}
