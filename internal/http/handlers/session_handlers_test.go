package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
)

// stubFlow overrides only the operations a test drives
type stubFlow struct {
	domain.DonationFlow
	getFunc       func(id string) (*domain.DonationSession, error)
	setAmountFunc func(id string, in domain.AmountInput) (*domain.DonationSession, error)
	resendFunc    func(id string) (*domain.VerificationSession, error)
	verifyFunc    func(id, code string) (*domain.DonationSession, *domain.VerificationResult, error)
	selectFunc    func(id, optionType string) (*domain.DonationSession, error)
	receiptFunc   func(id string, channel domain.ReceiptChannel) error
}

func (s *stubFlow) Get(ctx context.Context, id string) (*domain.DonationSession, error) {
	return s.getFunc(id)
}

func (s *stubFlow) SetAmount(ctx context.Context, id string, in domain.AmountInput) (*domain.DonationSession, error) {
	return s.setAmountFunc(id, in)
}

func (s *stubFlow) ResendCode(ctx context.Context, id string) (*domain.VerificationSession, error) {
	return s.resendFunc(id)
}

func (s *stubFlow) VerifyCode(ctx context.Context, id, code string) (*domain.DonationSession, *domain.VerificationResult, error) {
	return s.verifyFunc(id, code)
}

func (s *stubFlow) SelectPaymentMethod(ctx context.Context, id, optionType string) (*domain.DonationSession, error) {
	return s.selectFunc(id, optionType)
}

func (s *stubFlow) SendReceipt(ctx context.Context, id string, channel domain.ReceiptChannel) error {
	return s.receiptFunc(id, channel)
}

func setupSessionRouter(flow domain.DonationFlow, now time.Time) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSessionHandlers(flow, nil)
	h.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/sessions/:id", h.Get)
	r.POST("/sessions/:id/amount", h.SetAmount)
	r.POST("/sessions/:id/phone/resend", h.ResendCode)
	r.POST("/sessions/:id/phone/verify", h.VerifyCode)
	r.POST("/sessions/:id/payment-method", h.SelectPaymentMethod)
	r.POST("/sessions/:id/receipt", h.SendReceipt)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestSessionHandlers_Get(t *testing.T) {
	flow := &stubFlow{getFunc: func(id string) (*domain.DonationSession, error) {
		if id != "s1" {
			return nil, domain.ErrSessionNotFound
		}
		s := domain.NewDonationSession("s1", time.Now())
		s.Step = domain.StepAmount
		s.Amount = 36
		return &s, nil
	}}
	r := setupSessionRouter(flow, time.Now())

	w, resp := doJSON(t, r, http.MethodGet, "/sessions/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "amount", data["session"].(map[string]interface{})["step"])
	assert.Equal(t, float64(36), data["total_amount"])

	w, _ = doJSON(t, r, http.MethodGet, "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandlers_SetAmount(t *testing.T) {
	var got domain.AmountInput
	flow := &stubFlow{setAmountFunc: func(id string, in domain.AmountInput) (*domain.DonationSession, error) {
		got = in
		if in.CustomAmount == "abc" {
			return nil, domain.NewValidationError("amount", domain.ErrInvalidAmount)
		}
		s := domain.NewDonationSession(id, time.Now())
		s.Step = domain.StepPhone
		return &s, nil
	}}
	r := setupSessionRouter(flow, time.Now())

	tests := []struct {
		name       string
		body       gin.H
		expectCode int
		expectIn   domain.AmountInput
	}{
		{
			name:       "numeric months",
			body:       gin.H{"customAmount": "100", "recurring": true, "months": 12},
			expectCode: http.StatusOK,
			expectIn:   domain.AmountInput{CustomAmount: "100", Recurring: true, Months: "12"},
		},
		{
			name:       "unlimited months",
			body:       gin.H{"quickAmount": 18, "recurring": true, "months": "unlimited"},
			expectCode: http.StatusOK,
			expectIn:   domain.AmountInput{QuickAmount: 18, Recurring: true, Months: "unlimited"},
		},
		{
			name:       "invalid amount",
			body:       gin.H{"customAmount": "abc"},
			expectCode: http.StatusBadRequest,
			expectIn:   domain.AmountInput{CustomAmount: "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = domain.AmountInput{}
			w, resp := doJSON(t, r, http.MethodPost, "/sessions/s1/amount", tt.body)
			assert.Equal(t, tt.expectCode, w.Code)
			assert.Equal(t, tt.expectIn, got)
			if tt.expectCode == http.StatusBadRequest {
				assert.Equal(t, "amount", resp["field"])
				assert.Equal(t, domain.ErrInvalidAmount.Error(), resp["error"])
			}
		})
	}
}

func TestSessionHandlers_SetAmountFractionalMonths(t *testing.T) {
	called := false
	flow := &stubFlow{setAmountFunc: func(id string, in domain.AmountInput) (*domain.DonationSession, error) {
		called = true
		return nil, nil
	}}
	r := setupSessionRouter(flow, time.Now())

	w, resp := doJSON(t, r, http.MethodPost, "/sessions/s1/amount", gin.H{"customAmount": "50", "recurring": true, "months": 6.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "months", resp["field"])
	assert.Equal(t, domain.ErrInvalidMonths.Error(), resp["error"])
	assert.False(t, called)
}

func TestSessionHandlers_ResendCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	flow := &stubFlow{resendFunc: func(id string) (*domain.VerificationSession, error) {
		return &domain.VerificationSession{ResendAvailableAt: now.Add(42 * time.Second)}, domain.ErrResendCooldown
	}}
	r := setupSessionRouter(flow, now)

	w, resp := doJSON(t, r, http.MethodPost, "/sessions/s1/phone/resend", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, float64(42), resp["retry_after"])
}

func TestSessionHandlers_VerifyCode(t *testing.T) {
	flow := &stubFlow{verifyFunc: func(id, code string) (*domain.DonationSession, *domain.VerificationResult, error) {
		s := domain.NewDonationSession(id, time.Now())
		switch code {
		case "111111":
			s.Step = domain.StepCode
			return &s, &domain.VerificationResult{Status: domain.VerificationRejected, AttemptsRemaining: 2}, nil
		case "222222":
			s.Step = domain.StepDetails
			return &s, &domain.VerificationResult{Status: domain.VerificationFallback}, nil
		case "333333":
			return nil, nil, domain.NewTransportError("", domain.ErrDirectoryTransport)
		}
		s.Step = domain.StepConfirmation
		return &s, &domain.VerificationResult{Status: domain.VerificationVerified}, nil
	}}
	r := setupSessionRouter(flow, time.Now())

	w, resp := doJSON(t, r, http.MethodPost, "/sessions/s1/phone/verify", gin.H{"code": "111111"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.MsgWrongCode, resp["error"])
	assert.Equal(t, float64(2), resp["attempts_remaining"])

	w, resp = doJSON(t, r, http.MethodPost, "/sessions/s1/phone/verify", gin.H{"code": "222222"})
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "details", data["session"].(map[string]interface{})["step"])
	assert.Equal(t, "fallback", data["verification"].(map[string]interface{})["status"])

	w, resp = doJSON(t, r, http.MethodPost, "/sessions/s1/phone/verify", gin.H{"code": "333333"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, domain.MsgTryAgain, resp["error"])
	assert.Equal(t, "transport", resp["kind"])

	w, _ = doJSON(t, r, http.MethodPost, "/sessions/s1/phone/verify", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlers_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
	}{
		{name: "selection in progress", err: domain.ErrSelectionLocked, expectCode: http.StatusConflict},
		{name: "wrong step", err: domain.ErrInvalidStep, expectCode: http.StatusConflict},
		{name: "unavailable method", err: domain.NewValidationError("type", domain.ErrPaymentMethodUnavailable), expectCode: http.StatusBadRequest},
		{name: "gateway timeout", err: domain.NewTimeoutError(domain.MsgPaymentTimeout, domain.ErrGatewayTimeout), expectCode: http.StatusGatewayTimeout},
		{name: "unclassified", err: assert.AnError, expectCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &stubFlow{selectFunc: func(id, optionType string) (*domain.DonationSession, error) {
				return nil, tt.err
			}}
			r := setupSessionRouter(flow, time.Now())
			w, _ := doJSON(t, r, http.MethodPost, "/sessions/s1/payment-method", gin.H{"type": "credit_card"})
			assert.Equal(t, tt.expectCode, w.Code)
		})
	}
}

func TestSessionHandlers_SendReceipt(t *testing.T) {
	var channel domain.ReceiptChannel
	flow := &stubFlow{receiptFunc: func(id string, c domain.ReceiptChannel) error {
		channel = c
		if c == domain.ReceiptEmail {
			return domain.NewValidationError("email", domain.ErrReceiptContactMissing)
		}
		return nil
	}}
	r := setupSessionRouter(flow, time.Now())

	w, _ := doJSON(t, r, http.MethodPost, "/sessions/s1/receipt", gin.H{"channel": "sms"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ReceiptSMS, channel)

	w, resp := doJSON(t, r, http.MethodPost, "/sessions/s1/receipt", gin.H{"channel": "email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", resp["field"])
}
