package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
)

func validRequest() *domain.PaymentRequest {
	return &domain.PaymentRequest{
		CompanyID:     "c1",
		TransactionID: "txn_1",
		Method:        "credit_card",
		NextAction:    domain.NextActionTyping,
		Customer:      domain.Donor{FirstName: "Moshe", LastName: "Cohen", Phone: "0501234567"},
		Items:         []domain.PaymentItem{{ItemID: "101", Name: "Torah", Amount: 100, Quantity: 1}},
		Card:          &domain.SensitiveCardData{CardNumber: "4580000000000000", CardHolder: "Moshe", ExpiryMMYY: "12/30", CVV: "123"},
	}
}

func TestClient_InitiatePayment(t *testing.T) {
	var got initiateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/initiate-payment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"transactionId":"txn_1","idDoc":"doc_7","shvaCode":"000"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.URL+"/status", "tok", "bitkey", time.Second)
	res, err := c.InitiatePayment(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "doc_7", res.DocumentID)
	assert.Equal(t, "000", res.ShvaCode)

	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "c1", got.CompanyID)
	assert.Equal(t, "typing", got.NextAction)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "101", got.Items[0].ItemID)
	require.NotNil(t, got.CardData)
	assert.Equal(t, "12/30", got.CardData.Expiry)
	assert.Nil(t, got.Recurring)
}

func TestClient_InitiatePaymentFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		mutate   func(r *domain.PaymentRequest)
		wantKind domain.ErrorKind
		wantErr  error
	}{
		{
			name:     "missing item id is a validation error",
			mutate:   func(r *domain.PaymentRequest) { r.Items[0].ItemID = "" },
			wantKind: domain.KindValidation,
			wantErr:  domain.ErrMissingItemID,
		},
		{
			name:     "invalid phone is a validation error",
			mutate:   func(r *domain.PaymentRequest) { r.Customer.Phone = "0401234567" },
			wantKind: domain.KindValidation,
			wantErr:  domain.ErrInvalidPhone,
		},
		{
			name: "server error is transport",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantKind: domain.KindTransport,
			wantErr:  domain.ErrGatewayTransport,
		},
		{
			name: "non json body is malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>oops</html>`))
			},
			wantKind: domain.KindTransport,
			wantErr:  domain.ErrMalformedResponse,
		},
		{
			name: "missing success flag is malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"message":"hi"}`))
			},
			wantKind: domain.KindTransport,
			wantErr:  domain.ErrMalformedResponse,
		},
		{
			name: "slow gateway times out",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
				w.Write([]byte(`{"success":true}`))
			},
			wantKind: domain.KindTimeout,
			wantErr:  domain.ErrGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := tt.handler
			if handler == nil {
				handler = func(w http.ResponseWriter, r *http.Request) {
					t.Error("gateway must not be called")
				}
			}
			srv := httptest.NewServer(handler)
			defer srv.Close()

			c := NewClient(srv.URL, srv.URL, "tok", "bit", 100*time.Millisecond)
			req := validRequest()
			if tt.mutate != nil {
				tt.mutate(req)
			}
			_, err := c.InitiatePayment(context.Background(), req)
			require.Error(t, err)

			kind, ok := domain.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, kind)
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v in %v", tt.wantErr, err)
		})
	}
}

func TestClient_CheckStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "doc_tok", r.PostForm.Get("docToken"))
		assert.Equal(t, "bitkey", r.PostForm.Get("apiBit"))
		if calls < 2 {
			w.Write([]byte(`{"success":false}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/bitConfirm", "tok", "bitkey", time.Second)
	ok, err := c.CheckStatus(context.Background(), "doc_tok")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.CheckStatus(context.Background(), "doc_tok")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_SendReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body receiptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Channel == "email" {
			w.Write([]byte(`{"success":false,"message":"mailbox unavailable"}`))
			return
		}
		assert.Equal(t, "doc_1", body.DocumentID)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, "tok", "bit", time.Second)
	assert.NoError(t, c.SendReceipt(context.Background(), "doc_1", domain.ReceiptSMS, "0501234567"))

	err := c.SendReceipt(context.Background(), "doc_1", domain.ReceiptEmail, "a@b.co")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")
}
