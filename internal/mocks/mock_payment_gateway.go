package mocks

import (
	"context"
	"sync"

	"github.com/you/kioskpay/domain"
)

// MockPaymentGateway implements domain.PaymentGateway interface for testing.
// By default payments are approved with shva code 000 and status checks never succeed.
type MockPaymentGateway struct {
	InitiatePaymentFunc func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error)
	CheckStatusFunc     func(ctx context.Context, docToken string) (bool, error)
	SendReceiptFunc     func(ctx context.Context, documentID string, channel domain.ReceiptChannel, contact string) error

	mu          sync.Mutex
	requests    []domain.PaymentRequest
	statusCalls int
}

// NewMockPaymentGateway creates a new MockPaymentGateway with default behaviors
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

// InitiatePayment records the request without card data
func (m *MockPaymentGateway) InitiatePayment(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
	m.mu.Lock()
	cp := *req
	m.requests = append(m.requests, cp)
	m.mu.Unlock()
	if m.InitiatePaymentFunc != nil {
		return m.InitiatePaymentFunc(ctx, req)
	}
	return &domain.GatewayResult{
		Success:       true,
		TransactionID: req.TransactionID,
		DocumentID:    "doc_" + req.TransactionID,
		ShvaCode:      "000",
	}, nil
}

// CheckStatus records the call
func (m *MockPaymentGateway) CheckStatus(ctx context.Context, docToken string) (bool, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, docToken)
	}
	return false, nil
}

// SendReceipt sends a duplicate receipt
func (m *MockPaymentGateway) SendReceipt(ctx context.Context, documentID string, channel domain.ReceiptChannel, contact string) error {
	if m.SendReceiptFunc != nil {
		return m.SendReceiptFunc(ctx, documentID, channel, contact)
	}
	return nil
}

// Requests returns every initiate request received
func (m *MockPaymentGateway) Requests() []domain.PaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PaymentRequest(nil), m.requests...)
}

// StatusCalls returns how many status checks were made
func (m *MockPaymentGateway) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// Compile-time interface compliance verification
var _ domain.PaymentGateway = (*MockPaymentGateway)(nil)
