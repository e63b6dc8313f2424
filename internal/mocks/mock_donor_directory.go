package mocks

import (
	"context"
	"sync"

	"github.com/you/kioskpay/domain"
)

// MockDonorDirectory implements domain.DonorDirectory interface for testing.
// By default every phone is known, the session id is "dir_session" and
// "123456" is the only accepted code.
type MockDonorDirectory struct {
	SendCodeFunc   func(ctx context.Context, phone string, gabbai bool) (*domain.CodeDispatch, error)
	VerifyCodeFunc func(ctx context.Context, phone, code, sessionID string, gabbai bool) (*domain.DonorProfile, error)

	mu          sync.Mutex
	sendCalls   int
	verifyCalls int
}

// NewMockDonorDirectory creates a new MockDonorDirectory with default behaviors
func NewMockDonorDirectory() *MockDonorDirectory {
	return &MockDonorDirectory{}
}

// SendCode records the call and dispatches a code
func (m *MockDonorDirectory) SendCode(ctx context.Context, phone string, gabbai bool) (*domain.CodeDispatch, error) {
	m.mu.Lock()
	m.sendCalls++
	m.mu.Unlock()
	if m.SendCodeFunc != nil {
		return m.SendCodeFunc(ctx, phone, gabbai)
	}
	return &domain.CodeDispatch{SessionID: "dir_session"}, nil
}

// VerifyCode records the call and checks the code
func (m *MockDonorDirectory) VerifyCode(ctx context.Context, phone, code, sessionID string, gabbai bool) (*domain.DonorProfile, error) {
	m.mu.Lock()
	m.verifyCalls++
	m.mu.Unlock()
	if m.VerifyCodeFunc != nil {
		return m.VerifyCodeFunc(ctx, phone, code, sessionID, gabbai)
	}
	if code != "123456" {
		return nil, domain.ErrCodeInvalid
	}
	return &domain.DonorProfile{FirstName: "Moshe", LastName: "Cohen", Phone: phone}, nil
}

// SendCalls returns how many times SendCode was called
func (m *MockDonorDirectory) SendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalls
}

// VerifyCalls returns how many times VerifyCode was called
func (m *MockDonorDirectory) VerifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyCalls
}

// Compile-time interface compliance verification
var _ domain.DonorDirectory = (*MockDonorDirectory)(nil)
