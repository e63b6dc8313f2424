package mocks

import (
	"strings"

	"github.com/you/kioskpay/domain"
)

// MockCodeHasher implements domain.CodeHasher interface for testing
type MockCodeHasher struct {
	HashFunc   func(code string) (string, error)
	VerifyFunc func(hashed, code string) bool
}

// NewMockCodeHasher creates a new MockCodeHasher with default behaviors
func NewMockCodeHasher() *MockCodeHasher {
	return &MockCodeHasher{}
}

// Hash prefixes the code with "hashed_" by default
func (m *MockCodeHasher) Hash(code string) (string, error) {
	if m.HashFunc != nil {
		return m.HashFunc(code)
	}
	return "hashed_" + code, nil
}

// Verify compares against the default Hash output
func (m *MockCodeHasher) Verify(hashed, code string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(hashed, code)
	}
	return strings.TrimPrefix(hashed, "hashed_") == code
}

// Compile-time interface compliance verification
var _ domain.CodeHasher = (*MockCodeHasher)(nil)
