package mocks

import (
	"fmt"
	"strings"
	"time"

	"github.com/you/kioskpay/domain"
)

// MockTokenService implements domain.TokenService interface for testing
type MockTokenService struct {
	GenerateAdminTokenFunc func(subject, role string) (string, error)
	ValidateAdminTokenFunc func(token string) (*domain.TokenClaims, error)
	TTLValue               time.Duration
}

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{TTLValue: 30 * time.Minute}
}

// GenerateAdminToken returns admin_token_<role>_<subject> by default
func (m *MockTokenService) GenerateAdminToken(subject, role string) (string, error) {
	if m.GenerateAdminTokenFunc != nil {
		return m.GenerateAdminTokenFunc(subject, role)
	}
	return fmt.Sprintf("admin_token_%s_%s", role, subject), nil
}

// ValidateAdminToken accepts tokens produced by the default GenerateAdminToken
func (m *MockTokenService) ValidateAdminToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateAdminTokenFunc != nil {
		return m.ValidateAdminTokenFunc(token)
	}
	parts := strings.SplitN(token, "_", 4)
	if len(parts) != 4 || parts[0] != "admin" || parts[1] != "token" {
		return nil, domain.ErrTokenInvalid
	}
	now := time.Now()
	return &domain.TokenClaims{
		Subject:   parts[3],
		Role:      parts[2],
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.TTLValue).Unix(),
	}, nil
}

// TTL returns the configured token lifetime
func (m *MockTokenService) TTL() time.Duration { return m.TTLValue }

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)
