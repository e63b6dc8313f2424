package mocks

import (
	"context"
	"sync"

	"github.com/you/kioskpay/domain"
)

// MockAuditLogger implements domain.AuditLogger and records every event
type MockAuditLogger struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

// NewMockAuditLogger creates a new MockAuditLogger
func NewMockAuditLogger() *MockAuditLogger {
	return &MockAuditLogger{}
}

// LogEvent records the event
func (m *MockAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

// LogDonorVerification records a verification event
func (m *MockAuditLogger) LogDonorVerification(ctx context.Context, sessionID, phone string, success bool, errMsg string) error {
	eventType := domain.DonorVerifiedEvent
	if !success {
		eventType = domain.DonorVerificationFailedEvent
	}
	e := domain.NewAuditEvent(eventType, sessionID).WithPhone(phone)
	e.Success = success
	e.ErrorMsg = errMsg
	return m.LogEvent(ctx, e)
}

// LogPaymentOutcome records an outcome event
func (m *MockAuditLogger) LogPaymentOutcome(ctx context.Context, sessionID string, outcome domain.Outcome) error {
	eventType := domain.PaymentApprovedEvent
	if outcome.Kind == domain.OutcomeError {
		eventType = domain.PaymentFailedEvent
	}
	e := domain.NewAuditEvent(eventType, sessionID).WithTransaction(outcome.TransactionID)
	e.Success = outcome.Kind == domain.OutcomeSuccess
	e.ErrorMsg = outcome.Message
	return m.LogEvent(ctx, e)
}

// Events returns the recorded event types in order
func (m *MockAuditLogger) Events() []domain.AuditEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}

// Has reports whether an event of the given type was recorded
func (m *MockAuditLogger) Has(t domain.AuditEventType) bool {
	for _, e := range m.Events() {
		if e == t {
			return true
		}
	}
	return false
}

// Compile-time interface compliance verification
var _ domain.AuditLogger = (*MockAuditLogger)(nil)
