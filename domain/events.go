package domain

import (
	"context"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Session events
	SessionCreatedEvent   AuditEventType = "DONATION_SESSION_CREATED"
	SessionAbandonedEvent AuditEventType = "DONATION_SESSION_ABANDONED"

	// Donor verification events
	DonorCodeSentEvent           AuditEventType = "DONOR_CODE_SENT"
	DonorVerifiedEvent           AuditEventType = "DONOR_VERIFIED"
	DonorVerificationFailedEvent AuditEventType = "DONOR_VERIFICATION_FAILED"
	DonorFallbackManualEvent     AuditEventType = "DONOR_FALLBACK_MANUAL"

	// Payment events
	PaymentMethodSelectedEvent AuditEventType = "PAYMENT_METHOD_SELECTED"
	PaymentAttemptStartedEvent AuditEventType = "PAYMENT_ATTEMPT_STARTED"
	PaymentApprovedEvent       AuditEventType = "PAYMENT_APPROVED"
	PaymentDeclinedEvent       AuditEventType = "PAYMENT_DECLINED"
	PaymentFailedEvent         AuditEventType = "PAYMENT_FAILED"
	PaymentPollTimeoutEvent    AuditEventType = "PAYMENT_POLL_TIMEOUT"
	ReceiptSentEvent           AuditEventType = "RECEIPT_SENT"

	// Admin events
	GabbaiLoginEvent       AuditEventType = "GABBAI_LOGIN"
	GabbaiLoginFailedEvent AuditEventType = "GABBAI_LOGIN_FAILED"
	ConfigUpdatedEvent     AuditEventType = "KIOSK_CONFIG_UPDATED"
)

// AuditEvent represents a business event that occurred in the system
type AuditEvent struct {
	EventType     AuditEventType         `json:"event_type"`
	SessionID     string                 `json:"session_id,omitempty"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Phone         string                 `json:"phone,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	ErrorMsg      string                 `json:"error_msg,omitempty"`
	Success       bool                   `json:"success"`
}

// AuditLogger defines operations for audit logging
type AuditLogger interface {
	// LogEvent logs a generic audit event
	LogEvent(ctx context.Context, event *AuditEvent) error

	LogDonorVerification(ctx context.Context, sessionID, phone string, success bool, errMsg string) error
	LogPaymentOutcome(ctx context.Context, sessionID string, outcome Outcome) error
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType, sessionID string) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError sets error information on the audit event
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithPhone sets the phone field, masked
func (e *AuditEvent) WithPhone(phone string) *AuditEvent {
	e.Phone = MaskPhone(phone)
	return e
}

// WithTransaction sets the transaction id of the payment attempt
func (e *AuditEvent) WithTransaction(transactionID string) *AuditEvent {
	e.TransactionID = transactionID
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	e.Metadata[key] = value
	return e
}
