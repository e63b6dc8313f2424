package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/you/kioskpay/domain"
)

// LogAuditLogger implements domain.AuditLogger by writing one line per event.
// Lines look like `PAYMENT_APPROVED: {"session_id":...}`.
type LogAuditLogger struct {
	logger *log.Logger
}

// NewLogAuditLogger writes audit lines to w
func NewLogAuditLogger(w io.Writer) domain.AuditLogger {
	return &LogAuditLogger{logger: log.New(w, "", log.LstdFlags|log.LUTC)}
}

// LogEvent implements domain.AuditLogger
func (l *LogAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	l.logger.Printf("%s: %s", event.EventType, data)
	return nil
}

// LogDonorVerification implements domain.AuditLogger
func (l *LogAuditLogger) LogDonorVerification(ctx context.Context, sessionID, phone string, success bool, errMsg string) error {
	eventType := domain.DonorVerifiedEvent
	if !success {
		eventType = domain.DonorVerificationFailedEvent
	}
	event := domain.NewAuditEvent(eventType, sessionID).WithPhone(phone)
	if !success {
		event.Success = false
		event.ErrorMsg = errMsg
	}
	return l.LogEvent(ctx, event)
}

// LogPaymentOutcome implements domain.AuditLogger
func (l *LogAuditLogger) LogPaymentOutcome(ctx context.Context, sessionID string, outcome domain.Outcome) error {
	event := domain.NewAuditEvent(outcomeEvent(outcome), sessionID).WithTransaction(outcome.TransactionID)
	if outcome.DocumentID != "" {
		event.WithMetadata("document_id", outcome.DocumentID)
	}
	if outcome.Kind == domain.OutcomeError {
		event.Success = false
		event.ErrorMsg = outcome.Message
		event.WithMetadata("reason", string(outcome.Reason))
		event.WithMetadata("retryable", outcome.Retryable)
	}
	return l.LogEvent(ctx, event)
}

func outcomeEvent(o domain.Outcome) domain.AuditEventType {
	if o.Kind == domain.OutcomeSuccess {
		return domain.PaymentApprovedEvent
	}
	switch o.Reason {
	case domain.KindGatewayDeclined:
		return domain.PaymentDeclinedEvent
	case domain.KindTimeout:
		if o.Message == domain.MsgPaymentWaitExpired {
			return domain.PaymentPollTimeoutEvent
		}
	}
	return domain.PaymentFailedEvent
}
