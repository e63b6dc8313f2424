package services

import (
	"context"
	"fmt"

	"github.com/you/kioskpay/domain"
)

// ReceiptServiceImpl implements domain.ReceiptService
type ReceiptServiceImpl struct {
	gateway domain.PaymentGateway
	audit   domain.AuditLogger
}

// NewReceiptService creates a new receipt service
func NewReceiptService(gateway domain.PaymentGateway, audit domain.AuditLogger) domain.ReceiptService {
	return &ReceiptServiceImpl{gateway: gateway, audit: audit}
}

// Send implements domain.ReceiptService.
// Only a session on the success step with a document can request a duplicate.
func (s *ReceiptServiceImpl) Send(ctx context.Context, session *domain.DonationSession, channel domain.ReceiptChannel) error {
	if session.Step != domain.StepSuccess || session.Outcome == nil || session.Outcome.DocumentID == "" {
		return domain.ErrNoDocument
	}

	var contact string
	switch channel {
	case domain.ReceiptSMS:
		contact = session.Donor.Phone
	case domain.ReceiptEmail:
		contact = session.Donor.Email
	default:
		return domain.NewValidationError("channel", domain.ErrReceiptChannel)
	}
	if contact == "" {
		return domain.NewValidationError("channel", domain.ErrReceiptContactMissing)
	}

	documentID := session.Outcome.DocumentID
	if err := s.gateway.SendReceipt(ctx, documentID, channel, contact); err != nil {
		s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.ReceiptSentEvent, session.ID).
			WithTransaction(session.Outcome.TransactionID).
			WithMetadata("channel", string(channel)).
			WithError(err))
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.ReceiptSentEvent, session.ID).
		WithTransaction(session.Outcome.TransactionID).
		WithMetadata("channel", string(channel)).
		WithMetadata("document_id", documentID))
	return nil
}
