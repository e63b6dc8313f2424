package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/scheduler"
)

// IdentityConfig holds the verification budget
type IdentityConfig struct {
	MaxAttempts    int
	ResendCooldown time.Duration
}

// IdentityServiceImpl implements domain.DonorIdentityResolver.
// Exchanges are keyed by donation session id.
type IdentityServiceImpl struct {
	directory domain.DonorDirectory
	repo      domain.VerificationRepository
	audit     domain.AuditLogger
	clock     scheduler.Scheduler
	cfg       IdentityConfig
}

// NewIdentityService creates a new donor identity resolver
func NewIdentityService(
	directory domain.DonorDirectory,
	repo domain.VerificationRepository,
	audit domain.AuditLogger,
	clock scheduler.Scheduler,
	cfg IdentityConfig,
) domain.DonorIdentityResolver {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &IdentityServiceImpl{
		directory: directory,
		repo:      repo,
		audit:     audit,
		clock:     clock,
		cfg:       cfg,
	}
}

// SendCode implements domain.DonorIdentityResolver.
// ErrDonorUnknown is returned unchanged so the caller can fall back to manual entry.
func (s *IdentityServiceImpl) SendCode(ctx context.Context, sessionID, phone string) (*domain.VerificationSession, error) {
	if !domain.IsValidPhone(phone) {
		return nil, domain.NewValidationError("phone", domain.ErrInvalidPhone)
	}
	phone = domain.NormalizePhone(phone)

	dispatch, err := s.directory.SendCode(ctx, phone, false)
	if err != nil {
		return nil, classifyDirectoryError(err)
	}

	v := &domain.VerificationSession{
		Phone:             phone,
		SessionID:         dispatch.SessionID,
		ResendAvailableAt: s.clock.Now().Add(s.cfg.ResendCooldown),
	}
	if err := s.repo.Save(ctx, sessionID, v); err != nil {
		return nil, fmt.Errorf("failed to store verification: %w", err)
	}

	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.DonorCodeSentEvent, sessionID).WithPhone(phone))
	return v, nil
}

// Resend implements domain.DonorIdentityResolver.
// During the cooldown the current exchange is returned with ErrResendCooldown.
func (s *IdentityServiceImpl) Resend(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	v, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if now.Before(v.ResendAvailableAt) {
		return v, fmt.Errorf("%w: %d seconds remaining", domain.ErrResendCooldown, RemainingSeconds(v, now))
	}

	dispatch, err := s.directory.SendCode(ctx, v.Phone, false)
	if err != nil {
		return nil, classifyDirectoryError(err)
	}

	v.SessionID = dispatch.SessionID
	v.ResendAvailableAt = now.Add(s.cfg.ResendCooldown)
	v.ClearCells()
	if err := s.repo.Save(ctx, sessionID, v); err != nil {
		return nil, fmt.Errorf("failed to store verification: %w", err)
	}

	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.DonorCodeSentEvent, sessionID).WithPhone(v.Phone).WithMetadata("resend", true))
	return v, nil
}

// EnterDigit implements domain.DonorIdentityResolver.
// An empty digit clears the cell. Filling the last cell submits the code.
func (s *IdentityServiceImpl) EnterDigit(ctx context.Context, sessionID string, index int, digit string) (*domain.VerificationResult, error) {
	if index < 0 || index >= len(domain.VerificationSession{}.Cells) {
		return nil, domain.NewValidationError("index", domain.ErrInvalidDigit)
	}
	if digit != "" && !domain.IsValidCodeDigit(digit) {
		return nil, domain.NewValidationError("digit", domain.ErrInvalidDigit)
	}

	v, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	v.Cells[index] = digit
	if v.Complete() {
		return s.verify(ctx, sessionID, v, v.Code())
	}

	if err := s.repo.Save(ctx, sessionID, v); err != nil {
		return nil, fmt.Errorf("failed to store verification: %w", err)
	}
	return &domain.VerificationResult{
		Status:            domain.VerificationPending,
		Phone:             v.Phone,
		AttemptsRemaining: s.cfg.MaxAttempts - v.AttemptsUsed,
		FilledCells:       filled(v),
	}, nil
}

// Verify implements domain.DonorIdentityResolver
func (s *IdentityServiceImpl) Verify(ctx context.Context, sessionID, code string) (*domain.VerificationResult, error) {
	if !domain.IsValidCode(code) {
		return nil, domain.NewValidationError("code", domain.ErrInvalidCode)
	}
	v, err := s.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, sessionID, v, code)
}

// ManualEntry implements domain.DonorIdentityResolver
func (s *IdentityServiceImpl) ManualEntry(ctx context.Context, sessionID string) error {
	if err := s.repo.Close(ctx, sessionID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.DonorFallbackManualEvent, sessionID).WithMetadata("reason", "skipped"))
	return nil
}

// open loads a live exchange. Closed exchanges never reach the directory again.
func (s *IdentityServiceImpl) open(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	closed, err := s.repo.IsClosed(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, domain.ErrVerificationClosed
	}
	return s.repo.Find(ctx, sessionID)
}

func (s *IdentityServiceImpl) verify(ctx context.Context, sessionID string, v *domain.VerificationSession, code string) (*domain.VerificationResult, error) {
	profile, err := s.directory.VerifyCode(ctx, v.Phone, code, v.SessionID, false)
	switch {
	case err == nil:
		if err := s.repo.Delete(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to remove verification: %w", err)
		}
		s.audit.LogDonorVerification(ctx, sessionID, v.Phone, true, "")
		return &domain.VerificationResult{
			Status:            domain.VerificationVerified,
			Phone:             v.Phone,
			Profile:           profile,
			AttemptsRemaining: s.cfg.MaxAttempts - v.AttemptsUsed,
		}, nil

	case errors.Is(err, domain.ErrCodeInvalid):
		v.AttemptsUsed++
		v.ClearCells()
		s.audit.LogDonorVerification(ctx, sessionID, v.Phone, false, err.Error())

		if v.AttemptsUsed >= s.cfg.MaxAttempts {
			if err := s.repo.Close(ctx, sessionID); err != nil {
				return nil, fmt.Errorf("failed to close verification: %w", err)
			}
			s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.DonorFallbackManualEvent, sessionID).
				WithPhone(v.Phone).WithMetadata("reason", "attempts_exhausted"))
			return &domain.VerificationResult{Status: domain.VerificationFallback, Phone: v.Phone}, nil
		}

		if err := s.repo.Save(ctx, sessionID, v); err != nil {
			return nil, fmt.Errorf("failed to store verification: %w", err)
		}
		return &domain.VerificationResult{
			Status:            domain.VerificationRejected,
			Phone:             v.Phone,
			AttemptsRemaining: s.cfg.MaxAttempts - v.AttemptsUsed,
		}, nil
	}

	// Transport failures keep the attempt budget; the cells are cleared for re-entry
	v.ClearCells()
	if saveErr := s.repo.Save(ctx, sessionID, v); saveErr != nil {
		return nil, fmt.Errorf("failed to store verification: %w", saveErr)
	}
	return nil, classifyDirectoryError(err)
}

// RemainingSeconds is the resend cooldown left, rounded up
func RemainingSeconds(v *domain.VerificationSession, now time.Time) int {
	left := v.ResendAvailableAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func filled(v *domain.VerificationSession) int {
	n := 0
	for _, c := range v.Cells {
		if c != "" {
			n++
		}
	}
	return n
}

// classifyDirectoryError keeps known sentinels and turns the rest into transport errors
func classifyDirectoryError(err error) error {
	switch {
	case errors.Is(err, domain.ErrDonorUnknown),
		errors.Is(err, domain.ErrNotGabbai),
		errors.Is(err, domain.ErrResendCooldown),
		errors.Is(err, domain.ErrCodeInvalid):
		return err
	}
	if _, ok := domain.KindOf(err); ok {
		return err
	}
	return domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrDirectoryTransport, err))
}
