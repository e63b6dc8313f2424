package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/scheduler"
	"github.com/you/kioskpay/internal/vault"
)

const msgUnclaimedSuccess = "confirmed after the donor left the payment step"

// FlowDependencies wires the donation flow
type FlowDependencies struct {
	Sessions  domain.SessionRepository
	Config    domain.KioskConfigService
	Identity  domain.DonorIdentityResolver
	Selector  *PaymentMethodSelector
	Executor  domain.PaymentExecutor
	Vault     *vault.Store
	Receipts  domain.ReceiptService
	Attempts  domain.AttemptRepository
	Donors    domain.DonorRepository
	Publisher domain.TransitionPublisher
	Audit     domain.AuditLogger
	Scheduler scheduler.Scheduler
	// NewID generates session and transaction ids, uuid.NewString when nil
	NewID func() string
}

// FlowServiceImpl implements domain.DonationFlow.
// Each session has a single writer: every operation runs under the session lock.
type FlowServiceImpl struct {
	deps FlowDependencies

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	returns map[string]func()
}

// NewFlowService creates a new donation flow
func NewFlowService(deps FlowDependencies) *FlowServiceImpl {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &FlowServiceImpl{
		deps:    deps,
		locks:   make(map[string]*sync.Mutex),
		returns: make(map[string]func()),
	}
}

// Start implements domain.DonationFlow
func (f *FlowServiceImpl) Start(ctx context.Context) (*domain.DonationSession, error) {
	if _, err := f.deps.Config.Current(ctx); err != nil {
		return nil, err
	}

	s := domain.NewDonationSession(f.deps.NewID(), f.deps.Scheduler.Now())
	s = f.transition(ctx, s, nil)
	if err := f.deps.Sessions.Save(ctx, &s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	f.deps.Audit.LogEvent(ctx, domain.NewAuditEvent(domain.SessionCreatedEvent, s.ID))
	return &s, nil
}

// Get implements domain.DonationFlow
func (f *FlowServiceImpl) Get(ctx context.Context, sessionID string) (*domain.DonationSession, error) {
	return f.deps.Sessions.FindByID(ctx, sessionID)
}

// SelectTarget implements domain.DonationFlow
func (f *FlowServiceImpl) SelectTarget(ctx context.Context, sessionID, targetID string) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepTargetSelection, domain.StepAmount); err != nil {
			return s, err
		}
		cfg, err := f.deps.Config.Current(ctx)
		if err != nil {
			return s, err
		}
		if targetID == "" {
			return s, domain.NewValidationError("target_id", domain.ErrInvalidTarget)
		}
		target, ok := cfg.FindTarget(targetID)
		if !ok {
			return s, domain.NewValidationError("target_id", domain.ErrTargetNotFound)
		}
		return s.WithTarget(target)
	})
}

// SetAmount implements domain.DonationFlow.
// A quick pick and the same amount typed on the keypad produce the same session.
func (f *FlowServiceImpl) SetAmount(ctx context.Context, sessionID string, in domain.AmountInput) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepAmount, domain.StepPhone); err != nil {
			return s, err
		}
		cfg, err := f.deps.Config.Current(ctx)
		if err != nil {
			return s, err
		}

		amount, err := resolveAmount(cfg, in)
		if err != nil {
			return s, err
		}

		var rec domain.Recurrence
		if in.Recurring {
			if !HasRecurringPaymentMethod(EnabledPaymentOptions(cfg)) {
				return s, domain.NewValidationError("recurring", domain.ErrPaymentMethodUnavailable)
			}
			if rec, err = domain.ParseMonths(in.Months); err != nil {
				return s, err
			}
		}
		return s.WithAmount(amount, in.Recurring, rec)
	})
}

// SendCode implements domain.DonationFlow.
// A phone the directory does not know moves straight to details as a new donor.
func (f *FlowServiceImpl) SendCode(ctx context.Context, sessionID, phone string) (*domain.DonationSession, *domain.VerificationSession, error) {
	var v *domain.VerificationSession
	s, err := f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepPhone, domain.StepCode); err != nil {
			return s, err
		}
		sent, err := f.deps.Identity.SendCode(ctx, sessionID, phone)
		if errors.Is(err, domain.ErrDonorUnknown) {
			return s.WithManualDonor(phone, true), nil
		}
		if err != nil {
			return s, err
		}
		v = sent
		return s.WithPhonePending(phone)
	})
	return s, v, err
}

// ResendCode implements domain.DonationFlow
func (f *FlowServiceImpl) ResendCode(ctx context.Context, sessionID string) (*domain.VerificationSession, error) {
	var v *domain.VerificationSession
	var resendErr error
	_, err := f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepCode); err != nil {
			return s, err
		}
		v, resendErr = f.deps.Identity.Resend(ctx, sessionID)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v, resendErr
}

// EnterDigit implements domain.DonationFlow
func (f *FlowServiceImpl) EnterDigit(ctx context.Context, sessionID string, index int, digit string) (*domain.DonationSession, *domain.VerificationResult, error) {
	return f.checkCode(ctx, sessionID, func() (*domain.VerificationResult, error) {
		return f.deps.Identity.EnterDigit(ctx, sessionID, index, digit)
	})
}

// VerifyCode implements domain.DonationFlow
func (f *FlowServiceImpl) VerifyCode(ctx context.Context, sessionID, code string) (*domain.DonationSession, *domain.VerificationResult, error) {
	return f.checkCode(ctx, sessionID, func() (*domain.VerificationResult, error) {
		return f.deps.Identity.Verify(ctx, sessionID, code)
	})
}

func (f *FlowServiceImpl) checkCode(ctx context.Context, sessionID string, check func() (*domain.VerificationResult, error)) (*domain.DonationSession, *domain.VerificationResult, error) {
	var res *domain.VerificationResult
	var checkErr error
	s, err := f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepCode); err != nil {
			return s, err
		}
		res, checkErr = check()
		if checkErr != nil {
			return s, nil
		}
		switch res.Status {
		case domain.VerificationVerified:
			return s.WithVerifiedDonor(res.Phone, res.Profile), nil
		case domain.VerificationFallback:
			return s.WithManualDonor(s.Donor.Phone, false), nil
		}
		return s, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s, res, checkErr
}

// ManualEntry implements domain.DonationFlow
func (f *FlowServiceImpl) ManualEntry(ctx context.Context, sessionID string) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepPhone, domain.StepCode); err != nil {
			return s, err
		}
		if err := f.deps.Identity.ManualEntry(ctx, sessionID); err != nil {
			return s, err
		}
		return s.WithManualDonor(s.Donor.Phone, false), nil
	})
}

// SubmitDonor implements domain.DonationFlow
func (f *FlowServiceImpl) SubmitDonor(ctx context.Context, sessionID string, donor domain.Donor) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepDetails, domain.StepConfirmation); err != nil {
			return s, err
		}
		cfg, err := f.deps.Config.Current(ctx)
		if err != nil {
			return s, err
		}
		return s.WithDonor(donor, cfg.Settings.RequireID)
	})
}

// Confirm implements domain.DonationFlow
func (f *FlowServiceImpl) Confirm(ctx context.Context, sessionID string) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepConfirmation); err != nil {
			return s, err
		}
		next, err := s.Confirm()
		if err != nil {
			return s, err
		}
		return next, f.deps.Selector.Focus(ctx, sessionID)
	})
}

// PaymentMethods implements domain.DonationFlow
func (f *FlowServiceImpl) PaymentMethods(ctx context.Context, sessionID string) ([]domain.PaymentOption, error) {
	s, err := f.deps.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return f.offered(ctx, *s)
}

// FocusPaymentMethods implements domain.DonationFlow
func (f *FlowServiceImpl) FocusPaymentMethods(ctx context.Context, sessionID string) error {
	if _, err := f.deps.Sessions.FindByID(ctx, sessionID); err != nil {
		return err
	}
	return f.deps.Selector.Focus(ctx, sessionID)
}

// SelectPaymentMethod implements domain.DonationFlow.
// Options without an input step (none) and hosted pages (iframe) execute at once.
func (f *FlowServiceImpl) SelectPaymentMethod(ctx context.Context, sessionID, optionType string) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepPaymentMethod); err != nil {
			return s, err
		}
		offered, err := f.offered(ctx, s)
		if err != nil {
			return s, err
		}

		opt, _, err := f.deps.Selector.Select(ctx, sessionID, offered, optionType)
		if err != nil {
			return s, err
		}

		var attempt domain.PaymentAttempt
		if s.CanReuseAttempt(opt.Type) {
			attempt = *s.Attempt
		} else {
			f.deps.Vault.Clear(sessionID)
			attempt = s.NewAttempt(f.deps.NewID(), f.deps.Scheduler.Now())
		}

		next, err := s.WithPaymentMethod(opt, attempt)
		if err != nil {
			f.deps.Selector.Focus(ctx, sessionID)
			return s, err
		}
		f.saveAttempt(ctx, next, "", "")
		f.deps.Audit.LogEvent(ctx, domain.NewAuditEvent(domain.PaymentMethodSelectedEvent, sessionID).
			WithTransaction(attempt.TransactionID).
			WithMetadata("method", opt.Type).
			WithMetadata("next_action", string(opt.NextAction)).
			WithMetadata("attempt", attempt.Number))

		if opt.NextAction == domain.NextActionNone || opt.NextAction == domain.NextActionIframe {
			executed, err := f.execute(ctx, next, opt)
			if err != nil {
				f.deps.Selector.Focus(ctx, sessionID)
				f.saveAttempt(ctx, next.WithAttemptStatus(domain.AttemptFailed), "", err.Error())
				return s, err
			}
			return executed, nil
		}
		return next, nil
	})
}

// SubmitCard implements domain.DonationFlow.
// The card is held in memory for the current attempt only.
func (f *FlowServiceImpl) SubmitCard(ctx context.Context, sessionID string, card domain.SensitiveCardData) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepCardEntry, domain.StepTapToPay); err != nil {
			return s, err
		}
		opt, err := f.currentOption(ctx, s)
		if err != nil {
			return s, err
		}
		if err := domain.ValidateCard(card, opt.NFC && s.NextAction == domain.NextActionTouch); err != nil {
			return s, err
		}
		f.deps.Vault.Set(sessionID, s.Attempt.TransactionID, card)
		return s.WithProcessing()
	})
}

// Pay implements domain.DonationFlow
func (f *FlowServiceImpl) Pay(ctx context.Context, sessionID string) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepProcessing, domain.StepTapToPay); err != nil {
			return s, err
		}
		opt, err := f.currentOption(ctx, s)
		if err != nil {
			return s, err
		}
		return f.execute(ctx, s, opt)
	})
}

// Leave implements domain.DonationFlow.
// Leaving a card or executing step drops the card data and stops polling;
// a stale leave for a step the session already moved past changes nothing.
func (f *FlowServiceImpl) Leave(ctx context.Context, sessionID string, step domain.Step) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		switch step {
		case domain.StepCardEntry, domain.StepTapToPay, domain.StepHostedPayment, domain.StepProcessing:
		default:
			return s, nil
		}

		f.deps.Vault.Clear(sessionID)
		if s.Step != step {
			return s, nil
		}
		if s.Attempt != nil {
			f.deps.Executor.Cancel(s.Attempt.TransactionID)
		}

		next := s.BackToPaymentMethods()
		if s.Attempt != nil && s.Attempt.Status == domain.AttemptPending {
			f.saveAttempt(ctx, next, "", "left payment step")
		}
		return next, f.deps.Selector.Focus(ctx, sessionID)
	})
}

// Retry implements domain.DonationFlow
func (f *FlowServiceImpl) Retry(ctx context.Context, sessionID string) (*domain.DonationSession, error) {
	return f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if err := requireStep(s, domain.StepError); err != nil {
			return s, err
		}
		f.cancelReturn(sessionID)
		f.deps.Vault.Clear(sessionID)
		return s.BackToPaymentMethods(), f.deps.Selector.Focus(ctx, sessionID)
	})
}

// SendReceipt implements domain.DonationFlow
func (f *FlowServiceImpl) SendReceipt(ctx context.Context, sessionID string, channel domain.ReceiptChannel) error {
	s, err := f.deps.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	return f.deps.Receipts.Send(ctx, s, channel)
}

// Abandon implements domain.DonationFlow.
// The session, its card data, timers and polling are all removed.
func (f *FlowServiceImpl) Abandon(ctx context.Context, sessionID string) error {
	lock := f.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := f.deps.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	f.remove(ctx, *s)
	f.deps.Audit.LogEvent(ctx, domain.NewAuditEvent(domain.SessionAbandonedEvent, sessionID).
		WithMetadata("step", string(s.Step)))
	return nil
}

// Stop cancels every auto-return timer and polling supervisor and drops all card data
func (f *FlowServiceImpl) Stop() {
	f.mu.Lock()
	returns := f.returns
	f.returns = make(map[string]func())
	f.mu.Unlock()
	for _, cancel := range returns {
		cancel()
	}

	f.deps.Executor.Stop()
	f.deps.Vault.ClearAll()
}

// update loads the session, applies fn under the session lock and saves the result.
// A step change is published as a transition. On error nothing is saved.
func (f *FlowServiceImpl) update(ctx context.Context, sessionID string, fn func(domain.DonationSession) (domain.DonationSession, error)) (*domain.DonationSession, error) {
	lock := f.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	current, err := f.deps.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	if next.Step != current.Step {
		next = f.transition(ctx, next, transitionPayload(next))
	}
	if err := f.deps.Sessions.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &next, nil
}

// execute submits the current attempt. Synchronous executions resolve before
// returning; asynchronous ones leave the session on the hosted payment step.
func (f *FlowServiceImpl) execute(ctx context.Context, s domain.DonationSession, opt domain.PaymentOption) (domain.DonationSession, error) {
	cfg, err := f.deps.Config.Current(ctx)
	if err != nil {
		return s, err
	}

	processing, err := s.WithProcessing()
	if err != nil {
		return s, err
	}
	txn := processing.Attempt.TransactionID

	req := &domain.PaymentRequest{
		CompanyID:     cfg.Settings.CompanyID,
		TransactionID: txn,
		Method:        processing.PaymentMethodType,
		NextAction:    processing.NextAction,
		Customer:      processing.Donor,
		Items:         processing.PaymentItems(),
	}
	if processing.IsRecurring {
		rec := processing.Recurrence
		req.Recurrence = &rec
	}

	switch {
	case processing.NextAction == domain.NextActionTyping:
		card, err := f.deps.Vault.Take(s.ID, txn)
		if err != nil {
			return s, domain.NewValidationError("card", err)
		}
		req.Card = &card
	case f.deps.Vault.Holds(s.ID, txn):
		if card, err := f.deps.Vault.Take(s.ID, txn); err == nil {
			req.Card = &card
		}
	}
	defer f.deps.Vault.Clear(s.ID)

	f.deps.Audit.LogEvent(ctx, domain.NewAuditEvent(domain.PaymentAttemptStartedEvent, s.ID).
		WithTransaction(txn).
		WithMetadata("method", processing.PaymentMethodType).
		WithMetadata("amount", processing.Amount))

	async := opt.Async || opt.NextAction == domain.NextActionIframe
	sessionID := s.ID
	exec, err := f.deps.Executor.Execute(ctx, req, async, func(o domain.Outcome) {
		f.resolve(sessionID, o)
	})
	if err != nil {
		return s, err
	}

	if exec.Pending {
		return processing.WithPaymentURL(exec.PaymentURL)
	}
	return f.finish(ctx, processing, *exec.Outcome), nil
}

// resolve applies an asynchronous outcome. Outcomes for an attempt the
// session no longer waits on are dropped.
func (f *FlowServiceImpl) resolve(sessionID string, o domain.Outcome) {
	ctx := context.Background()
	_, err := f.update(ctx, sessionID, func(s domain.DonationSession) (domain.DonationSession, error) {
		if s.Attempt == nil || s.Attempt.TransactionID != o.TransactionID || s.Attempt.Status != domain.AttemptPending {
			return s, domain.ErrStaleOutcome
		}
		return f.finish(ctx, s, o), nil
	})
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrStaleOutcome) && o.Kind == domain.OutcomeSuccess {
		f.recordUnclaimedSuccess(ctx, sessionID, o)
		return
	}
	log.Printf("PAYMENT_OUTCOME_DROPPED: session_id=%s transaction_id=%s kind=%s error=%v",
		sessionID, o.TransactionID, o.Kind, err)
}

// recordUnclaimedSuccess marks a ledger row approved when the gateway confirmed
// a payment the session had already stopped waiting for
func (f *FlowServiceImpl) recordUnclaimedSuccess(ctx context.Context, sessionID string, o domain.Outcome) {
	log.Printf("PAYMENT_SUCCESS_UNCLAIMED: session_id=%s transaction_id=%s document_id=%s",
		sessionID, o.TransactionID, o.DocumentID)

	record, err := f.deps.Attempts.FindByTransactionID(ctx, o.TransactionID)
	if err != nil {
		log.Printf("PAYMENT_ATTEMPT_SAVE_FAILED: session_id=%s transaction_id=%s error=%v",
			sessionID, o.TransactionID, err)
		return
	}
	record.Status = domain.AttemptApproved
	record.DocumentID = o.DocumentID
	record.Message = msgUnclaimedSuccess
	if err := f.deps.Attempts.Save(ctx, record); err != nil {
		log.Printf("PAYMENT_ATTEMPT_SAVE_FAILED: session_id=%s transaction_id=%s error=%v",
			sessionID, o.TransactionID, err)
	}
	f.deps.Audit.LogEvent(ctx, domain.NewAuditEvent(domain.PaymentApprovedEvent, sessionID).
		WithTransaction(o.TransactionID).
		WithMetadata("document_id", o.DocumentID).
		WithMetadata("unclaimed", true))
}

// finish records the terminal outcome, updates the ledger and schedules the return home
func (f *FlowServiceImpl) finish(ctx context.Context, s domain.DonationSession, o domain.Outcome) domain.DonationSession {
	next, err := s.WithOutcome(o)
	if err != nil {
		log.Printf("PAYMENT_OUTCOME_REJECTED: session_id=%s transaction_id=%s error=%v", s.ID, o.TransactionID, err)
		return s
	}

	f.deps.Vault.Clear(s.ID)
	f.saveAttempt(ctx, next, o.DocumentID, o.Message)
	f.deps.Audit.LogPaymentOutcome(ctx, s.ID, o)

	if o.Kind == domain.OutcomeSuccess {
		profile := &domain.DonorProfile{
			FirstName:  next.Donor.FirstName,
			LastName:   next.Donor.LastName,
			Phone:      next.Donor.Phone,
			NationalID: next.Donor.NationalID,
			Email:      next.Donor.Email,
		}
		if err := f.deps.Donors.Upsert(ctx, profile); err != nil {
			log.Printf("DONOR_PROFILE_SAVE_FAILED: session_id=%s error=%v", s.ID, err)
		}
	}

	f.scheduleReturn(ctx, next)
	return next
}

// scheduleReturn expires a terminal session after the configured auto-return delay
func (f *FlowServiceImpl) scheduleReturn(ctx context.Context, s domain.DonationSession) {
	cfg, err := f.deps.Config.Current(ctx)
	if err != nil || cfg.Settings.AutoReturnSeconds <= 0 {
		return
	}

	sessionID := s.ID
	txn := s.Attempt.TransactionID
	f.cancelReturn(sessionID)
	cancel := f.deps.Scheduler.After(time.Duration(cfg.Settings.AutoReturnSeconds)*time.Second, func() {
		f.expire(sessionID, txn)
	})

	f.mu.Lock()
	f.returns[sessionID] = cancel
	f.mu.Unlock()
}

func (f *FlowServiceImpl) expire(sessionID, txn string) {
	ctx := context.Background()
	lock := f.lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f.mu.Lock()
	delete(f.returns, sessionID)
	f.mu.Unlock()

	s, err := f.deps.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return
	}
	if !s.Step.IsTerminal() || s.Attempt == nil || s.Attempt.TransactionID != txn {
		return
	}
	f.remove(ctx, *s)
}

// remove deletes a session and everything bound to it. Callers hold the session lock.
func (f *FlowServiceImpl) remove(ctx context.Context, s domain.DonationSession) {
	f.cancelReturn(s.ID)
	if s.Attempt != nil {
		f.deps.Executor.Cancel(s.Attempt.TransactionID)
		if s.Attempt.Status == domain.AttemptPending {
			f.saveAttempt(ctx, s.BackToPaymentMethods(), "", "session abandoned")
		}
	}
	f.deps.Vault.Clear(s.ID)
	f.deps.Selector.Focus(ctx, s.ID)

	if err := f.deps.Sessions.Delete(ctx, s.ID); err != nil {
		log.Printf("SESSION_DELETE_FAILED: session_id=%s error=%v", s.ID, err)
	}
	f.publish(ctx, domain.Transition{SessionID: s.ID, Step: domain.StepHome, OccurredAt: f.deps.Scheduler.Now()})

	f.mu.Lock()
	delete(f.locks, s.ID)
	f.mu.Unlock()
}

func (f *FlowServiceImpl) cancelReturn(sessionID string) {
	f.mu.Lock()
	cancel := f.returns[sessionID]
	delete(f.returns, sessionID)
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (f *FlowServiceImpl) lock(sessionID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[sessionID] = l
	}
	return l
}

func (f *FlowServiceImpl) transition(ctx context.Context, s domain.DonationSession, payload map[string]string) domain.DonationSession {
	t := domain.Transition{
		SessionID:  s.ID,
		Step:       s.Step,
		Payload:    payload,
		OccurredAt: f.deps.Scheduler.Now(),
	}
	f.publish(ctx, t)
	return s.WithTransition(t)
}

func (f *FlowServiceImpl) publish(ctx context.Context, t domain.Transition) {
	if err := f.deps.Publisher.Publish(ctx, t); err != nil {
		log.Printf("TRANSITION_PUBLISH_FAILED: session_id=%s step=%s error=%v", t.SessionID, t.Step, err)
	}
}

func (f *FlowServiceImpl) offered(ctx context.Context, s domain.DonationSession) ([]domain.PaymentOption, error) {
	cfg, err := f.deps.Config.Current(ctx)
	if err != nil {
		return nil, err
	}
	options := AvailablePaymentMethods(EnabledPaymentOptions(cfg), s.IsRecurring)
	if len(options) == 0 {
		return nil, domain.ErrNoPaymentMethods
	}
	return options, nil
}

func (f *FlowServiceImpl) currentOption(ctx context.Context, s domain.DonationSession) (domain.PaymentOption, error) {
	if s.Attempt == nil {
		return domain.PaymentOption{}, domain.ErrNoActiveAttempt
	}
	cfg, err := f.deps.Config.Current(ctx)
	if err != nil {
		return domain.PaymentOption{}, err
	}
	opt, ok := cfg.FindPaymentOption(s.PaymentMethodType)
	if !ok {
		return domain.PaymentOption{}, domain.NewValidationError("type", domain.ErrPaymentMethodUnavailable)
	}
	return opt, nil
}

// saveAttempt writes the ledger row for the session's current attempt
func (f *FlowServiceImpl) saveAttempt(ctx context.Context, s domain.DonationSession, documentID, message string) {
	if s.Attempt == nil {
		return
	}
	record := &domain.PaymentAttemptRecord{
		SessionID:     s.ID,
		TransactionID: s.Attempt.TransactionID,
		AttemptNumber: s.Attempt.Number,
		Method:        s.Attempt.Method,
		NextAction:    s.Attempt.NextAction,
		Amount:        s.Amount,
		Months:        s.Recurrence.Months,
		Unlimited:     s.Recurrence.Unlimited,
		TargetItemID:  s.Target.ItemID,
		DonorPhone:    s.Donor.Phone,
		Status:        s.Attempt.Status,
		DocumentID:    documentID,
		Message:       message,
	}
	if err := f.deps.Attempts.Save(ctx, record); err != nil {
		log.Printf("PAYMENT_ATTEMPT_SAVE_FAILED: session_id=%s transaction_id=%s error=%v",
			s.ID, s.Attempt.TransactionID, err)
	}
}

func requireStep(s domain.DonationSession, allowed ...domain.Step) error {
	for _, step := range allowed {
		if s.Step == step {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidStep, s.Step)
}

// resolveAmount takes exactly one of a configured quick pick or a typed amount
func resolveAmount(cfg *domain.KioskConfig, in domain.AmountInput) (int, error) {
	switch {
	case in.QuickAmount > 0 && in.CustomAmount != "":
		return 0, domain.NewValidationError("amount", domain.ErrInvalidAmount)
	case in.QuickAmount > 0:
		for _, a := range cfg.QuickAmounts {
			if a == in.QuickAmount {
				return a, nil
			}
		}
		return 0, domain.NewValidationError("amount", domain.ErrInvalidAmount)
	}
	return domain.ParseAmount(in.CustomAmount)
}

func transitionPayload(s domain.DonationSession) map[string]string {
	switch s.Step {
	case domain.StepHostedPayment:
		return map[string]string{"payment_url": s.PaymentURL}
	case domain.StepSuccess:
		return map[string]string{"document_id": s.Outcome.DocumentID}
	case domain.StepError:
		return map[string]string{
			"message":   s.Outcome.Message,
			"retryable": strconv.FormatBool(s.Outcome.Retryable),
		}
	case domain.StepDetails:
		if s.IsNewDonor {
			return map[string]string{"new_donor": "true"}
		}
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.DonationFlow = (*FlowServiceImpl)(nil)
