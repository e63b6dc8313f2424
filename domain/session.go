package domain

import (
	"fmt"
	"time"
)

// Recurrence bounds offered by the amount step
const (
	MinRecurringMonths = 1
	MaxRecurringMonths = 24
)

// DonationSession is the state accumulated across the kiosk flow.
// Step functions never mutate the receiver; they return the next value.
type DonationSession struct {
	ID                string          `json:"id"`
	Step              Step            `json:"step"`
	Target            Target          `json:"target"`
	Amount            int             `json:"amount"`
	IsRecurring       bool            `json:"is_recurring"`
	Recurrence        Recurrence      `json:"recurrence"`
	Donor             Donor           `json:"donor"`
	IsPhoneVerified   bool            `json:"is_phone_verified"`
	IsPhoneLocked     bool            `json:"is_phone_locked"`
	IsNewDonor        bool            `json:"is_new_donor"`
	PaymentMethodType string          `json:"payment_method_type,omitempty"`
	NextAction        NextAction      `json:"next_action,omitempty"`
	Attempt           *PaymentAttempt `json:"attempt,omitempty"`
	PaymentURL        string          `json:"payment_url,omitempty"`
	Outcome           *Outcome        `json:"outcome,omitempty"`
	LastTransition    *Transition     `json:"last_transition,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewDonationSession starts a session on the target selection step
func NewDonationSession(id string, now time.Time) DonationSession {
	return DonationSession{
		ID:        id,
		Step:      StepTargetSelection,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalAmount returns the amount charged over the whole donation.
// The second result is false when there is no bounded total to show.
func (s DonationSession) TotalAmount() (int, bool) {
	if !s.IsRecurring {
		return s.Amount, true
	}
	if s.Recurrence.Unlimited {
		return 0, false
	}
	return s.Amount * s.Recurrence.Months, true
}

// WithTarget records the selected donation cause
func (s DonationSession) WithTarget(t Target) (DonationSession, error) {
	if t.ID == "" {
		return s, NewValidationError("target_id", ErrInvalidTarget)
	}
	s.Target = t
	s.Step = StepAmount
	return s, nil
}

// WithAmount records a one-time or recurring amount.
// Recurrence is cleared for one-time donations.
func (s DonationSession) WithAmount(amount int, recurring bool, rec Recurrence) (DonationSession, error) {
	if amount <= 0 {
		return s, NewValidationError("amount", ErrInvalidAmount)
	}
	if recurring {
		if !rec.Unlimited && (rec.Months < MinRecurringMonths || rec.Months > MaxRecurringMonths) {
			return s, NewValidationError("months", ErrInvalidMonths)
		}
		if rec.Unlimited {
			rec.Months = 0
		}
	} else {
		rec = Recurrence{}
	}
	s.Amount = amount
	s.IsRecurring = recurring
	s.Recurrence = rec
	s.Step = StepPhone
	return s, nil
}

// WithPhonePending records the phone a verification code was sent to
func (s DonationSession) WithPhonePending(phone string) (DonationSession, error) {
	if !IsValidPhone(phone) {
		return s, NewValidationError("phone", ErrInvalidPhone)
	}
	s.Donor.Phone = NormalizePhone(phone)
	s.Step = StepCode
	return s, nil
}

// WithVerifiedDonor prefills the donor from a directory profile and locks the phone
func (s DonationSession) WithVerifiedDonor(phone string, profile *DonorProfile) DonationSession {
	s.Donor.Phone = NormalizePhone(phone)
	if profile != nil {
		s.Donor.FirstName = profile.FirstName
		s.Donor.LastName = profile.LastName
		s.Donor.NationalID = profile.NationalID
		s.Donor.Email = profile.Email
	}
	s.IsPhoneVerified = true
	s.IsPhoneLocked = true
	s.IsNewDonor = false
	s.Step = StepDetails
	return s
}

// WithManualDonor moves to manual details entry keeping the phone when known
func (s DonationSession) WithManualDonor(phone string, isNew bool) DonationSession {
	if phone != "" {
		s.Donor.Phone = NormalizePhone(phone)
	}
	s.IsPhoneVerified = false
	s.IsPhoneLocked = false
	s.IsNewDonor = isNew
	s.Step = StepDetails
	return s
}

// WithDonor validates the details form and moves to confirmation.
// A locked phone cannot be replaced.
func (s DonationSession) WithDonor(d Donor, requireID bool) (DonationSession, error) {
	if s.IsPhoneLocked {
		d.Phone = s.Donor.Phone
	}
	d.Phone = NormalizePhone(d.Phone)
	if err := ValidateDonor(d, requireID); err != nil {
		return s, err
	}
	s.Donor = d
	s.Step = StepConfirmation
	return s, nil
}

// Confirm moves from the summary to payment method selection
func (s DonationSession) Confirm() (DonationSession, error) {
	if err := s.readyForPayment(); err != nil {
		return s, err
	}
	s.Step = StepPaymentMethod
	return s, nil
}

// WithPaymentMethod records the chosen option and the step it dispatches to.
// attempt must be non-nil and carry the transaction id of this attempt.
func (s DonationSession) WithPaymentMethod(opt PaymentOption, attempt PaymentAttempt) (DonationSession, error) {
	step, err := DispatchStep(opt.NextAction)
	if err != nil {
		return s, err
	}
	if attempt.TransactionID == "" {
		return s, ErrNoActiveAttempt
	}
	s.PaymentMethodType = opt.Type
	s.NextAction = opt.NextAction
	attempt.Method = opt.Type
	attempt.NextAction = opt.NextAction
	attempt.Status = AttemptPending
	s.Attempt = &attempt
	s.Outcome = nil
	s.PaymentURL = ""
	s.Step = step
	return s, nil
}

// NewAttempt returns a fresh attempt numbered after the current one
func (s DonationSession) NewAttempt(transactionID string, now time.Time) PaymentAttempt {
	number := 1
	if s.Attempt != nil {
		number = s.Attempt.Number + 1
	}
	return PaymentAttempt{
		TransactionID: transactionID,
		Number:        number,
		Status:        AttemptPending,
		StartedAt:     now,
	}
}

// WithAttemptStatus returns the session with a copy of its attempt set to status
func (s DonationSession) WithAttemptStatus(status AttemptStatus) DonationSession {
	if s.Attempt == nil {
		return s
	}
	attempt := *s.Attempt
	attempt.Status = status
	s.Attempt = &attempt
	return s
}

// CanReuseAttempt reports whether a retry with optionType continues the current attempt.
// Only transport and timeout failures with the same method keep the transaction id.
func (s DonationSession) CanReuseAttempt(optionType string) bool {
	if s.Attempt == nil || s.Attempt.Method != optionType {
		return false
	}
	if s.Attempt.Status == AttemptPending {
		return true
	}
	return s.Outcome != nil && s.Outcome.Kind == OutcomeError && s.Outcome.Retryable
}

// WithProcessing moves a pending attempt to the executing step
func (s DonationSession) WithProcessing() (DonationSession, error) {
	if s.Attempt == nil || s.Attempt.Status != AttemptPending {
		return s, ErrNoActiveAttempt
	}
	s.Step = StepProcessing
	return s, nil
}

// WithPaymentURL shows the hosted payment page of an asynchronous attempt
// while its confirmation is polled.
func (s DonationSession) WithPaymentURL(url string) (DonationSession, error) {
	if s.Attempt == nil || s.Attempt.Status != AttemptPending {
		return s, ErrNoActiveAttempt
	}
	s.PaymentURL = url
	s.Step = StepHostedPayment
	return s, nil
}

// WithOutcome records the first terminal outcome of the current attempt.
// Outcomes for another transaction or an already resolved attempt are rejected.
func (s DonationSession) WithOutcome(o Outcome) (DonationSession, error) {
	if s.Attempt == nil || s.Attempt.TransactionID != o.TransactionID {
		return s, ErrStaleOutcome
	}
	if s.Attempt.Status != AttemptPending {
		return s, ErrAttemptResolved
	}
	attempt := *s.Attempt
	switch o.Kind {
	case OutcomeSuccess:
		attempt.Status = AttemptApproved
		s.Step = StepSuccess
	case OutcomeError:
		attempt.Status = o.status()
		s.Step = StepError
	default:
		return s, fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	s.Attempt = &attempt
	s.Outcome = &o
	s.PaymentURL = ""
	return s, nil
}

// BackToPaymentMethods returns to method selection.
// A pending attempt is abandoned and will not be reused.
func (s DonationSession) BackToPaymentMethods() DonationSession {
	if s.Attempt != nil && s.Attempt.Status == AttemptPending {
		attempt := *s.Attempt
		attempt.Status = AttemptFailed
		s.Attempt = &attempt
	}
	s.PaymentURL = ""
	s.Step = StepPaymentMethod
	return s
}

// WithTransition stamps the last navigation on the session
func (s DonationSession) WithTransition(t Transition) DonationSession {
	s.LastTransition = &t
	s.UpdatedAt = t.OccurredAt
	return s
}

// PaymentItems builds the line items sent to the gateway
func (s DonationSession) PaymentItems() []PaymentItem {
	return []PaymentItem{{
		ItemID:   s.Target.ItemID,
		Name:     s.Target.Name,
		Amount:   s.Amount,
		Quantity: 1,
	}}
}

func (s DonationSession) readyForPayment() error {
	switch {
	case s.Target.ID == "":
		return NewValidationError("target_id", ErrInvalidTarget)
	case s.Amount <= 0:
		return NewValidationError("amount", ErrInvalidAmount)
	case !IsValidPhone(s.Donor.Phone):
		return NewValidationError("phone", ErrInvalidPhone)
	}
	return nil
}

func (o Outcome) status() AttemptStatus {
	switch o.Reason {
	case KindTimeout:
		return AttemptTimedOut
	case KindGatewayDeclined:
		return AttemptDeclined
	}
	return AttemptFailed
}

// DispatchStep maps an execution path tag to the step that handles it
func DispatchStep(a NextAction) (Step, error) {
	switch a {
	case NextActionTyping:
		return StepCardEntry, nil
	case NextActionIframe:
		return StepHostedPayment, nil
	case NextActionTouch:
		return StepTapToPay, nil
	case NextActionNone:
		return StepProcessing, nil
	}
	return "", NewValidationError("next_action", ErrUnknownNextAction)
}
