package domain

import (
	"fmt"
	"strings"
	"time"
)

// Step identifies where a donation session currently is in the kiosk flow
type Step string

const (
	StepTargetSelection Step = "target_selection"
	StepAmount          Step = "amount"
	StepPhone           Step = "phone_verification"
	StepCode            Step = "code_verification"
	StepDetails         Step = "details"
	StepConfirmation    Step = "confirmation"
	StepPaymentMethod   Step = "payment_method"
	StepCardEntry       Step = "credit_card"
	StepHostedPayment   Step = "hosted_payment"
	StepTapToPay        Step = "credit_card_touch"
	StepProcessing      Step = "processing"
	StepSuccess         Step = "success"
	StepError           Step = "error"
	StepHome            Step = "home"
)

// IsTerminal reports whether the step ends a payment attempt
func (s Step) IsTerminal() bool {
	return s == StepSuccess || s == StepError
}

// NextAction is the execution path tag carried by a payment option
type NextAction string

const (
	NextActionTyping NextAction = "typing"
	NextActionIframe NextAction = "iframe"
	NextActionTouch  NextAction = "touch"
	NextActionNone   NextAction = "none"
)

// Valid reports whether the tag is one of the known execution paths
func (a NextAction) Valid() bool {
	switch a {
	case NextActionTyping, NextActionIframe, NextActionTouch, NextActionNone:
		return true
	}
	return false
}

// RecurringPaymentTag marks payment option types that charge monthly
const RecurringPaymentTag = "recurring_payment"

// Target is a donation cause the donor selects first
type Target struct {
	ID     string `json:"id" yaml:"id"`
	ItemID string `json:"item_id" yaml:"item_id"`
	Name   string `json:"name" yaml:"name"`
	Icon   string `json:"icon" yaml:"icon"`
}

// Recurrence describes how many months a recurring donation runs
type Recurrence struct {
	Months    int  `json:"months,omitempty"`
	Unlimited bool `json:"unlimited,omitempty"`
}

// String renders the recurrence the way the amount picker labels it
func (r Recurrence) String() string {
	if r.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", r.Months)
}

// Donor holds the identity fields collected on the details step
type Donor struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Dedication string `json:"dedication,omitempty"`
}

// FullName joins first and last name
func (d Donor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// DonorProfile is what the donor directory returns for a verified phone
type DonorProfile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// PaymentOption is one configured way to pay
type PaymentOption struct {
	Type        string     `json:"type" yaml:"type"`
	NextAction  NextAction `json:"next_action" yaml:"next_action"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Icon        string     `json:"icon,omitempty" yaml:"icon"`
	Sort        int        `json:"sort" yaml:"sort"`
	Async       bool       `json:"async,omitempty" yaml:"async"`
	NFC         bool       `json:"nfc,omitempty" yaml:"nfc"`
}

// IsRecurring reports whether the option type denotes a recurring payment
func (o PaymentOption) IsRecurring() bool {
	return strings.Contains(o.Type, RecurringPaymentTag)
}

// AttemptStatus is the lifecycle state of one payment attempt
type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptApproved AttemptStatus = "approved"
	AttemptDeclined AttemptStatus = "declined"
	AttemptFailed   AttemptStatus = "failed"
	AttemptTimedOut AttemptStatus = "timed_out"
)

// PaymentAttempt is the current payment attempt of a session.
// TransactionID never changes for the life of the attempt.
type PaymentAttempt struct {
	TransactionID string        `json:"transaction_id"`
	Number        int           `json:"number"`
	Method        string        `json:"method"`
	NextAction    NextAction    `json:"next_action"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
}

// OutcomeKind tells success from error on the terminal step
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the payload carried to the terminal step
type Outcome struct {
	Kind          OutcomeKind `json:"kind"`
	TransactionID string      `json:"transaction_id"`
	DocumentID    string      `json:"document_id,omitempty"`
	Message       string      `json:"message,omitempty"`
	Reason        ErrorKind   `json:"reason,omitempty"`
	Retryable     bool        `json:"retryable,omitempty"`
}

// Transition is an abstract "go to step X with payload Y"
type Transition struct {
	SessionID  string            `json:"session_id"`
	Step       Step              `json:"step"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// SensitiveCardData is card input held only in process memory
type SensitiveCardData struct {
	CardNumber string
	CardHolder string
	ExpiryMMYY string
	CVV        string
	NationalID string
}

// String never prints the card number or CVV
func (c SensitiveCardData) String() string {
	return fmt.Sprintf("card(****%s)", lastN(c.CardNumber, 4))
}

// GoString keeps %#v from leaking card data
func (c SensitiveCardData) GoString() string {
	return c.String()
}

// VerificationSession tracks one phone verification code exchange
type VerificationSession struct {
	Phone             string    `json:"phone"`
	SessionID         string    `json:"session_id"`
	AttemptsUsed      int       `json:"attempts_used"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
	Cells             [6]string `json:"cells"`
}

// Code joins the entered cells
func (v *VerificationSession) Code() string {
	return strings.Join(v.Cells[:], "")
}

// Complete reports whether every cell holds a digit
func (v *VerificationSession) Complete() bool {
	for _, c := range v.Cells {
		if c == "" {
			return false
		}
	}
	return true
}

// ClearCells empties the code input
func (v *VerificationSession) ClearCells() {
	v.Cells = [6]string{}
}

// PollPhase is the lifecycle of an asynchronous confirmation
type PollPhase string

const (
	PollIdle     PollPhase = "idle"
	PollPolling  PollPhase = "polling"
	PollResolved PollPhase = "resolved"
	PollTimedOut PollPhase = "timed_out"
	PollStopped  PollPhase = "stopped"
)

// PollingState is the supervisor's view of one asynchronous confirmation
type PollingState struct {
	Token       string
	Phase       PollPhase
	PollCount   int
	MaxPolls    int
	Interval    time.Duration
	HasResolved bool
}

// GatewayResult is a validated initiate-payment response
type GatewayResult struct {
	Success       bool
	TransactionID string
	DocToken      string
	DocumentID    string
	PaymentURL    string
	ShvaCode      string
	Message       string
}

// ReceiptChannel selects how a duplicate receipt is delivered
type ReceiptChannel string

const (
	ReceiptSMS   ReceiptChannel = "sms"
	ReceiptEmail ReceiptChannel = "email"
)

// PaymentAttemptRecord is a ledger row describing one payment attempt.
// It never carries card data.
type PaymentAttemptRecord struct {
	ID            uint
	SessionID     string
	TransactionID string
	AttemptNumber int
	Method        string
	NextAction    NextAction
	Amount        int
	Months        int
	Unlimited     bool
	TargetItemID  string
	DonorPhone    string
	Status        AttemptStatus
	DocumentID    string
	GatewayCode   string
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KioskColors are the kiosk branding colors
type KioskColors struct {
	Primary    string `json:"primary" yaml:"primary"`
	Secondary  string `json:"secondary" yaml:"secondary"`
	Background string `json:"background" yaml:"background"`
}

// KioskSettings are operator settings read by the flow
type KioskSettings struct {
	CompanyID          string `json:"company_id" yaml:"company_id"`
	AutoReturnSeconds  int    `json:"auto_return_seconds" yaml:"auto_return_seconds"`
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	RequireID          bool   `json:"require_id" yaml:"require_id"`
	BitOption          bool   `json:"bit_option" yaml:"bit_option"`
}

// KioskConfig is the read-only configuration the flow runs against
type KioskConfig struct {
	Name           string          `json:"name" yaml:"name"`
	LogoURL        string          `json:"logo_url" yaml:"logo_url"`
	Colors         KioskColors     `json:"colors" yaml:"colors"`
	Targets        []Target        `json:"targets" yaml:"targets"`
	QuickAmounts   []int           `json:"quick_amounts" yaml:"quick_amounts"`
	PaymentOptions []PaymentOption `json:"payment_options" yaml:"payment_options"`
	Settings       KioskSettings   `json:"settings" yaml:"settings"`
}

// FindTarget looks up a configured target by id
func (c *KioskConfig) FindTarget(id string) (Target, bool) {
	for _, t := range c.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return Target{}, false
}

// FindPaymentOption looks up a configured payment option by type
func (c *KioskConfig) FindPaymentOption(optionType string) (PaymentOption, bool) {
	for _, o := range c.PaymentOptions {
		if o.Type == optionType {
			return o, true
		}
	}
	return PaymentOption{}, false
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// MaskPhone hides the middle digits of a phone for display and logs
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return phone
	}
	return phone[:3] + "-XXX-X" + phone[len(phone)-3:]
}

// PaymentItem is one line of an initiate-payment request
type PaymentItem struct {
	ItemID   string
	Name     string
	Amount   int
	Quantity int
}

// PaymentRequest is the canonical initiate-payment request
type PaymentRequest struct {
	CompanyID     string
	TransactionID string
	Method        string
	NextAction    NextAction
	Customer      Donor
	Items         []PaymentItem
	Recurrence    *Recurrence
	Card          *SensitiveCardData
}

// Execution is the immediate result of submitting a payment.
// Pending executions complete later through polling.
type Execution struct {
	TransactionID string
	Pending       bool
	PaymentURL    string
	Outcome       *Outcome
}

// CodeDispatch is returned by the directory after sending a code
type CodeDispatch struct {
	SessionID string
	Message   string
}

// VerificationStatus is the result of one code check
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
	VerificationFallback VerificationStatus = "fallback"
)

// VerificationResult reports a code check and the remaining budget
type VerificationResult struct {
	Status            VerificationStatus
	Phone             string
	Profile           *DonorProfile
	AttemptsRemaining int
	FilledCells       int
}

// TokenClaims represents gabbai admin token claims
type TokenClaims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Roles
const (
	RoleGabbai = "gabbai"
)
