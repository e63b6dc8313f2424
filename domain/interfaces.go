package domain

import (
	"context"
	"time"
)

// SessionRepository defines donation session storage
type SessionRepository interface {
	Save(ctx context.Context, session *DonationSession) error
	FindByID(ctx context.Context, sessionID string) (*DonationSession, error)
	Delete(ctx context.Context, sessionID string) error
}

// VerificationRepository defines storage for code verification exchanges
type VerificationRepository interface {
	Save(ctx context.Context, key string, v *VerificationSession) error
	Find(ctx context.Context, key string) (*VerificationSession, error)
	Delete(ctx context.Context, key string) error
	// Close destroys the exchange and remembers that no further checks are allowed
	Close(ctx context.Context, key string) error
	IsClosed(ctx context.Context, key string) (bool, error)
}

// SelectionGuard is a short lived exclusive flag keyed by session
type SelectionGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// AttemptRepository defines the payment attempt ledger
type AttemptRepository interface {
	Save(ctx context.Context, record *PaymentAttemptRecord) error
	FindByTransactionID(ctx context.Context, transactionID string) (*PaymentAttemptRecord, error)
	ListRecent(ctx context.Context, limit int) ([]PaymentAttemptRecord, error)
}

// DonorRepository defines donor profile storage used for prefill
type DonorRepository interface {
	Upsert(ctx context.Context, profile *DonorProfile) error
	FindByPhone(ctx context.Context, phone string) (*DonorProfile, error)
}

// ConfigRepository defines kiosk configuration storage
type ConfigRepository interface {
	Get(ctx context.Context) (*KioskConfig, error)
	Save(ctx context.Context, cfg *KioskConfig) error
	Delete(ctx context.Context) error
}

// DonorDirectory sends and checks verification codes.
// SendCode returns ErrDonorUnknown for phones the directory does not know.
// VerifyCode returns ErrCodeInvalid for a wrong or expired code.
type DonorDirectory interface {
	SendCode(ctx context.Context, phone string, gabbai bool) (*CodeDispatch, error)
	VerifyCode(ctx context.Context, phone, code, sessionID string, gabbai bool) (*DonorProfile, error)
}

// PaymentGateway is the remote payment processor
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req *PaymentRequest) (*GatewayResult, error)
	CheckStatus(ctx context.Context, docToken string) (bool, error)
	SendReceipt(ctx context.Context, documentID string, channel ReceiptChannel, contact string) error
}

// NotificationService defines notification operations
type NotificationService interface {
	SendSMS(to, message string) error
}

// TransitionPublisher announces navigation to the kiosk front-end
type TransitionPublisher interface {
	Publish(ctx context.Context, t Transition) error
}

// TokenService defines gabbai admin token operations
type TokenService interface {
	GenerateAdminToken(subject, role string) (string, error)
	ValidateAdminToken(token string) (*TokenClaims, error)
	TTL() time.Duration
}

// CodeHasher hashes verification codes at rest
type CodeHasher interface {
	Hash(code string) (string, error)
	Verify(hashed, code string) bool
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}

// DonorIdentityResolver runs the phone verification sub-flow
type DonorIdentityResolver interface {
	SendCode(ctx context.Context, sessionID, phone string) (*VerificationSession, error)
	Resend(ctx context.Context, sessionID string) (*VerificationSession, error)
	EnterDigit(ctx context.Context, sessionID string, index int, digit string) (*VerificationResult, error)
	Verify(ctx context.Context, sessionID, code string) (*VerificationResult, error)
	ManualEntry(ctx context.Context, sessionID string) error
}

// PaymentExecutor submits payments and interprets the gateway result.
// onDone is invoked once for executions that complete asynchronously.
type PaymentExecutor interface {
	Execute(ctx context.Context, req *PaymentRequest, async bool, onDone func(Outcome)) (*Execution, error)
	Cancel(transactionID string)
	Stop()
}

// ReceiptService sends duplicate receipts from the success step
type ReceiptService interface {
	Send(ctx context.Context, session *DonationSession, channel ReceiptChannel) error
}

// GabbaiService gates the admin settings behind a phone code
type GabbaiService interface {
	SendCode(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) (*GabbaiLogin, error)
}

// GabbaiLogin is the result of a gabbai code check.
// Token is empty unless the code was accepted.
type GabbaiLogin struct {
	Token             string
	ExpiresIn         int64
	AttemptsRemaining int
	Locked            bool
}

// KioskConfigService provides the read-only configuration the flow runs against
type KioskConfigService interface {
	Current(ctx context.Context) (*KioskConfig, error)
	Update(ctx context.Context, cfg *KioskConfig) error
	Reset(ctx context.Context) (*KioskConfig, error)
}

// AmountInput is what the amount step submits; exactly one amount source is set
type AmountInput struct {
	QuickAmount  int
	CustomAmount string
	Recurring    bool
	Months       string
}

// DonationFlow drives a donation session from target selection to a terminal step
type DonationFlow interface {
	Start(ctx context.Context) (*DonationSession, error)
	Get(ctx context.Context, sessionID string) (*DonationSession, error)
	SelectTarget(ctx context.Context, sessionID, targetID string) (*DonationSession, error)
	SetAmount(ctx context.Context, sessionID string, in AmountInput) (*DonationSession, error)
	SendCode(ctx context.Context, sessionID, phone string) (*DonationSession, *VerificationSession, error)
	ResendCode(ctx context.Context, sessionID string) (*VerificationSession, error)
	EnterDigit(ctx context.Context, sessionID string, index int, digit string) (*DonationSession, *VerificationResult, error)
	VerifyCode(ctx context.Context, sessionID, code string) (*DonationSession, *VerificationResult, error)
	ManualEntry(ctx context.Context, sessionID string) (*DonationSession, error)
	SubmitDonor(ctx context.Context, sessionID string, donor Donor) (*DonationSession, error)
	Confirm(ctx context.Context, sessionID string) (*DonationSession, error)
	PaymentMethods(ctx context.Context, sessionID string) ([]PaymentOption, error)
	FocusPaymentMethods(ctx context.Context, sessionID string) error
	SelectPaymentMethod(ctx context.Context, sessionID, optionType string) (*DonationSession, error)
	SubmitCard(ctx context.Context, sessionID string, card SensitiveCardData) (*DonationSession, error)
	Pay(ctx context.Context, sessionID string) (*DonationSession, error)
	Leave(ctx context.Context, sessionID string, step Step) (*DonationSession, error)
	Retry(ctx context.Context, sessionID string) (*DonationSession, error)
	SendReceipt(ctx context.Context, sessionID string, channel ReceiptChannel) error
	Abandon(ctx context.Context, sessionID string) error
	Stop()
}
