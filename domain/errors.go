package domain

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrInvalidTarget     = errors.New("donation target is required")
	ErrTargetNotFound    = errors.New("donation target not found")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInvalidMonths     = errors.New("months must be between 1 and 24 or unlimited")
	ErrInvalidPhone      = errors.New("phone must be a 10 digit mobile number starting with 05")
	ErrInvalidFirstName  = errors.New("first name must have at least 2 characters")
	ErrInvalidLastName   = errors.New("last name must have at least 2 characters")
	ErrInvalidNationalID = errors.New("invalid national id")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrMissingItemID     = errors.New("target item identifier is missing")
	ErrUnknownNextAction = errors.New("unknown payment execution path")
)

// Card entry errors
var (
	ErrInvalidCardNumber = errors.New("card number must have 16 digits")
	ErrInvalidCardHolder = errors.New("card holder name must have at least 2 characters")
	ErrInvalidExpiry     = errors.New("expiry must be MM/YY with month 01-12")
	ErrInvalidCVV        = errors.New("cvv must have 3 digits")
	ErrCardDataMissing   = errors.New("card data not available for this transaction")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("donation session not found")
	ErrInvalidStep     = errors.New("operation not allowed on the current step")
	ErrNoActiveAttempt = errors.New("no active payment attempt")
	ErrAttemptResolved = errors.New("payment attempt already resolved")
	ErrStaleOutcome    = errors.New("outcome does not belong to the current attempt")
)

// Verification errors
var (
	ErrVerificationNotStarted = errors.New("verification code was not requested")
	ErrVerificationClosed     = errors.New("verification closed for this session")
	ErrCodeInvalid            = errors.New("invalid verification code")
	ErrCodeExpired            = errors.New("verification code has expired")
	ErrInvalidCode            = errors.New("verification code must have 6 digits")
	ErrInvalidDigit           = errors.New("invalid code digit")
	ErrResendCooldown         = errors.New("verification code resend not available yet")
	ErrDonorUnknown           = errors.New("donor not found in directory")
)

// Payment method errors
var (
	ErrSelectionLocked          = errors.New("payment method selection in progress")
	ErrPaymentMethodUnavailable = errors.New("payment method not available")
	ErrNoPaymentMethods         = errors.New("no payment methods configured")
)

// Gateway errors
var (
	ErrGatewayDeclined    = errors.New("payment declined by gateway")
	ErrGatewayTransport   = errors.New("payment gateway unreachable")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrMalformedResponse  = errors.New("malformed gateway response")
	ErrNoPaymentLink      = errors.New("no payment link received")
	ErrDirectoryTransport = errors.New("donor directory unreachable")
)

// Receipt errors
var (
	ErrReceiptContactMissing = errors.New("no contact for the selected receipt channel")
	ErrReceiptChannel        = errors.New("unknown receipt channel")
	ErrNoDocument            = errors.New("no receipt document for this session")
)

// Token errors
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("malformed token")
)

// Authorization errors
var (
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrInsufficientRole = errors.New("insufficient role permissions")
	ErrGabbaiLocked     = errors.New("gabbai verification locked")
	ErrNotGabbai        = errors.New("phone is not registered as gabbai")
	ErrPolicyInvalid    = errors.New("invalid admin policy")
	ErrPolicyNotFound   = errors.New("admin policy not found")
	ErrPolicyLockout    = errors.New("policy change would lock the gabbai out of the admin surface")
)

// Configuration errors
var (
	ErrConfigNotFound = errors.New("kiosk configuration not found")
	ErrInvalidConfig  = errors.New("invalid kiosk configuration")
)

// ErrorKind classifies failures surfaced by the donation flow
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindAuthRejection   ErrorKind = "auth_rejection"
	KindGatewayDeclined ErrorKind = "gateway_declined"
	KindTransport       ErrorKind = "transport"
	KindTimeout         ErrorKind = "timeout"
)

// FlowError carries a classified failure with the field it belongs to
// and the message shown to the donor.
type FlowError struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// Retryable reports whether the same attempt may be retried
func (e *FlowError) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindTimeout
}

// NewValidationError builds a fatal input error bound to a form field
func NewValidationError(field string, err error) *FlowError {
	return &FlowError{Kind: KindValidation, Field: field, Message: err.Error(), Err: err}
}

// NewDeclinedError builds a gateway rejection embedding the approval code
func NewDeclinedError(code, gatewayMessage string) *FlowError {
	msg := MsgPaymentDeclined
	if code != "" {
		msg = fmt.Sprintf("%s (code %s)", MsgPaymentDeclined, code)
	}
	if gatewayMessage != "" {
		msg = msg + ": " + gatewayMessage
	}
	return &FlowError{Kind: KindGatewayDeclined, Message: msg, Err: ErrGatewayDeclined}
}

// NewTransportError wraps a connectivity or parse failure
func NewTransportError(message string, err error) *FlowError {
	if message == "" {
		message = MsgTryAgain
	}
	return &FlowError{Kind: KindTransport, Message: message, Err: err}
}

// NewTimeoutError builds a bounded wait failure
func NewTimeoutError(message string, err error) *FlowError {
	return &FlowError{Kind: KindTimeout, Message: message, Err: err}
}

// NewAuthRejection builds a wrong verification code failure
func NewAuthRejection(err error) *FlowError {
	return &FlowError{Kind: KindAuthRejection, Message: MsgWrongCode, Err: err}
}

// KindOf returns the kind of a FlowError anywhere in the chain
func KindOf(err error) (ErrorKind, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Donor facing messages
const (
	MsgTryAgain           = "Something went wrong, please try again"
	MsgWrongCode          = "The code is incorrect"
	MsgPaymentDeclined    = "The payment was declined"
	MsgPaymentTimeout     = "The payment did not complete in time"
	MsgPaymentWaitExpired = "Payment wait time expired"
	MsgNoPaymentLink      = "No payment link was received"
)

// OutcomeFromError converts an execution failure into a terminal error outcome.
// Unclassified errors are reported as transport failures.
func OutcomeFromError(transactionID string, err error) Outcome {
	var fe *FlowError
	if !errors.As(err, &fe) {
		fe = NewTransportError("", err)
	}
	return Outcome{
		Kind:          OutcomeError,
		TransactionID: transactionID,
		Message:       fe.Message,
		Reason:        fe.Kind,
		Retryable:     fe.Retryable(),
	}
}
