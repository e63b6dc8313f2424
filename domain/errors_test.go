package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFlowError_Classification(t *testing.T) {
	tests := []struct {
		name          string
		err           *FlowError
		expectedKind  ErrorKind
		retryable     bool
		wrapsSentinel error
	}{
		{
			name:          "validation is fatal",
			err:           NewValidationError("amount", ErrInvalidAmount),
			expectedKind:  KindValidation,
			retryable:     false,
			wrapsSentinel: ErrInvalidAmount,
		},
		{
			name:          "decline is fatal for the attempt",
			err:           NewDeclinedError("001", ""),
			expectedKind:  KindGatewayDeclined,
			retryable:     false,
			wrapsSentinel: ErrGatewayDeclined,
		},
		{
			name:          "transport is retryable",
			err:           NewTransportError("", ErrGatewayTransport),
			expectedKind:  KindTransport,
			retryable:     true,
			wrapsSentinel: ErrGatewayTransport,
		},
		{
			name:          "timeout is retryable",
			err:           NewTimeoutError(MsgPaymentTimeout, ErrGatewayTimeout),
			expectedKind:  KindTimeout,
			retryable:     true,
			wrapsSentinel: ErrGatewayTimeout,
		},
		{
			name:          "wrong code",
			err:           NewAuthRejection(ErrCodeInvalid),
			expectedKind:  KindAuthRejection,
			retryable:     false,
			wrapsSentinel: ErrCodeInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.expectedKind {
				t.Errorf("expected kind %s, got %s", tt.expectedKind, tt.err.Kind)
			}
			if tt.err.Retryable() != tt.retryable {
				t.Errorf("expected retryable %v", tt.retryable)
			}
			wrapped := fmt.Errorf("failed to pay: %w", tt.err)
			if !errors.Is(wrapped, tt.wrapsSentinel) {
				t.Errorf("expected chain to contain %v", tt.wrapsSentinel)
			}
			if kind, ok := KindOf(wrapped); !ok || kind != tt.expectedKind {
				t.Errorf("KindOf returned %s %v", kind, ok)
			}
		})
	}
}

func TestNewDeclinedError_EmbedsCode(t *testing.T) {
	err := NewDeclinedError("001", "card blocked")
	if !strings.Contains(err.Message, "001") {
		t.Errorf("decline message should embed the code, got %q", err.Message)
	}
	if !strings.Contains(err.Message, "card blocked") {
		t.Errorf("decline message should carry the gateway message, got %q", err.Message)
	}
	if strings.Contains(err.Message, "{") {
		t.Errorf("decline message must not expose raw payloads, got %q", err.Message)
	}
}

func TestOutcomeFromError(t *testing.T) {
	o := OutcomeFromError("txn-1", NewTimeoutError(MsgPaymentWaitExpired, ErrGatewayTimeout))
	if o.Kind != OutcomeError || o.Reason != KindTimeout || !o.Retryable || o.Message != MsgPaymentWaitExpired {
		t.Errorf("unexpected outcome %+v", o)
	}

	plain := OutcomeFromError("txn-2", errors.New("connection reset"))
	if plain.Reason != KindTransport || plain.Message != MsgTryAgain {
		t.Errorf("unclassified errors should surface as transport, got %+v", plain)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if _, ok := KindOf(ErrSessionNotFound); ok {
		t.Error("sentinel errors carry no kind")
	}
}
