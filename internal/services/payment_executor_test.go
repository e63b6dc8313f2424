package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/mocks"
	"github.com/you/kioskpay/internal/scheduler"
)

func testExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		SyncTimeout:    30 * time.Second,
		PollInterval:   3 * time.Second,
		MaxPolls:       200,
		ApprovedPrefix: "000",
	}
}

func testPaymentRequest(txn string) *domain.PaymentRequest {
	return &domain.PaymentRequest{
		CompanyID:     "c1",
		TransactionID: txn,
		Method:        "credit_card",
		NextAction:    domain.NextActionTyping,
		Customer:      domain.Donor{FirstName: "Moshe", LastName: "Cohen", Phone: "0501234567"},
		Items:         []domain.PaymentItem{{ItemID: "101", Name: "Torah", Amount: 100, Quantity: 1}},
	}
}

func TestPaymentExecutor_SyncInterpretation(t *testing.T) {
	tests := []struct {
		name        string
		result      *domain.GatewayResult
		err         error
		wantKind    domain.OutcomeKind
		wantReason  domain.ErrorKind
		wantMessage string
		retryable   bool
	}{
		{
			name:     "approved code",
			result:   &domain.GatewayResult{Success: true, ShvaCode: "000", DocumentID: "doc_1"},
			wantKind: domain.OutcomeSuccess,
		},
		{
			name:     "success without code",
			result:   &domain.GatewayResult{Success: true, DocumentID: "doc_1"},
			wantKind: domain.OutcomeSuccess,
		},
		{
			name:        "declined code embeds the code",
			result:      &domain.GatewayResult{Success: true, ShvaCode: "001"},
			wantKind:    domain.OutcomeError,
			wantReason:  domain.KindGatewayDeclined,
			wantMessage: "001",
		},
		{
			name:        "malformed code is declined",
			result:      &domain.GatewayResult{Success: true, ShvaCode: "0x"},
			wantKind:    domain.OutcomeError,
			wantReason:  domain.KindGatewayDeclined,
			wantMessage: "0x",
		},
		{
			name:        "gateway refusal",
			result:      &domain.GatewayResult{Success: false, ShvaCode: "033", Message: "card blocked"},
			wantKind:    domain.OutcomeError,
			wantReason:  domain.KindGatewayDeclined,
			wantMessage: "card blocked",
		},
		{
			name:        "transport failure is retryable",
			err:         domain.NewTransportError("", domain.ErrGatewayTransport),
			wantKind:    domain.OutcomeError,
			wantReason:  domain.KindTransport,
			wantMessage: domain.MsgTryAgain,
			retryable:   true,
		},
		{
			name:        "validation failure is fatal",
			err:         domain.NewValidationError("item_id", domain.ErrMissingItemID),
			wantKind:    domain.OutcomeError,
			wantReason:  domain.KindValidation,
			wantMessage: domain.ErrMissingItemID.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := mocks.NewMockPaymentGateway()
			gw.InitiatePaymentFunc = func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline, "synchronous payment must be bounded")
				return tt.result, tt.err
			}
			exec := NewPaymentExecutor(gw, scheduler.NewManual(time.Now()), testExecutorConfig())

			res, err := exec.Execute(context.Background(), testPaymentRequest("txn_1"), false, nil)
			require.NoError(t, err)
			require.NotNil(t, res.Outcome)
			assert.False(t, res.Pending)

			o := res.Outcome
			assert.Equal(t, tt.wantKind, o.Kind)
			assert.Equal(t, "txn_1", o.TransactionID)
			assert.Equal(t, tt.wantReason, o.Reason)
			assert.Equal(t, tt.retryable, o.Retryable)
			if tt.wantMessage != "" {
				assert.True(t, strings.Contains(o.Message, tt.wantMessage), "message %q should contain %q", o.Message, tt.wantMessage)
			}
			if tt.wantKind == domain.OutcomeSuccess {
				assert.Equal(t, "doc_1", o.DocumentID)
			}
		})
	}
}

func TestPaymentExecutor_SyncTimeout(t *testing.T) {
	gw := mocks.NewMockPaymentGateway()
	gw.InitiatePaymentFunc = func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	cfg := testExecutorConfig()
	cfg.SyncTimeout = 20 * time.Millisecond
	exec := NewPaymentExecutor(gw, scheduler.NewManual(time.Now()), cfg)

	res, err := exec.Execute(context.Background(), testPaymentRequest("txn_1"), false, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.KindTimeout, res.Outcome.Reason)
	assert.True(t, res.Outcome.Retryable)
	assert.Equal(t, domain.MsgPaymentTimeout, res.Outcome.Message)
}

func TestPaymentExecutor_AsyncResolves(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	gw := mocks.NewMockPaymentGateway()
	gw.InitiatePaymentFunc = func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
		return &domain.GatewayResult{Success: true, PaymentURL: "https://pay/bit", DocToken: "tok", DocumentID: "doc_9"}, nil
	}
	gw.CheckStatusFunc = func(ctx context.Context, docToken string) (bool, error) {
		return gw.StatusCalls() >= 2, nil
	}
	exec := NewPaymentExecutor(gw, sched, testExecutorConfig())

	var outcomes []domain.Outcome
	res, err := exec.Execute(context.Background(), testPaymentRequest("txn_a"), true, func(o domain.Outcome) {
		outcomes = append(outcomes, o)
	})
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, "https://pay/bit", res.PaymentURL)
	assert.Nil(t, res.Outcome)

	_, err = exec.Execute(context.Background(), testPaymentRequest("txn_a"), true, nil)
	assert.ErrorIs(t, err, ErrExecutionInProgress)

	sched.Advance(6 * time.Second)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeSuccess, outcomes[0].Kind)
	assert.Equal(t, "doc_9", outcomes[0].DocumentID)
	assert.False(t, exec.(*PaymentExecutorImpl).Polling("txn_a"))
	assert.Equal(t, 0, sched.Pending())
}

func TestPaymentExecutor_AsyncNeverSucceeds(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	gw := mocks.NewMockPaymentGateway()
	gw.InitiatePaymentFunc = func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
		return &domain.GatewayResult{Success: true, PaymentURL: "https://pay/bit", DocToken: "tok"}, nil
	}
	exec := NewPaymentExecutor(gw, sched, testExecutorConfig())

	var outcomes []domain.Outcome
	_, err := exec.Execute(context.Background(), testPaymentRequest("txn_b"), true, func(o domain.Outcome) {
		outcomes = append(outcomes, o)
	})
	require.NoError(t, err)

	sched.Advance(600 * time.Second)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeError, outcomes[0].Kind)
	assert.Equal(t, domain.KindTimeout, outcomes[0].Reason)
	assert.Equal(t, domain.MsgPaymentWaitExpired, outcomes[0].Message)
	assert.Equal(t, 200, gw.StatusCalls())
	assert.Equal(t, 0, sched.Pending())
}

func TestPaymentExecutor_AsyncWithoutLink(t *testing.T) {
	gw := mocks.NewMockPaymentGateway()
	gw.InitiatePaymentFunc = func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
		return &domain.GatewayResult{Success: true, DocToken: "tok"}, nil
	}
	sched := scheduler.NewManual(time.Now())
	exec := NewPaymentExecutor(gw, sched, testExecutorConfig())

	res, err := exec.Execute(context.Background(), testPaymentRequest("txn_c"), true, func(domain.Outcome) {
		t.Error("no polling expected")
	})
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.Equal(t, domain.KindTransport, res.Outcome.Reason)
	assert.Equal(t, domain.MsgNoPaymentLink, res.Outcome.Message)
	assert.Equal(t, 0, sched.Pending())
}

func TestPaymentExecutor_CancelStopsPolling(t *testing.T) {
	sched := scheduler.NewManual(time.Now())
	gw := mocks.NewMockPaymentGateway()
	gw.InitiatePaymentFunc = func(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
		return &domain.GatewayResult{Success: true, PaymentURL: "u", DocToken: "tok"}, nil
	}
	exec := NewPaymentExecutor(gw, sched, testExecutorConfig())

	_, err := exec.Execute(context.Background(), testPaymentRequest("txn_d"), true, func(domain.Outcome) {
		t.Error("cancelled execution must not report")
	})
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), testPaymentRequest("txn_e"), true, func(domain.Outcome) {
		t.Error("stopped execution must not report")
	})
	require.NoError(t, err)

	exec.Cancel("txn_d")
	assert.Equal(t, 1, sched.Pending())
	exec.Stop()
	assert.Equal(t, 0, sched.Pending())
	sched.Advance(time.Hour)
	assert.Equal(t, 0, gw.StatusCalls())
}
