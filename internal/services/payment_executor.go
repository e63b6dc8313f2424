package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/scheduler"
)

// ErrExecutionInProgress is returned when a transaction is already being confirmed
var ErrExecutionInProgress = errors.New("payment execution already in progress")

// ExecutorConfig holds the execution bounds
type ExecutorConfig struct {
	SyncTimeout    time.Duration
	PollInterval   time.Duration
	MaxPolls       int
	ApprovedPrefix string
}

// PaymentExecutorImpl implements domain.PaymentExecutor
type PaymentExecutorImpl struct {
	gateway domain.PaymentGateway
	sched   scheduler.Scheduler
	cfg     ExecutorConfig

	mu          sync.Mutex
	supervisors map[string]*PollingSupervisor
}

// NewPaymentExecutor creates a new payment executor
func NewPaymentExecutor(gateway domain.PaymentGateway, sched scheduler.Scheduler, cfg ExecutorConfig) domain.PaymentExecutor {
	if cfg.ApprovedPrefix == "" {
		cfg.ApprovedPrefix = "000"
	}
	return &PaymentExecutorImpl{
		gateway:     gateway,
		sched:       sched,
		cfg:         cfg,
		supervisors: make(map[string]*PollingSupervisor),
	}
}

// Execute implements domain.PaymentExecutor.
// Gateway failures are reported through Execution.Outcome, never as an error.
func (e *PaymentExecutorImpl) Execute(ctx context.Context, req *domain.PaymentRequest, async bool, onDone func(domain.Outcome)) (*domain.Execution, error) {
	txn := req.TransactionID

	e.mu.Lock()
	_, running := e.supervisors[txn]
	e.mu.Unlock()
	if running {
		return nil, ErrExecutionInProgress
	}

	res, err := e.initiate(ctx, req)
	if err != nil {
		return failed(txn, err), nil
	}

	if !async {
		outcome := e.interpret(txn, res)
		return &domain.Execution{TransactionID: txn, Outcome: &outcome}, nil
	}

	if !res.Success {
		return failed(txn, domain.NewDeclinedError(res.ShvaCode, res.Message)), nil
	}
	if res.PaymentURL == "" || res.DocToken == "" {
		return failed(txn, domain.NewTransportError(domain.MsgNoPaymentLink, domain.ErrNoPaymentLink)), nil
	}

	documentID := res.DocumentID
	sup := NewPollingSupervisor(e.sched, e.gateway.CheckStatus,
		PollingConfig{Interval: e.cfg.PollInterval, MaxPolls: e.cfg.MaxPolls, CheckTimeout: e.cfg.SyncTimeout},
		func() {
			e.remove(txn)
			onDone(domain.Outcome{Kind: domain.OutcomeSuccess, TransactionID: txn, DocumentID: documentID})
		},
		func() {
			e.remove(txn)
			onDone(domain.OutcomeFromError(txn, domain.NewTimeoutError(domain.MsgPaymentWaitExpired, domain.ErrGatewayTimeout)))
		},
	)

	e.mu.Lock()
	e.supervisors[txn] = sup
	e.mu.Unlock()
	if err := sup.Start(res.DocToken); err != nil {
		e.remove(txn)
		return nil, fmt.Errorf("failed to start polling: %w", err)
	}

	return &domain.Execution{TransactionID: txn, Pending: true, PaymentURL: res.PaymentURL}, nil
}

// Cancel implements domain.PaymentExecutor
func (e *PaymentExecutorImpl) Cancel(transactionID string) {
	e.mu.Lock()
	sup := e.supervisors[transactionID]
	delete(e.supervisors, transactionID)
	e.mu.Unlock()
	if sup != nil {
		sup.Stop()
	}
}

// Stop implements domain.PaymentExecutor
func (e *PaymentExecutorImpl) Stop() {
	e.mu.Lock()
	sups := e.supervisors
	e.supervisors = make(map[string]*PollingSupervisor)
	e.mu.Unlock()
	for _, sup := range sups {
		sup.Stop()
	}
}

// Polling reports whether a supervisor is running for the transaction
func (e *PaymentExecutorImpl) Polling(transactionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.supervisors[transactionID]
	return ok
}

func (e *PaymentExecutorImpl) remove(txn string) {
	e.mu.Lock()
	delete(e.supervisors, txn)
	e.mu.Unlock()
}

// initiate sends the request bounded by the synchronous timeout
func (e *PaymentExecutorImpl) initiate(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.SyncTimeout)
	defer cancel()

	res, err := e.gateway.InitiatePayment(cctx, req)
	if err != nil {
		if _, classified := domain.KindOf(err); !classified && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewTimeoutError(domain.MsgPaymentTimeout, domain.ErrGatewayTimeout)
		}
		return nil, err
	}
	if res == nil {
		return nil, domain.NewTransportError("", domain.ErrMalformedResponse)
	}
	return res, nil
}

// interpret turns a synchronous gateway result into an outcome.
// A missing approval code with success is approved; any other code must
// be well formed and carry the approved prefix.
func (e *PaymentExecutorImpl) interpret(txn string, res *domain.GatewayResult) domain.Outcome {
	approved := domain.Outcome{Kind: domain.OutcomeSuccess, TransactionID: txn, DocumentID: res.DocumentID}
	if !res.Success {
		return domain.OutcomeFromError(txn, domain.NewDeclinedError(res.ShvaCode, res.Message))
	}
	code := res.ShvaCode
	if code == "" {
		return approved
	}
	if isShvaCode(code) && strings.HasPrefix(code, e.cfg.ApprovedPrefix) {
		return approved
	}
	return domain.OutcomeFromError(txn, domain.NewDeclinedError(code, res.Message))
}

func isShvaCode(code string) bool {
	if len(code) < 3 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func failed(txn string, err error) *domain.Execution {
	outcome := domain.OutcomeFromError(txn, err)
	return &domain.Execution{TransactionID: txn, Outcome: &outcome}
}
