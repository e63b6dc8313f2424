package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/scheduler"
)

// ErrSupervisorStarted is returned by a second Start
var ErrSupervisorStarted = errors.New("polling already started")

// StatusCheck asks the gateway whether an asynchronous payment completed
type StatusCheck func(ctx context.Context, docToken string) (bool, error)

// PollingConfig bounds one asynchronous confirmation
type PollingConfig struct {
	Interval     time.Duration
	MaxPolls     int
	CheckTimeout time.Duration
}

// PollingSupervisor polls the gateway until the payment succeeds or the poll
// budget runs out. Exactly one of onResolved and onTimeout runs, at most once,
// and neither runs after Stop.
type PollingSupervisor struct {
	sched      scheduler.Scheduler
	check      StatusCheck
	cfg        PollingConfig
	onResolved func()
	onTimeout  func()

	mu        sync.Mutex
	phase     domain.PollPhase
	token     string
	pollCount int
	cancel    func()

	finished atomic.Bool
}

// NewPollingSupervisor creates an idle supervisor
func NewPollingSupervisor(sched scheduler.Scheduler, check StatusCheck, cfg PollingConfig, onResolved, onTimeout func()) *PollingSupervisor {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = cfg.Interval
	}
	return &PollingSupervisor{
		sched:      sched,
		check:      check,
		cfg:        cfg,
		onResolved: onResolved,
		onTimeout:  onTimeout,
		phase:      domain.PollIdle,
	}
}

// Start begins polling for token and returns immediately
func (p *PollingSupervisor) Start(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != domain.PollIdle {
		return ErrSupervisorStarted
	}
	p.phase = domain.PollPolling
	p.token = token
	p.cancel = p.sched.Every(p.cfg.Interval, p.tick)
	return nil
}

// Stop cancels polling in any phase. No callback runs afterwards.
func (p *PollingSupervisor) Stop() {
	p.finished.Store(true)
	p.mu.Lock()
	cancel := p.cancel
	if p.phase == domain.PollPolling || p.phase == domain.PollIdle {
		p.phase = domain.PollStopped
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State returns a snapshot of the supervisor
func (p *PollingSupervisor) State() domain.PollingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.PollingState{
		Token:       p.token,
		Phase:       p.phase,
		PollCount:   p.pollCount,
		MaxPolls:    p.cfg.MaxPolls,
		Interval:    p.cfg.Interval,
		HasResolved: p.phase == domain.PollResolved,
	}
}

func (p *PollingSupervisor) tick() {
	if p.finished.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CheckTimeout)
	ok, err := p.check(ctx, p.token)
	cancel()

	p.mu.Lock()
	p.pollCount++
	count := p.pollCount
	p.mu.Unlock()

	if err != nil {
		log.Printf("PAYMENT_STATUS_CHECK_FAILED: poll=%d/%d error=%v", count, p.cfg.MaxPolls, err)
	}

	switch {
	case err == nil && ok:
		p.finish(domain.PollResolved, p.onResolved)
	case count >= p.cfg.MaxPolls:
		p.finish(domain.PollTimedOut, p.onTimeout)
	}
}

func (p *PollingSupervisor) finish(phase domain.PollPhase, fn func()) {
	if !p.finished.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	p.phase = phase
	cancel := p.cancel
	p.mu.Unlock()
	cancel()
	if fn != nil {
		fn()
	}
}
