package mocks

import (
	"context"
	"sync"

	"github.com/you/kioskpay/domain"
)

// MockTransitionPublisher implements domain.TransitionPublisher and records transitions
type MockTransitionPublisher struct {
	PublishFunc func(ctx context.Context, t domain.Transition) error

	mu          sync.Mutex
	transitions []domain.Transition
}

// NewMockTransitionPublisher creates a new MockTransitionPublisher
func NewMockTransitionPublisher() *MockTransitionPublisher {
	return &MockTransitionPublisher{}
}

// Publish records the transition
func (m *MockTransitionPublisher) Publish(ctx context.Context, t domain.Transition) error {
	m.mu.Lock()
	m.transitions = append(m.transitions, t)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, t)
	}
	return nil
}

// Steps returns the published steps in order
func (m *MockTransitionPublisher) Steps() []domain.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Step, len(m.transitions))
	for i, t := range m.transitions {
		out[i] = t.Step
	}
	return out
}

// Count returns how many transitions to step were published
func (m *MockTransitionPublisher) Count(step domain.Step) int {
	n := 0
	for _, s := range m.Steps() {
		if s == step {
			n++
		}
	}
	return n
}

// Compile-time interface compliance verification
var _ domain.TransitionPublisher = (*MockTransitionPublisher)(nil)
