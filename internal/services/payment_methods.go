package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/you/kioskpay/domain"
)

// BitOptionType is the wallet option gated by the kiosk bit setting
const BitOptionType = "bit"

// AvailablePaymentMethods returns the options offered for a one-time or recurring donation.
// Recurring donations see only recurring options; one-time donations see the rest.
func AvailablePaymentMethods(options []domain.PaymentOption, isRecurring bool) []domain.PaymentOption {
	out := make([]domain.PaymentOption, 0, len(options))
	for _, o := range options {
		if o.IsRecurring() == isRecurring {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// HasRecurringPaymentMethod reports whether recurrence can be offered at all
func HasRecurringPaymentMethod(options []domain.PaymentOption) bool {
	for _, o := range options {
		if o.IsRecurring() {
			return true
		}
	}
	return false
}

// EnabledPaymentOptions drops options switched off in the kiosk settings
func EnabledPaymentOptions(cfg *domain.KioskConfig) []domain.PaymentOption {
	out := make([]domain.PaymentOption, 0, len(cfg.PaymentOptions))
	for _, o := range cfg.PaymentOptions {
		if !cfg.Settings.BitOption && strings.EqualFold(o.Type, BitOptionType) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// PaymentMethodSelector makes method selection single shot per session.
// The guard is taken by Select and given back by Focus.
type PaymentMethodSelector struct {
	guard domain.SelectionGuard
	ttl   time.Duration
}

// NewPaymentMethodSelector creates a selector; ttl bounds how long a stuck guard lives
func NewPaymentMethodSelector(guard domain.SelectionGuard, ttl time.Duration) *PaymentMethodSelector {
	return &PaymentMethodSelector{guard: guard, ttl: ttl}
}

// Select validates the choice against the offered options and takes the guard.
// It returns the chosen option and the step its execution path dispatches to.
func (s *PaymentMethodSelector) Select(ctx context.Context, sessionID string, offered []domain.PaymentOption, optionType string) (domain.PaymentOption, domain.Step, error) {
	var chosen *domain.PaymentOption
	for i := range offered {
		if offered[i].Type == optionType {
			chosen = &offered[i]
			break
		}
	}
	if chosen == nil {
		return domain.PaymentOption{}, "", domain.NewValidationError("type", domain.ErrPaymentMethodUnavailable)
	}

	step, err := domain.DispatchStep(chosen.NextAction)
	if err != nil {
		return domain.PaymentOption{}, "", err
	}

	ok, err := s.guard.Acquire(ctx, sessionID, s.ttl)
	if err != nil {
		return domain.PaymentOption{}, "", fmt.Errorf("failed to lock payment method selection: %w", err)
	}
	if !ok {
		return domain.PaymentOption{}, "", domain.ErrSelectionLocked
	}
	return *chosen, step, nil
}

// Focus re-enables selection when the method list is shown again
func (s *PaymentMethodSelector) Focus(ctx context.Context, sessionID string) error {
	if err := s.guard.Release(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to release payment method selection: %w", err)
	}
	return nil
}
