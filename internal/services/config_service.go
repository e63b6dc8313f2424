package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/you/kioskpay/domain"
)

// ConfigServiceImpl implements domain.KioskConfigService.
// The seed is used until an operator saves a configuration.
type ConfigServiceImpl struct {
	repo  domain.ConfigRepository
	seed  domain.KioskConfig
	audit domain.AuditLogger
}

// NewConfigService creates a new kiosk configuration service
func NewConfigService(repo domain.ConfigRepository, seed *domain.KioskConfig, audit domain.AuditLogger) domain.KioskConfigService {
	return &ConfigServiceImpl{repo: repo, seed: *seed, audit: audit}
}

// Current implements domain.KioskConfigService
func (s *ConfigServiceImpl) Current(ctx context.Context) (*domain.KioskConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrConfigNotFound) {
		return nil, fmt.Errorf("failed to load kiosk config: %w", err)
	}

	seed := s.seed
	if err := s.repo.Save(ctx, &seed); err != nil {
		return nil, fmt.Errorf("failed to store kiosk config: %w", err)
	}
	return &seed, nil
}

// Update implements domain.KioskConfigService
func (s *ConfigServiceImpl) Update(ctx context.Context, cfg *domain.KioskConfig) error {
	if err := ValidateKioskConfig(cfg); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("failed to store kiosk config: %w", err)
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.ConfigUpdatedEvent, "").
		WithMetadata("targets", len(cfg.Targets)).
		WithMetadata("payment_options", len(cfg.PaymentOptions)))
	return nil
}

// Reset implements domain.KioskConfigService
func (s *ConfigServiceImpl) Reset(ctx context.Context) (*domain.KioskConfig, error) {
	seed := s.seed
	if err := s.repo.Save(ctx, &seed); err != nil {
		return nil, fmt.Errorf("failed to store kiosk config: %w", err)
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.ConfigUpdatedEvent, "").WithMetadata("reset", true))
	return &seed, nil
}

// ValidateKioskConfig checks what the donation flow relies on
func ValidateKioskConfig(cfg *domain.KioskConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: empty configuration", domain.ErrInvalidConfig)
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("%w: at least one target is required", domain.ErrInvalidConfig)
	}

	ids := make(map[string]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if t.ID == "" || t.ItemID == "" {
			return fmt.Errorf("%w: target %q needs an id and an item id", domain.ErrInvalidConfig, t.Name)
		}
		if ids[t.ID] {
			return fmt.Errorf("%w: duplicate target %q", domain.ErrInvalidConfig, t.ID)
		}
		ids[t.ID] = true
	}

	for _, a := range cfg.QuickAmounts {
		if a <= 0 {
			return fmt.Errorf("%w: quick amount %d", domain.ErrInvalidConfig, a)
		}
	}

	if len(cfg.PaymentOptions) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, domain.ErrNoPaymentMethods)
	}
	types := make(map[string]bool, len(cfg.PaymentOptions))
	for _, o := range cfg.PaymentOptions {
		if o.Type == "" {
			return fmt.Errorf("%w: payment option without type", domain.ErrInvalidConfig)
		}
		if types[o.Type] {
			return fmt.Errorf("%w: duplicate payment option %q", domain.ErrInvalidConfig, o.Type)
		}
		types[o.Type] = true
		if !o.NextAction.Valid() {
			return fmt.Errorf("%w: payment option %q: %w", domain.ErrInvalidConfig, o.Type, domain.ErrUnknownNextAction)
		}
	}

	if cfg.Settings.AutoReturnSeconds < 0 || cfg.Settings.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}
