package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
)

// GabbaiConfig holds the admin gate limits
type GabbaiConfig struct {
	MaxAttempts int
	LockWindow  time.Duration
	CodeTTL     time.Duration
}

// GabbaiServiceImpl implements domain.GabbaiService.
// Unlike donor verification there is no fallback: exhausting the attempts locks the phone.
type GabbaiServiceImpl struct {
	directory   domain.DonorDirectory
	tokens      domain.TokenService
	audit       domain.AuditLogger
	redisClient *redis.Client
	cfg         GabbaiConfig
}

// NewGabbaiService creates a new gabbai admin gate
func NewGabbaiService(
	directory domain.DonorDirectory,
	tokens domain.TokenService,
	audit domain.AuditLogger,
	redisClient *redis.Client,
	cfg GabbaiConfig,
) domain.GabbaiService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	return &GabbaiServiceImpl{
		directory:   directory,
		tokens:      tokens,
		audit:       audit,
		redisClient: redisClient,
		cfg:         cfg,
	}
}

func gabbaiSessionKey(phone string) string  { return "gabbai:session:" + phone }
func gabbaiAttemptsKey(phone string) string { return "gabbai:attempts:" + phone }
func gabbaiLockKey(phone string) string     { return "gabbai:lock:" + phone }

// SendCode implements domain.GabbaiService
func (s *GabbaiServiceImpl) SendCode(ctx context.Context, phone string) error {
	if !domain.IsValidPhone(phone) {
		return domain.NewValidationError("phone", domain.ErrInvalidPhone)
	}
	phone = domain.NormalizePhone(phone)

	if locked, err := s.locked(ctx, phone); err != nil {
		return err
	} else if locked {
		return domain.ErrGabbaiLocked
	}

	dispatch, err := s.directory.SendCode(ctx, phone, true)
	if err != nil {
		if errors.Is(err, domain.ErrNotGabbai) || errors.Is(err, domain.ErrDonorUnknown) {
			s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.GabbaiLoginFailedEvent, "").WithPhone(phone).WithError(err))
			return domain.ErrNotGabbai
		}
		return classifyDirectoryError(err)
	}

	if err := s.redisClient.Set(ctx, gabbaiSessionKey(phone), dispatch.SessionID, s.cfg.CodeTTL).Err(); err != nil {
		return fmt.Errorf("failed to store gabbai session: %w", err)
	}
	return nil
}

// Verify implements domain.GabbaiService
func (s *GabbaiServiceImpl) Verify(ctx context.Context, phone, code string) (*domain.GabbaiLogin, error) {
	phone = domain.NormalizePhone(phone)
	if !domain.IsValidCode(code) {
		return nil, domain.NewValidationError("code", domain.ErrInvalidCode)
	}

	if locked, err := s.locked(ctx, phone); err != nil {
		return nil, err
	} else if locked {
		return &domain.GabbaiLogin{Locked: true}, domain.ErrGabbaiLocked
	}

	sessionID, err := s.redisClient.Get(ctx, gabbaiSessionKey(phone)).Result()
	if err == redis.Nil {
		return nil, domain.ErrVerificationNotStarted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gabbai session: %w", err)
	}

	if _, err := s.directory.VerifyCode(ctx, phone, code, sessionID, true); err != nil {
		if !errors.Is(err, domain.ErrCodeInvalid) {
			return nil, classifyDirectoryError(err)
		}
		return s.fail(ctx, phone)
	}

	s.redisClient.Del(ctx, gabbaiSessionKey(phone), gabbaiAttemptsKey(phone))

	token, err := s.tokens.GenerateAdminToken(phone, domain.RoleGabbai)
	if err != nil {
		return nil, fmt.Errorf("failed to generate admin token: %w", err)
	}

	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.GabbaiLoginEvent, "").WithPhone(phone))
	return &domain.GabbaiLogin{
		Token:             token,
		ExpiresIn:         int64(s.tokens.TTL().Seconds()),
		AttemptsRemaining: s.cfg.MaxAttempts,
	}, nil
}

func (s *GabbaiServiceImpl) fail(ctx context.Context, phone string) (*domain.GabbaiLogin, error) {
	pipe := s.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, gabbaiAttemptsKey(phone))
	pipe.Expire(ctx, gabbaiAttemptsKey(phone), s.cfg.LockWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to count gabbai attempt: %w", err)
	}

	used := int(incr.Val())
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.GabbaiLoginFailedEvent, "").
		WithPhone(phone).
		WithMetadata("attempts_used", used).
		WithError(domain.ErrCodeInvalid))

	if used >= s.cfg.MaxAttempts {
		pipe := s.redisClient.TxPipeline()
		pipe.Set(ctx, gabbaiLockKey(phone), 1, s.cfg.LockWindow)
		pipe.Del(ctx, gabbaiSessionKey(phone), gabbaiAttemptsKey(phone))
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to lock gabbai: %w", err)
		}
		return &domain.GabbaiLogin{Locked: true}, domain.ErrGabbaiLocked
	}

	return &domain.GabbaiLogin{AttemptsRemaining: s.cfg.MaxAttempts - used}, domain.NewAuthRejection(domain.ErrCodeInvalid)
}

func (s *GabbaiServiceImpl) locked(ctx context.Context, phone string) (bool, error) {
	n, err := s.redisClient.Exists(ctx, gabbaiLockKey(phone)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check gabbai lock: %w", err)
	}
	return n > 0, nil
}
