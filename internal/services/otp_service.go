package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
)

// LocalDonorDirectory implements domain.DonorDirectory with codes generated here,
// stored hashed in Redis and delivered by SMS. Profiles come from the donor ledger.
type LocalDonorDirectory struct {
	notificationSvc domain.NotificationService
	donorRepo       domain.DonorRepository
	hasher          domain.CodeHasher
	redisClient     *redis.Client
	gabbaiPhones    map[string]bool
	config          OTPConfig
}

type OTPConfig struct {
	Length       int
	TTL          time.Duration
	ResendWindow time.Duration
}

// NewLocalDonorDirectory creates a Redis-based donor directory
func NewLocalDonorDirectory(
	notificationSvc domain.NotificationService,
	donorRepo domain.DonorRepository,
	hasher domain.CodeHasher,
	redisClient *redis.Client,
	gabbaiPhones []string,
	config OTPConfig,
) domain.DonorDirectory {
	phones := make(map[string]bool, len(gabbaiPhones))
	for _, p := range gabbaiPhones {
		phones[domain.NormalizePhone(p)] = true
	}
	return &LocalDonorDirectory{
		notificationSvc: notificationSvc,
		donorRepo:       donorRepo,
		hasher:          hasher,
		redisClient:     redisClient,
		gabbaiPhones:    phones,
		config:          config,
	}
}

func otpKey(phone, sessionID string) string { return fmt.Sprintf("otp:%s:%s", phone, sessionID) }
func resendKey(phone string) string          { return fmt.Sprintf("otp:res:%s", phone) }

// SendCode implements domain.DonorDirectory
func (s *LocalDonorDirectory) SendCode(ctx context.Context, phone string, gabbai bool) (*domain.CodeDispatch, error) {
	phone = domain.NormalizePhone(phone)

	if gabbai {
		if !s.gabbaiPhones[phone] {
			return nil, domain.ErrNotGabbai
		}
	} else if _, err := s.donorRepo.FindByPhone(ctx, phone); err != nil {
		if errors.Is(err, domain.ErrDonorUnknown) {
			return nil, domain.ErrDonorUnknown
		}
		return nil, domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrDirectoryTransport, err))
	}

	// Check resend throttle
	if canResend, waitTime, _ := s.CanResend(ctx, phone); !canResend {
		return nil, fmt.Errorf("%w: please wait %d seconds", domain.ErrResendCooldown, waitTime)
	}

	code, err := s.generateSecureCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	hashed, err := s.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	sessionID := uuid.NewString()
	key := otpKey(phone, sessionID)

	pipe := s.redisClient.TxPipeline()
	pipe.Set(ctx, key, hashed, s.config.TTL)
	pipe.Set(ctx, resendKey(phone), 1, s.config.ResendWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, domain.NewTransportError("", fmt.Errorf("%w: failed to store code: %v", domain.ErrDirectoryTransport, err))
	}

	message := fmt.Sprintf("Your verification code is: %s. Valid for %d minutes.", code, int(s.config.TTL.Minutes()))
	if err := s.notificationSvc.SendSMS(phone, message); err != nil {
		// Clean up Redis entries if SMS fails
		s.redisClient.Del(ctx, key, resendKey(phone))
		return nil, domain.NewTransportError("", fmt.Errorf("failed to send code SMS: %w", err))
	}

	return &domain.CodeDispatch{SessionID: sessionID, Message: "code sent"}, nil
}

// VerifyCode implements domain.DonorDirectory
func (s *LocalDonorDirectory) VerifyCode(ctx context.Context, phone, code, sessionID string, gabbai bool) (*domain.DonorProfile, error) {
	phone = domain.NormalizePhone(phone)
	key := otpKey(phone, sessionID)

	hashed, err := s.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCodeInvalid, domain.ErrCodeExpired)
	}
	if err != nil {
		return nil, domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrDirectoryTransport, err))
	}

	if !s.hasher.Verify(hashed, code) {
		return nil, domain.ErrCodeInvalid
	}

	// Success - the code is single use
	s.redisClient.Del(ctx, key)

	if gabbai {
		return &domain.DonorProfile{Phone: phone}, nil
	}
	profile, err := s.donorRepo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrDonorUnknown) {
			return &domain.DonorProfile{Phone: phone}, nil
		}
		return nil, domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrDirectoryTransport, err))
	}
	return profile, nil
}

// CanResend reports whether a new code may be sent to phone and the seconds left otherwise
func (s *LocalDonorDirectory) CanResend(ctx context.Context, phone string) (bool, int64, error) {
	ttl, err := s.redisClient.TTL(ctx, resendKey(phone)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check resend TTL: %w", err)
	}

	// If TTL <= 0, key doesn't exist or has expired - can resend
	if ttl <= 0 {
		return true, 0, nil
	}

	return false, int64(ttl.Seconds()), nil
}

// generateSecureCode generates a cryptographically secure numeric code
func (s *LocalDonorDirectory) generateSecureCode() (string, error) {
	digits := make([]byte, s.config.Length)

	for i := 0; i < s.config.Length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}

	return string(digits), nil
}
