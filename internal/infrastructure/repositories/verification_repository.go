package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
)

// VerificationRepositoryImpl implements domain.VerificationRepository using Redis
type VerificationRepositoryImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerificationRepository creates a repository whose exchanges expire after ttl
func NewVerificationRepository(client *redis.Client, ttl time.Duration) domain.VerificationRepository {
	return &VerificationRepositoryImpl{client: client, ttl: ttl}
}

func (r *VerificationRepositoryImpl) key(k string) string { return "verify:" + k }
func (r *VerificationRepositoryImpl) closedKey(k string) string { return "verify:closed:" + k }

// Save implements domain.VerificationRepository
func (r *VerificationRepositoryImpl) Save(ctx context.Context, key string, v *domain.VerificationSession) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verification: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(key), data, r.ttl)
	pipe.Del(ctx, r.closedKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store verification: %w", err)
	}
	return nil
}

// Find implements domain.VerificationRepository
func (r *VerificationRepositoryImpl) Find(ctx context.Context, key string) (*domain.VerificationSession, error) {
	data, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return nil, domain.ErrVerificationNotStarted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}

	var v domain.VerificationSession
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification: %w", err)
	}
	return &v, nil
}

// Delete implements domain.VerificationRepository
func (r *VerificationRepositoryImpl) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close implements domain.VerificationRepository
func (r *VerificationRepositoryImpl) Close(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(key))
	pipe.Set(ctx, r.closedKey(key), 1, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to close verification: %w", err)
	}
	return nil
}

// IsClosed implements domain.VerificationRepository
func (r *VerificationRepositoryImpl) IsClosed(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.closedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check verification state: %w", err)
	}
	return n == 1, nil
}
