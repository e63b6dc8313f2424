package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
)

// ConfigRepositoryImpl implements domain.ConfigRepository using Redis
type ConfigRepositoryImpl struct {
	client *redis.Client
	key    string
}

// NewConfigRepository stores the kiosk configuration under a single key
func NewConfigRepository(client *redis.Client) domain.ConfigRepository {
	return &ConfigRepositoryImpl{client: client, key: "kiosk:config"}
}

// Get implements domain.ConfigRepository
func (r *ConfigRepositoryImpl) Get(ctx context.Context) (*domain.KioskConfig, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kiosk config: %w", err)
	}

	var cfg domain.KioskConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kiosk config: %w", err)
	}
	return &cfg, nil
}

// Save implements domain.ConfigRepository
func (r *ConfigRepositoryImpl) Save(ctx context.Context, cfg *domain.KioskConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal kiosk config: %w", err)
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

// Delete implements domain.ConfigRepository
func (r *ConfigRepositoryImpl) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
