package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/infrastructure/database"
)

// SelectionGuardImpl implements domain.SelectionGuard with Redis SETNX
type SelectionGuardImpl struct {
	client *redis.Client
	prefix string
}

// NewSelectionGuard creates a Redis backed selection guard
func NewSelectionGuard(client *redis.Client) domain.SelectionGuard {
	return &SelectionGuardImpl{client: client, prefix: "donation:select:"}
}

// Acquire implements domain.SelectionGuard
func (g *SelectionGuardImpl) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := database.SetNX(ctx, g.client, g.prefix+key, 1, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire selection guard: %w", err)
	}
	return ok, nil
}

// Release implements domain.SelectionGuard
func (g *SelectionGuardImpl) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.prefix+key).Err()
}
