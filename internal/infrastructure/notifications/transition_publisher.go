package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
)

// TransitionChannelPrefix is followed by the session id
const TransitionChannelPrefix = "kiosk:transitions:"

// RedisTransitionPublisher implements domain.TransitionPublisher over Redis pub/sub
type RedisTransitionPublisher struct {
	client *redis.Client
}

// NewTransitionPublisher creates a publisher that fans navigation out to kiosk screens
func NewTransitionPublisher(client *redis.Client) domain.TransitionPublisher {
	return &RedisTransitionPublisher{client: client}
}

// Publish implements domain.TransitionPublisher
func (p *RedisTransitionPublisher) Publish(ctx context.Context, t domain.Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	if err := p.client.Publish(ctx, TransitionChannelPrefix+t.SessionID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	return nil
}

// Subscribe returns the pub/sub handle for one session's transitions
func Subscribe(ctx context.Context, client *redis.Client, sessionID string) *redis.PubSub {
	return client.Subscribe(ctx, TransitionChannelPrefix+sessionID)
}
