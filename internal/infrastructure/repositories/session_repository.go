package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/kioskpay/domain"
)

const sessionPrefix = "donation:session:"

// Hash fields of a stored session. The step is kept beside the encoded
// session so operators can inspect kiosks with a plain HGET.
const (
	fieldSession = "data"
	fieldStep    = "step"
)

// SessionRepositoryImpl stores donation sessions as Redis hashes that
// expire after the kiosk idle ttl
type SessionRepositoryImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository creates a new donation session repository.
// Every save refreshes the idle ttl.
func NewSessionRepository(client *redis.Client, ttl time.Duration) domain.SessionRepository {
	return &SessionRepositoryImpl{client: client, ttl: ttl}
}

func sessionKey(id string) string { return sessionPrefix + id }

// Save writes the session and restarts its idle clock
func (r *SessionRepositoryImpl) Save(ctx context.Context, session *domain.DonationSession) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKey(session.ID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fieldSession, data, fieldStep, string(session.Step))
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session %s: %w", session.ID, err)
	}
	return nil
}

// FindByID returns ErrSessionNotFound once the idle ttl has elapsed
func (r *SessionRepositoryImpl) FindByID(ctx context.Context, sessionID string) (*domain.DonationSession, error) {
	data, err := r.client.HGet(ctx, sessionKey(sessionID), fieldSession).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var session domain.DonationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete is idempotent
func (r *SessionRepositoryImpl) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Unlink(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}
