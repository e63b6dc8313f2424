package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
)

func TestVerificationRepository_Lifecycle(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewVerificationRepository(client, 10*time.Minute)
	ctx := context.Background()

	_, err := repo.Find(ctx, "sess_1")
	assert.ErrorIs(t, err, domain.ErrVerificationNotStarted)

	v := &domain.VerificationSession{Phone: "0501234567", SessionID: "dir_1", AttemptsUsed: 1}
	v.Cells[0] = "1"
	require.NoError(t, repo.Save(ctx, "sess_1", v))
	assert.Equal(t, 10*time.Minute, mr.TTL("verify:sess_1"))

	got, err := repo.Find(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "dir_1", got.SessionID)
	assert.Equal(t, 1, got.AttemptsUsed)
	assert.Equal(t, "1", got.Cells[0])

	closed, err := repo.IsClosed(ctx, "sess_1")
	require.NoError(t, err)
	assert.False(t, closed)

	require.NoError(t, repo.Close(ctx, "sess_1"))
	closed, err = repo.IsClosed(ctx, "sess_1")
	require.NoError(t, err)
	assert.True(t, closed)
	_, err = repo.Find(ctx, "sess_1")
	assert.ErrorIs(t, err, domain.ErrVerificationNotStarted)

	// a fresh exchange reopens the key
	require.NoError(t, repo.Save(ctx, "sess_1", &domain.VerificationSession{Phone: "0501234567"}))
	closed, err = repo.IsClosed(ctx, "sess_1")
	require.NoError(t, err)
	assert.False(t, closed)

	require.NoError(t, repo.Delete(ctx, "sess_1"))
	_, err = repo.Find(ctx, "sess_1")
	assert.ErrorIs(t, err, domain.ErrVerificationNotStarted)
}

func TestVerificationRepository_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewVerificationRepository(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "sess_exp", &domain.VerificationSession{Phone: "0501234567"}))
	mr.FastForward(2 * time.Minute)

	_, err := repo.Find(ctx, "sess_exp")
	assert.ErrorIs(t, err, domain.ErrVerificationNotStarted)
}

func TestConfigRepository_SaveGetDelete(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewConfigRepository(client)
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)

	cfg := &domain.KioskConfig{
		Name:         "Beit Knesset",
		Targets:      []domain.Target{{ID: "torah", ItemID: "101", Name: "Torah"}},
		QuickAmounts: []int{18, 36},
		PaymentOptions: []domain.PaymentOption{
			{Type: "credit_card", NextAction: domain.NextActionTyping, Sort: 1},
		},
		Settings: domain.KioskSettings{CompanyID: "c1", AutoReturnSeconds: 15},
	}
	require.NoError(t, repo.Save(ctx, cfg))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	require.NoError(t, repo.Delete(ctx))
	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestSelectionGuard_SingleShot(t *testing.T) {
	client, mr := setupTestRedis(t)
	guard := NewSelectionGuard(client)
	ctx := context.Background()

	ok, err := guard.Acquire(ctx, "sess_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire(ctx, "sess_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = guard.Acquire(ctx, "sess_2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "guards are per session")

	require.NoError(t, guard.Release(ctx, "sess_1"))
	ok, err = guard.Acquire(ctx, "sess_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = guard.Acquire(ctx, "sess_2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "guard expires with its ttl")
}
