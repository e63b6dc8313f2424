package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/mocks"
)

const gabbaiPhone = "0549998888"

func createGabbaiServiceForTest(t *testing.T) (domain.GabbaiService, *mocks.MockDonorDirectory, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	dir := mocks.NewMockDonorDirectory()
	dir.SendCodeFunc = func(ctx context.Context, phone string, gabbai bool) (*domain.CodeDispatch, error) {
		if !gabbai || phone != gabbaiPhone {
			return nil, domain.ErrNotGabbai
		}
		return &domain.CodeDispatch{SessionID: "gabbai_session"}, nil
	}

	svc := NewGabbaiService(dir, mocks.NewMockTokenService(), mocks.NewMockAuditLogger(), redisClient, GabbaiConfig{
		MaxAttempts: 3,
		LockWindow:  15 * time.Minute,
	})
	return svc, dir, mr
}

func TestGabbaiService_Login(t *testing.T) {
	svc, _, _ := createGabbaiServiceForTest(t)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, gabbaiPhone))

	login, err := svc.Verify(ctx, gabbaiPhone, "123456")
	require.NoError(t, err)
	assert.Equal(t, "admin_token_gabbai_"+gabbaiPhone, login.Token)
	assert.Equal(t, int64(1800), login.ExpiresIn)
	assert.False(t, login.Locked)
}

func TestGabbaiService_SendCodeRejectsNonGabbai(t *testing.T) {
	svc, _, _ := createGabbaiServiceForTest(t)

	err := svc.SendCode(context.Background(), "0501234567")
	assert.ErrorIs(t, err, domain.ErrNotGabbai)

	err = svc.SendCode(context.Background(), "123")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestGabbaiService_VerifyBeforeSend(t *testing.T) {
	svc, _, _ := createGabbaiServiceForTest(t)

	_, err := svc.Verify(context.Background(), gabbaiPhone, "123456")
	assert.ErrorIs(t, err, domain.ErrVerificationNotStarted)
}

func TestGabbaiService_LocksAfterThreeFailures(t *testing.T) {
	svc, dir, mr := createGabbaiServiceForTest(t)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, gabbaiPhone))

	login, err := svc.Verify(ctx, gabbaiPhone, "000000")
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindAuthRejection, kind)
	assert.Equal(t, 2, login.AttemptsRemaining)

	login, err = svc.Verify(ctx, gabbaiPhone, "000000")
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
	assert.Equal(t, 1, login.AttemptsRemaining)

	login, err = svc.Verify(ctx, gabbaiPhone, "000000")
	assert.ErrorIs(t, err, domain.ErrGabbaiLocked)
	assert.True(t, login.Locked)

	// Locked: neither the right code nor a new code reach the directory
	_, err = svc.Verify(ctx, gabbaiPhone, "123456")
	assert.ErrorIs(t, err, domain.ErrGabbaiLocked)
	assert.ErrorIs(t, svc.SendCode(ctx, gabbaiPhone), domain.ErrGabbaiLocked)
	assert.Equal(t, 3, dir.VerifyCalls())
	assert.Equal(t, 1, dir.SendCalls())

	mr.FastForward(15*time.Minute + time.Second)
	require.NoError(t, svc.SendCode(ctx, gabbaiPhone))
	login, err = svc.Verify(ctx, gabbaiPhone, "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
}
