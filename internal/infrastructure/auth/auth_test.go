package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "kioskpay", 30*time.Minute)

	token, err := svc.GenerateAdminToken("0521112222", domain.RoleGabbai)
	require.NoError(t, err)

	claims, err := svc.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0521112222", claims.Subject)
	assert.Equal(t, domain.RoleGabbai, claims.Role)
	assert.Equal(t, int64(30*60), claims.ExpiresAt-claims.IssuedAt)
	assert.Equal(t, 30*time.Minute, svc.TTL())
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", "kioskpay", time.Minute).(*JWTServiceImpl)
	token, err := svc.GenerateAdminToken("0521112222", domain.RoleGabbai)
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func() (string, *JWTServiceImpl)
		want  error
	}{
		{
			name: "wrong secret",
			setup: func() (string, *JWTServiceImpl) {
				return token, NewJWTService("other", "kioskpay", time.Minute).(*JWTServiceImpl)
			},
			want: domain.ErrTokenInvalid,
		},
		{
			name: "wrong issuer",
			setup: func() (string, *JWTServiceImpl) {
				return token, NewJWTService("secret", "someone-else", time.Minute).(*JWTServiceImpl)
			},
			want: domain.ErrTokenInvalid,
		},
		{
			name: "expired",
			setup: func() (string, *JWTServiceImpl) {
				later := NewJWTService("secret", "kioskpay", time.Minute).(*JWTServiceImpl)
				later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
				return token, later
			},
			want: domain.ErrTokenExpired,
		},
		{
			name: "garbage",
			setup: func() (string, *JWTServiceImpl) {
				return "not-a-token", svc
			},
			want: domain.ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, validator := tt.setup()
			_, err := validator.ValidateAdminToken(tok)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func signed(t *testing.T, claims adminClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestJWTService_ClaimChecks(t *testing.T) {
	svc := NewJWTService("secret", "kioskpay", time.Minute)
	now := time.Now()
	base := jwt.RegisteredClaims{
		Subject:   "0521112222",
		Issuer:    "kioskpay",
		Audience:  jwt.ClaimStrings{AdminAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	noRole := signed(t, adminClaims{RegisteredClaims: base})
	_, err := svc.ValidateAdminToken(noRole)
	assert.ErrorIs(t, err, domain.ErrTokenMalformed)

	otherAud := base
	otherAud.Audience = jwt.ClaimStrings{"kiosk-front"}
	_, err = svc.ValidateAdminToken(signed(t, adminClaims{Role: domain.RoleGabbai, RegisteredClaims: otherAud}))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	noExp := base
	noExp.ExpiresAt = nil
	_, err = svc.ValidateAdminToken(signed(t, adminClaims{Role: domain.RoleGabbai, RegisteredClaims: noExp}))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestJWTService_UniqueTokens(t *testing.T) {
	svc := NewJWTService("secret", "kioskpay", time.Minute)
	a, err := svc.GenerateAdminToken("s", domain.RoleGabbai)
	require.NoError(t, err)
	b, err := svc.GenerateAdminToken("s", domain.RoleGabbai)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodeHasher(t *testing.T) {
	h := NewCodeHasher("pepper")
	hashed, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, "123456", hashed)
	assert.True(t, h.Verify(hashed, "123456"))
	assert.False(t, h.Verify(hashed, "654321"))
	assert.False(t, h.Verify("not-a-hash", "123456"))

	other := NewCodeHasher("other-pepper")
	assert.False(t, other.Verify(hashed, "123456"))
}
