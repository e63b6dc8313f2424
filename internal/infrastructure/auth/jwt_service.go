package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/you/kioskpay/domain"
)

// AdminAudience is the only audience accepted on admin routes
const AdminAudience = "kioskpay-admin"

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTServiceImpl issues short lived HS256 tokens for the gabbai settings screen
type JWTServiceImpl struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTService creates a new JWT service for gabbai admin tokens
func NewJWTService(secretKey string, issuer string, ttl time.Duration) domain.TokenService {
	return &JWTServiceImpl{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		ttl:       ttl,
		now:       time.Now,
	}
}

func newTokenID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (j *JWTServiceImpl) TTL() time.Duration { return j.ttl }

// GenerateAdminToken signs a token for subject that expires after TTL
func (j *JWTServiceImpl) GenerateAdminToken(subject, role string) (string, error) {
	now := j.now()
	claims := adminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{AdminAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        newTokenID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
}

// ValidateAdminToken returns ErrTokenExpired, ErrTokenInvalid or ErrTokenMalformed on rejection
func (j *JWTServiceImpl) ValidateAdminToken(tokenString string) (*domain.TokenClaims, error) {
	var claims adminClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(AdminAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if claims.Subject == "" || claims.Role == "" || claims.IssuedAt == nil {
		return nil, domain.ErrTokenMalformed
	}
	return &domain.TokenClaims{
		Subject:   claims.Subject,
		Role:      claims.Role,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}
