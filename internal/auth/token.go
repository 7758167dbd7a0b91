package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/user-access-service/internal/domain"
)

// ErrSignature marks a token whose signature, structure or claims are invalid.
var ErrSignature = errors.New("invalid token signature")

// ErrExpired marks a token past its expiry instant.
var ErrExpired = errors.New("token expired")

// TokenCodec issues and verifies signed session tokens. It never consults
// the revocation ledger; cryptographic validity and server-side usability
// are separate questions.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec builds a codec with the shared signing secret and session TTL.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Claims describes the JWT payload: subject is the user's email, "rol" is a
// snapshot of the role at issuance.
type Claims struct {
	Role domain.Role `json:"rol"`
	jwt.RegisteredClaims
}

// Issue builds and signs a session token for the user. The jti claim makes
// every issued token string unique, which the ledger relies on.
func (tc *TokenCodec) Issue(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tc.ttl)
	claims := &Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks signature and freshness and returns the claims. Failures are
// ErrExpired for a stale token and ErrSignature for everything else
// (wrong key, tampering, malformed structure, unknown role claim).
func (tc *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tc.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrSignature
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrSignature
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrSignature
	}
	return claims, nil
}

// TTL returns the configured session lifetime.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}
