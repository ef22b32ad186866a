package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidSession is returned for missing, malformed, expired, or
	// revoked session tokens.
	ErrInvalidSession = errors.New("auth: invalid session")
)

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	UserID       string `json:"uid"`
	Email        string `json:"email"`
	IsSuperAdmin bool   `json:"sadm"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies the HS256 session tokens carried
// in the session cookie. Revocation is backed by redis; when redis is
// unreachable the check fails open so a cache outage does not take down
// every authenticated request.
type SessionService struct {
	secretKey   []byte
	issuer      string
	ttl         time.Duration
	redisClient redis.UniversalClient
}

// NewSessionService constructs a SessionService. redisClient may be nil,
// which disables revocation.
func NewSessionService(secret, issuer string, ttl time.Duration, redisClient redis.UniversalClient) *SessionService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &SessionService{
		secretKey:   []byte(secret),
		issuer:      issuer,
		ttl:         ttl,
		redisClient: redisClient,
	}
}

// Issue signs a session token for the given identity.
func (s *SessionService) Issue(userID, email string, isSuperAdmin bool) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:       userID,
		Email:        email,
		IsSuperAdmin: isSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, including the revocation
// list.
func (s *SessionService) Verify(ctx context.Context, tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidSession
	}
	if s.isRevoked(ctx, tokenString) {
		return nil, ErrInvalidSession
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Revoke invalidates a token for its remaining lifetime.
func (s *SessionService) Revoke(ctx context.Context, tokenString string) error {
	if s.redisClient == nil {
		return nil
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &SessionClaims{})
	if err != nil {
		return fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.ExpiresAt == nil {
		return ErrInvalidSession
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	key := revocationKey(tokenString)
	if err := s.redisClient.Set(ctx, key, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("store revocation: %w", err)
	}
	return nil
}

func (s *SessionService) isRevoked(ctx context.Context, tokenString string) bool {
	if s.redisClient == nil {
		return false
	}
	exists, err := s.redisClient.Exists(ctx, revocationKey(tokenString)).Result()
	if err != nil {
		// Fail open on redis errors.
		return false
	}
	return exists > 0
}

func revocationKey(token string) string {
	return "session:revoked:" + token
}
