package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	apperrors "carhub/internal/errors"
)

// DefaultTokenTTL is the lifetime of a session token.
const DefaultTokenTTL = time.Hour

// Claims represents JWT claims. The subject holds the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves about its bearer.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// TokenService issues and verifies stateless HS256 session tokens.
// Tokens are not stored, so they cannot be revoked before they expire.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a token service with the given secret and lifetime.
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		// Time based claims are checked against s.now below.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the user. It returns the token and its expiry.
func (s *TokenService) Issue(userID uuid.UUID, email string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm and expiry. Every failure wraps ErrInvalidToken.
// A token is expired once now reaches exp.
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: empty token", apperrors.ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, apperrors.ErrInvalidToken
	}

	now := s.now()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, fmt.Errorf("%w: expired", apperrors.ErrInvalidToken)
	}
	if !claims.VerifyNotBefore(now, false) {
		return Identity{}, fmt.Errorf("%w: not valid yet", apperrors.ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", apperrors.ErrInvalidToken)
	}
	return Identity{UserID: userID, Email: claims.Email}, nil
}

// IsInvalidToken reports whether err came from Verify rejecting a token.
func IsInvalidToken(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidToken)
}
