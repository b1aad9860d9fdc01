package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carhub/internal/auth"
	apperrors "carhub/internal/errors"
	"carhub/internal/model"
	"carhub/internal/ratelimit"
	"carhub/internal/repository"
)

// TokenType is returned alongside every access token.
const TokenType = "Bearer"

// Passwords generates, hashes and checks account secrets. *auth.PasswordManager implements it.
type Passwords interface {
	Generate(policy auth.PasswordPolicy) (string, error)
	Hash(ctx context.Context, secret string) (string, error)
	Verify(ctx context.Context, secret, digest string) (bool, error)
	VerifyDummy(ctx context.Context, secret string) error
}

// Tokens issues and verifies session tokens. *auth.TokenService implements it.
type Tokens interface {
	Issue(userID uuid.UUID, email string) (string, time.Time, error)
	Verify(token string) (auth.Identity, error)
	TTL() time.Duration
}

// WelcomeSender delivers a new account's password. *mail.WelcomeMailer implements it.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, to, password string) error
}

// LoginRecorder counts login outcomes. *metrics.Metrics implements it.
type LoginRecorder interface {
	LoginResult(outcome string)
}

// LoginResult is a successful login.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	ExpiresAt   time.Time
}

// AuthService handles account creation and credential exchange.
type AuthService interface {
	// Signup creates an account for email with a generated password and mails
	// that password. Either both happen or neither does.
	Signup(ctx context.Context, email string) (*model.User, error)
	// Login exchanges email and password for an access token. An unknown email
	// and a wrong password fail identically with ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Authenticate verifies a bearer token.
	Authenticate(token string) (auth.Identity, error)
}

type authService struct {
	users     repository.UserRepository
	passwords Passwords
	tokens    Tokens
	mailer    WelcomeSender

	policy  auth.PasswordPolicy
	limiter ratelimit.Limiter
	metrics LoginRecorder
	log     *zap.Logger
	timeout time.Duration
}

// AuthOption configures AuthService.
type AuthOption func(*authService)

// WithPasswordPolicy sets the policy for generated passwords.
func WithPasswordPolicy(p auth.PasswordPolicy) AuthOption {
	return func(s *authService) { s.policy = p }
}

// WithLoginLimiter throttles login attempts per email.
func WithLoginLimiter(l ratelimit.Limiter) AuthOption {
	return func(s *authService) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithLoginRecorder reports login outcomes.
func WithLoginRecorder(r LoginRecorder) AuthOption {
	return func(s *authService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l *zap.Logger) AuthOption {
	return func(s *authService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAuthStorageTimeout bounds each storage call.
func WithAuthStorageTimeout(d time.Duration) AuthOption {
	return func(s *authService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, passwords Passwords, tokens Tokens, mailer WelcomeSender, opts ...AuthOption) AuthService {
	s := &authService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		mailer:    mailer,
		policy:    auth.DefaultPasswordPolicy(),
		limiter:   ratelimit.Noop{},
		metrics:   nopRecorder{},
		log:       zap.NewNop(),
		timeout:   DefaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) Signup(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}

	rctx, cancel := readContext(ctx, s.timeout)
	_, err := s.users.FindByEmail(rctx, email)
	cancel()
	if err == nil {
		return nil, fmt.Errorf("signup: %w", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	secret, err := s.passwords.Generate(s.policy)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	digest, err := s.passwords.Hash(ctx, secret)
	if err != nil {
		return nil, err
	}

	user := &model.User{Email: email, PasswordHash: digest}

	// The unique index decides between concurrent signups for the same email.
	wctx, cancel := writeContext(ctx, s.timeout)
	err = s.users.Insert(wctx, user)
	cancel()
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendWelcome(context.WithoutCancel(ctx), email, secret); err != nil {
		s.log.Error("signup: password delivery failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		s.compensateSignup(ctx, user)
		return nil, fmt.Errorf("signup: %w", apperrors.ErrMailDelivery)
	}

	s.log.Info("signup: account created", zap.String("user_id", user.ID.String()))
	return user, nil
}

// compensateSignup removes a user whose password never reached them.
func (s *authService) compensateSignup(ctx context.Context, user *model.User) {
	wctx, cancel := writeContext(ctx, s.timeout)
	defer cancel()
	if err := s.users.DeleteByID(wctx, user.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.log.Error("signup: compensation failed, account left without delivered password",
			zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = model.NormalizeEmail(email)

	limit, err := s.limiter.Allow(ctx, email)
	if err != nil {
		s.log.Warn("login: rate limiter unavailable", zap.Error(err))
	}
	if !limit.Allowed {
		s.metrics.LoginResult("throttled")
		return nil, apperrors.ErrTooManyAttempts
	}

	rctx, cancel := readContext(ctx, s.timeout)
	user, err := s.users.FindByEmail(rctx, email)
	cancel()
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.LoginResult("error")
			return nil, fmt.Errorf("find user: %w", err)
		}
		// Same bcrypt work as a real check, so response time does not reveal the email is unknown.
		if err := s.passwords.VerifyDummy(ctx, password); err != nil {
			s.metrics.LoginResult("error")
			return nil, err
		}
		s.metrics.LoginResult("rejected")
		return nil, apperrors.ErrInvalidCredentials
	}

	ok, err := s.passwords.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		s.metrics.LoginResult("error")
		return nil, err
	}
	if !ok {
		s.metrics.LoginResult("rejected")
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.metrics.LoginResult("error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.LoginResult("success")
	return &LoginResult{
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int64(s.tokens.TTL() / time.Second),
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *authService) Authenticate(token string) (auth.Identity, error) {
	return s.tokens.Verify(token)
}

type nopRecorder struct{}

func (nopRecorder) LoginResult(string) {}
