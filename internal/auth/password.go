package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	apperrors "carhub/internal/errors"
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{}"

	dummySecret = "carhub-timing-equalizer"

	// MaxPasswordLength is the longest secret bcrypt accepts.
	MaxPasswordLength = 72
)

// PasswordPolicy describes generated secrets. Letters and digits are always
// in the alphabet; the Require flags guarantee at least one of each class.
type PasswordPolicy struct {
	Length        int
	RequireDigit  bool
	RequireUpper  bool
	RequireLower  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy returns ten characters with at least one digit and one lowercase letter.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{Length: 10, RequireDigit: true, RequireLower: true}
}

func (p PasswordPolicy) required() []string {
	var classes []string
	if p.RequireLower {
		classes = append(classes, lowerChars)
	}
	if p.RequireUpper {
		classes = append(classes, upperChars)
	}
	if p.RequireDigit {
		classes = append(classes, digitChars)
	}
	if p.RequireSymbol {
		classes = append(classes, symbolChars)
	}
	return classes
}

// Validate rejects a policy no secret can satisfy.
func (p PasswordPolicy) Validate() error {
	if p.Length < 1 {
		return fmt.Errorf("%w: password length must be at least 1", apperrors.ErrValidation)
	}
	if p.Length > MaxPasswordLength {
		return fmt.Errorf("%w: password length %d exceeds %d", apperrors.ErrValidation, p.Length, MaxPasswordLength)
	}
	if n := len(p.required()); p.Length < n {
		return fmt.Errorf("%w: password length %d cannot hold %d required classes", apperrors.ErrValidation, p.Length, n)
	}
	return nil
}

// HashObserver is notified around every bcrypt call. *metrics.Metrics implements it.
type HashObserver interface {
	HashStarted()
	HashFinished()
}

type noopObserver struct{}

func (noopObserver) HashStarted()  {}
func (noopObserver) HashFinished() {}

// PasswordManager generates, hashes and verifies account secrets.
// Hash and Verify share a pool of worker slots so bcrypt never occupies more
// than the configured number of CPUs.
type PasswordManager struct {
	cost     int
	pool     *semaphore.Weighted
	observer HashObserver

	dummy    []byte
	dummyErr error
}

// PasswordOption configures a PasswordManager.
type PasswordOption func(*PasswordManager)

// WithHashObserver reports worker slot usage to o.
func WithHashObserver(o HashObserver) PasswordOption {
	return func(m *PasswordManager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewPasswordManager creates a manager hashing with cost and at most workers concurrent bcrypt calls.
func NewPasswordManager(cost, workers int, opts ...PasswordOption) *PasswordManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if workers < 1 {
		workers = 1
	}
	m := &PasswordManager{
		cost:     cost,
		pool:     semaphore.NewWeighted(int64(workers)),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	// Built up front so the first unknown-email login costs one bcrypt round like every other.
	m.dummy, m.dummyErr = bcrypt.GenerateFromPassword([]byte(dummySecret), m.cost)
	return m
}

// Generate returns a random secret satisfying policy.
func (m *PasswordManager) Generate(policy PasswordPolicy) (string, error) {
	if err := policy.Validate(); err != nil {
		return "", err
	}

	required := policy.required()
	alphabet := lowerChars + upperChars + digitChars
	if policy.RequireSymbol {
		alphabet += symbolChars
	}

	out := make([]byte, 0, policy.Length)
	for _, class := range required {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < policy.Length {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates, so required characters are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

// Hash returns the bcrypt digest of secret. The salt is embedded in the digest.
func (m *PasswordManager) Hash(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty password", apperrors.ErrValidation)
	}

	var digest []byte
	err := m.withSlot(ctx, func() error {
		var err error
		digest, err = bcrypt.GenerateFromPassword([]byte(secret), m.cost)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. A mismatch is (false, nil).
func (m *PasswordManager) Verify(ctx context.Context, secret, digest string) (bool, error) {
	var match bool
	err := m.withSlot(ctx, func() error {
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil
		}
		if err != nil {
			return err
		}
		match = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return match, nil
}

// VerifyDummy spends the same work as Verify against a digest no secret is
// expected to match. Login calls it for unknown emails.
func (m *PasswordManager) VerifyDummy(ctx context.Context, secret string) error {
	if m.dummyErr != nil {
		return fmt.Errorf("dummy digest: %w", m.dummyErr)
	}
	_, err := m.Verify(ctx, secret, string(m.dummy))
	return err
}

func (m *PasswordManager) withSlot(ctx context.Context, fn func() error) error {
	if err := m.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.pool.Release(1)

	m.observer.HashStarted()
	defer m.observer.HashFinished()
	return fn()
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}
