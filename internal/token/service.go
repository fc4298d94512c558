package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

// Repository defines persistence operations for tokens.
type Repository interface {
	Find(ctx context.Context, id string) (*Token, error)
	Create(ctx context.Context, tok Token) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) error
	// Redeem atomically deletes the token and applies the new password hash
	// plus verified=true to the owning user. It reports false when the token
	// row no longer exists, which makes replayed redemptions fail.
	Redeem(ctx context.Context, id, userID, passwordHash string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service implements the token lifecycle: issue, validate, redeem.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue deletes any outstanding tokens for the user and creates a fresh one
// with a seven day due date. The returned id goes into the emailed link.
func (s *Service) Issue(ctx context.Context, userID string) (string, error) {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return "", fmt.Errorf("token: delete outstanding: %w", err)
	}
	tok := Token{
		ID:      uuid.NewString(),
		UserID:  userID,
		DueDate: s.now().Add(Lifetime),
	}
	if err := s.repo.Create(ctx, tok); err != nil {
		return "", fmt.Errorf("token: create: %w", err)
	}
	return tok.ID, nil
}

// Validate checks that the token exists and has not passed its due date.
// Expired tokens are deleted on sight so a retry fails the same way.
func (s *Service) Validate(ctx context.Context, id string) (string, error) {
	tok, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", httpx.ErrTokenInvalid
		}
		return "", err
	}
	if !s.now().Before(tok.DueDate) {
		if _, err := s.repo.Delete(ctx, id); err != nil {
			return "", err
		}
		return "", httpx.ErrTokenExpired
	}
	return tok.UserID, nil
}

// Redeem validates the token and atomically sets the owning user's password
// and verified flag, then deletes the token. A second redemption of the same
// token fails with ErrTokenInvalid.
func (s *Service) Redeem(ctx context.Context, id, password, password2 string) error {
	if len(password) < PasswordMinLen || len(password) > PasswordMaxLen {
		return fmt.Errorf("%w: password must be %d-%d characters", httpx.ErrValidation, PasswordMinLen, PasswordMaxLen)
	}
	if password != password2 {
		return fmt.Errorf("%w: must match password", httpx.ErrValidation)
	}

	userID, err := s.Validate(ctx, id)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("token: hash password: %w", err)
	}

	redeemed, err := s.repo.Redeem(ctx, id, userID, string(hash))
	if err != nil {
		return err
	}
	if !redeemed {
		return httpx.ErrTokenInvalid
	}
	return nil
}

// Sweep deletes every token past its due date. Validation already deletes
// expired tokens on sight; the sweep reclaims the ones nobody ever clicked.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}
