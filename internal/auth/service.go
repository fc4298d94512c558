package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	captcha CaptchaVerifier
}

// NewService constructs a new Service.
func NewService(repo Repository, captcha CaptchaVerifier) *Service {
	return &Service{repo: repo, captcha: captcha}
}

// Authenticate validates email/password credentials. A missing account, an
// unverified account and a wrong password all return (nil, nil): callers must
// not learn which of the three happened. Errors are reserved for system
// failures.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.Verified {
		return nil, nil
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, nil
	}
	return user, nil
}

// CheckCaptcha enforces the captcha requirement once the client-reported fail
// count reaches the threshold.
func (s *Service) CheckCaptcha(ctx context.Context, failCount int, captchaToken, ip string) error {
	if failCount < CaptchaThreshold {
		return nil
	}
	if captchaToken == "" {
		return fmt.Errorf("%w: no captchaToken", httpx.ErrCaptcha)
	}
	success, err := s.captcha.Verify(ctx, captchaToken, ip)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrDependency, err)
	}
	if !success {
		return httpx.ErrCaptcha
	}
	return nil
}

// SignupInput carries the public signup fields. Accounts start unverified and
// without a password; both are set when the emailed token is redeemed.
type SignupInput struct {
	Hospital  string
	Email     string
	Name      string
	Contact   string
	CountryID int
	LangID    int
}

// Signup creates an unverified account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	user := &User{
		ID:        uuid.NewString(),
		Hospital:  in.Hospital,
		Email:     in.Email,
		Name:      in.Name,
		Contact:   in.Contact,
		Position:  string(guard.RoleUser),
		Verified:  false,
		LangID:    in.LangID,
		CountryID: in.CountryID,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ForceSignupInput carries the admin-created account fields.
type ForceSignupInput struct {
	SignupInput
	Password string
	Position string
	Verified bool
}

// ForceSignup creates an account on behalf of an admin, pre-verified and with
// a password already set.
func (s *Service) ForceSignup(ctx context.Context, in ForceSignupInput) (*User, error) {
	if !guard.Role(in.Position).Valid() {
		return nil, fmt.Errorf("%w: unknown position %q", httpx.ErrValidation, in.Position)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           uuid.NewString(),
		Hospital:     in.Hospital,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Contact:      in.Contact,
		Position:     in.Position,
		Verified:     in.Verified,
		LangID:       in.LangID,
		CountryID:    in.CountryID,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterFailure bumps the persisted fail counter after a rejected login.
func (s *Service) RegisterFailure(ctx context.Context, email string) error {
	return s.repo.IncrementFailCount(ctx, email)
}

// RegisterSuccess resets the fail counter and records the caller IP.
func (s *Service) RegisterSuccess(ctx context.Context, email, ip string) error {
	return s.repo.RecordLogin(ctx, email, ip)
}

// FindByEmail exposes account lookup for the forgot-password flow.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// Profile returns the guard-endpoint view of an account.
func (s *Service) Profile(ctx context.Context, id string) (*Profile, error) {
	return s.repo.GetProfile(ctx, id)
}
