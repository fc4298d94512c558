package users

import (
	"context"

	"github.com/pacslink/pacslink/internal/auth"
)

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Update patches the supplied profile fields. A new password is re-hashed
// with the current scheme before storage.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) error {
	fields := make(map[string]any)
	if in.Hospital != nil {
		fields["hospital"] = *in.Hospital
	}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Contact != nil {
		fields["contact"] = *in.Contact
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return err
		}
		fields["password_hash"] = hash
	}
	return s.repo.Update(ctx, id, fields)
}

// Delete removes one account.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.repo.Delete(ctx, id)
}
