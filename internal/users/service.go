package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/tempora-app/tempora/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListActive(ctx context.Context) ([]User, error)
	Insert(ctx context.Context, u *User) error
}

// Service handles account business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// ListActive returns all active users.
func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	return s.repo.ListActive(ctx)
}

// Create registers a new account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if in.HourlyRate != nil && in.HourlyRate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: hourly rate must be positive", shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		HourlyRate:   in.HourlyRate,
		PasswordHash: string(hash),
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", shared.ErrValidation)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: invalid credentials", shared.ErrValidation)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", shared.ErrValidation)
	}
	return user, nil
}
