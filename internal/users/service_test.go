package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/shared"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type memoryUsers struct {
	byID    map[int64]*User
	byEmail map[string]*User
	nextID  int64
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[int64]*User), byEmail: make(map[string]*User)}
}

func (m *memoryUsers) Get(ctx context.Context, id int64) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, email)
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) ListActive(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range m.byID {
		if u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryUsers) Insert(ctx context.Context, u *User) error {
	if _, exists := m.byEmail[u.Email]; exists {
		return fmt.Errorf("%w: email already registered", shared.ErrConflict)
	}
	m.nextID++
	u.ID = m.nextID
	u.IsActive = true
	copied := *u
	m.byID[u.ID] = &copied
	m.byEmail[u.Email] = &copied
	return nil
}

func validInput() CreateUserInput {
	return CreateUserInput{
		Email:    "mara@example.com",
		Name:     "Mara Chen",
		Role:     RoleMember,
		Password: "s3cret-enough",
	}
}

func TestCreateHashesPassword(t *testing.T) {
	svc := NewService(newMemoryUsers())

	u, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.NotEqual(t, "s3cret-enough", u.PasswordHash)
	require.NotContains(t, u.PasswordHash, "s3cret")
}

func TestCreateNormalisesEmail(t *testing.T) {
	svc := NewService(newMemoryUsers())

	in := validInput()
	in.Email = "  Mara@Example.COM "
	u, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "mara@example.com", u.Email)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryUsers())

	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validInput())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryUsers())

	cases := []struct {
		name   string
		mutate func(*CreateUserInput)
	}{
		{"bad email", func(in *CreateUserInput) { in.Email = "not-an-email" }},
		{"blank name", func(in *CreateUserInput) { in.Name = "  " }},
		{"bad role", func(in *CreateUserInput) { in.Role = "owner" }},
		{"short password", func(in *CreateUserInput) { in.Password = "short" }},
		{"zero rate", func(in *CreateUserInput) { in.HourlyRate = decPtr("0") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryUsers()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	u, err := svc.Authenticate(context.Background(), "MARA@example.com", "s3cret-enough")
	require.NoError(t, err)
	require.Equal(t, created.ID, u.ID)

	_, err = svc.Authenticate(context.Background(), "mara@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "s3cret-enough")
	require.ErrorIs(t, err, shared.ErrValidation)

	repo.byEmail["mara@example.com"].IsActive = false
	_, err = svc.Authenticate(context.Background(), "mara@example.com", "s3cret-enough")
	require.ErrorIs(t, err, shared.ErrValidation)
}
