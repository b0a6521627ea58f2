package users

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role enumerates account roles. Capability checks happen at the handler
// layer; services receive already-authorized actor ids.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User represents an account that logs time and owns invoices.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         Role
	HourlyRate   *decimal.Decimal
	IsActive     bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput captures fields for creating an account.
type CreateUserInput struct {
	Email      string `validate:"required,email"`
	Name       string `validate:"required"`
	Role       Role   `validate:"required,oneof=admin member"`
	HourlyRate *decimal.Decimal
	Password   string `validate:"required,min=8"`
}
