package repository

import (
	"context"
	"errors"

	"account-service/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the lookup key.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when a write collides with the unique email index.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserFilter narrows ListActive results. Page is 1-based.
type UserFilter struct {
	Search string
	Page   int
	Limit  int
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SoftDelete(ctx context.Context, id int64) error
	ListActive(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
}
