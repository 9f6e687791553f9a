package repository

import (
	"context"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// UserRepository stores the accounts that act on rooms.
type UserRepository interface {
	// FindByUsername returns ErrUserNotFound if no user has the username.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByID returns ErrUserNotFound if no user has the id.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// Save inserts a new user and fills in its ID. A taken username yields ErrDuplicateEntry.
	Save(ctx context.Context, user *domain.User) error
}
