package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

// UserRepository keeps accounts in the owning Store. Account writes are not transactional.
type UserRepository struct {
	store *Store
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) Save(_ context.Context, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("memory: save user: nil user")
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, u := range r.store.users {
		if id != user.ID && u.Username == user.Username {
			return fmt.Errorf("%w: username %q", repository.ErrDuplicateEntry, user.Username)
		}
	}
	now := time.Now()
	if user.ID == 0 {
		r.store.nextUser++
		user.ID = r.store.nextUser
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.store.users[user.ID] = *user
	return nil
}
