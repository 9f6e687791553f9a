package repository

import (
	"context"
	"time"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// RoomQuery reads rooms and memberships inside the transaction it was obtained from.
type RoomQuery interface {
	// FindByID returns ErrRoomNotFound if no room has the id.
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// FindByPassword matches the password exactly. Zero or more than one match both yield ErrRoomNotFound.
	FindByPassword(ctx context.Context, password string) (*domain.Room, error)

	// ListByCreatedAt returns every room ordered by creation time, ties broken by id.
	ListByCreatedAt(ctx context.Context) ([]domain.Room, error)

	// FindMembershipByUserID never fails on absence; check MembershipLookup.Found.
	FindMembershipByUserID(ctx context.Context, userID uint) (domain.MembershipLookup, error)
}

// RoomCommand writes rooms and memberships. Commands never retry; a lost race surfaces
// as ErrDuplicateEntry or ErrSerialization.
type RoomCommand interface {
	// Save inserts the room or overwrites name, status, password and updatedAt of an existing one.
	Save(ctx context.Context, room *domain.Room) error

	// Touch raises lastUsedAt to at. It never lowers it, so concurrent touches commute.
	Touch(ctx context.Context, roomID string, at time.Time) error

	// Delete removes the room and every membership pointing at it.
	Delete(ctx context.Context, roomID string) error

	CreateMembership(ctx context.Context, m domain.Membership) error
	DeleteMembership(ctx context.Context, m domain.Membership) error
}
