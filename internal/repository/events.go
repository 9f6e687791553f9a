package repository

import (
	"context"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// RoomEventPublisher fans a committed room event out to live subscribers.
type RoomEventPublisher interface {
	Publish(ctx context.Context, event domain.RoomEvent) error
}

// RoomEventSubscription is a live feed of one room's events.
// Events is closed once Close has been called or the underlying connection is gone.
type RoomEventSubscription interface {
	Events() <-chan domain.RoomEvent
	Close() error
}

// RoomEventSubscriber opens per-room event feeds.
type RoomEventSubscriber interface {
	Subscribe(ctx context.Context, roomID string) (RoomEventSubscription, error)
}
