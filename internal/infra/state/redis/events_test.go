package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRoomEventsChannel(t *testing.T) {
	assert.Equal(t, "ff:room:abc:events", roomEventsChannel("ff:", "abc"))

	bus := NewRoomEventBus(unreachableClient(), "")
	assert.Equal(t, DefaultKeyPrefix, bus.keyPrefix)
}

func TestDecodeRoomEvent(t *testing.T) {
	at := time.Date(2024, 7, 1, 20, 0, 0, 0, time.UTC)

	event, err := decodeRoomEvent(`{"type":"room.entered","room_id":"r1","user_id":7,"at":"2024-07-01T20:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomEvent{Type: domain.RoomEventEntered, RoomID: "r1", UserID: 7, At: at}, event)

	_, err = decodeRoomEvent(`not json`)
	assert.Error(t, err)

	_, err = decodeRoomEvent(`{"type":"room.entered"}`)
	assert.Error(t, err, "room id is required")
}

func TestRoomEventBus_UnreachableRedis(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	bus := NewRoomEventBus(client, "test:")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := bus.Publish(ctx, domain.RoomEvent{Type: domain.RoomEventCreated, RoomID: "r1"})
	assert.Error(t, err)

	sub, err := bus.Subscribe(ctx, "r1")
	assert.Error(t, err)
	assert.Nil(t, sub)
}

func TestNewRoomEventBus_NilClientPanics(t *testing.T) {
	assert.Panics(t, func() { NewRoomEventBus(nil, "") })
}
