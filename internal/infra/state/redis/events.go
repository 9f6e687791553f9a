package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

// DefaultKeyPrefix is used when no prefix is configured.
const DefaultKeyPrefix = "ff:"

// RoomEventBus publishes and subscribes room events over Redis pub/sub.
type RoomEventBus struct {
	client    *redis.Client
	keyPrefix string
}

var (
	_ repository.RoomEventPublisher  = (*RoomEventBus)(nil)
	_ repository.RoomEventSubscriber = (*RoomEventBus)(nil)
)

// NewRoomEventBus creates a RoomEventBus.
func NewRoomEventBus(client *redis.Client, keyPrefix string) *RoomEventBus {
	if client == nil {
		panic("redis client cannot be nil for RoomEventBus")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RoomEventBus{client: client, keyPrefix: keyPrefix}
}

func roomEventsChannel(prefix, roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", prefix, roomID)
}

// Publish sends event to the room's channel.
func (b *RoomEventBus) Publish(ctx context.Context, event domain.RoomEvent) error {
	channel := roomEventsChannel(b.keyPrefix, event.RoomID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room event %s for room %s: %w", event.Type, event.RoomID, err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_type":   event.Type,
			"room_id":      event.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish room event to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a feed of roomID's events. The subscription is confirmed before returning.
func (b *RoomEventBus) Subscribe(ctx context.Context, roomID string) (repository.RoomEventSubscription, error) {
	channel := roomEventsChannel(b.keyPrefix, roomID)
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to channel %s: %w", channel, err)
	}

	sub := &roomSubscription{
		pubsub: pubsub,
		events: make(chan domain.RoomEvent, 16),
		done:   make(chan struct{}),
	}
	go sub.forward(pubsub.Channel(), logrus.WithFields(logrus.Fields{"channel": channel, "room_id": roomID}))
	return sub, nil
}

type roomSubscription struct {
	pubsub    *redis.PubSub
	events    chan domain.RoomEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *roomSubscription) Events() <-chan domain.RoomEvent { return s.events }

func (s *roomSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *roomSubscription) forward(messages <-chan *redis.Message, logCtx *logrus.Entry) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			event, err := decodeRoomEvent(msg.Payload)
			if err != nil {
				logCtx.WithError(err).Warn("Dropping malformed room event")
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}

func decodeRoomEvent(payload string) (domain.RoomEvent, error) {
	var event domain.RoomEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return domain.RoomEvent{}, fmt.Errorf("redis: failed to unmarshal room event: %w", err)
	}
	if event.RoomID == "" || event.Type == "" {
		return domain.RoomEvent{}, fmt.Errorf("redis: room event is missing type or room id")
	}
	return event, nil
}
