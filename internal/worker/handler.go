package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/dto"
	"github.com/s-renren/Fireworks-Display-Online/internal/metrics"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
	"github.com/s-renren/Fireworks-Display-Online/internal/tasks"
)

// RoomEventHandler publishes committed room events to live subscribers.
type RoomEventHandler struct {
	publisher repository.RoomEventPublisher
	metrics   *metrics.Metrics
}

// NewRoomEventHandler creates a RoomEventHandler. m may be nil.
func NewRoomEventHandler(publisher repository.RoomEventPublisher, m *metrics.Metrics) *RoomEventHandler {
	if publisher == nil {
		panic("RoomEventPublisher cannot be nil for RoomEventHandler")
	}
	return &RoomEventHandler{publisher: publisher, metrics: m}
}

// ProcessTask implements asynq.Handler.
func (h *RoomEventHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	payload, err := tasks.ParseRoomEventPayload(t.Payload())
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	event := payload.Event
	logCtx = logCtx.WithFields(logrus.Fields{"event_type": event.Type, "room_id": event.RoomID})

	err = h.publisher.Publish(ctx, event)
	h.metrics.EventPublished(string(event.Type), err)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to publish room event")
		return fmt.Errorf("failed to publish room event %s: %w", event.Type, err)
	}

	logCtx.Debug("Room event published")
	return nil
}

// RoomLister is the read side the occupancy task needs.
type RoomLister interface {
	FindAll(ctx context.Context) ([]dto.Room, error)
}

// OccupancyHandler refreshes the room and member gauges from a full listing.
type OccupancyHandler struct {
	rooms   RoomLister
	metrics *metrics.Metrics
}

// NewOccupancyHandler creates an OccupancyHandler.
func NewOccupancyHandler(rooms RoomLister, m *metrics.Metrics) *OccupancyHandler {
	if rooms == nil {
		panic("RoomLister cannot be nil for OccupancyHandler")
	}
	return &OccupancyHandler{rooms: rooms, metrics: m}
}

// ProcessTask implements asynq.Handler.
func (h *OccupancyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	rooms, err := h.rooms.FindAll(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list rooms for occupancy")
		return fmt.Errorf("list rooms: %w", err)
	}

	members := 0
	for _, r := range rooms {
		members += len(r.Users)
	}
	h.metrics.SetOccupancy(len(rooms), members)

	logCtx.WithFields(logrus.Fields{"rooms": len(rooms), "members": members}).Debug("Occupancy refreshed")
	return nil
}

func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	queue, _ := asynq.GetQueueName(ctx)
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     queue,
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}
