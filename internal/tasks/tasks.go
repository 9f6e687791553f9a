package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// Task types.
const (
	TypeRoomEvent     = "room:event"
	TypeRoomOccupancy = "room:occupancy"
)

// Queue names, matching the worker server configuration.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// RoomEventPayload is the payload of a TypeRoomEvent task.
type RoomEventPayload struct {
	Event domain.RoomEvent `json:"event"`
}

// NewRoomEventTask wraps event in a task destined for the critical queue.
func NewRoomEventTask(event domain.RoomEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomEventPayload{Event: event})
	if err != nil {
		return nil, fmt.Errorf("marshal room event payload: %w", err)
	}
	return asynq.NewTask(TypeRoomEvent, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(3), asynq.Timeout(10*time.Second)), nil
}

// ParseRoomEventPayload decodes the payload of a TypeRoomEvent task.
func ParseRoomEventPayload(data []byte) (RoomEventPayload, error) {
	var payload RoomEventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return RoomEventPayload{}, fmt.Errorf("unmarshal room event payload: %w", err)
	}
	if payload.Event.RoomID == "" || payload.Event.Type == "" {
		return RoomEventPayload{}, fmt.Errorf("room event payload is missing type or room id")
	}
	return payload, nil
}

// NewRoomOccupancyTask builds the periodic occupancy refresh task. It carries no payload.
func NewRoomOccupancyTask() *asynq.Task {
	return asynq.NewTask(TypeRoomOccupancy, nil, asynq.Queue(QueueLow), asynq.MaxRetry(0))
}

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EventDispatcher hands committed room events to the worker through asynq.
type EventDispatcher struct {
	client Enqueuer
}

// NewEventDispatcher creates an EventDispatcher.
func NewEventDispatcher(client Enqueuer) *EventDispatcher {
	if client == nil {
		panic("asynq client cannot be nil for EventDispatcher")
	}
	return &EventDispatcher{client: client}
}

// DispatchRoomEvent enqueues event.
func (d *EventDispatcher) DispatchRoomEvent(ctx context.Context, event domain.RoomEvent) error {
	task, err := NewRoomEventTask(event)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue room event %s for room %s: %w", event.Type, event.RoomID, err)
	}
	return nil
}
