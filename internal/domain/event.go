package domain

import "time"

// RoomEventType names a committed room transition.
type RoomEventType string

const (
	RoomEventCreated RoomEventType = "room.created"
	RoomEventRenamed RoomEventType = "room.renamed"
	RoomEventEntered RoomEventType = "room.entered"
	RoomEventExited  RoomEventType = "room.exited"
	RoomEventDeleted RoomEventType = "room.deleted"
)

// RoomEvent is emitted after a room operation commits.
type RoomEvent struct {
	Type   RoomEventType `json:"type"`
	RoomID string        `json:"room_id"`
	UserID uint          `json:"user_id"`
	At     time.Time     `json:"at"`
}
