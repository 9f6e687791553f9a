package domain

import "time"

// RoomStatus is the lifecycle tag of a room. Only OPEN rooms can be entered.
type RoomStatus string

const (
	RoomStatusOpen   RoomStatus = "OPEN"
	RoomStatusClosed RoomStatus = "CLOSED"
)

// Valid reports whether s is a recognized status.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusOpen, RoomStatusClosed:
		return true
	}
	return false
}

// UserRef identifies a user inside a room view (creator or member).
type UserRef struct {
	ID          uint
	DisplayName string
}

// Room is a joinable group with a lifecycle status, an optional password and a creator.
type Room struct {
	ID         string
	Name       string
	Status     RoomStatus
	Password   *string // nil for public rooms
	Creator    UserRef
	CreatedAt  time.Time
	UpdatedAt  *time.Time // nil until the first rename
	LastUsedAt *time.Time // nil until the first entry or exit
	Users      []UserRef
}

// IsPrivate reports whether the room is reachable through the password path.
func (r Room) IsPrivate() bool {
	return r.Password != nil
}

// HasUser reports whether userID is listed among the room's current members.
func (r Room) HasUser(userID uint) bool {
	for _, u := range r.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

func (r Room) clone() Room {
	cp := r
	if r.Password != nil {
		p := *r.Password
		cp.Password = &p
	}
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		cp.UpdatedAt = &t
	}
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		cp.LastUsedAt = &t
	}
	if r.Users != nil {
		cp.Users = make([]UserRef, len(r.Users))
		copy(cp.Users, r.Users)
	}
	return cp
}

// Membership binds one user to one room. A user has at most one membership at any instant.
type Membership struct {
	UserID    uint
	RoomID    string
	CreatedAt time.Time
}

// MembershipLookup wraps the result of a by-user membership query; absence is not an error.
type MembershipLookup struct {
	Found      bool
	Membership Membership
}

// FireFlower is the slice of a resource record this core needs to validate a spend.
type FireFlower struct {
	ID       string
	OwnerID  uint
	Consumed bool
}

// FireFlowerConsumption records that a fire flower was spent to enter a room.
type FireFlowerConsumption struct {
	FireFlowerID string
	UserID       uint
	RoomID       string
	ConsumedAt   time.Time
}

// RoomCreateVal is the caller input for creating a room.
type RoomCreateVal struct {
	Name     string
	Password *string
	Status   RoomStatus
}

// RoomUpdateVal is the caller input for renaming a room.
type RoomUpdateVal struct {
	Name string
}

// RoomEntity is the working aggregate the state machine computes over: a room plus the acting user.
type RoomEntity struct {
	Room  Room
	Actor User
}

// RoomEntered is the outcome of a successful entry.
type RoomEntered struct {
	RoomEntity
	Membership   Membership
	Consumptions []FireFlowerConsumption
}

// RoomExit is the outcome of a successful exit.
type RoomExit struct {
	Membership Membership
	RoomID     string
}

// RoomDeleted is a deletion directive. Memberships lists the members removed with the room.
type RoomDeleted struct {
	RoomEntity
	Memberships []Membership
}
