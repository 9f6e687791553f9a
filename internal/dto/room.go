package dto

import (
	"time"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// UserRef is a user as shown inside a room.
type UserRef struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"displayName"`
}

// Room is the external view of a room. The password never leaves the service.
type Room struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Private    bool       `json:"private"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	Creator    UserRef    `json:"creator"`
	Users      []UserRef  `json:"users,omitempty"`
}

// ToRoom projects a domain room to its external view.
func ToRoom(r domain.Room) Room {
	view := Room{
		ID:         r.ID,
		Name:       r.Name,
		Status:     string(r.Status),
		Private:    r.IsPrivate(),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		LastUsedAt: r.LastUsedAt,
		Creator:    toUserRef(r.Creator),
	}
	if len(r.Users) > 0 {
		view.Users = make([]UserRef, 0, len(r.Users))
		for _, u := range r.Users {
			view.Users = append(view.Users, toUserRef(u))
		}
	}
	return view
}

// ToRooms projects a listing, keeping its order.
func ToRooms(rooms []domain.Room) []Room {
	views := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, ToRoom(r))
	}
	return views
}

func toUserRef(u domain.UserRef) UserRef {
	return UserRef{ID: u.ID, DisplayName: u.DisplayName}
}
