package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxRoomNameLength bounds room names in characters.
const MaxRoomNameLength = 64

// The functions in this file are the room state machine. They never touch storage:
// callers fetch the current state, pass it in together with ids and the clock reading,
// and persist whatever comes back.

// CreateRoom builds a new OPEN or CLOSED room owned by actor.
func CreateRoom(actor User, id string, val RoomCreateVal, now time.Time) (RoomEntity, error) {
	vErr := &ValidationError{}
	name := strings.TrimSpace(val.Name)
	validateRoomName(vErr, name)
	if !val.Status.Valid() {
		vErr.add("status", fmt.Sprintf("status must be %s or %s", RoomStatusOpen, RoomStatusClosed))
	}
	if strings.TrimSpace(id) == "" {
		vErr.add("id", "id is required")
	}
	if vErr.HasErrors() {
		return RoomEntity{}, vErr
	}

	room := Room{
		ID:        id,
		Name:      name,
		Status:    val.Status,
		Password:  normalizePassword(val.Password),
		Creator:   actor.Ref(),
		CreatedAt: now,
		Users:     []UserRef{},
	}
	return RoomEntity{Room: room, Actor: actor}, nil
}

// UpdateRoom renames room. Only the creator may do so.
func UpdateRoom(actor User, room Room, val RoomUpdateVal, now time.Time) (RoomEntity, error) {
	if room.Creator.ID != actor.ID {
		return RoomEntity{}, ErrPermission
	}
	vErr := &ValidationError{}
	name := strings.TrimSpace(val.Name)
	validateRoomName(vErr, name)
	if vErr.HasErrors() {
		return RoomEntity{}, vErr
	}

	updated := room.clone()
	updated.Name = name
	updated.UpdatedAt = &now
	return RoomEntity{Room: updated, Actor: actor}, nil
}

// FindRoom passes a looked-up room through, failing when the lookup came back empty.
func FindRoom(room *Room) (Room, error) {
	if room == nil {
		return Room{}, ErrNotFound
	}
	return room.clone(), nil
}

// FindRooms is the identity projection over a room listing.
func FindRooms(rooms []Room) []Room {
	out := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.clone())
	}
	return out
}

// EnterRoom validates an entry and produces the membership and fire flower consumptions to write.
// requested are the fire flower ids the caller wants to spend; flowers is what the gateway resolved.
func EnterRoom(actor User, room Room, existing MembershipLookup, requested []string, flowers []FireFlower, now time.Time) (RoomEntered, error) {
	if room.Status != RoomStatusOpen {
		return RoomEntered{}, ErrRoomClosed
	}
	if existing.Found {
		return RoomEntered{}, ErrAlreadyInRoom
	}

	ids := UniqueFireFlowerIDs(requested)
	if room.IsPrivate() && len(ids) == 0 {
		return RoomEntered{}, fmt.Errorf("%w: private rooms require a fire flower", ErrResourceUnavailable)
	}
	resolved := make(map[string]FireFlower, len(flowers))
	for _, f := range flowers {
		resolved[f.ID] = f
	}
	consumptions := make([]FireFlowerConsumption, 0, len(ids))
	for _, id := range ids {
		f, ok := resolved[id]
		if !ok || f.OwnerID != actor.ID || f.Consumed {
			return RoomEntered{}, fmt.Errorf("%w: %s", ErrResourceUnavailable, id)
		}
		consumptions = append(consumptions, FireFlowerConsumption{
			FireFlowerID: f.ID,
			UserID:       actor.ID,
			RoomID:       room.ID,
			ConsumedAt:   now,
		})
	}

	entered := room.clone()
	entered.LastUsedAt = &now
	entered.Users = append(entered.Users, actor.Ref())

	return RoomEntered{
		RoomEntity:   RoomEntity{Room: entered, Actor: actor},
		Membership:   Membership{UserID: actor.ID, RoomID: room.ID, CreatedAt: now},
		Consumptions: consumptions,
	}, nil
}

// ExitRoom yields the membership to remove for actor.
func ExitRoom(actor User, existing MembershipLookup) (RoomExit, error) {
	if !existing.Found || existing.Membership.UserID != actor.ID {
		return RoomExit{}, ErrNotInRoom
	}
	return RoomExit{Membership: existing.Membership, RoomID: existing.Membership.RoomID}, nil
}

// VacateRoom returns room as it looks once exit has been applied.
func VacateRoom(room Room, exit RoomExit, now time.Time) Room {
	vacated := room.clone()
	users := vacated.Users[:0]
	for _, u := range vacated.Users {
		if u.ID != exit.Membership.UserID {
			users = append(users, u)
		}
	}
	vacated.Users = users
	vacated.LastUsedAt = &now
	return vacated
}

// DeleteRoom authorizes a deletion. Current members are removed together with the room.
func DeleteRoom(actor User, room Room) (RoomDeleted, error) {
	if room.Creator.ID != actor.ID {
		return RoomDeleted{}, ErrPermission
	}
	memberships := make([]Membership, 0, len(room.Users))
	for _, u := range room.Users {
		memberships = append(memberships, Membership{UserID: u.ID, RoomID: room.ID})
	}
	return RoomDeleted{
		RoomEntity:  RoomEntity{Room: room.clone(), Actor: actor},
		Memberships: memberships,
	}, nil
}

// UniqueFireFlowerIDs drops duplicates while keeping the caller's order.
func UniqueFireFlowerIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validateRoomName(vErr *ValidationError, name string) {
	if name == "" {
		vErr.add("name", "name is required")
		return
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", MaxRoomNameLength))
	}
}

// normalizePassword treats a blank password as no password. Non-blank values are kept verbatim
// because matching is exact.
func normalizePassword(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	v := *p
	return &v
}
