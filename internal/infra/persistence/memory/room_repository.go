package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

type roomRepository struct {
	tx *transaction
}

func (r roomRepository) FindByID(_ context.Context, id string) (*domain.Room, error) {
	row, ok := r.tx.state.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	room := r.tx.decorate(row)
	return &room, nil
}

func (r roomRepository) FindByPassword(_ context.Context, password string) (*domain.Room, error) {
	var match *roomRow
	for _, row := range r.tx.state.rooms {
		if row.Password == nil || *row.Password != password {
			continue
		}
		if match != nil {
			return nil, repository.ErrRoomNotFound
		}
		found := row
		match = &found
	}
	if match == nil {
		return nil, repository.ErrRoomNotFound
	}
	room := r.tx.decorate(*match)
	return &room, nil
}

func (r roomRepository) ListByCreatedAt(_ context.Context) ([]domain.Room, error) {
	rows := make([]roomRow, 0, len(r.tx.state.rooms))
	for _, row := range r.tx.state.rooms {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	rooms := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, r.tx.decorate(row))
	}
	return rooms, nil
}

func (r roomRepository) FindMembershipByUserID(_ context.Context, userID uint) (domain.MembershipLookup, error) {
	m, ok := r.tx.state.memberships[userID]
	if !ok {
		return domain.MembershipLookup{}, nil
	}
	return domain.MembershipLookup{Found: true, Membership: m}, nil
}

func (r roomRepository) Save(_ context.Context, room *domain.Room) error {
	if room == nil {
		return fmt.Errorf("memory: save room: nil room")
	}
	row := roomRow{
		ID:         room.ID,
		Name:       room.Name,
		Status:     room.Status,
		Password:   copyString(room.Password),
		Creator:    room.Creator,
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  copyTime(room.UpdatedAt),
		LastUsedAt: copyTime(room.LastUsedAt),
	}
	return r.tx.write(func(s *memoryState) error {
		for id, other := range s.rooms {
			if id != row.ID && other.Name == row.Name {
				return fmt.Errorf("%w: room name %q", repository.ErrDuplicateEntry, row.Name)
			}
		}
		if existing, ok := s.rooms[row.ID]; ok {
			existing.Name = row.Name
			existing.Status = row.Status
			existing.Password = copyString(row.Password)
			existing.UpdatedAt = copyTime(row.UpdatedAt)
			s.rooms[row.ID] = existing
			return nil
		}
		s.rooms[row.ID] = row
		return nil
	}, roomKey(row.ID))
}

func (r roomRepository) Touch(_ context.Context, roomID string, at time.Time) error {
	return r.tx.write(func(s *memoryState) error {
		row, ok := s.rooms[roomID]
		if !ok {
			return nil
		}
		if row.LastUsedAt == nil || row.LastUsedAt.Before(at) {
			t := at
			row.LastUsedAt = &t
			s.rooms[roomID] = row
		}
		return nil
	})
}

func (r roomRepository) Delete(_ context.Context, roomID string) error {
	keys := []string{roomKey(roomID)}
	for userID, m := range r.tx.state.memberships {
		if m.RoomID == roomID {
			keys = append(keys, memberKey(userID))
		}
	}
	return r.tx.write(func(s *memoryState) error {
		for userID, m := range s.memberships {
			if m.RoomID == roomID {
				delete(s.memberships, userID)
			}
		}
		delete(s.rooms, roomID)
		return nil
	}, keys...)
}

func (r roomRepository) CreateMembership(_ context.Context, m domain.Membership) error {
	return r.tx.write(func(s *memoryState) error {
		if _, ok := s.memberships[m.UserID]; ok {
			return fmt.Errorf("%w: membership for user %d", repository.ErrDuplicateEntry, m.UserID)
		}
		if _, ok := s.rooms[m.RoomID]; !ok {
			return fmt.Errorf("%w: room %s no longer exists", repository.ErrSerialization, m.RoomID)
		}
		s.memberships[m.UserID] = m
		return nil
	}, memberKey(m.UserID))
}

func (r roomRepository) DeleteMembership(_ context.Context, m domain.Membership) error {
	return r.tx.write(func(s *memoryState) error {
		existing, ok := s.memberships[m.UserID]
		if !ok || existing.RoomID != m.RoomID {
			return fmt.Errorf("%w: membership for user %d", repository.ErrSerialization, m.UserID)
		}
		delete(s.memberships, m.UserID)
		return nil
	}, memberKey(m.UserID))
}
