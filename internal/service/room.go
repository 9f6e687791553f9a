package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/dto"
	"github.com/s-renren/Fireworks-Display-Online/internal/metrics"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

// Operation names used in logs and metrics.
const (
	OpCreate           = "create"
	OpUpdateRoomName   = "update_room_name"
	OpFindAll          = "find_all"
	OpFindByID         = "find_by_id"
	OpEnterPrivateRoom = "enter_private_room"
	OpEnterRoom        = "enter_room"
	OpExitRoom         = "exit_room"
	OpDelete           = "delete"
)

// EventDispatcher receives room events once their transaction has committed.
type EventDispatcher interface {
	DispatchRoomEvent(ctx context.Context, event domain.RoomEvent) error
}

// RoomService runs every room operation as one repeatable-read transaction:
// query, decide with the domain state machine, write, commit.
type RoomService struct {
	transactor repository.Transactor
	events     EventDispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
}

// RoomServiceOption customises a RoomService.
type RoomServiceOption func(*RoomService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) RoomServiceOption {
	return func(s *RoomService) { s.now = now }
}

// WithIDGenerator replaces the room id generator.
func WithIDGenerator(newID func() string) RoomServiceOption {
	return func(s *RoomService) { s.newID = newID }
}

// NewRoomService creates a RoomService. events and m may be nil.
func NewRoomService(transactor repository.Transactor, events EventDispatcher, m *metrics.Metrics, opts ...RoomServiceOption) *RoomService {
	if transactor == nil {
		panic("Transactor cannot be nil for RoomService")
	}
	s := &RoomService{
		transactor: transactor,
		events:     events,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a room owned by actor.
func (s *RoomService) Create(ctx context.Context, actor domain.User, val domain.RoomCreateVal) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpCreate, "user_id": actor.ID, "room_name": val.Name})
	id := s.newID()
	now := s.now()

	var view dto.Room
	err := s.run(ctx, OpCreate, logCtx, func(ctx context.Context, tx repository.Tx) error {
		created, err := domain.CreateRoom(actor, id, val, now)
		if err != nil {
			return err
		}
		if err := tx.RoomCommand().Save(ctx, &created.Room); err != nil {
			return err
		}
		view = dto.ToRoom(created.Room)
		return nil
	})
	if err != nil {
		return dto.Room{}, err
	}

	logCtx.WithField("room_id", view.ID).Info("Room created successfully")
	s.dispatch(ctx, domain.RoomEvent{Type: domain.RoomEventCreated, RoomID: view.ID, UserID: actor.ID, At: now})
	return view, nil
}

// UpdateRoomName renames roomID. Only the creator may rename.
func (s *RoomService) UpdateRoomName(ctx context.Context, actor domain.User, val domain.RoomUpdateVal, roomID string) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpUpdateRoomName, "user_id": actor.ID, "room_id": roomID})
	now := s.now()

	var view dto.Room
	err := s.run(ctx, OpUpdateRoomName, logCtx, func(ctx context.Context, tx repository.Tx) error {
		room, err := findRoom(ctx, tx.RoomQuery(), roomID)
		if err != nil {
			return err
		}
		updated, err := domain.UpdateRoom(actor, room, val, now)
		if err != nil {
			return err
		}
		if err := tx.RoomCommand().Save(ctx, &updated.Room); err != nil {
			return err
		}
		view = dto.ToRoom(updated.Room)
		return nil
	})
	if err != nil {
		return dto.Room{}, err
	}

	logCtx.WithField("room_name", view.Name).Info("Room renamed successfully")
	s.dispatch(ctx, domain.RoomEvent{Type: domain.RoomEventRenamed, RoomID: roomID, UserID: actor.ID, At: now})
	return view, nil
}

// FindAll lists every room ordered by creation time.
func (s *RoomService) FindAll(ctx context.Context) ([]dto.Room, error) {
	logCtx := logrus.WithField("op", OpFindAll)

	var views []dto.Room
	err := s.run(ctx, OpFindAll, logCtx, func(ctx context.Context, tx repository.Tx) error {
		rooms, err := tx.RoomQuery().ListByCreatedAt(ctx)
		if err != nil {
			return err
		}
		views = dto.ToRooms(domain.FindRooms(rooms))
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx.WithField("count", len(views)).Debug("Rooms listed")
	return views, nil
}

// FindByID returns one room.
func (s *RoomService) FindByID(ctx context.Context, roomID string) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpFindByID, "room_id": roomID})

	var view dto.Room
	err := s.run(ctx, OpFindByID, logCtx, func(ctx context.Context, tx repository.Tx) error {
		room, err := findRoom(ctx, tx.RoomQuery(), roomID)
		if err != nil {
			return err
		}
		view = dto.ToRoom(room)
		return nil
	})
	if err != nil {
		return dto.Room{}, err
	}
	return view, nil
}

// EnterPrivateRoom enters the room whose password matches exactly. A password that matches
// no room fails the same way as an unknown room id.
func (s *RoomService) EnterPrivateRoom(ctx context.Context, actor domain.User, password string, fireFlowerIDs []string) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpEnterPrivateRoom, "user_id": actor.ID, "fire_flowers": len(fireFlowerIDs)})
	return s.enter(ctx, OpEnterPrivateRoom, logCtx, actor, fireFlowerIDs, func(ctx context.Context, q repository.RoomQuery) (*domain.Room, error) {
		return q.FindByPassword(ctx, password)
	})
}

// EnterRoom enters roomID.
func (s *RoomService) EnterRoom(ctx context.Context, actor domain.User, roomID string, fireFlowerIDs []string) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpEnterRoom, "user_id": actor.ID, "room_id": roomID, "fire_flowers": len(fireFlowerIDs)})
	return s.enter(ctx, OpEnterRoom, logCtx, actor, fireFlowerIDs, func(ctx context.Context, q repository.RoomQuery) (*domain.Room, error) {
		return q.FindByID(ctx, roomID)
	})
}

type roomResolver func(ctx context.Context, q repository.RoomQuery) (*domain.Room, error)

// enter is shared by both entry paths; they differ only in how the target room is resolved.
func (s *RoomService) enter(ctx context.Context, op string, logCtx *logrus.Entry, actor domain.User, fireFlowerIDs []string, resolve roomResolver) (dto.Room, error) {
	now := s.now()

	var view dto.Room
	err := s.run(ctx, op, logCtx, func(ctx context.Context, tx repository.Tx) error {
		q := tx.RoomQuery()
		lookup, err := q.FindMembershipByUserID(ctx, actor.ID)
		if err != nil {
			return err
		}
		resolved, err := resolve(ctx, q)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		room, err := domain.FindRoom(resolved)
		if err != nil {
			return err
		}

		ids := domain.UniqueFireFlowerIDs(fireFlowerIDs)
		var flowers []domain.FireFlower
		if len(ids) > 0 {
			if flowers, err = tx.FireFlowerQuery().FindByIDs(ctx, ids); err != nil {
				return err
			}
		}

		entered, err := domain.EnterRoom(actor, room, lookup, ids, flowers, now)
		if err != nil {
			return err
		}
		if err := tx.RoomCommand().CreateMembership(ctx, entered.Membership); err != nil {
			return err
		}
		if err := tx.RoomCommand().Touch(ctx, room.ID, now); err != nil {
			return err
		}
		if err := tx.FireFlowerCommand().CreateConsumptions(ctx, entered.Consumptions); err != nil {
			return err
		}
		view = dto.ToRoom(entered.Room)
		return nil
	})
	if err != nil {
		return dto.Room{}, err
	}

	logCtx.WithField("room_id", view.ID).Info("User entered room successfully")
	s.dispatch(ctx, domain.RoomEvent{Type: domain.RoomEventEntered, RoomID: view.ID, UserID: actor.ID, At: now})
	return view, nil
}

// ExitRoom removes actor from whichever room they are in and returns that room without them.
func (s *RoomService) ExitRoom(ctx context.Context, actor domain.User) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpExitRoom, "user_id": actor.ID})
	now := s.now()

	var view dto.Room
	err := s.run(ctx, OpExitRoom, logCtx, func(ctx context.Context, tx repository.Tx) error {
		lookup, err := tx.RoomQuery().FindMembershipByUserID(ctx, actor.ID)
		if err != nil {
			return err
		}
		exit, err := domain.ExitRoom(actor, lookup)
		if err != nil {
			return err
		}
		room, err := findRoom(ctx, tx.RoomQuery(), exit.RoomID)
		if err != nil {
			return err
		}
		if err := tx.RoomCommand().DeleteMembership(ctx, exit.Membership); err != nil {
			return err
		}
		if err := tx.RoomCommand().Touch(ctx, room.ID, now); err != nil {
			return err
		}
		view = dto.ToRoom(domain.VacateRoom(room, exit, now))
		return nil
	})
	if err != nil {
		return dto.Room{}, err
	}

	logCtx.WithField("room_id", view.ID).Info("User exited room successfully")
	s.dispatch(ctx, domain.RoomEvent{Type: domain.RoomEventExited, RoomID: view.ID, UserID: actor.ID, At: now})
	return view, nil
}

// Delete removes roomID together with its memberships. The returned view lists the members
// that were removed.
func (s *RoomService) Delete(ctx context.Context, actor domain.User, roomID string) (dto.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"op": OpDelete, "user_id": actor.ID, "room_id": roomID})
	now := s.now()

	var view dto.Room
	err := s.run(ctx, OpDelete, logCtx, func(ctx context.Context, tx repository.Tx) error {
		room, err := findRoom(ctx, tx.RoomQuery(), roomID)
		if err != nil {
			return err
		}
		deleted, err := domain.DeleteRoom(actor, room)
		if err != nil {
			return err
		}
		if err := tx.RoomCommand().Delete(ctx, deleted.Room.ID); err != nil {
			return err
		}
		view = dto.ToRoom(deleted.Room)
		logCtx = logCtx.WithField("removed_members", len(deleted.Memberships))
		return nil
	})
	if err != nil {
		return dto.Room{}, err
	}

	logCtx.Info("Room deleted successfully")
	s.dispatch(ctx, domain.RoomEvent{Type: domain.RoomEventDeleted, RoomID: roomID, UserID: actor.ID, At: now})
	return view, nil
}

// findRoom turns a missing room into domain.ErrNotFound via the state machine.
func findRoom(ctx context.Context, q repository.RoomQuery, roomID string) (domain.Room, error) {
	room, err := q.FindByID(ctx, roomID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Room{}, err
	}
	return domain.FindRoom(room)
}

// run executes fn in one transaction and maps whatever comes out of it to a service error.
func (s *RoomService) run(ctx context.Context, op string, logCtx *logrus.Entry, fn func(ctx context.Context, tx repository.Tx) error) error {
	start := time.Now()
	err := mapRepoError(s.transactor.Transaction(ctx, fn), logCtx)
	s.metrics.ObserveOperation(op, outcomeOf(err), time.Since(start))
	return err
}

// dispatch publishes a committed event. Failures are logged and never reach the caller.
func (s *RoomService) dispatch(ctx context.Context, event domain.RoomEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.DispatchRoomEvent(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"room_id":    event.RoomID,
			"user_id":    event.UserID,
		}).Warn("Failed to dispatch room event")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrConflict):
		return metrics.OutcomeConflict
	case isDomainError(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
