package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

var errRollback = errors.New("rollback")

func seedRoom(t *testing.T, s *Store, id, name string, createdAt time.Time) {
	t.Helper()
	err := s.Transaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().Save(ctx, &domain.Room{
			ID:        id,
			Name:      name,
			Status:    domain.RoomStatusOpen,
			Creator:   domain.UserRef{ID: 1, DisplayName: "alice"},
			CreatedAt: createdAt,
		})
	})
	require.NoError(t, err)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "one", time.Now())

	err := s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.RoomCommand().CreateMembership(ctx, domain.Membership{UserID: 7, RoomID: "r1"}))
		lookup, err := tx.RoomQuery().FindMembershipByUserID(ctx, 7)
		require.NoError(t, err)
		assert.True(t, lookup.Found, "writes are visible inside their own transaction")
		return errRollback
	})
	assert.ErrorIs(t, err, errRollback)

	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		lookup, err := tx.RoomQuery().FindMembershipByUserID(ctx, 7)
		require.NoError(t, err)
		assert.False(t, lookup.Found)
		return nil
	})
}

func TestStore_ListByCreatedAtOrdersWithIDTieBreak(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRoom(t, s, "b", "second", base)
	seedRoom(t, s, "a", "first", base)
	seedRoom(t, s, "c", "third", base.Add(time.Second))
	seedRoom(t, s, "0", "zeroth", base.Add(-time.Second))

	_ = s.Transaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		rooms, err := tx.RoomQuery().ListByCreatedAt(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(rooms))
		for _, r := range rooms {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{"0", "a", "b", "c"}, ids)
		return nil
	})
}

func TestStore_SaveRejectsDuplicateName(t *testing.T) {
	s := NewStore()
	seedRoom(t, s, "r1", "same", time.Now())

	err := s.Transaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().Save(ctx, &domain.Room{ID: "r2", Name: "same", Status: domain.RoomStatusOpen})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
}

func TestStore_FindByPasswordRequiresSingleExactMatch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	pw := "Secret"
	require.NoError(t, s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().Save(ctx, &domain.Room{ID: "r1", Name: "one", Status: domain.RoomStatusOpen, Password: &pw})
	}))

	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		room, err := tx.RoomQuery().FindByPassword(ctx, "Secret")
		require.NoError(t, err)
		assert.Equal(t, "r1", room.ID)
		_, err = tx.RoomQuery().FindByPassword(ctx, "secret")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})

	require.NoError(t, s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().Save(ctx, &domain.Room{ID: "r2", Name: "two", Status: domain.RoomStatusOpen, Password: &pw})
	}))
	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.RoomQuery().FindByPassword(ctx, "Secret")
		assert.ErrorIs(t, err, repository.ErrNotFound, "ambiguous password matches no room")
		return nil
	})
}

func TestStore_FirstCommitterWinsOnMembership(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "one", time.Now())
	seedRoom(t, s, "r2", "two", time.Now())

	inFirst := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.RoomCommand().CreateMembership(ctx, domain.Membership{UserID: 9, RoomID: "r1"}); err != nil {
				return err
			}
			close(inFirst)
			<-release
			return nil
		})
	}()
	<-inFirst

	err := s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().CreateMembership(ctx, domain.Membership{UserID: 9, RoomID: "r2"})
	})
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-firstDone, repository.ErrSerialization)

	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		lookup, err := tx.RoomQuery().FindMembershipByUserID(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "r2", lookup.Membership.RoomID)
		return nil
	})
}

func TestStore_TouchCommutes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "one", time.Now())
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)

	inFirst := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.RoomCommand().Touch(ctx, "r1", late); err != nil {
				return err
			}
			close(inFirst)
			<-release
			return nil
		})
	}()
	<-inFirst
	require.NoError(t, s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().Touch(ctx, "r1", early)
	}))
	close(release)
	require.NoError(t, <-firstDone)

	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		room, err := tx.RoomQuery().FindByID(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, room.LastUsedAt)
		assert.Equal(t, late, *room.LastUsedAt)
		return nil
	})
}

func TestStore_MembershipIntoConcurrentlyDeletedRoomFails(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedRoom(t, s, "r1", "one", time.Now())

	inFirst := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.RoomCommand().CreateMembership(ctx, domain.Membership{UserID: 3, RoomID: "r1"}); err != nil {
				return err
			}
			close(inFirst)
			<-release
			return nil
		})
	}()
	<-inFirst
	require.NoError(t, s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.RoomCommand().Delete(ctx, "r1")
	}))
	close(release)

	assert.ErrorIs(t, <-firstDone, repository.ErrSerialization)
}

func TestStore_FireFlowerConsumption(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.AddFireFlower("ff-1", 4)

	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		flowers, err := tx.FireFlowerQuery().FindByIDs(ctx, []string{"ff-1", "missing", "ff-1"})
		require.NoError(t, err)
		assert.Equal(t, []domain.FireFlower{{ID: "ff-1", OwnerID: 4}}, flowers)
		return nil
	})

	consume := func() error {
		return s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
			return tx.FireFlowerCommand().CreateConsumptions(ctx, []domain.FireFlowerConsumption{{FireFlowerID: "ff-1", UserID: 4, RoomID: "r1"}})
		})
	}
	require.NoError(t, consume())
	assert.ErrorIs(t, consume(), repository.ErrDuplicateEntry)

	_ = s.Transaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		flowers, err := tx.FireFlowerQuery().FindByIDs(ctx, []string{"ff-1"})
		require.NoError(t, err)
		require.Len(t, flowers, 1)
		assert.True(t, flowers[0].Consumed)
		return nil
	})
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Transaction(ctx, func(context.Context, repository.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestUserRepository(t *testing.T) {
	s := NewStore()
	repo := s.Users()
	ctx := context.Background()

	u := &domain.User{Username: "alice", Password: "hash"}
	require.NoError(t, repo.Save(ctx, u))
	assert.Equal(t, uint(1), u.ID)

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.FindByID(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	assert.ErrorIs(t, repo.Save(ctx, &domain.User{Username: "alice"}), repository.ErrDuplicateEntry)
}
