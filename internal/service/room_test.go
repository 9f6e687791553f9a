package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/dto"
	"github.com/s-renren/Fireworks-Display-Online/internal/infra/persistence/memory"
	"github.com/s-renren/Fireworks-Display-Online/internal/metrics"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository/mocks"
	"github.com/s-renren/Fireworks-Display-Online/internal/service"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.RoomEvent
	err    error
}

func (d *recordingDispatcher) DispatchRoomEvent(_ context.Context, event domain.RoomEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.err
}

func (d *recordingDispatcher) types() []domain.RoomEventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.RoomEventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type roomFixture struct {
	store  *memory.Store
	svc    *service.RoomService
	events *recordingDispatcher
	alice  domain.User
	bob    domain.User
	carol  domain.User
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	users := store.Users()

	register := func(name string) domain.User {
		u := &domain.User{Username: name, Password: "hash"}
		require.NoError(t, users.Save(ctx, u))
		return *u
	}

	base := time.Date(2024, 7, 1, 19, 0, 0, 0, time.UTC)
	var tick, seq int64
	events := &recordingDispatcher{}
	svc := service.NewRoomService(store, events, metrics.New(),
		service.WithClock(func() time.Time {
			return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
		}),
		service.WithIDGenerator(func() string {
			return fmt.Sprintf("room-%03d", atomic.AddInt64(&seq, 1))
		}),
	)

	return &roomFixture{
		store:  store,
		svc:    svc,
		events: events,
		alice:  register("alice"),
		bob:    register("bob"),
		carol:  register("carol"),
	}
}

func (f *roomFixture) create(t *testing.T, name string, password *string) dto.Room {
	t.Helper()
	room, err := f.svc.Create(context.Background(), f.alice, domain.RoomCreateVal{Name: name, Password: password, Status: domain.RoomStatusOpen})
	require.NoError(t, err)
	return room
}

func (f *roomFixture) membership(t *testing.T, userID uint) domain.MembershipLookup {
	t.Helper()
	var lookup domain.MembershipLookup
	require.NoError(t, f.store.Transaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		lookup, err = tx.RoomQuery().FindMembershipByUserID(ctx, userID)
		return err
	}))
	return lookup
}

func strPtr(s string) *string { return &s }

func TestRoomService_Create(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	room := f.create(t, "  summer night ", nil)
	assert.Equal(t, "room-001", room.ID)
	assert.Equal(t, "summer night", room.Name)
	assert.Equal(t, "OPEN", room.Status)
	assert.Equal(t, dto.UserRef{ID: f.alice.ID, DisplayName: "alice"}, room.Creator)
	assert.Nil(t, room.UpdatedAt)
	assert.Nil(t, room.LastUsedAt)
	assert.Empty(t, room.Users)

	_, err := f.svc.Create(ctx, f.bob, domain.RoomCreateVal{Name: "", Status: domain.RoomStatusOpen})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Create(ctx, f.bob, domain.RoomCreateVal{Name: "x", Status: "PAUSED"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Create(ctx, f.bob, domain.RoomCreateVal{Name: "summer night", Status: domain.RoomStatusOpen})
	assert.ErrorIs(t, err, domain.ErrConflict, "room names are unique")

	assert.Equal(t, []domain.RoomEventType{domain.RoomEventCreated}, f.events.types())
}

func TestRoomService_CreateThenFindAll(t *testing.T) {
	f := newRoomFixture(t)
	first := f.create(t, "first", nil)
	second := f.create(t, "second", strPtr("pw"))
	third := f.create(t, "third", nil)

	rooms, err := f.svc.FindAll(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, ids)
	assert.True(t, rooms[1].Private)
}

func TestRoomService_UpdateRoomName(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := f.create(t, "old", nil)

	_, err := f.svc.UpdateRoomName(ctx, f.bob, domain.RoomUpdateVal{Name: "hijacked"}, room.ID)
	assert.ErrorIs(t, err, domain.ErrPermission)

	rooms, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", rooms[0].Name, "name unchanged after rejected rename")

	_, err = f.svc.UpdateRoomName(ctx, f.alice, domain.RoomUpdateVal{Name: "new"}, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.UpdateRoomName(ctx, f.alice, domain.RoomUpdateVal{Name: " "}, room.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	renamed, err := f.svc.UpdateRoomName(ctx, f.alice, domain.RoomUpdateVal{Name: "new"}, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)
	assert.NotNil(t, renamed.UpdatedAt)
}

func TestRoomService_EnterAndExit(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	a := f.create(t, "a", nil)
	b := f.create(t, "b", nil)

	entered, err := f.svc.EnterRoom(ctx, f.bob, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []dto.UserRef{{ID: f.bob.ID, DisplayName: "bob"}}, entered.Users)
	assert.NotNil(t, entered.LastUsedAt)

	lookup := f.membership(t, f.bob.ID)
	require.True(t, lookup.Found)
	assert.Equal(t, a.ID, lookup.Membership.RoomID)

	_, err = f.svc.EnterRoom(ctx, f.bob, b.ID, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)
	_, err = f.svc.EnterRoom(ctx, f.bob, a.ID, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)

	exited, err := f.svc.ExitRoom(ctx, f.bob)
	require.NoError(t, err)
	assert.Equal(t, a.ID, exited.ID)
	assert.Empty(t, exited.Users)

	_, err = f.svc.ExitRoom(ctx, f.bob)
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	_, err = f.svc.EnterRoom(ctx, f.bob, b.ID, nil)
	assert.NoError(t, err, "free to enter elsewhere after exit")

	assert.Equal(t, []domain.RoomEventType{
		domain.RoomEventCreated, domain.RoomEventCreated,
		domain.RoomEventEntered, domain.RoomEventExited, domain.RoomEventEntered,
	}, f.events.types())
}

func TestRoomService_EnterRoom_Failures(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()

	closed, err := f.svc.Create(ctx, f.alice, domain.RoomCreateVal{Name: "closed", Status: domain.RoomStatusClosed})
	require.NoError(t, err)
	_, err = f.svc.EnterRoom(ctx, f.bob, closed.ID, nil)
	assert.ErrorIs(t, err, domain.ErrRoomClosed)

	_, err = f.svc.EnterRoom(ctx, f.bob, "no-such-room", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.False(t, f.membership(t, f.bob.ID).Found)
}

func TestRoomService_EnterPrivateRoom(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	f.store.AddFireFlower("ff-bob-1", f.bob.ID)
	f.store.AddFireFlower("ff-bob-2", f.bob.ID)
	private := f.create(t, "private", strPtr("Hanabi"))

	_, errUnknownPassword := f.svc.EnterPrivateRoom(ctx, f.bob, "nope", []string{"ff-bob-1"})
	_, errUnknownID := f.svc.EnterRoom(ctx, f.bob, "nope", []string{"ff-bob-1"})
	assert.ErrorIs(t, errUnknownPassword, domain.ErrNotFound)
	assert.ErrorIs(t, errUnknownID, domain.ErrNotFound)
	assert.Equal(t, errUnknownID, errUnknownPassword, "unknown password is indistinguishable from unknown id")

	_, err := f.svc.EnterPrivateRoom(ctx, f.bob, "hanabi", []string{"ff-bob-1"})
	assert.ErrorIs(t, err, domain.ErrNotFound, "passwords are case-sensitive")

	_, err = f.svc.EnterPrivateRoom(ctx, f.bob, "Hanabi", nil)
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable, "private rooms cost a fire flower")

	entered, err := f.svc.EnterPrivateRoom(ctx, f.bob, "Hanabi", []string{"ff-bob-1", "ff-bob-1"})
	require.NoError(t, err)
	assert.Equal(t, private.ID, entered.ID)

	_, err = f.svc.ExitRoom(ctx, f.bob)
	require.NoError(t, err)

	_, err = f.svc.EnterRoom(ctx, f.bob, private.ID, []string{"ff-bob-1"})
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable, "a consumed fire flower cannot be reused")

	_, err = f.svc.EnterRoom(ctx, f.bob, private.ID, []string{"ff-bob-2"})
	assert.NoError(t, err, "the private room is reachable by id with a fresh flower")
}

func TestRoomService_UnresolvableFireFlowerLeavesNoTrace(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	f.store.AddFireFlower("ff-bob", f.bob.ID)
	f.store.AddFireFlower("ff-carol", f.carol.ID)
	room := f.create(t, "public", nil)

	for _, ids := range [][]string{{"ff-bob", "missing"}, {"ff-bob", "ff-carol"}} {
		_, err := f.svc.EnterRoom(ctx, f.bob, room.ID, ids)
		assert.ErrorIs(t, err, domain.ErrResourceUnavailable)
	}
	assert.False(t, f.membership(t, f.bob.ID).Found)

	// ff-bob was never consumed by the failed attempts
	_, err := f.svc.EnterRoom(ctx, f.bob, room.ID, []string{"ff-bob"})
	assert.NoError(t, err)
}

func TestRoomService_Delete(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	a := f.create(t, "a", nil)
	b := f.create(t, "b", nil)
	_, err := f.svc.EnterRoom(ctx, f.bob, a.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.EnterRoom(ctx, f.carol, a.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, f.bob, a.ID)
	assert.ErrorIs(t, err, domain.ErrPermission)

	_, err = f.svc.Delete(ctx, f.alice, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := f.svc.Delete(ctx, f.alice, a.ID)
	require.NoError(t, err)
	assert.Len(t, deleted.Users, 2, "the view lists the members removed with the room")

	assert.False(t, f.membership(t, f.bob.ID).Found)
	_, err = f.svc.EnterRoom(ctx, f.bob, b.ID, nil)
	assert.NoError(t, err, "former members can enter another room")

	rooms, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, b.ID, rooms[0].ID)
}

func TestRoomService_ConcurrentEntryBySameUser(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newRoomFixture(t)
		ctx := context.Background()
		a := f.create(t, "a", nil)
		b := f.create(t, "b", nil)

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for j, id := range []string{a.ID, b.ID} {
			wg.Add(1)
			go func(j int, id string) {
				defer wg.Done()
				<-start
				_, errs[j] = f.svc.EnterRoom(ctx, f.bob, id, nil)
			}(j, id)
		}
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, domain.ErrAlreadyInRoom) || errors.Is(err, domain.ErrConflict), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)
		assert.True(t, f.membership(t, f.bob.ID).Found)
	}
}

func TestRoomService_ConcurrentEntryByDifferentUsers(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := f.create(t, "crowded", nil)

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []domain.User{f.bob, f.carol} {
		wg.Add(1)
		go func(i int, u domain.User) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.EnterRoom(ctx, u, room.ID, nil)
		}(i, u)
	}
	close(start)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	rooms, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms[0].Users, 2)
}

func TestRoomService_DispatchFailureDoesNotFailOperation(t *testing.T) {
	f := newRoomFixture(t)
	f.events.err = errors.New("queue unavailable")

	room, err := f.svc.Create(context.Background(), f.alice, domain.RoomCreateVal{Name: "ok", Status: domain.RoomStatusOpen})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
}

func TestRoomService_NoEventOnRollback(t *testing.T) {
	f := newRoomFixture(t)
	room := f.create(t, "a", nil)

	_, err := f.svc.Delete(context.Background(), f.bob, room.ID)
	require.Error(t, err)
	assert.Equal(t, []domain.RoomEventType{domain.RoomEventCreated}, f.events.types())
}

// --- error mapping through a mocked transaction ---

func runTx(tx repository.Tx) func(context.Context, func(context.Context, repository.Tx) error) error {
	return func(ctx context.Context, fn func(context.Context, repository.Tx) error) error {
		return fn(ctx, tx)
	}
}

func TestRoomService_RepositoryErrorsAreMapped(t *testing.T) {
	ctx := context.Background()
	actor := domain.User{ID: 1, Username: "alice"}

	tests := []struct {
		name    string
		repoErr error
		want    error
	}{
		{name: "duplicate", repoErr: fmt.Errorf("insert: %w", repository.ErrDuplicateEntry), want: domain.ErrConflict},
		{name: "serialization", repoErr: repository.ErrSerialization, want: domain.ErrConflict},
		{name: "unknown", repoErr: errors.New("connection reset"), want: service.ErrInternalServer},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transactor := new(mocks.Transactor)
			tx := new(mocks.Tx)
			query := new(mocks.RoomQuery)
			command := new(mocks.RoomCommand)

			transactor.On("Transaction", ctx, mock.Anything).Return(runTx(tx)).Once()
			tx.On("RoomQuery").Return(query)
			tx.On("RoomCommand").Return(command)
			query.On("FindMembershipByUserID", ctx, actor.ID).Return(domain.MembershipLookup{}, nil).Once()
			query.On("FindByID", ctx, "r1").Return(&domain.Room{ID: "r1", Name: "r", Status: domain.RoomStatusOpen}, nil).Once()
			command.On("CreateMembership", ctx, mock.AnythingOfType("domain.Membership")).Return(tc.repoErr).Once()

			svc := service.NewRoomService(transactor, nil, nil)
			_, err := svc.EnterRoom(ctx, actor, "r1", nil)

			assert.ErrorIs(t, err, tc.want)
			transactor.AssertExpectations(t)
			query.AssertExpectations(t)
			command.AssertExpectations(t)
			command.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRoomService_FindAll_RepositoryError(t *testing.T) {
	ctx := context.Background()
	transactor := new(mocks.Transactor)
	tx := new(mocks.Tx)
	query := new(mocks.RoomQuery)

	transactor.On("Transaction", ctx, mock.Anything).Return(runTx(tx)).Once()
	tx.On("RoomQuery").Return(query)
	query.On("ListByCreatedAt", ctx).Return(nil, errors.New("timeout")).Once()

	rooms, err := service.NewRoomService(transactor, nil, nil).FindAll(ctx)
	assert.Nil(t, rooms)
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestRoomService_FindByID(t *testing.T) {
	f := newRoomFixture(t)
	ctx := context.Background()
	room := f.create(t, "a", strPtr("secret"))

	found, err := f.svc.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)
	assert.True(t, found.Private)

	_, err = f.svc.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoomService_FireFlowerErrorsAreMapped(t *testing.T) {
	ctx := context.Background()
	actor := domain.User{ID: 1, Username: "alice"}
	private := &domain.Room{ID: "r1", Name: "r", Status: domain.RoomStatusOpen, Password: strPtr("pw"), Users: []domain.UserRef{}}
	flower := domain.FireFlower{ID: "ff-1", OwnerID: actor.ID}

	t.Run("consumed concurrently", func(t *testing.T) {
		transactor := new(mocks.Transactor)
		tx := new(mocks.Tx)
		query := new(mocks.RoomQuery)
		command := new(mocks.RoomCommand)
		flowers := new(mocks.FireFlowerQuery)
		spends := new(mocks.FireFlowerCommand)
		events := &recordingDispatcher{}

		transactor.On("Transaction", ctx, mock.Anything).Return(runTx(tx)).Once()
		tx.On("RoomQuery").Return(query)
		tx.On("RoomCommand").Return(command)
		tx.On("FireFlowerQuery").Return(flowers)
		tx.On("FireFlowerCommand").Return(spends)
		query.On("FindMembershipByUserID", ctx, actor.ID).Return(domain.MembershipLookup{}, nil).Once()
		query.On("FindByID", ctx, "r1").Return(private, nil).Once()
		flowers.On("FindByIDs", ctx, []string{"ff-1"}).Return([]domain.FireFlower{flower}, nil).Once()
		command.On("CreateMembership", ctx, mock.AnythingOfType("domain.Membership")).Return(nil).Once()
		command.On("Touch", ctx, "r1", mock.AnythingOfType("time.Time")).Return(nil).Once()
		spends.On("CreateConsumptions", ctx, mock.MatchedBy(func(c []domain.FireFlowerConsumption) bool {
			return len(c) == 1 && c[0].FireFlowerID == "ff-1" && c[0].RoomID == "r1"
		})).Return(fmt.Errorf("insert: %w", repository.ErrDuplicateEntry)).Once()

		_, err := service.NewRoomService(transactor, events, nil).EnterRoom(ctx, actor, "r1", []string{"ff-1", "ff-1"})

		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Empty(t, events.types(), "a rolled back entry announces nothing")
		flowers.AssertExpectations(t)
		spends.AssertExpectations(t)
		command.AssertExpectations(t)
	})

	t.Run("lookup failure", func(t *testing.T) {
		transactor := new(mocks.Transactor)
		tx := new(mocks.Tx)
		query := new(mocks.RoomQuery)
		command := new(mocks.RoomCommand)
		flowers := new(mocks.FireFlowerQuery)

		transactor.On("Transaction", ctx, mock.Anything).Return(runTx(tx)).Once()
		tx.On("RoomQuery").Return(query)
		tx.On("FireFlowerQuery").Return(flowers)
		query.On("FindMembershipByUserID", ctx, actor.ID).Return(domain.MembershipLookup{}, nil).Once()
		query.On("FindByID", ctx, "r1").Return(private, nil).Once()
		flowers.On("FindByIDs", ctx, []string{"ff-1"}).Return(nil, errors.New("connection reset")).Once()

		_, err := service.NewRoomService(transactor, nil, nil).EnterRoom(ctx, actor, "r1", []string{"ff-1"})

		assert.ErrorIs(t, err, service.ErrInternalServer)
		flowers.AssertExpectations(t)
		command.AssertNotCalled(t, "CreateMembership", mock.Anything, mock.Anything)
	})
}
