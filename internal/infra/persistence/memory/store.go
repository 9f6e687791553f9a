// Package memory provides an in-memory implementation of the repositories used for tests
// and single-process deployments.
//
// Transactions run against a private clone of the committed state. Every write is recorded
// as an op and tagged with the keys it claims. On commit the store rejects the transaction
// with repository.ErrSerialization if another transaction committed one of those keys after
// this one started, then replays the ops on the latest committed state so that uniqueness
// and referential checks see concurrent commits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

// Compile-time contract assertions.
var (
	_ repository.Transactor     = (*Store)(nil)
	_ repository.UserRepository = (*UserRepository)(nil)
)

type roomRow struct {
	ID         string
	Name       string
	Status     domain.RoomStatus
	Password   *string
	Creator    domain.UserRef
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	LastUsedAt *time.Time
}

type memoryState struct {
	rooms        map[string]roomRow
	memberships  map[uint]domain.Membership
	flowers      map[string]domain.FireFlower
	consumptions map[string]domain.FireFlowerConsumption
}

func newMemoryState() memoryState {
	return memoryState{
		rooms:        make(map[string]roomRow),
		memberships:  make(map[uint]domain.Membership),
		flowers:      make(map[string]domain.FireFlower),
		consumptions: make(map[string]domain.FireFlowerConsumption),
	}
}

func (s memoryState) clone() memoryState {
	cp := newMemoryState()
	for k, v := range s.rooms {
		cp.rooms[k] = v
	}
	for k, v := range s.memberships {
		cp.memberships[k] = v
	}
	for k, v := range s.flowers {
		cp.flowers[k] = v
	}
	for k, v := range s.consumptions {
		cp.consumptions[k] = v
	}
	return cp
}

// Store is an in-memory transactional store with snapshot isolation.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	seq      uint64
	versions map[string]uint64
	users    map[uint]domain.User
	nextUser uint
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		state:    newMemoryState(),
		versions: make(map[string]uint64),
		users:    make(map[uint]domain.User),
	}
}

// AddFireFlower registers a fire flower owned by ownerID. Fire flowers are issued by the
// resource subsystem; this is its in-memory stand-in.
func (s *Store) AddFireFlower(id string, ownerID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.flowers[id] = domain.FireFlower{ID: id, OwnerID: ownerID}
}

// Users returns a repository over the accounts held by this store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

// Transaction runs fn against a snapshot and commits its writes atomically.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	tx := &transaction{
		store: s,
		state: s.state.clone(),
		start: s.seq,
		keys:  make(map[string]struct{}),
	}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *transaction) error {
	if len(tx.ops) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range tx.keys {
		if s.versions[key] > tx.start {
			return fmt.Errorf("%w: %s changed concurrently", repository.ErrSerialization, key)
		}
	}

	next := s.state.clone()
	for _, op := range tx.ops {
		if err := op(&next); err != nil {
			return err
		}
	}

	s.seq++
	for key := range tx.keys {
		s.versions[key] = s.seq
	}
	s.state = next
	return nil
}

func (s *Store) userRef(id uint) domain.UserRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.UserRef{ID: id, DisplayName: s.users[id].Username}
}

type op func(state *memoryState) error

type transaction struct {
	store *Store
	state memoryState
	start uint64
	ops   []op
	keys  map[string]struct{}
}

func (tx *transaction) RoomQuery() repository.RoomQuery                 { return roomRepository{tx: tx} }
func (tx *transaction) RoomCommand() repository.RoomCommand             { return roomRepository{tx: tx} }
func (tx *transaction) FireFlowerQuery() repository.FireFlowerQuery     { return fireFlowerRepository{tx: tx} }
func (tx *transaction) FireFlowerCommand() repository.FireFlowerCommand { return fireFlowerRepository{tx: tx} }

// write applies o to the transaction's own snapshot and queues it for replay at commit.
func (tx *transaction) write(o op, keys ...string) error {
	if err := o(&tx.state); err != nil {
		return err
	}
	tx.ops = append(tx.ops, o)
	for _, k := range keys {
		tx.keys[k] = struct{}{}
	}
	return nil
}

func (tx *transaction) decorate(row roomRow) domain.Room {
	room := domain.Room{
		ID:         row.ID,
		Name:       row.Name,
		Status:     row.Status,
		Password:   copyString(row.Password),
		Creator:    row.Creator,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  copyTime(row.UpdatedAt),
		LastUsedAt: copyTime(row.LastUsedAt),
	}
	members := make([]domain.Membership, 0)
	for _, m := range tx.state.memberships {
		if m.RoomID == row.ID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
			return members[i].CreatedAt.Before(members[j].CreatedAt)
		}
		return members[i].UserID < members[j].UserID
	})
	room.Users = make([]domain.UserRef, 0, len(members))
	for _, m := range members {
		room.Users = append(room.Users, tx.store.userRef(m.UserID))
	}
	return room
}

func roomKey(id string) string         { return "room:" + id }
func memberKey(userID uint) string     { return fmt.Sprintf("member:%d", userID) }
func flowerKey(flowerID string) string { return "flower:" + flowerID }

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
