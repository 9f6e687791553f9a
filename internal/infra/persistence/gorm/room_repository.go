package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

var (
	_ repository.RoomQuery   = (*GormRoomRepository)(nil)
	_ repository.RoomCommand = (*GormRoomRepository)(nil)
)

// GormRoomRepository implements RoomQuery and RoomCommand on top of a transaction handle.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository bound to db, normally a transaction.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) roomsWithCreator(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("rooms").
		Select("rooms.*, users.username AS creator_name").
		Joins("LEFT JOIN users ON users.id = rooms.creator_id")
}

// attachMembers loads current members for rows, ordered by entry time then user id.
func (r *GormRoomRepository) attachMembers(ctx context.Context, rows []roomRow) ([]domain.Room, error) {
	rooms := make([]domain.Room, 0, len(rows))
	if len(rows) == 0 {
		return rooms, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var members []memberRow
	err := r.db.WithContext(ctx).
		Table("memberships").
		Select("memberships.user_id, memberships.room_id, memberships.created_at, users.username").
		Joins("LEFT JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id IN ?", ids).
		Order("memberships.created_at ASC, memberships.user_id ASC").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: load room members: %w", translateError(err))
	}

	byRoom := make(map[string][]domain.UserRef, len(rows))
	for _, m := range members {
		byRoom[m.RoomID] = append(byRoom[m.RoomID], domain.UserRef{ID: m.UserID, DisplayName: m.Username})
	}
	for _, row := range rows {
		rooms = append(rooms, row.toDomain(byRoom[row.ID]))
	}
	return rooms, nil
}

func (r *GormRoomRepository) findOne(ctx context.Context, rows []roomRow) (*domain.Room, error) {
	rooms, err := r.attachMembers(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &rooms[0], nil
}

// FindByID implements RoomQuery.
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var rows []roomRow
	if err := r.roomsWithCreator(ctx).Where("rooms.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, translateError(err))
	}
	if len(rows) == 0 {
		return nil, repository.ErrRoomNotFound
	}
	return r.findOne(ctx, rows)
}

// FindByPassword implements RoomQuery. Collations may compare case-insensitively, so candidates
// are filtered again with an exact comparison.
func (r *GormRoomRepository) FindByPassword(ctx context.Context, password string) (*domain.Room, error) {
	var candidates []roomRow
	if err := r.roomsWithCreator(ctx).Where("rooms.password = ?", password).Scan(&candidates).Error; err != nil {
		return nil, fmt.Errorf("gorm: find room by password: %w", translateError(err))
	}
	var rows []roomRow
	for _, c := range candidates {
		if c.Password != nil && *c.Password == password {
			rows = append(rows, c)
		}
	}
	if len(rows) != 1 {
		return nil, repository.ErrRoomNotFound
	}
	return r.findOne(ctx, rows)
}

// ListByCreatedAt implements RoomQuery.
func (r *GormRoomRepository) ListByCreatedAt(ctx context.Context) ([]domain.Room, error) {
	var rows []roomRow
	if err := r.roomsWithCreator(ctx).Order("rooms.created_at ASC, rooms.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: list rooms: %w", translateError(err))
	}
	return r.attachMembers(ctx, rows)
}

// FindMembershipByUserID implements RoomQuery.
func (r *GormRoomRepository) FindMembershipByUserID(ctx context.Context, userID uint) (domain.MembershipLookup, error) {
	var records []membershipRecord
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&records).Error
	if err != nil {
		return domain.MembershipLookup{}, fmt.Errorf("gorm: find membership of user %d: %w", userID, translateError(err))
	}
	if len(records) == 0 {
		return domain.MembershipLookup{}, nil
	}
	m := records[0]
	return domain.MembershipLookup{
		Found:      true,
		Membership: domain.Membership{UserID: m.UserID, RoomID: m.RoomID, CreatedAt: m.CreatedAt},
	}, nil
}

// Save implements RoomCommand: insert when the id is new, otherwise overwrite name, status,
// password and updated_at. An upsert clause is avoided because MySQL would resolve a name
// collision by updating the other room.
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	if room == nil {
		return fmt.Errorf("gorm: save room: nil room")
	}
	db := r.db.WithContext(ctx)
	record := toRoomRecord(room)

	var existing []string
	if err := db.Model(&roomRecord{}).Where("id = ?", record.ID).Limit(1).Pluck("id", &existing).Error; err != nil {
		return fmt.Errorf("gorm: save room (id: %s): %w", room.ID, translateError(err))
	}

	var err error
	if len(existing) == 0 {
		err = db.Create(&record).Error
	} else {
		err = db.Model(&roomRecord{}).Where("id = ?", record.ID).Updates(map[string]interface{}{
			"name":       record.Name,
			"status":     record.Status,
			"password":   record.Password,
			"updated_at": record.UpdatedAt,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("gorm: save room (id: %s, name: %s): %w", room.ID, room.Name, translateError(err))
	}
	return nil
}

// Touch implements RoomCommand. The update only ever raises last_used_at.
func (r *GormRoomRepository) Touch(ctx context.Context, roomID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&roomRecord{}).
		Where("id = ? AND (last_used_at IS NULL OR last_used_at < ?)", roomID, at).
		UpdateColumn("last_used_at", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room %s: %w", roomID, translateError(err))
	}
	return nil
}

// Delete implements RoomCommand. Memberships are removed explicitly as well as by the
// foreign key cascade so the outcome does not depend on the schema having the constraint.
func (r *GormRoomRepository) Delete(ctx context.Context, roomID string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("room_id = ?", roomID).Delete(&membershipRecord{}).Error; err != nil {
		return fmt.Errorf("gorm: delete memberships of room %s: %w", roomID, translateError(err))
	}
	if err := db.Where("id = ?", roomID).Delete(&roomRecord{}).Error; err != nil {
		return fmt.Errorf("gorm: delete room %s: %w", roomID, translateError(err))
	}
	return nil
}

// CreateMembership implements RoomCommand. A second membership for the same user violates
// the primary key and comes back as repository.ErrDuplicateEntry.
func (r *GormRoomRepository) CreateMembership(ctx context.Context, m domain.Membership) error {
	record := membershipRecord{UserID: m.UserID, RoomID: m.RoomID, CreatedAt: m.CreatedAt}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&record).Error; err != nil {
		return fmt.Errorf("gorm: create membership (user: %d, room: %s): %w", m.UserID, m.RoomID, translateError(err))
	}
	return nil
}

// DeleteMembership implements RoomCommand.
func (r *GormRoomRepository) DeleteMembership(ctx context.Context, m domain.Membership) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND room_id = ?", m.UserID, m.RoomID).
		Delete(&membershipRecord{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete membership (user: %d, room: %s): %w", m.UserID, m.RoomID, translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		// removed by a transaction that committed after our snapshot was taken
		return fmt.Errorf("gorm: delete membership (user: %d, room: %s): %w", m.UserID, m.RoomID, repository.ErrSerialization)
	}
	return nil
}
