package gormpersistence

import (
	"time"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// roomRecord maps the rooms table.
type roomRecord struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)"`
	Name       string     `gorm:"type:varchar(191);not null;uniqueIndex:idx_rooms_name"`
	Status     string     `gorm:"type:varchar(16);not null"`
	Password   *string    `gorm:"type:varchar(191);index:idx_rooms_password"`
	CreatorID  uint       `gorm:"not null;index:idx_rooms_creator_id"`
	CreatedAt  time.Time  `gorm:"not null;index:idx_rooms_created_at"`
	UpdatedAt  *time.Time `gorm:"autoUpdateTime:false"`
	LastUsedAt *time.Time
}

func (roomRecord) TableName() string { return "rooms" }

// membershipRecord maps the memberships table. user_id is the primary key, so a user sits in at most one room.
type membershipRecord struct {
	UserID    uint       `gorm:"primaryKey;autoIncrement:false"`
	RoomID    string     `gorm:"type:varchar(36);not null;index:idx_memberships_room_id"`
	CreatedAt time.Time  `gorm:"not null"`
	Room      roomRecord `gorm:"foreignKey:RoomID;references:ID;constraint:OnDelete:CASCADE"`
}

func (membershipRecord) TableName() string { return "memberships" }

// fireFlowerRecord maps fire_flowers. Rows are written by the resource subsystem.
type fireFlowerRecord struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	OwnerID   uint      `gorm:"not null;index:idx_fire_flowers_owner_id"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (fireFlowerRecord) TableName() string { return "fire_flowers" }

// consumptionRecord maps fire_flower_consumptions. fire_flower_id is the primary key, so a flower is consumed once.
type consumptionRecord struct {
	FireFlowerID string           `gorm:"primaryKey;type:varchar(36)"`
	UserID       uint             `gorm:"not null;index:idx_consumptions_user_id"`
	RoomID       string           `gorm:"type:varchar(36);not null;index:idx_consumptions_room_id"`
	ConsumedAt   time.Time        `gorm:"not null"`
	FireFlower   fireFlowerRecord `gorm:"foreignKey:FireFlowerID;references:ID"`
}

func (consumptionRecord) TableName() string { return "fire_flower_consumptions" }

// Models lists every table model handled by migrations.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&roomRecord{},
		&membershipRecord{},
		&fireFlowerRecord{},
		&consumptionRecord{},
	}
}

func toRoomRecord(room *domain.Room) roomRecord {
	return roomRecord{
		ID:         room.ID,
		Name:       room.Name,
		Status:     string(room.Status),
		Password:   room.Password,
		CreatorID:  room.Creator.ID,
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
		LastUsedAt: room.LastUsedAt,
	}
}

// roomRow is a rooms row joined with the creator's username.
type roomRow struct {
	roomRecord
	CreatorName string
}

// memberRow is a memberships row joined with the member's username.
type memberRow struct {
	UserID    uint
	RoomID    string
	CreatedAt time.Time
	Username  string
}

func (r roomRow) toDomain(members []domain.UserRef) domain.Room {
	if members == nil {
		members = []domain.UserRef{}
	}
	return domain.Room{
		ID:         r.ID,
		Name:       r.Name,
		Status:     domain.RoomStatus(r.Status),
		Password:   r.Password,
		Creator:    domain.UserRef{ID: r.CreatorID, DisplayName: r.CreatorName},
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		LastUsedAt: r.LastUsedAt,
		Users:      members,
	}
}
