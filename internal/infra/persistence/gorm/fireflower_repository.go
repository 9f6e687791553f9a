package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

var (
	_ repository.FireFlowerQuery   = (*GormFireFlowerRepository)(nil)
	_ repository.FireFlowerCommand = (*GormFireFlowerRepository)(nil)
)

// GormFireFlowerRepository resolves fire flowers and records their consumption.
type GormFireFlowerRepository struct {
	db *gorm.DB
}

// NewGormFireFlowerRepository creates a GormFireFlowerRepository bound to db.
func NewGormFireFlowerRepository(db *gorm.DB) *GormFireFlowerRepository {
	if db == nil {
		panic("database connection cannot be nil for GormFireFlowerRepository")
	}
	return &GormFireFlowerRepository{db: db}
}

type fireFlowerRow struct {
	ID            string
	OwnerID       uint
	ConsumptionID *string
}

// FindByIDs implements FireFlowerQuery.
func (r *GormFireFlowerRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.FireFlower, error) {
	flowers := make([]domain.FireFlower, 0, len(ids))
	if len(ids) == 0 {
		return flowers, nil
	}
	var rows []fireFlowerRow
	err := r.db.WithContext(ctx).
		Table("fire_flowers").
		Select("fire_flowers.id, fire_flowers.owner_id, fire_flower_consumptions.fire_flower_id AS consumption_id").
		Joins("LEFT JOIN fire_flower_consumptions ON fire_flower_consumptions.fire_flower_id = fire_flowers.id").
		Where("fire_flowers.id IN ?", domain.UniqueFireFlowerIDs(ids)).
		Order("fire_flowers.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find fire flowers: %w", translateError(err))
	}
	for _, row := range rows {
		flowers = append(flowers, domain.FireFlower{ID: row.ID, OwnerID: row.OwnerID, Consumed: row.ConsumptionID != nil})
	}
	return flowers, nil
}

// CreateConsumptions implements FireFlowerCommand.
func (r *GormFireFlowerRepository) CreateConsumptions(ctx context.Context, consumptions []domain.FireFlowerConsumption) error {
	if len(consumptions) == 0 {
		return nil
	}
	records := make([]consumptionRecord, 0, len(consumptions))
	for _, c := range consumptions {
		records = append(records, consumptionRecord{
			FireFlowerID: c.FireFlowerID,
			UserID:       c.UserID,
			RoomID:       c.RoomID,
			ConsumedAt:   c.ConsumedAt,
		})
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&records).Error; err != nil {
		return fmt.Errorf("gorm: create fire flower consumptions: %w", translateError(err))
	}
	return nil
}
