package repository

import (
	"context"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
)

// FireFlowerQuery resolves fire flower ids.
type FireFlowerQuery interface {
	// FindByIDs returns only the ids that resolved; missing ids are simply absent from the result.
	FindByIDs(ctx context.Context, ids []string) ([]domain.FireFlower, error)
}

// FireFlowerCommand records fire flower spends. A flower can be consumed once; a second
// consumption fails with ErrDuplicateEntry.
type FireFlowerCommand interface {
	CreateConsumptions(ctx context.Context, consumptions []domain.FireFlowerConsumption) error
}
