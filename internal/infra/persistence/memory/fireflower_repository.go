package memory

import (
	"context"
	"fmt"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

type fireFlowerRepository struct {
	tx *transaction
}

func (r fireFlowerRepository) FindByIDs(_ context.Context, ids []string) ([]domain.FireFlower, error) {
	out := make([]domain.FireFlower, 0, len(ids))
	for _, id := range domain.UniqueFireFlowerIDs(ids) {
		f, ok := r.tx.state.flowers[id]
		if !ok {
			continue
		}
		_, f.Consumed = r.tx.state.consumptions[id]
		out = append(out, f)
	}
	return out, nil
}

func (r fireFlowerRepository) CreateConsumptions(_ context.Context, consumptions []domain.FireFlowerConsumption) error {
	if len(consumptions) == 0 {
		return nil
	}
	keys := make([]string, 0, len(consumptions))
	for _, c := range consumptions {
		keys = append(keys, flowerKey(c.FireFlowerID))
	}
	batch := append([]domain.FireFlowerConsumption(nil), consumptions...)
	return r.tx.write(func(s *memoryState) error {
		for _, c := range batch {
			if _, ok := s.consumptions[c.FireFlowerID]; ok {
				return fmt.Errorf("%w: fire flower %s already consumed", repository.ErrDuplicateEntry, c.FireFlowerID)
			}
			if _, ok := s.flowers[c.FireFlowerID]; !ok {
				return fmt.Errorf("%w: fire flower %s no longer exists", repository.ErrSerialization, c.FireFlowerID)
			}
			s.consumptions[c.FireFlowerID] = c
		}
		return nil
	}, keys...)
}
