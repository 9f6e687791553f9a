package gormpersistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

// maxTxAttempts bounds how often a transaction that lost a serialization conflict is rerun.
const maxTxAttempts = 3

// GormTransactor runs repository work inside a REPEATABLE READ database transaction.
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor creates a GormTransactor.
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	if db == nil {
		panic("database connection cannot be nil for GormTransactor")
	}
	return &GormTransactor{db: db}
}

// Transaction implements repository.Transactor. Commit failures are translated; errors
// returned by fn pass through untouched. A run that fails with repository.ErrSerialization
// is rolled back and rerun from a fresh snapshot, so fn must not keep state across runs.
func (t *GormTransactor) Transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return retryOnSerialization(ctx, maxTxAttempts, func() error {
		err := t.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(ctx, gormTx{db: gtx})
		}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		return translateError(err)
	})
}

func retryOnSerialization(ctx context.Context, attempts int, run func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = run(); !errors.Is(err, repository.ErrSerialization) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		logrus.WithError(err).WithField("attempt", attempt).Debug("Transaction lost a serialization conflict")
	}
	return err
}

type gormTx struct {
	db *gorm.DB
}

func (t gormTx) RoomQuery() repository.RoomQuery             { return NewGormRoomRepository(t.db) }
func (t gormTx) RoomCommand() repository.RoomCommand         { return NewGormRoomRepository(t.db) }
func (t gormTx) FireFlowerQuery() repository.FireFlowerQuery { return NewGormFireFlowerRepository(t.db) }
func (t gormTx) FireFlowerCommand() repository.FireFlowerCommand {
	return NewGormFireFlowerRepository(t.db)
}
