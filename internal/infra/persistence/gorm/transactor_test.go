package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

func TestRetryOnSerialization(t *testing.T) {
	conflict := fmt.Errorf("commit: %w", repository.ErrSerialization)

	t.Run("rerun succeeds", func(t *testing.T) {
		calls := 0
		err := retryOnSerialization(context.Background(), maxTxAttempts, func() error {
			calls++
			if calls == 1 {
				return conflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		err := retryOnSerialization(context.Background(), maxTxAttempts, func() error {
			calls++
			return conflict
		})
		assert.ErrorIs(t, err, repository.ErrSerialization)
		assert.Equal(t, maxTxAttempts, calls)
	})

	t.Run("other errors are returned at once", func(t *testing.T) {
		for _, want := range []error{repository.ErrDuplicateEntry, repository.ErrNotFound, errors.New("boom")} {
			calls := 0
			err := retryOnSerialization(context.Background(), maxTxAttempts, func() error {
				calls++
				return want
			})
			assert.ErrorIs(t, err, want)
			assert.Equal(t, 1, calls)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := retryOnSerialization(ctx, maxTxAttempts, func() error {
			calls++
			return conflict
		})
		assert.ErrorIs(t, err, repository.ErrSerialization)
		assert.Equal(t, 1, calls)
	})
}

func TestGormTransactor_RerunsAfterSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	runs := 0
	err := NewGormTransactor(db).Transaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		runs++
		if runs == 1 {
			return fmt.Errorf("touch room: %w", repository.ErrSerialization)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
