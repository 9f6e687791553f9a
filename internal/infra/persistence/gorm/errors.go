package gormpersistence

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

// MySQL error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlNoReferencedRow = 1452
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateError maps driver errors onto repository errors. Errors it does not recognise,
// including errors returned by a transaction body, come back unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %w", repository.ErrDuplicateEntry, err)
		case mysqlDeadlock, mysqlLockWaitTimeout, mysqlNoReferencedRow:
			// a missing parent row means the room was deleted by a transaction that committed first
			return fmt.Errorf("%w: %w", repository.ErrSerialization, err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", repository.ErrDuplicateEntry, err)
		case pgForeignKeyViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %w", repository.ErrSerialization, err)
		}
	}
	return err
}
