package gormpersistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

func TestTranslateError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "record not found", in: gorm.ErrRecordNotFound, want: repository.ErrNotFound},
		{name: "mysql duplicate", in: &mysql.MySQLError{Number: 1062}, want: repository.ErrDuplicateEntry},
		{name: "mysql deadlock", in: &mysql.MySQLError{Number: 1213}, want: repository.ErrSerialization},
		{name: "mysql lock wait", in: &mysql.MySQLError{Number: 1205}, want: repository.ErrSerialization},
		{name: "mysql missing parent", in: fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1452}), want: repository.ErrSerialization},
		{name: "pg unique", in: &pgconn.PgError{Code: "23505"}, want: repository.ErrDuplicateEntry},
		{name: "pg foreign key", in: &pgconn.PgError{Code: "23503"}, want: repository.ErrSerialization},
		{name: "pg serialization", in: &pgconn.PgError{Code: "40001"}, want: repository.ErrSerialization},
		{name: "pg deadlock", in: &pgconn.PgError{Code: "40P01"}, want: repository.ErrSerialization},
		{name: "unknown passes through", in: plain, want: plain},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translateError(tc.in)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestTranslateError_KeepsDriverError(t *testing.T) {
	driverErr := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'idx_rooms_name'"}
	got := translateError(driverErr)

	var target *mysql.MySQLError
	assert.True(t, errors.As(got, &target))
	assert.Equal(t, uint16(1062), target.Number)
}
