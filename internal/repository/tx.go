package repository

import "context"

// Tx is the handle passed into a transaction body. Every repository it hands out reads
// and writes through the same underlying transaction.
type Tx interface {
	RoomQuery() RoomQuery
	RoomCommand() RoomCommand
	FireFlowerQuery() FireFlowerQuery
	FireFlowerCommand() FireFlowerCommand
}

// Transactor runs fn inside one repeatable-read transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged. A commit that loses
// a write conflict returns ErrSerialization.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
