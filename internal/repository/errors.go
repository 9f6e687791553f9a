package repository

import "errors"

// Common repository errors. Implementations translate driver errors into these.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means a write violated a uniqueness constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrSerialization means the transaction lost a write conflict and was aborted.
	ErrSerialization = errors.New("repository: serialization failure")
)

var (
	ErrUserNotFound = ErrNotFound
	ErrRoomNotFound = ErrNotFound
)
