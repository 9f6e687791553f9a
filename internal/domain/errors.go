package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation marks malformed caller input. Use errors.As with *ValidationError for details.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for a missing room, including a password that matches no room.
	ErrNotFound = errors.New("room not found")
	// ErrPermission is returned when the actor is not allowed to perform the operation.
	ErrPermission = errors.New("permission denied")
	// ErrAlreadyInRoom is returned when the actor already holds a membership somewhere.
	ErrAlreadyInRoom = errors.New("user is already in a room")
	// ErrNotInRoom is returned on exit when the actor holds no membership.
	ErrNotInRoom = errors.New("user is not in a room")
	// ErrRoomClosed is returned when entering a room whose status is not OPEN.
	ErrRoomClosed = errors.New("room is closed")
	// ErrResourceUnavailable is returned when a requested fire flower cannot be spent.
	ErrResourceUnavailable = errors.New("fire flower unavailable")
	// ErrConflict is returned when a concurrent transaction won a write; retry the whole operation.
	ErrConflict = errors.New("concurrent update conflict")
)

// ValidationError captures field level validation issues.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (v *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
