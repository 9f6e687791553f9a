package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username already exists")
	ErrInvalidCredentials   = errors.New("username and password are required")
	ErrInternalServer       = errors.New("internal server error")
)

var domainErrors = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrPermission,
	domain.ErrAlreadyInRoom,
	domain.ErrNotInRoom,
	domain.ErrRoomClosed,
	domain.ErrResourceUnavailable,
	domain.ErrConflict,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// mapRepoError maps errors leaving a transaction onto the errors callers see. Domain errors
// pass through unchanged; repository errors become their domain counterpart; anything else
// is logged and hidden behind ErrInternalServer.
func mapRepoError(err error, logCtx *logrus.Entry) error {
	if err == nil {
		return nil
	}

	switch {
	case isDomainError(err):
		logCtx.WithError(err).Warn("Room operation rejected")
		return err
	case errors.Is(err, repository.ErrNotFound):
		logCtx.WithError(err).Warn("Room operation rejected: record not found")
		return domain.ErrNotFound
	case errors.Is(err, repository.ErrDuplicateEntry), errors.Is(err, repository.ErrSerialization):
		logCtx.WithError(err).Warn("Room operation aborted by a concurrent transaction")
		return domain.ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logCtx.WithError(err).Warn("Room operation canceled")
		return err
	default:
		logCtx.WithError(err).Error("Room operation failed: repository error")
		return ErrInternalServer
	}
}
