package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/service"
)

// HandleServiceError writes the response for an error returned by a service.
func HandleServiceError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrValidation.Error(), "fields": validation.FieldErrors})
	case errors.Is(err, domain.ErrValidation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPermission):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadyInRoom), errors.Is(err, domain.ErrNotInRoom), errors.Is(err, domain.ErrConflict):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRoomClosed):
		ErrorResponse(c, http.StatusLocked, err.Error())
	case errors.Is(err, domain.ErrResourceUnavailable):
		ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrAuthenticationFailed), errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed), errors.Is(err, service.ErrInvalidCredentials):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
