package api

import (
	"errors"
	"strconv"

	"whatsjuju-chat/backend/internal/service"
	apperrors "whatsjuju-chat/backend/pkg/errors"
	"whatsjuju-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// fail records err for the error middleware, translated to an AppError
func fail(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}

func toAppError(err error) error {
	var svcErr *service.Error
	msg := ""
	if errors.As(err, &svcErr) {
		msg = svcErr.Message
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.NewBadRequestError(apperrors.CodeInvalidInput, msg)
	case errors.Is(err, service.ErrNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeNotFound, msg)
	case errors.Is(err, service.ErrConflict):
		return apperrors.NewConflictError(apperrors.CodeConflict, msg)
	case errors.Is(err, service.ErrUnauthorized):
		return apperrors.NewUnauthorizedError(apperrors.CodeUnauthorized, msg)
	}
	// ErrPersistence and anything unexpected become a generic 500
	return err
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name, notFoundMsg string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.Error(apperrors.NewNotFoundError(apperrors.CodeNotFound, notFoundMsg))
		c.Abort()
		return 0, false
	}
	return uint(id), true
}

// userID returns the authenticated user or aborts with 401
func userID(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError(apperrors.CodeUnauthorized, "Login necessário"))
		c.Abort()
	}
	return id, ok
}
