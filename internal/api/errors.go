package api

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/claimy/claimy-admin/internal/auth"
	"github.com/claimy/claimy-admin/internal/cases"
	"github.com/claimy/claimy-admin/internal/desk"
	"github.com/claimy/claimy-admin/pkg/logger"
)

// presentError writes the JSON error response for err and reports whether
// there was one.
func presentError(c *gin.Context, log *logger.Logger, err error) bool {
	if err == nil {
		return false
	}
	if c.IsAborted() {
		// The body size limiter has already answered.
		return true
	}

	status := http.StatusInternalServerError
	message := err.Error()
	switch {
	case errors.Is(err, cases.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, cases.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cases.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, desk.ErrUpstream):
		status = http.StatusBadGateway
		log.Warn("Upstream failure", "path", c.FullPath(), "error", err)
	default:
		log.Error("Unexpected error", "path", c.FullPath(), "error", err)
		message = "Internal server error"
	}

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
	return true
}

// bindError turns a request binding failure into a validation error with
// a readable message.
func bindError(err error) error {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		if fe.Tag() == "email" {
			return cases.Invalid("%s must be a valid email address", fe.Field())
		}
		return cases.Invalid("%s is required", fe.Field())
	}
	return cases.Invalid("Invalid request body")
}
