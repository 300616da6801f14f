package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripvault/ledger"
)

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Success: false, Message: message})
}

// writeError maps ledger errors onto HTTP statuses. Anything unexpected is
// logged and reported as a 500 without details.
func writeError(c *gin.Context, err error) {
	var (
		validationErr    *ledger.ValidationError
		notFoundErr      *ledger.NotFoundError
		authorizationErr *ledger.AuthorizationError
	)
	switch {
	case errors.As(err, &validationErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Message: validationErr.Message,
			Field:   validationErr.Field,
			Total:   validationErr.Total,
		})
	case errors.As(err, &notFoundErr):
		abortWithMessage(c, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &authorizationErr):
		abortWithMessage(c, http.StatusForbidden, authorizationErr.Error())
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		abortWithMessage(c, http.StatusInternalServerError, "internal server error")
	}
}
