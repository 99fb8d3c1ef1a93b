package handler

import (
	"errors"
	"net/http"

	"github.com/adwatch/backend/internal/model"
	"github.com/adwatch/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, service.ErrCycleInProgress), errors.Is(err, model.ErrDuplicateActive):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidSettings), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), model.ErrorResponse{Error: err.Error()})
}
