package httpserver

import (
	"errors"
	"log"
	"net/http"

	"marketplace-core/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeError(c *gin.Context, logger *log.Logger, err error) {
	status, body := mapError(err)
	if status == http.StatusInternalServerError {
		logger.Printf("http: %s %s error=%v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}

func mapError(err error) (int, errorBody) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, errorBody{Error: err.Error(), Code: "forbidden"}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"}
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "insufficient_stock"}
	case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "concurrent_modification", Retryable: true}
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "already_exists", Retryable: true}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"}
	}
}
