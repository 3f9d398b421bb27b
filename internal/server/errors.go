package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marigoldlabs/keepsake/backend/internal/accounts"
	"github.com/marigoldlabs/keepsake/backend/internal/books"
	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

// errorBody is the JSON error envelope for every failure response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// respondServiceError maps domain sentinels onto the HTTP error taxonomy.
// Unrecognized errors become opaque 500s; their detail stays in the logs.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounts.ErrValidation), errors.Is(err, books.ErrValidation),
		errors.Is(err, contributions.ErrNoFiles), errors.Is(err, contributions.ErrCountMismatch):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, accounts.ErrEmailTaken):
		respondError(c, http.StatusConflict, "USER_EXISTS", "email is already registered")
	case errors.Is(err, accounts.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, books.ErrNotFound), errors.Is(err, contributions.ErrBookNotFound):
		respondError(c, http.StatusNotFound, "MEMORY_BOOK_NOT_FOUND", "memory book not found")
	case errors.Is(err, contributions.ErrTooManyFiles):
		respondError(c, http.StatusBadRequest, "TOO_MANY_FILES", err.Error())
	case errors.Is(err, storage.ErrPayloadTooLarge):
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
	case errors.Is(err, storage.ErrUnsupportedMediaType):
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "only image files are allowed")
	case errors.Is(err, storage.ErrObjectNotFound):
		respondError(c, http.StatusNotFound, "IMAGE_NOT_FOUND", "image not found")
	default:
		h.logger.Error("unhandled service error", zap.Error(err), zap.String("path", c.FullPath()))
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
