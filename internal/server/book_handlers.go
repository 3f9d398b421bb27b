package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marigoldlabs/keepsake/backend/internal/books"
)

type createBookRequestPayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type updateBookRequestPayload struct {
	Name  *string       `json:"name"`
	Type  *string       `json:"type"`
	Pages *[]books.Page `json:"pages"`
}

type bookListResponsePayload struct {
	Data   []books.Book `json:"data"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (h *httpHandler) handleListBooks(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	limit, offset := parsePagination(c)
	items, total, err := h.books.ListByOwner(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookListResponsePayload{Data: items, Total: total, Limit: limit, Offset: offset})
}

func (h *httpHandler) handleCreateBook(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var request createBookRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	book, err := h.books.Create(c.Request.Context(), user.ID, request.Name, request.Type)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, book)
}

func (h *httpHandler) handleGetBook(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	book, err := h.books.GetByID(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, book)
}

func (h *httpHandler) handleUpdateBook(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	var request updateBookRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	book, err := h.books.Update(c.Request.Context(), user.ID, c.Param("id"), books.UpdateRequest{
		Name:  request.Name,
		Type:  request.Type,
		Pages: request.Pages,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, book)
}

func (h *httpHandler) handleDeleteBook(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.books.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Memory book deleted successfully"})
}

func (h *httpHandler) handleGetBookByShareID(c *gin.Context) {
	book, err := h.books.GetByShareID(c.Request.Context(), c.Param("shareId"))
	if errors.Is(err, books.ErrNotFound) {
		respondError(c, http.StatusNotFound, "SHARE_NOT_FOUND", "no memory book for this share link")
		return
	}
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, book)
}

func (h *httpHandler) handleGetBookByContributeID(c *gin.Context) {
	summary, err := h.books.GetByContributeID(c.Request.Context(), c.Param("contributeId"))
	if errors.Is(err, books.ErrNotFound) {
		respondError(c, http.StatusNotFound, "CONTRIBUTE_NOT_FOUND", "no memory book for this contribute link")
		return
	}
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
