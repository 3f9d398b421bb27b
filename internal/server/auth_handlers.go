package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marigoldlabs/keepsake/backend/internal/accounts"
)

type registerRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionResponsePayload struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

func toUserPayload(user accounts.User) userPayload {
	return userPayload{ID: user.ID, Email: user.Email, Name: user.Name}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	user, token, err := h.accounts.Register(c.Request.Context(), request.Email, request.Password, request.Name)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponsePayload{User: toUserPayload(user), Token: token})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{User: toUserPayload(user), Token: token})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserPayload(user)})
}
