package api

import (
	"net/http"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/service"
	apperrors "whatsjuju-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users *service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, service.MsgMissingData))
		return
	}

	auth, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, auth)
}

// Login authenticates by username or email
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, service.MsgMissingData))
		return
	}

	auth, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auth)
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	user, err := h.users.Me(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
