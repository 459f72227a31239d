package api

import (
	"net/http"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/service"
	apperrors "whatsjuju-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ConversationHandler serves the conversation list and its management actions
type ConversationHandler struct {
	chat          *service.ChatService
	conversations *service.ConversationService
}

func NewConversationHandler(chat *service.ChatService, conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{chat: chat, conversations: conversations}
}

// List returns the user's non-archived conversations
func (h *ConversationHandler) List(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	views, err := h.conversations.List(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgConversationNotFound)
	if !ok {
		return
	}

	detail, err := h.conversations.Get(c.Request.Context(), uid, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Start opens the conversation with a character, or returns the open one
func (h *ConversationHandler) Start(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, service.MsgMissingData))
		return
	}

	res, err := h.chat.StartConversation(c.Request.Context(), uid, req.CharacterID)
	if err != nil {
		fail(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, models.StartConversationResponse{
		ConversationID: res.Conversation.ID,
		Created:        res.Created,
	})
}

func (h *ConversationHandler) Update(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgConversationNotFound)
	if !ok {
		return
	}

	var update models.ConversationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, service.MsgNothingToUpdate))
		return
	}

	conv, err := h.conversations.Update(c.Request.Context(), uid, id, update)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgConversationNotFound)
	if !ok {
		return
	}

	if err := h.conversations.Delete(c.Request.Context(), uid, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear deletes every conversation of the user
func (h *ConversationHandler) Clear(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	n, err := h.conversations.Clear(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
