package api

import (
	"net/http"
	"strings"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/service"
	"whatsjuju-chat/backend/internal/storage"
	apperrors "whatsjuju-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

const msgNoFile = "Nenhum arquivo enviado ou erro no upload"

// MessageHandler serves the messages of a conversation
type MessageHandler struct {
	chat          *service.ChatService
	conversations *service.ConversationService
}

func NewMessageHandler(chat *service.ChatService, conversations *service.ConversationService) *MessageHandler {
	return &MessageHandler{chat: chat, conversations: conversations}
}

// List returns the conversation's messages in send order
func (h *MessageHandler) List(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgConversationNotFound)
	if !ok {
		return
	}

	msgs, err := h.conversations.Messages(c.Request.Context(), uid, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send stores a text message and answers with the character's reply
func (h *MessageHandler) Send(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgConversationNotFound)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, service.MsgEmptyContent))
		return
	}

	res, err := h.chat.SendMessage(c.Request.Context(), uid, id, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sendResponse(res))
}

// Upload stores an image or file from a multipart form with fields file, kind and caption
func (h *MessageHandler) Upload(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgConversationNotFound)
	if !ok {
		return
	}

	kind := models.MessageKind(strings.ToLower(strings.TrimSpace(c.PostForm("kind"))))
	if kind == "" {
		kind = models.KindFile
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, msgNoFile))
		return
	}
	file, err := header.Open()
	if err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidInput, msgNoFile).WithCause(err))
		return
	}
	defer file.Close()

	res, err := h.chat.UploadMedia(c.Request.Context(), uid, id, service.MediaUpload{
		Kind:    kind,
		Caption: c.PostForm("caption"),
		File: storage.File{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     header.Size,
			Content:  file,
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sendResponse(res))
}

func sendResponse(res *service.SendResult) models.SendMessageResponse {
	return models.SendMessageResponse{
		MessageID: res.UserMessage.ID,
		Message:   *res.UserMessage,
		Reply:     res.Reply,
		State:     string(res.State),
	}
}

func (h *MessageHandler) Delete(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", service.MsgMessageNotFound)
	if !ok {
		return
	}

	if err := h.conversations.DeleteMessage(c.Request.Context(), uid, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
