package api

import (
	"net/http"

	"whatsjuju-chat/backend/internal/service"

	"github.com/gin-gonic/gin"
)

type CharacterHandler struct {
	characters *service.CharacterService
}

func NewCharacterHandler(characters *service.CharacterService) *CharacterHandler {
	return &CharacterHandler{characters: characters}
}

func (h *CharacterHandler) List(c *gin.Context) {
	list, err := h.characters.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": list})
}

func (h *CharacterHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id", service.MsgCharacterNotFound)
	if !ok {
		return
	}

	character, err := h.characters.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, character)
}
