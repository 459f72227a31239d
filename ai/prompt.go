package ai

import (
	"fmt"

	"whatsjuju-chat/backend/internal/models"
)

const systemPromptTmpl = "Você é %s. Sua personalidade: %s Responda sempre como este personagem, " +
	"mantendo sua personalidade e forma de falar. Seja natural, envolvente e fiel ao personagem. " +
	"Mantenha as respostas concisas mas interessantes."

// SystemPrompt embeds the character's name and personality verbatim
func SystemPrompt(character models.Character) string {
	return fmt.Sprintf(systemPromptTmpl, character.Name, character.Personality)
}

// buildPrompt assembles the chat turns: the system instruction, up to limit
// earlier messages in chronological order and the new user message last.
// history is newest first.
func buildPrompt(character models.Character, history []models.Message, content string, limit int) []chatMessage {
	if len(history) > limit {
		history = history[:limit]
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: SystemPrompt(character)})

	for i := len(history) - 1; i >= 0; i-- {
		role := "assistant"
		if history[i].SenderType == models.SenderUser {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: history[i].Content})
	}

	return append(messages, chatMessage{Role: "user", Content: content})
}
