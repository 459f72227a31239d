package models

import "time"

// Conversation is the mutable summary of a user's chat with one character.
// At most one non-archived conversation exists per (user, character).
type Conversation struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	UserID        uint       `json:"user_id" gorm:"not null;index"`
	CharacterID   uint       `json:"character_id" gorm:"not null;index"`
	Title         string     `json:"title" gorm:"size:255"`
	LastMessage   string     `json:"last_message" gorm:"type:text"`
	LastMessageAt *time.Time `json:"last_message_at"`
	IsPinned      bool       `json:"is_pinned" gorm:"default:false"`
	IsArchived    bool       `json:"is_archived" gorm:"default:false"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ConversationView is a conversation joined with its character
type ConversationView struct {
	Conversation
	Character CharacterSummary `json:"character"`
}

// ConversationDetail is a conversation with the full character record
type ConversationDetail struct {
	Conversation
	Character Character `json:"character"`
}

// ConversationUpdate carries the optional editable fields. Nil means unchanged.
type ConversationUpdate struct {
	Title      *string `json:"title"`
	IsPinned   *bool   `json:"is_pinned"`
	IsArchived *bool   `json:"is_archived"`
}

// Empty reports whether no field was supplied
func (u ConversationUpdate) Empty() bool {
	return u.Title == nil && u.IsPinned == nil && u.IsArchived == nil
}

// StartConversationRequest opens (or resumes) a chat with a character
type StartConversationRequest struct {
	CharacterID uint `json:"character_id" binding:"required"`
}

// StartConversationResponse reports the conversation to use
type StartConversationResponse struct {
	ConversationID uint `json:"conversation_id"`
	Created        bool `json:"created"`
}
