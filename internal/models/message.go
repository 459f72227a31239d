package models

import "time"

// SenderType identifies who wrote a message
type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderCharacter SenderType = "character"
)

// MessageKind is the payload type of a message
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Media reports whether k carries an uploaded file
func (k MessageKind) Media() bool {
	return k == KindImage || k == KindFile
}

// FileMeta describes an uploaded file attached to a message
type FileMeta struct {
	FileName string `json:"file_name,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Message is an immutable entry of a conversation. ExternalID is a ULID and
// breaks ties between messages created in the same instant.
type Message struct {
	ID             uint        `json:"id" gorm:"primaryKey"`
	ExternalID     string      `json:"external_id" gorm:"size:26;uniqueIndex"`
	ConversationID uint        `json:"conversation_id" gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	SenderType     SenderType  `json:"sender_type" gorm:"size:16;not null"`
	SenderID       uint        `json:"sender_id"`
	Kind           MessageKind `json:"kind" gorm:"size:16;not null;default:text"`
	Content        string      `json:"content" gorm:"type:text"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index:idx_messages_conversation_created,priority:2"`

	FileMeta `gorm:"embedded"`
}

// NewMessage holds what a caller supplies to append a message
type NewMessage struct {
	ConversationID uint
	SenderType     SenderType
	SenderID       uint
	Kind           MessageKind
	Content        string
	File           *FileMeta
}

// SendMessageRequest is the body of a text message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse acknowledges the stored user message and carries the
// character's reply when one was stored.
type SendMessageResponse struct {
	MessageID uint     `json:"message_id"`
	Message   Message  `json:"message"`
	Reply     *Message `json:"reply,omitempty"`
	State     string   `json:"state"`
}
