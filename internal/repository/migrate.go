package repository

import (
	"fmt"

	"whatsjuju-chat/backend/internal/models"

	"gorm.io/gorm"
)

// activeConversationIndex enforces one open conversation per (user, character)
const activeConversationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active
ON conversations (user_id, character_id) WHERE is_archived = false`

// Migrate creates or updates every table and the indexes gorm cannot express
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Character{},
		&models.Conversation{},
		&models.Message{},
		&models.Setting{},
	); err != nil {
		return fmt.Errorf("repository.Migrate: %w", err)
	}

	if err := db.Exec(activeConversationIndex).Error; err != nil {
		return fmt.Errorf("repository.Migrate: active index: %w", err)
	}
	return nil
}
