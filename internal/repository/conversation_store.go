package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsjuju-chat/backend/internal/models"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ConversationStore is the conversation and message ledger. Every read or
// write that names a conversation also names the owning user.
type ConversationStore interface {
	FindConversation(ctx context.Context, userID, conversationID uint) (*models.Conversation, error)
	FindActiveConversation(ctx context.Context, userID, characterID uint) (*models.Conversation, error)
	CreateConversation(ctx context.Context, userID, characterID uint, title string) (uint, error)
	StartConversation(ctx context.Context, userID, characterID uint, title string, welcome models.NewMessage) (*models.Conversation, bool, error)
	AppendMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error)
	UpdateConversationSummary(ctx context.Context, conversationID uint, lastMessage string, at time.Time) error
	ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error)
	RecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error)
	DeleteConversationCascade(ctx context.Context, userID, conversationID uint) (bool, error)
	ListConversations(ctx context.Context, userID uint) ([]models.ConversationView, error)
	UpdateConversation(ctx context.Context, userID, conversationID uint, update models.ConversationUpdate) (bool, error)
	ConversationIDs(ctx context.Context, userID uint) ([]uint, error)
	ClearConversations(ctx context.Context, userID uint) ([]uint, error)
	FindMessage(ctx context.Context, userID, messageID uint) (*models.Message, error)
	DeleteMessage(ctx context.Context, userID, messageID uint) (*models.Message, error)
}

// GormConversationStore implements ConversationStore on gorm
type GormConversationStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormConversationStore creates a store on db
func NewGormConversationStore(db *gorm.DB) *GormConversationStore {
	return &GormConversationStore{db: db, now: time.Now}
}

func (s *GormConversationStore) FindConversation(ctx context.Context, userID, conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FindConversation: %w", err)
	}
	return &conv, nil
}

func (s *GormConversationStore) FindActiveConversation(ctx context.Context, userID, characterID uint) (*models.Conversation, error) {
	conv, err := findActive(s.db.WithContext(ctx), userID, characterID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("repository.FindActiveConversation: %w", err)
	}
	return conv, err
}

func findActive(tx *gorm.DB, userID, characterID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := tx.Where("user_id = ? AND character_id = ? AND is_archived = ?", userID, characterID, false).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *GormConversationStore) CreateConversation(ctx context.Context, userID, characterID uint, title string) (uint, error) {
	conv := models.Conversation{UserID: userID, CharacterID: characterID, Title: title}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return 0, fmt.Errorf("repository.CreateConversation: %w", err)
	}
	return conv.ID, nil
}

// StartConversation returns the active conversation for the pair, creating
// it together with the welcome message when none exists. created reports
// whether a new conversation was written.
func (s *GormConversationStore) StartConversation(ctx context.Context, userID, characterID uint, title string, welcome models.NewMessage) (*models.Conversation, bool, error) {
	var conv *models.Conversation
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findActive(tx, userID, characterID)
		if err == nil {
			conv = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := s.now()
		fresh := models.Conversation{
			UserID:        userID,
			CharacterID:   characterID,
			Title:         title,
			LastMessage:   welcome.Content,
			LastMessageAt: &now,
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return err
		}

		welcome.ConversationID = fresh.ID
		if err := tx.Create(s.newRow(welcome, now)).Error; err != nil {
			return err
		}

		conv = &fresh
		created = true
		return nil
	})
	if err != nil {
		// Another writer may have won the partial unique index.
		if existing, findErr := findActive(s.db.WithContext(ctx), userID, characterID); findErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("repository.StartConversation: %w", err)
	}
	return conv, created, nil
}

func (s *GormConversationStore) newRow(msg models.NewMessage, at time.Time) *models.Message {
	kind := msg.Kind
	if kind == "" {
		kind = models.KindText
	}
	row := &models.Message{
		ExternalID:     ulid.Make().String(),
		ConversationID: msg.ConversationID,
		SenderType:     msg.SenderType,
		SenderID:       msg.SenderID,
		Kind:           kind,
		Content:        msg.Content,
		CreatedAt:      at,
	}
	if msg.File != nil {
		row.FileMeta = *msg.File
	}
	return row
}

// AppendMessage inserts msg. It fails with ErrNotFound when the conversation
// no longer exists, so a concurrent delete cannot leave orphaned rows.
func (s *GormConversationStore) AppendMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error) {
	row := s.newRow(msg, s.now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("repository.AppendMessage: %w", err)
	}
	return row, nil
}

func (s *GormConversationStore) UpdateConversationSummary(ctx context.Context, conversationID uint, lastMessage string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message":    lastMessage,
			"last_message_at": at,
			"updated_at":      s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("repository.UpdateConversationSummary: %w", err)
	}
	return nil
}

func (s *GormConversationStore) ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("repository.ListMessages: %w", err)
	}
	return messages, nil
}

// RecentMessages returns up to limit messages, newest first
func (s *GormConversationStore) RecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("repository.RecentMessages: %w", err)
	}
	return messages, nil
}

func (s *GormConversationStore) DeleteConversationCascade(ctx context.Context, userID, conversationID uint) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Where("id = ? AND user_id = ?", conversationID, userID).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&conv).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("repository.DeleteConversationCascade: %w", err)
	}
	return deleted, nil
}

// ListConversations returns the user's open conversations, most recent
// activity first, each joined with its character.
func (s *GormConversationStore) ListConversations(ctx context.Context, userID uint) ([]models.ConversationView, error) {
	db := s.db.WithContext(ctx)

	var convs []models.Conversation
	err := db.Where("user_id = ? AND is_archived = ?", userID, false).
		Order("last_message_at DESC, created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("repository.ListConversations: %w", err)
	}

	views := make([]models.ConversationView, 0, len(convs))
	if len(convs) == 0 {
		return views, nil
	}

	ids := make([]uint, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.CharacterID)
	}
	var chars []models.Character
	if err := db.Where("id IN ?", ids).Find(&chars).Error; err != nil {
		return nil, fmt.Errorf("repository.ListConversations: characters: %w", err)
	}
	byID := make(map[uint]models.Character, len(chars))
	for _, ch := range chars {
		byID[ch.ID] = ch
	}

	for _, c := range convs {
		ch, ok := byID[c.CharacterID]
		if !ok {
			continue
		}
		views = append(views, models.ConversationView{Conversation: c, Character: ch.Summary()})
	}
	return views, nil
}

// UpdateConversation applies the supplied fields. It reports false when the
// conversation is missing or not owned.
func (s *GormConversationStore) UpdateConversation(ctx context.Context, userID, conversationID uint, update models.ConversationUpdate) (bool, error) {
	fields := map[string]any{"updated_at": s.now()}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.IsPinned != nil {
		fields["is_pinned"] = *update.IsPinned
	}
	if update.IsArchived != nil {
		fields["is_archived"] = *update.IsArchived
	}

	res := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("repository.UpdateConversation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ConversationIDs returns the ids of all the user's conversations, archived included
func (s *GormConversationStore) ConversationIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("repository.ConversationIDs: %w", err)
	}
	return ids, nil
}

// ClearConversations deletes every conversation of the user with its
// messages and returns the removed conversation ids.
func (s *GormConversationStore) ClearConversations(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Conversation{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Conversation{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("repository.ClearConversations: %w", err)
	}
	return ids, nil
}

func (s *GormConversationStore) FindMessage(ctx context.Context, userID, messageID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Select("messages.*").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.id = ? AND conversations.user_id = ?", messageID, userID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FindMessage: %w", err)
	}
	return &msg, nil
}

// DeleteMessage removes a message owned by the user and returns it
func (s *GormConversationStore) DeleteMessage(ctx context.Context, userID, messageID uint) (*models.Message, error) {
	msg, err := s.FindMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Message{}, msg.ID).Error; err != nil {
		return nil, fmt.Errorf("repository.DeleteMessage: %w", err)
	}
	return msg, nil
}
