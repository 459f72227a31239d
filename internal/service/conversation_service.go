package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/internal/storage"
	"whatsjuju-chat/backend/pkg/logger"
)

const maxTitleLength = 255

// ConversationService manages a user's conversations and their messages
type ConversationService struct {
	store      repository.ConversationStore
	characters repository.CharacterRepository
	uploader   storage.Uploader
	locks      *KeyedMutex
	log        *logger.Logger
}

// NewConversationService creates the service. locks may be shared with ChatService.
func NewConversationService(
	store repository.ConversationStore,
	characters repository.CharacterRepository,
	uploader storage.Uploader,
	locks *KeyedMutex,
	log *logger.Logger,
) *ConversationService {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &ConversationService{
		store:      store,
		characters: characters,
		uploader:   uploader,
		locks:      locks,
		log:        log,
	}
}

// List returns the user's conversations, pinned first then most recent
func (s *ConversationService) List(ctx context.Context, userID uint) ([]models.ConversationView, error) {
	views, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, persistence(err)
	}
	return views, nil
}

// Get returns one conversation with its full character
func (s *ConversationService) Get(ctx context.Context, userID, conversationID uint) (*models.ConversationDetail, error) {
	conv, err := s.find(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	character, err := s.characters.FindByID(ctx, conv.CharacterID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(MsgCharacterNotFound)
	}
	if err != nil {
		return nil, persistence(err)
	}
	return &models.ConversationDetail{Conversation: *conv, Character: *character}, nil
}

func (s *ConversationService) find(ctx context.Context, userID, conversationID uint) (*models.Conversation, error) {
	conv, err := s.store.FindConversation(ctx, userID, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(MsgConversationNotFound)
	}
	if err != nil {
		return nil, persistence(err)
	}
	return conv, nil
}

// Update edits title, pin and archive flags. Titles are trimmed, escaped and
// cut to 255 characters.
func (s *ConversationService) Update(ctx context.Context, userID, conversationID uint, update models.ConversationUpdate) (*models.Conversation, error) {
	if update.Empty() {
		return nil, invalidInput(MsgNothingToUpdate)
	}
	if update.Title != nil {
		title := sanitizeTitle(*update.Title)
		if title == "" {
			return nil, invalidInput(MsgMissingData)
		}
		update.Title = &title
	}

	ok, err := s.store.UpdateConversation(ctx, userID, conversationID, update)
	if err != nil {
		return nil, persistence(err)
	}
	if !ok {
		return nil, notFound(MsgConversationNotFound)
	}
	return s.find(ctx, userID, conversationID)
}

func sanitizeTitle(title string) string {
	title = html.EscapeString(strings.TrimSpace(title))
	if utf8.RuneCountInString(title) <= maxTitleLength {
		return title
	}
	return string([]rune(title)[:maxTitleLength])
}

// Delete removes the conversation and all of its messages
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID uint) error {
	unlock := s.locks.Lock(conversationKey(conversationID))
	defer unlock()

	ok, err := s.store.DeleteConversationCascade(ctx, userID, conversationID)
	if err != nil {
		return persistence(err)
	}
	if !ok {
		return notFound(MsgConversationNotFound)
	}
	s.log.WithContext(ctx).Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

// Clear deletes every conversation the user owns and returns how many went.
// The conversations' locks are held in id order while they are removed.
func (s *ConversationService) Clear(ctx context.Context, userID uint) (int, error) {
	owned, err := s.store.ConversationIDs(ctx, userID)
	if err != nil {
		return 0, persistence(err)
	}
	for _, id := range owned {
		unlock := s.locks.Lock(conversationKey(id))
		defer unlock()
	}

	ids, err := s.store.ClearConversations(ctx, userID)
	if err != nil {
		return 0, persistence(err)
	}
	return len(ids), nil
}

// Messages returns the conversation's messages in send order
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID uint) ([]models.Message, error) {
	if _, err := s.find(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, persistence(err)
	}
	return msgs, nil
}

// DeleteMessage removes one of the user's messages and its stored file, if any
func (s *ConversationService) DeleteMessage(ctx context.Context, userID, messageID uint) error {
	found, err := s.store.FindMessage(ctx, userID, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(MsgMessageNotFound)
	}
	if err != nil {
		return persistence(err)
	}

	unlock := s.locks.Lock(conversationKey(found.ConversationID))
	msg, err := s.store.DeleteMessage(ctx, userID, messageID)
	unlock()
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(MsgMessageNotFound)
	}
	if err != nil {
		return persistence(err)
	}

	if msg.FilePath != "" && s.uploader != nil {
		if err := s.uploader.Remove(msg.FileMeta); err != nil {
			s.log.WithContext(ctx).LogError(err, "stored file not removed", "file_path", msg.FilePath)
		}
	}
	return nil
}
