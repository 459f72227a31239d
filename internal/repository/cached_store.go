package repository

import (
	"context"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/pkg/logger"
)

// HistoryCache holds the newest messages of each conversation, oldest first
type HistoryCache interface {
	Append(ctx context.Context, conversationID uint, msg models.Message) error
	Fill(ctx context.Context, conversationID uint, msgs []models.Message) error
	Tail(ctx context.Context, conversationID uint, limit int) ([]models.Message, bool, error)
	Invalidate(ctx context.Context, conversationID uint) error
	Capacity() int
}

// HistoryCachedStore serves RecentMessages from a HistoryCache and keeps the
// cache in step with writes. Cache failures are logged and the database
// answers instead.
type HistoryCachedStore struct {
	ConversationStore
	cache HistoryCache
	log   *logger.Logger
}

// NewHistoryCachedStore wraps inner with cache
func NewHistoryCachedStore(inner ConversationStore, cache HistoryCache, log *logger.Logger) *HistoryCachedStore {
	return &HistoryCachedStore{ConversationStore: inner, cache: cache, log: log}
}

func (s *HistoryCachedStore) AppendMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error) {
	row, err := s.ConversationStore.AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Append(ctx, row.ConversationID, *row); err != nil {
		s.log.Warn("history cache append failed", "conversation_id", row.ConversationID, "error", err.Error())
		s.invalidate(ctx, row.ConversationID)
	}
	return row, nil
}

func (s *HistoryCachedStore) RecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	if limit > s.cache.Capacity() {
		return s.ConversationStore.RecentMessages(ctx, conversationID, limit)
	}

	tail, ok, err := s.cache.Tail(ctx, conversationID, limit)
	if err != nil {
		s.log.Warn("history cache read failed", "conversation_id", conversationID, "error", err.Error())
	}
	if ok {
		return reversed(tail), nil
	}

	newest, err := s.ConversationStore.RecentMessages(ctx, conversationID, s.cache.Capacity())
	if err != nil {
		return nil, err
	}
	if err := s.cache.Fill(ctx, conversationID, reversed(newest)); err != nil {
		s.log.Warn("history cache fill failed", "conversation_id", conversationID, "error", err.Error())
	}
	if len(newest) > limit {
		newest = newest[:limit]
	}
	return newest, nil
}

func (s *HistoryCachedStore) DeleteConversationCascade(ctx context.Context, userID, conversationID uint) (bool, error) {
	deleted, err := s.ConversationStore.DeleteConversationCascade(ctx, userID, conversationID)
	if deleted {
		s.invalidate(ctx, conversationID)
	}
	return deleted, err
}

func (s *HistoryCachedStore) ClearConversations(ctx context.Context, userID uint) ([]uint, error) {
	ids, err := s.ConversationStore.ClearConversations(ctx, userID)
	for _, id := range ids {
		s.invalidate(ctx, id)
	}
	return ids, err
}

func (s *HistoryCachedStore) DeleteMessage(ctx context.Context, userID, messageID uint) (*models.Message, error) {
	msg, err := s.ConversationStore.DeleteMessage(ctx, userID, messageID)
	if err == nil {
		s.invalidate(ctx, msg.ConversationID)
	}
	return msg, err
}

func (s *HistoryCachedStore) invalidate(ctx context.Context, conversationID uint) {
	if err := s.cache.Invalidate(ctx, conversationID); err != nil {
		s.log.Warn("history cache invalidate failed", "conversation_id", conversationID, "error", err.Error())
	}
}

func reversed(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
