package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/reply"
	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/internal/storage"
	"whatsjuju-chat/backend/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DeliveryState is the terminal state of an inbound message
type DeliveryState string

const (
	// Delivered means the user message and the character reply were stored
	Delivered DeliveryState = "delivered"
	// DeliveredNoReply means only the user message was stored
	DeliveredNoReply DeliveryState = "delivered_no_reply"
)

// Notifier is told about every stored message
type Notifier interface {
	MessageCreated(userID uint, msg models.Message)
}

// SendResult acknowledges an inbound message
type SendResult struct {
	UserMessage *models.Message
	Reply       *models.Message
	State       DeliveryState
	// Strategy names what produced Reply
	Strategy string
}

// StartResult reports the conversation to use with a character
type StartResult struct {
	Conversation *models.Conversation
	Created      bool
}

// Responder is the part of the rule engine used outside the strategy chain
type Responder interface {
	Welcome(slug string) string
	MediaReaction(kind models.MessageKind, slug, caption string) string
}

// ChatConfig tunes the orchestrator
type ChatConfig struct {
	// HistoryLimit is how many earlier messages accompany a reply request
	HistoryLimit int
	// Locks serializes writes per conversation. Share it with
	// ConversationService so deletes and appends do not interleave.
	Locks *KeyedMutex
}

// ChatService turns an inbound message into a stored user message and, when
// possible, a stored character reply.
type ChatService struct {
	store      repository.ConversationStore
	characters repository.CharacterRepository
	chain      *reply.Chain
	responder  Responder
	uploader   storage.Uploader
	notifier   Notifier
	locks      *KeyedMutex
	cfg        ChatConfig
	log        *logger.Logger

	tracer  trace.Tracer
	replies metric.Int64Counter
	latency metric.Float64Histogram
}

// NewChatService wires the orchestrator. notifier may be nil.
func NewChatService(
	store repository.ConversationStore,
	characters repository.CharacterRepository,
	chain *reply.Chain,
	responder Responder,
	uploader storage.Uploader,
	notifier Notifier,
	cfg ChatConfig,
	log *logger.Logger,
) *ChatService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Locks == nil {
		cfg.Locks = NewKeyedMutex()
	}

	meter := otel.Meter("whatsjuju-chat/backend/service")
	replies, err := meter.Int64Counter("chat_reply_attempts",
		metric.WithDescription("Reply strategy attempts by outcome"))
	if err != nil {
		log.LogError(err, "reply counter unavailable")
	}
	latency, err := meter.Float64Histogram("chat_reply_duration_seconds",
		metric.WithDescription("Time spent producing a character reply"),
		metric.WithUnit("s"))
	if err != nil {
		log.LogError(err, "reply histogram unavailable")
	}

	return &ChatService{
		store:      store,
		characters: characters,
		chain:      chain,
		responder:  responder,
		uploader:   uploader,
		notifier:   notifier,
		locks:      cfg.Locks,
		cfg:        cfg,
		log:        log,
		tracer:     otel.Tracer("whatsjuju-chat/backend/service"),
		replies:    replies,
		latency:    latency,
	}
}

func conversationKey(id uint) string { return fmt.Sprintf("conversation:%d", id) }

// lockConversation takes the conversation's lock and checks, under it, that
// the user still owns the conversation.
func (s *ChatService) lockConversation(ctx context.Context, userID, conversationID uint) (func(), error) {
	unlock := s.locks.Lock(conversationKey(conversationID))
	if _, err := s.store.FindConversation(ctx, userID, conversationID); err != nil {
		unlock()
		return nil, appendError(err)
	}
	return unlock, nil
}

// appendError maps a store failure on a conversation write
func appendError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(MsgConversationNotFound)
	}
	return persistence(err)
}

// StartConversation returns the user's open conversation with the character,
// creating it with the welcome message on first contact.
func (s *ChatService) StartConversation(ctx context.Context, userID, characterID uint) (*StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "chat.start_conversation")
	defer span.End()

	character, err := s.characters.FindActive(ctx, characterID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(MsgCharacterNotFound)
	}
	if err != nil {
		return nil, persistence(err)
	}

	unlock := s.locks.Lock(fmt.Sprintf("start:%d:%d", userID, character.ID))
	defer unlock()

	welcome := models.NewMessage{
		SenderType: models.SenderCharacter,
		SenderID:   character.ID,
		Kind:       models.KindText,
		Content:    s.responder.Welcome(character.Slug),
	}
	conv, created, err := s.store.StartConversation(ctx, userID, character.ID, "Conversa com "+character.Name, welcome)
	if err != nil {
		return nil, persistence(err)
	}

	if created {
		s.log.WithContext(ctx).Info("conversation started",
			"conversation_id", conv.ID,
			"character", character.Slug,
		)
	}
	return &StartResult{Conversation: conv, Created: created}, nil
}

// owned loads the conversation and its character, hiding foreign conversations
func (s *ChatService) owned(ctx context.Context, userID, conversationID uint) (*models.Conversation, *models.Character, error) {
	conv, err := s.store.FindConversation(ctx, userID, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, notFound(MsgConversationNotFound)
	}
	if err != nil {
		return nil, nil, persistence(err)
	}

	character, err := s.characters.FindByID(ctx, conv.CharacterID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, notFound(MsgCharacterNotFound)
	}
	if err != nil {
		return nil, nil, persistence(err)
	}
	return conv, character, nil
}

// SendMessage stores a text message and the character's reply
func (s *ChatService) SendMessage(ctx context.Context, userID, conversationID uint, content string) (*SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(
		attribute.Int64("conversation.id", int64(conversationID)),
	))
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidInput(MsgEmptyContent)
	}

	conv, character, err := s.owned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	// Once the user message is stored the reply is finished even if the
	// client goes away.
	ctx = context.WithoutCancel(ctx)
	log := s.log.WithContext(ctx).With("conversation_id", conv.ID)

	unlock, err := s.lockConversation(ctx, userID, conv.ID)
	if err != nil {
		return nil, err
	}
	userMsg, err := s.store.AppendMessage(ctx, models.NewMessage{
		ConversationID: conv.ID,
		SenderType:     models.SenderUser,
		SenderID:       userID,
		Kind:           models.KindText,
		Content:        content,
	})
	if err != nil {
		unlock()
		return nil, appendError(err)
	}
	s.updateSummary(ctx, log, conv.ID, content, userMsg.CreatedAt)
	history := s.history(ctx, log, conv.ID, userMsg.ID)
	unlock()

	s.notify(userID, userMsg)

	started := time.Now()
	text, strategy, failed, err := s.chain.Reply(ctx, reply.Request{
		UserID:         userID,
		ConversationID: conv.ID,
		Character:      *character,
		Content:        content,
		History:        history,
	})
	s.recordAttempts(ctx, failed, strategy, err, time.Since(started))
	if err != nil {
		log.Warn("no reply strategy succeeded", "error", err.Error())
		return &SendResult{UserMessage: userMsg, State: DeliveredNoReply}, nil
	}

	replyMsg := s.storeReply(ctx, log, userID, conv.ID, character.ID, text)
	if replyMsg == nil {
		return &SendResult{UserMessage: userMsg, State: DeliveredNoReply}, nil
	}
	s.notify(userID, replyMsg)

	return &SendResult{UserMessage: userMsg, Reply: replyMsg, State: Delivered, Strategy: strategy}, nil
}

// MediaUpload is an inbound image or file
type MediaUpload struct {
	Kind    models.MessageKind
	Caption string
	File    storage.File
}

// UploadMedia stores the file, a media message and the character's reaction.
// The stored file is removed again if the message cannot be written.
func (s *ChatService) UploadMedia(ctx context.Context, userID, conversationID uint, upload MediaUpload) (*SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "chat.upload_media", trace.WithAttributes(
		attribute.Int64("conversation.id", int64(conversationID)),
		attribute.String("media.kind", string(upload.Kind)),
	))
	defer span.End()

	conv, character, err := s.owned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.uploader.Validate(upload.Kind, upload.File.MimeType, upload.File.Size); err != nil {
		return nil, uploadError(err)
	}

	meta, err := s.uploader.Store(ctx, upload.File, upload.Kind)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidUpload) {
			return nil, uploadError(err)
		}
		return nil, fmt.Errorf("store upload: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	log := s.log.WithContext(ctx).With("conversation_id", conv.ID)
	caption := strings.TrimSpace(upload.Caption)

	discard := func() {
		if rmErr := s.uploader.Remove(meta); rmErr != nil {
			log.LogError(rmErr, "orphaned upload not removed", "file_path", meta.FilePath)
		}
	}

	unlock, err := s.lockConversation(ctx, userID, conv.ID)
	if err != nil {
		discard()
		return nil, err
	}
	userMsg, err := s.store.AppendMessage(ctx, models.NewMessage{
		ConversationID: conv.ID,
		SenderType:     models.SenderUser,
		SenderID:       userID,
		Kind:           upload.Kind,
		Content:        caption,
		File:           &meta,
	})
	if err != nil {
		unlock()
		discard()
		return nil, appendError(err)
	}
	s.updateSummary(ctx, log, conv.ID, mediaSummary(upload.Kind, meta.FileName, caption), userMsg.CreatedAt)
	unlock()

	s.notify(userID, userMsg)

	started := time.Now()
	text := s.responder.MediaReaction(upload.Kind, character.Slug, caption)
	s.recordAttempts(ctx, nil, "reaction", nil, time.Since(started))

	replyMsg := s.storeReply(ctx, log, userID, conv.ID, character.ID, text)
	if replyMsg == nil {
		return &SendResult{UserMessage: userMsg, State: DeliveredNoReply}, nil
	}
	s.notify(userID, replyMsg)

	return &SendResult{UserMessage: userMsg, Reply: replyMsg, State: Delivered, Strategy: "reaction"}, nil
}

func uploadError(err error) error {
	msg := strings.TrimPrefix(err.Error(), storage.ErrInvalidUpload.Error()+": ")
	return invalidInput(msg)
}

func mediaSummary(kind models.MessageKind, fileName, caption string) string {
	summary := "📎 " + fileName
	if kind == models.KindImage {
		summary = "📷 Imagem"
	}
	if caption != "" {
		summary += ": " + caption
	}
	return summary
}

// storeReply appends the character message and refreshes the summary. It
// returns nil when the reply could not be stored, including when the
// conversation was deleted while the reply was produced.
func (s *ChatService) storeReply(ctx context.Context, log *logger.Logger, userID, conversationID, characterID uint, text string) *models.Message {
	unlock, err := s.lockConversation(ctx, userID, conversationID)
	if err != nil {
		log.Warn("character reply dropped", "error", err.Error())
		return nil
	}
	defer unlock()

	msg, err := s.store.AppendMessage(ctx, models.NewMessage{
		ConversationID: conversationID,
		SenderType:     models.SenderCharacter,
		SenderID:       characterID,
		Kind:           models.KindText,
		Content:        text,
	})
	if err != nil {
		log.LogError(err, "character reply not stored")
		return nil
	}
	s.updateSummary(ctx, log, conversationID, text, msg.CreatedAt)
	return msg
}

func (s *ChatService) updateSummary(ctx context.Context, log *logger.Logger, conversationID uint, text string, at time.Time) {
	if err := s.store.UpdateConversationSummary(ctx, conversationID, text, at); err != nil {
		log.Warn("conversation summary not updated", "error", err.Error())
	}
}

// history returns the messages before exclude, newest first
func (s *ChatService) history(ctx context.Context, log *logger.Logger, conversationID, exclude uint) []models.Message {
	recent, err := s.store.RecentMessages(ctx, conversationID, s.cfg.HistoryLimit+1)
	if err != nil {
		log.Warn("conversation history unavailable", "error", err.Error())
		return nil
	}

	history := make([]models.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID != exclude {
			history = append(history, m)
		}
	}
	if len(history) > s.cfg.HistoryLimit {
		history = history[:s.cfg.HistoryLimit]
	}
	return history
}

func (s *ChatService) notify(userID uint, msg *models.Message) {
	if s.notifier != nil {
		s.notifier.MessageCreated(userID, *msg)
	}
}

func (s *ChatService) recordAttempts(ctx context.Context, failed []reply.Outcome, strategy string, err error, elapsed time.Duration) {
	if s.replies != nil {
		for _, f := range failed {
			s.replies.Add(ctx, 1, metric.WithAttributes(
				attribute.String("strategy", f.Strategy),
				attribute.String("outcome", "unavailable"),
			))
		}
		if err == nil {
			s.replies.Add(ctx, 1, metric.WithAttributes(
				attribute.String("strategy", strategy),
				attribute.String("outcome", "success"),
			))
		}
	}
	if s.latency != nil {
		s.latency.Record(ctx, elapsed.Seconds())
	}
}
