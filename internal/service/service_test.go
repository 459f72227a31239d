package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/reply"
	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/internal/storage"
	"whatsjuju-chat/backend/internal/testdb"
	"whatsjuju-chat/backend/pkg/logger"

	"github.com/stretchr/testify/require"
)

// fixture is a migrated database with the default characters and two users
type fixture struct {
	store      repository.ConversationStore
	characters *repository.GormCharacterRepository
	users      *repository.GormUserRepository
	settings   *repository.GormSettingRepository
	rules      *reply.RuleEngine
	uploader   *storage.LocalUploader
	locks      *KeyedMutex
	// lookup replaces characters for the chat service when set
	lookup     repository.CharacterRepository
	alice, bob uint
	goku       models.Character
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testdb.Open(t)

	f := &fixture{
		store:      repository.NewGormConversationStore(db),
		characters: repository.NewGormCharacterRepository(db),
		users:      repository.NewGormUserRepository(db),
		settings:   repository.NewGormSettingRepository(db),
		uploader:   storage.NewLocalUploader(t.TempDir(), 0),
		locks:      NewKeyedMutex(),
	}

	_, err := repository.SeedCharacters(ctx, f.characters, false)
	require.NoError(t, err)
	goku, err := f.characters.FindBySlug(ctx, "goku")
	require.NoError(t, err)
	f.goku = *goku

	for _, name := range []string{"alice", "bob"} {
		u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
		require.NoError(t, f.users.Create(ctx, u))
		if name == "alice" {
			f.alice = u.ID
		} else {
			f.bob = u.ID
		}
	}

	tables, err := reply.LoadDefaultTables()
	require.NoError(t, err)
	f.rules = reply.NewRuleEngine(tables, rand.New(rand.NewPCG(7, 7)))
	return f
}

func (f *fixture) chat(notifier Notifier, historyLimit int, strategies ...reply.Strategy) *ChatService {
	if len(strategies) == 0 {
		strategies = []reply.Strategy{f.rules}
	}
	var characters repository.CharacterRepository = f.characters
	if f.lookup != nil {
		characters = f.lookup
	}
	return NewChatService(f.store, characters, reply.NewChain(strategies...), f.rules,
		f.uploader, notifier, ChatConfig{HistoryLimit: historyLimit, Locks: f.locks}, logger.Discard())
}

func (f *fixture) conversations() *ConversationService {
	return NewConversationService(f.store, f.characters, f.uploader, f.locks, logger.Discard())
}

// recorder is a strategy that remembers requests and answers with text
type recorder struct {
	name string
	text string
	err  error

	mu       sync.Mutex
	requests []reply.Request
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Attempt(_ context.Context, req reply.Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.text, r.err
}

func (r *recorder) last() reply.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

type notifications struct {
	mu   sync.Mutex
	msgs map[uint][]models.Message
}

func (n *notifications) MessageCreated(userID uint, msg models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.msgs == nil {
		n.msgs = map[uint][]models.Message{}
	}
	n.msgs[userID] = append(n.msgs[userID], msg)
}

// failingStore fails AppendMessage after the first ok calls succeed
type failingStore struct {
	repository.ConversationStore
	ok    int
	calls int
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) AppendMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error) {
	s.calls++
	if s.calls > s.ok {
		return nil, errDiskFull
	}
	return s.ConversationStore.AppendMessage(ctx, msg)
}

// hookedCharacters runs beforeFind ahead of every FindByID, which the chat
// service calls after it has checked ownership of the conversation
type hookedCharacters struct {
	repository.CharacterRepository
	beforeFind func()
}

func (h *hookedCharacters) FindByID(ctx context.Context, id uint) (*models.Character, error) {
	if h.beforeFind != nil {
		h.beforeFind()
	}
	return h.CharacterRepository.FindByID(ctx, id)
}

// strategyFunc adapts a function to reply.Strategy
type strategyFunc func(ctx context.Context, req reply.Request) (string, error)

func (f strategyFunc) Name() string { return "func" }

func (f strategyFunc) Attempt(ctx context.Context, req reply.Request) (string, error) {
	return f(ctx, req)
}
