package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/reply"
	"whatsjuju-chat/backend/pkg/logger"
	"whatsjuju-chat/backend/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKeys struct {
	key string
	err error
}

func (s staticKeys) GetSetting(context.Context, string) (string, error) { return s.key, s.err }

var goku = models.Character{ID: 1, Name: "Goku", Slug: "goku", Personality: "Alegre e animado."}

func request(history ...models.Message) reply.Request {
	return reply.Request{ConversationID: 9, Character: goku, Content: "oi", History: history}
}

func TestAttemptSendsPromptAndTrimsReply(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Olá, vamos treinar!  "}}]}`))
	}))
	defer srv.Close()

	c := NewCompletionClient(Config{BaseURL: srv.URL}, staticKeys{key: "sk-test"}, nil, logger.Discard())

	history := []models.Message{
		{SenderType: models.SenderCharacter, Content: "segunda"},
		{SenderType: models.SenderUser, Content: "primeira"},
	}
	text, err := c.Attempt(context.Background(), request(history...))
	require.NoError(t, err)
	assert.Equal(t, "Olá, vamos treinar!", text)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, 0.8, got.Temperature)
	assert.Equal(t, 300, got.MaxTokens)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Você é Goku. Sua personalidade: Alegre e animado.")
	assert.Equal(t, chatMessage{Role: "user", Content: "primeira"}, got.Messages[1])
	assert.Equal(t, chatMessage{Role: "assistant", Content: "segunda"}, got.Messages[2])
	assert.Equal(t, chatMessage{Role: "user", Content: "oi"}, got.Messages[3])
}

func TestAttemptUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		keys    staticKeys
		timeout time.Duration
		delay   time.Duration
	}{
		{name: "no key", keys: staticKeys{}},
		{name: "key lookup error", keys: staticKeys{err: errors.New("db down")}},
		{name: "server error", status: http.StatusInternalServerError, body: `{"choices":[{"message":{"content":"x"}}]}`, keys: staticKeys{key: "k"}},
		{name: "missing content", status: http.StatusOK, body: `{"choices":[{"message":{}}]}`, keys: staticKeys{key: "k"}},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, keys: staticKeys{key: "k"}},
		{name: "not json", status: http.StatusOK, body: `<html>`, keys: staticKeys{key: "k"}},
		{name: "timeout", status: http.StatusOK, body: `{}`, keys: staticKeys{key: "k"}, timeout: 20 * time.Millisecond, delay: 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.delay > 0 {
					time.Sleep(tt.delay)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewCompletionClient(Config{BaseURL: srv.URL, Timeout: tt.timeout}, tt.keys, nil, logger.Discard())
			text, err := c.Attempt(context.Background(), request())
			assert.ErrorIs(t, err, reply.ErrUnavailable)
			assert.Empty(t, text)
		})
	}
}

func TestAcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewCompletionClient(Config{BaseURL: srv.URL}, staticKeys{key: "k"}, nil, logger.Discard())
	text, err := c.Attempt(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestBreakerStopsCallingAfterFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "completion",
		FailureThreshold: 2,
		Cooldown:         time.Hour,
	}, logger.Discard())
	c := NewCompletionClient(Config{BaseURL: srv.URL}, staticKeys{key: "k"}, breaker, logger.Discard())

	for i := 0; i < 4; i++ {
		_, err := c.Attempt(context.Background(), request())
		assert.ErrorIs(t, err, reply.ErrUnavailable)
	}
	assert.Equal(t, 2, calls)

	_, err := c.Attempt(context.Background(), request())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestBuildPromptCapsHistory(t *testing.T) {
	history := make([]models.Message, 15)
	for i := range history {
		history[i] = models.Message{SenderType: models.SenderUser, Content: "m"}
	}
	history[0].Content = "newest"

	msgs := buildPrompt(goku, history, "agora", 10)
	require.Len(t, msgs, 12)
	assert.Equal(t, "newest", msgs[10].Content)
	assert.Equal(t, "agora", msgs[11].Content)
}
