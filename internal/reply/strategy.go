package reply

import (
	"context"
	"errors"

	"whatsjuju-chat/backend/internal/models"
)

// ErrUnavailable means a strategy could not produce a reply and the next
// one should be tried. It never reaches the client.
var ErrUnavailable = errors.New("reply strategy unavailable")

// Request is what a strategy needs to answer one user message
type Request struct {
	UserID         uint
	ConversationID uint
	Character      models.Character
	Content        string
	// History holds the most recent messages before Content, newest first
	History []models.Message
}

// Strategy produces a character reply
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (string, error)
}

// Outcome records one strategy attempt made by a Chain
type Outcome struct {
	Strategy string
	Err      error
}

// Chain tries strategies in order and returns the first reply
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain. The last strategy should never fail.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Reply returns the first successful reply, the name of the strategy that
// produced it and the failed attempts before it.
func (c *Chain) Reply(ctx context.Context, req Request) (string, string, []Outcome, error) {
	var failed []Outcome
	for _, s := range c.strategies {
		text, err := s.Attempt(ctx, req)
		if err == nil && text != "" {
			return text, s.Name(), failed, nil
		}
		if err == nil {
			err = ErrUnavailable
		}
		failed = append(failed, Outcome{Strategy: s.Name(), Err: err})
	}
	return "", "", failed, ErrUnavailable
}
