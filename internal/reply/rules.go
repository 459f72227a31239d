package reply

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"whatsjuju-chat/backend/internal/models"
)

// RuleEngine answers from the keyword tables. Only the pick from a pool is
// random and the source is injectable.
type RuleEngine struct {
	tables *Tables

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRuleEngine creates an engine over tables. A nil rng seeds one from the clock.
func NewRuleEngine(tables *Tables, rng *rand.Rand) *RuleEngine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &RuleEngine{tables: tables, rng: rng}
}

func (e *RuleEngine) Name() string { return "rules" }

// Attempt never fails
func (e *RuleEngine) Attempt(_ context.Context, req Request) (string, error) {
	return e.Reply(req.Content, req.Character.Slug), nil
}

// Reply picks the first keyword found in text, else a generic line
func (e *RuleEngine) Reply(text, slug string) string {
	lower := strings.ToLower(text)
	for _, rule := range e.tables.Keywords {
		if strings.Contains(lower, rule.Keyword) {
			return textFor(rule.Replies, slug)
		}
	}
	return e.pick(poolFor(e.tables.Generic, slug))
}

// Welcome returns the greeting that opens a conversation
func (e *RuleEngine) Welcome(slug string) string {
	return textFor(e.tables.Welcome, slug)
}

// MediaReaction answers an uploaded image or file. A caption adds the
// character's remark about it after a space.
func (e *RuleEngine) MediaReaction(kind models.MessageKind, slug, caption string) string {
	pools := e.tables.Reactions.File
	if kind == models.KindImage {
		pools = e.tables.Reactions.Image
	}

	reaction := e.pick(poolFor(pools, slug))
	if strings.TrimSpace(caption) != "" {
		reaction += " " + textFor(e.tables.CaptionAddendum, slug)
	}
	return reaction
}

func (e *RuleEngine) pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	e.mu.Lock()
	i := e.rng.IntN(len(pool))
	e.mu.Unlock()
	return pool[i]
}
