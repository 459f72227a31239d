package ws

import (
	"context"
	"encoding/json"
	"sync"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/pkg/logger"
)

// EventMessageCreated announces a message stored in one of the user's conversations
const EventMessageCreated = "message.created"

// Event is pushed to every socket the user has open
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type delivery struct {
	userID uint
	data   []byte
}

// Hub fans events out to each user's open sockets
type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	mu         sync.RWMutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client registry until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			h.log.Debug("websocket client registered", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case d := <-h.deliver:
			h.mu.Lock()
			for client := range h.clients[d.userID] {
				select {
				case client.send <- d.data:
				default:
					h.log.Warn("websocket client removed due to blocked channel", "user_id", d.userID)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client; caller holds mu
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			h.remove(client)
		}
	}
}

// Publish queues ev for the user's sockets. It never blocks the caller; a
// full queue drops the event.
func (h *Hub) Publish(userID uint, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.LogError(err, "websocket event marshal failed", "type", ev.Type)
		return
	}

	select {
	case h.deliver <- delivery{userID: userID, data: data}:
	default:
		h.log.Warn("websocket delivery queue full, event dropped", "user_id", userID, "type", ev.Type)
	}
}

// Connections returns how many sockets the user has open
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// MessageCreated pushes a stored message to the owner's sockets
func (h *Hub) MessageCreated(userID uint, msg models.Message) {
	h.Publish(userID, Event{Type: EventMessageCreated, Payload: msg})
}
