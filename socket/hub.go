// Package socket pushes document change events to a user's open websocket
// connections. Connections are grouped by user; events never cross users.
package socket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	CreatedType = "CREATED"
	UpdatedType = "UPDATED"
	DeletedType = "DELETED"
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Hub struct {
	rooms      map[string]map[*Client]bool
	broadcast  chan WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.UserID] == nil {
				h.rooms[client.UserID] = make(map[*Client]bool)
			}
			h.rooms[client.UserID][client] = true
			h.mu.Unlock()
			h.log.Debug("feed client connected", zap.String("user_id", client.UserID))

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("marshal feed event", zap.Error(err))
				continue
			}

			h.mu.Lock()
			clients := make([]*Client, 0, len(h.rooms[msg.UserID]))
			for client := range h.rooms[msg.UserID] {
				clients = append(clients, client)
			}
			h.mu.Unlock()

			for _, client := range clients {
				select {
				case client.send <- payload:
				default:
					h.log.Warn("feed client send buffer full, disconnecting", zap.String("user_id", client.UserID))
					h.remove(client)
				}
			}
		}
	}
}

// Publish queues msg for every connection of msg.UserID. It never blocks the
// caller: events published after shutdown, or while the queue is full, are
// dropped.
func (h *Hub) Publish(msg WSMessage) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("feed queue full, dropping event", zap.String("type", msg.Type), zap.String("document_id", msg.DocID))
	}
}

// Connections reports how many feed connections userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[userID])
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[client.UserID]
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.UserID)
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, room := range h.rooms {
		for client := range room {
			close(client.send)
		}
		delete(h.rooms, userID)
	}
	h.log.Info("feed hub stopped")
}
