// Package ws fans committed tree changes out to connected browsers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ARDEV04/Personal-file-manager/internal/logger"
	"github.com/rs/zerolog"
)

// Message types sent to clients.
const (
	EventFileCreated = "file_created"
	EventFileUpdated = "file_updated"
	EventFileDeleted = "file_deleted"
	EventPresence    = "presence_update"
)

var ErrHubStopped = errors.New("hub stopped")

type WsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type UserPresence struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Hub owns the set of connected clients. All of its state is touched only by Run.
type Hub struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		log:        logger.Component("ws"),
	}
}

// Publish queues a message for every connected client.
func (h *Hub) Publish(eventType string, payload any) error {
	msg, err := encode(eventType, payload)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Run serves registrations and broadcasts until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = struct{}{}
			h.log.Debug().Str("user", client.Username).Msg("client registered")
			h.broadcastPresence()

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Debug().Str("user", client.Username).Msg("client left")
				h.broadcastPresence()
			}

		case message := <-h.broadcast:
			h.send(message)

		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.log.Debug().Msg("hub stopped")
			return
		}
	}
}

// Stopped is closed once Run has returned.
func (h *Hub) Stopped() <-chan struct{} {
	return h.done
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

// send delivers message without blocking; clients that cannot keep up are dropped.
func (h *Hub) send(message []byte) {
	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			h.log.Warn().Str("user", client.Username).Msg("client too slow, dropping")
			h.drop(client)
		}
	}
}

func (h *Hub) broadcastPresence() {
	presence := []UserPresence{}
	for client := range h.clients {
		presence = append(presence, UserPresence{UserID: client.UserID, Username: client.Username})
	}
	message, err := encode(EventPresence, map[string]any{"users": presence})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode presence")
		return
	}
	h.send(message)
}

func encode(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(WsMessage{Type: eventType, Payload: data})
}
