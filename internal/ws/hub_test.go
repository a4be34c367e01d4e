package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) WsMessage {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg WsMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return WsMessage{}
	}
}

func TestHubPublishesToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	alice := &Client{Hub: hub, Send: make(chan []byte, 8), UserID: "1", Username: "alice"}
	hub.Register <- alice
	msg := receive(t, alice)
	assert.Equal(t, EventPresence, msg.Type)

	require.NoError(t, hub.Publish(EventFileCreated, map[string]string{"name": "a.txt"}))
	msg = receive(t, alice)
	assert.Equal(t, EventFileCreated, msg.Type)
	assert.JSONEq(t, `{"name":"a.txt"}`, string(msg.Payload))

	hub.Unregister <- alice
	_, ok := <-alice.Send
	assert.False(t, ok, "unregistered client's channel is closed")

	cancel()
	<-hub.Stopped()
	assert.ErrorIs(t, hub.Publish(EventFileDeleted, nil), ErrHubStopped)
}

func TestHubDropsSlowClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	// Nobody reads slow.Send, so the presence broadcast for its own registration
	// cannot be delivered.
	slow := &Client{Hub: hub, Send: make(chan []byte), UserID: "2", Username: "slow"}
	hub.Register <- slow
	watcher := &Client{Hub: hub, Send: make(chan []byte, 8), UserID: "3", Username: "watcher"}
	hub.Register <- watcher

	msg := receive(t, watcher)
	require.Equal(t, EventPresence, msg.Type)
	var presence struct {
		Users []UserPresence `json:"users"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &presence))
	assert.Equal(t, []UserPresence{{UserID: "3", Username: "watcher"}}, presence.Users)

	_, ok := <-slow.Send
	assert.False(t, ok, "slow client's channel is closed")
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	hub := NewHub()
	err := hub.Publish(EventFileCreated, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EventFileCreated)
}

func TestEncode(t *testing.T) {
	data, err := encode(EventPresence, map[string]any{"users": []UserPresence{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"presence_update","payload":{"users":[]}}`, string(data))
}
