package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsjuju-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesOnlyTheUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.Discard())
	go hub.Run(ctx)

	upgrader := Upgrader(nil)
	r := gin.New()
	r.GET("/ws/:user", func(c *gin.Context) {
		var id uint = 1
		if c.Param("user") == "2" {
			id = 2
		}
		hub.Serve(c, &upgrader, id)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	alice, _, err := websocket.DefaultDialer.Dial(base+"/ws/1", nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := websocket.DefaultDialer.Dial(base+"/ws/2", nil)
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.Connections(1) == 1 && hub.Connections(2) == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(1, Event{Type: EventMessageCreated, Payload: map[string]any{"content": "oi"}})

	alice.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, EventMessageCreated, ev.Type)
	assert.Equal(t, "oi", ev.Payload["content"])

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestUpgraderOrigins(t *testing.T) {
	u := Upgrader([]string{"https://whatsjuju.app"})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, u.CheckOrigin(req))

	req.Header.Set("Origin", "https://whatsjuju.app")
	assert.True(t, u.CheckOrigin(req))
}
