package alert

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	client := NewClient("a", 1)

	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-client.Send
	assert.False(t, open)
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b := NewClient("a", 4), NewClient("b", 4)
	hub.Register(a)
	hub.Register(b)

	delivered := hub.Broadcast(EventNeedsHelp, map[string]interface{}{"candidates": []string{"482913"}})
	assert.Equal(t, 2, delivered)

	for _, c := range []*Client{a, b} {
		var event Event
		require.NoError(t, json.Unmarshal(<-c.Send, &event))
		assert.Equal(t, EventNeedsHelp, event.Event)
		assert.JSONEq(t, `{"candidates":["482913"]}`, string(event.Data))
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestHub_BroadcastSkipsFullBuffers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow, fast := NewClient("slow", 1), NewClient("fast", 4)
	hub.Register(slow)
	hub.Register(fast)

	assert.Equal(t, 2, hub.Broadcast(EventRedLight, nil))
	assert.Equal(t, 1, hub.Broadcast(EventRedLight, nil))

	assert.Len(t, slow.Send, 1)
	assert.Len(t, fast.Send, 2)
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.Equal(t, 0, hub.Broadcast(EventRedLight, nil))
}

func TestHandler_RelaysClientRedLight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop())
	router := gin.New()
	NewHandler(hub, nil, 8, zap.NewNop()).RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	sender, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer sender.Close()
	viewer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer viewer.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"event":"ignored"}`)))
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"event":"red-light-detected","data":{"regNumber":"482913"}}`)))

	for _, conn := range []*websocket.Conn{viewer, sender} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventRedLight, event.Event)
		assert.Empty(t, event.Data)
	}
}

func TestHandler_RejectsUnknownOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop())
	router := gin.New()
	NewHandler(hub, []string{"http://localhost:5173"}, 8, zap.NewNop()).RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}
