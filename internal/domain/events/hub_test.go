package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageshelf/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startServer(t *testing.T, hub *Hub, origins []string) string {
	t.Helper()
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(hub, origins, nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/images/events"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubDeliversImageCreated(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, []string{"http://localhost:3000"})

	a := dial(t, url, nil)
	b := dial(t, url, http.Header{"Origin": []string{"http://localhost:3000"}})
	require.Eventually(t, func() bool { return hub.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.PublishImageCreated(domain.ImageDescriptor{ID: "img-1", Filename: "1-abc.jpg", Width: 800, Height: 1200})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, TypeImageCreated, event.Type)
		require.NotNil(t, event.Image)
		assert.Equal(t, "img-1", event.Image.ID)
		assert.Equal(t, 1200, event.Image.Height)
	}
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, []string{"http://localhost:3000"})

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, nil)

	conn := dial(t, url, nil)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)

	// publishing with nobody listening is a no-op
	hub.PublishImageCreated(domain.ImageDescriptor{ID: "x"})
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, nil)

	conn := dial(t, url, nil)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
