package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHub starts a hub behind an httptest server. The user id is taken from
// the "user" query parameter.
func testHub(t *testing.T, maxTotal int) (*Hub, *metrics.WebSocketMetrics, func(userID uuid.UUID) *ws.Conn) {
	t.Helper()

	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	hub := NewHub(maxTotal, m)
	t.Cleanup(hub.Stop)

	srv := NewServer(hub, func(*http.Request) bool { return true })
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := uuid.MustParse(r.URL.Query().Get("user"))
		_ = srv.Serve(w, r, userID)
	}))
	t.Cleanup(server.Close)

	dial := func(userID uuid.UUID) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=" + userID.String()
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	return hub, m, dial
}

func waitForConnections(t *testing.T, hub *Hub, userID uuid.UUID, expected int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userID) == expected
	}, time.Second, time.Millisecond)
}

func readEvent(t *testing.T, conn *ws.Conn) messageEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt messageEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestHub_DeliverToRecipientAndSender(t *testing.T) {
	hub, m, dial := testHub(t, 0)
	senior, specialist := uuid.New(), uuid.New()

	seniorConn := dial(senior)
	specialistConn := dial(specialist)
	waitForConnections(t, hub, senior, 1)
	waitForConnections(t, hub, specialist, 1)

	msg := domain.Message{ID: uuid.New(), SenderID: senior, RecipientID: specialist, Body: "My printer is offline"}
	hub.Deliver(msg)

	for _, conn := range []*ws.Conn{seniorConn, specialistConn} {
		evt := readEvent(t, conn)
		assert.Equal(t, "message", evt.Type)
		assert.Equal(t, msg.ID, evt.Message.ID)
		assert.Equal(t, "My printer is offline", evt.Message.Body)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.MessagesDelivered))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActiveConnections))
}

func TestHub_MultipleTabs(t *testing.T) {
	hub, _, dial := testHub(t, 0)
	user := uuid.New()

	conn1 := dial(user)
	conn2 := dial(user)
	waitForConnections(t, hub, user, 2)

	hub.Deliver(domain.Message{ID: uuid.New(), SenderID: uuid.New(), RecipientID: user, Body: "hi"})

	assert.Equal(t, "hi", readEvent(t, conn1).Message.Body)
	assert.Equal(t, "hi", readEvent(t, conn2).Message.Body)
}

func TestHub_PerUserLimit(t *testing.T) {
	hub, _, dial := testHub(t, 0)
	user := uuid.New()

	for range maxConnectionsPerUser {
		dial(user)
	}
	waitForConnections(t, hub, user, maxConnectionsPerUser)

	extra := dial(user)
	_ = extra.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := extra.ReadMessage()
	assert.Error(t, err, "rejected connection is closed by the server")
	assert.Equal(t, maxConnectionsPerUser, hub.ConnectionCount(user))
}

func TestHub_GlobalLimit(t *testing.T) {
	hub, _, dial := testHub(t, 1)
	first, second := uuid.New(), uuid.New()

	dial(first)
	waitForConnections(t, hub, first, 1)

	dial(second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, hub.ConnectionCount(second))
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, m, dial := testHub(t, 0)
	user := uuid.New()

	conn := dial(user)
	waitForConnections(t, hub, user, 1)

	require.NoError(t, conn.Close())
	waitForConnections(t, hub, user, 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveConnections))
}

type blockingConn struct {
	mu      sync.Mutex
	closed  bool
	release chan struct{}
}

func (c *blockingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *blockingConn) WriteMessage(int, []byte) error {
	<-c.release
	return nil
}

func (c *blockingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *blockingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_DropsSlowClient(t *testing.T) {
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	hub := NewHub(0, m)
	t.Cleanup(hub.Stop)

	user := uuid.New()
	conn := &blockingConn{release: make(chan struct{})}
	t.Cleanup(func() { close(conn.release) })
	require.NoError(t, hub.Register(user, conn))

	// One message is held by the writer, the rest fill the buffer.
	for range sendBufferSize + 2 {
		hub.Deliver(domain.Message{ID: uuid.New(), SenderID: uuid.New(), RecipientID: user})
	}

	waitForConnections(t, hub, user, 0)
	assert.True(t, conn.isClosed())
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.DroppedMessages), float64(1))
}
