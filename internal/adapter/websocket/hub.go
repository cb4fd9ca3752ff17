// Package websocket fans live chat messages out to the WebSocket connections
// of their participants.
package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/adapter/metrics"
	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxConnectionsPerUser = 5
	sendBufferSize        = 16
	writeWait             = 5 * time.Second
)

var (
	ErrTooManyConnections = errors.New("too many websocket connections")
	ErrHubStopped         = errors.New("hub stopped")
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	userID uuid.UUID
	conn   Conn
	errCh  chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	userID uuid.UUID
	conn   Conn
}

func (cmdUnregister) hubCmd() {}

type cmdDeliver struct {
	userIDs []uuid.UUID
	data    []byte
}

func (cmdDeliver) hubCmd() {}

type cmdCount struct {
	userID  uuid.UUID
	replyCh chan int
}

func (cmdCount) hubCmd() {}

type cmdStop struct{ done chan struct{} }

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Hub owns every live connection. All state lives in the run goroutine;
// the public methods only exchange commands with it.
type Hub struct {
	cmdCh    chan hubCmd
	clients  map[uuid.UUID]map[Conn]*clientWriter
	total    int
	maxTotal int
	metrics  *metrics.WebSocketMetrics
}

// NewHub starts a hub accepting at most maxTotal connections. m may be nil.
func NewHub(maxTotal int, m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:    make(chan hubCmd, 256),
		clients:  make(map[uuid.UUID]map[Conn]*clientWriter),
		maxTotal: maxTotal,
		metrics:  m,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			c.errCh <- h.handleRegister(c.userID, c.conn)
		case cmdUnregister:
			h.handleUnregister(c.userID, c.conn)
		case cmdDeliver:
			for _, id := range c.userIDs {
				h.handleDeliver(id, c.data)
			}
		case cmdCount:
			c.replyCh <- len(h.clients[c.userID])
		case cmdStop:
			h.handleStop()
			close(c.done)
			return
		}
	}
}

func (h *Hub) handleRegister(userID uuid.UUID, conn Conn) error {
	conns := h.clients[userID]
	if len(conns) >= maxConnectionsPerUser || (h.maxTotal > 0 && h.total >= h.maxTotal) {
		slog.Warn("Rejecting websocket connection", "user_id", userID, "user_connections", len(conns), "total", h.total)
		_ = conn.Close()
		return ErrTooManyConnections
	}

	if conns == nil {
		conns = make(map[Conn]*clientWriter)
		h.clients[userID] = conns
	}
	conns[conn] = newClientWriter(conn)
	h.total++
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	slog.Debug("Websocket client registered", "user_id", userID, "user_connections", len(conns))
	return nil
}

func (h *Hub) handleUnregister(userID uuid.UUID, conn Conn) {
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	cw, ok := conns[conn]
	if !ok {
		return
	}

	cw.stop()
	delete(conns, conn)
	h.total--
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	slog.Debug("Websocket client unregistered", "user_id", userID, "remaining", len(conns))
}

func (h *Hub) handleDeliver(userID uuid.UUID, data []byte) {
	var slow []Conn
	for conn, cw := range h.clients[userID] {
		select {
		case cw.sendCh <- data:
			if h.metrics != nil {
				h.metrics.MessagesDelivered.Inc()
			}
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow websocket client", "user_id", userID)
		if h.metrics != nil {
			h.metrics.DroppedMessages.Inc()
		}
		h.handleUnregister(userID, conn)
	}
}

func (h *Hub) handleStop() {
	for userID, conns := range h.clients {
		for conn, cw := range conns {
			cw.stop()
			delete(conns, conn)
			if h.metrics != nil {
				h.metrics.ActiveConnections.Dec()
			}
		}
		delete(h.clients, userID)
	}
	h.total = 0
}

// --- Public API ---

func (h *Hub) Register(userID uuid.UUID, conn Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{userID: userID, conn: conn, errCh: errCh}
	return <-errCh
}

func (h *Hub) Unregister(userID uuid.UUID, conn Conn) {
	h.cmdCh <- cmdUnregister{userID: userID, conn: conn}
}

type messageEvent struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

// Deliver pushes msg to every connection of its recipient and sender.
func (h *Hub) Deliver(msg domain.Message) {
	data, err := json.Marshal(messageEvent{Type: "message", Message: msg})
	if err != nil {
		slog.Error("Failed to marshal message event", "message_id", msg.ID, "error", err)
		return
	}
	h.cmdCh <- cmdDeliver{userIDs: []uuid.UUID{msg.RecipientID, msg.SenderID}, data: data}
}

func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdCount{userID: userID, replyCh: replyCh}
	return <-replyCh
}

// Stop closes every connection. The hub must not be used afterwards.
func (h *Hub) Stop() {
	done := make(chan struct{})
	h.cmdCh <- cmdStop{done: done}
	<-done
}
