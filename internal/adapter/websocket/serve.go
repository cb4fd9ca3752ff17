package websocket

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxInboundMessage = 512

// Server upgrades HTTP requests into message stream connections on a Hub.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, checkOrigin func(r *http.Request) bool) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve upgrades the request for userID and blocks until the client goes away.
// The stream is push only; anything the client sends is discarded.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	if err := s.hub.Register(userID, conn); err != nil {
		return err
	}
	defer s.hub.Unregister(userID, conn)

	conn.SetReadLimit(maxInboundMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Websocket read error", "user_id", userID, "error", err)
			}
			return nil
		}
	}
}
