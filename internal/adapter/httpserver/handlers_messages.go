package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type sendMessageRequest struct {
	Body string `json:"body" form:"body"`
}

func (s *Server) handleUnreadCount(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	count, err := s.messaging.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return apperrors.InternalError("failed to count unread messages", err)
	}
	return writeJSON(c, http.StatusOK, map[string]int{"unread": count})
}

func (s *Server) handleConversation(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	otherID, err := idParam(c, "userID")
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return apperrors.ValidationError("invalid limit").WithField("limit", raw)
		}
	}

	msgs, err := s.messaging.Conversation(c.Request().Context(), userID, otherID, limit)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return writeJSON(c, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	recipientID, err := idParam(c, "userID")
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := bindRequest(c, &req); err != nil {
		return err
	}

	msg, err := s.messaging.Send(c.Request().Context(), userID, recipientID, req.Body)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	otherID, err := idParam(c, "userID")
	if err != nil {
		return err
	}

	n, err := s.messaging.MarkRead(c.Request().Context(), userID, otherID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]int64{"marked_read": n})
}

// handleMessageStream upgrades to a websocket that receives every message
// addressed to the caller while the connection is open.
func (s *Server) handleMessageStream(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	if err := s.stream.Serve(c.Response(), c.Request(), userID); err != nil {
		// The upgrader has already answered the client.
		slog.WarnContext(c.Request().Context(), "Message stream closed with error", "error", err)
	}
	return nil
}
