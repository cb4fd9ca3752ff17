package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	apperrors "github.com/Abdulah-eng/newhitsapp-sub002/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	maxMessageLength         = 2000
	defaultConversationLimit = 50
	maxConversationLimit     = 200
)

// MessagingService lets appointment participants talk to each other. Admins
// may message anyone.
type MessagingService struct {
	messages     domain.MessageRepository
	appointments domain.AppointmentRepository
	roles        domain.RoleSource
	publisher    domain.MessagePublisher
	clock        clockwork.Clock
}

func NewMessagingService(messages domain.MessageRepository, appointments domain.AppointmentRepository, roles domain.RoleSource, publisher domain.MessagePublisher, clock clockwork.Clock) *MessagingService {
	return &MessagingService{messages: messages, appointments: appointments, roles: roles, publisher: publisher, clock: clock}
}

func (s *MessagingService) Send(ctx context.Context, senderID, recipientID uuid.UUID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	switch {
	case body == "":
		return nil, apperrors.ValidationError("message is empty")
	case len(body) > maxMessageLength:
		return nil, apperrors.ValidationError("message is too long").WithField("max_length", maxMessageLength)
	case senderID == recipientID:
		return nil, apperrors.ValidationError("cannot message yourself")
	}

	if err := s.authorize(ctx, senderID, recipientID); err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, domain.Message{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMessage(ctx, *msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish message", "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// Conversation returns up to limit messages between userID and otherID,
// oldest first.
func (s *MessagingService) Conversation(ctx context.Context, userID, otherID uuid.UUID, limit int) ([]domain.Message, error) {
	if err := s.authorize(ctx, userID, otherID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	limit = min(limit, maxConversationLimit)
	return s.messages.ListConversation(ctx, userID, otherID, limit)
}

// MarkRead marks everything otherID sent to userID as read.
func (s *MessagingService) MarkRead(ctx context.Context, userID, otherID uuid.UUID) (int64, error) {
	return s.messages.MarkRead(ctx, userID, otherID, s.clock.Now())
}

func (s *MessagingService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.messages.CountUnread(ctx, userID)
}

func (s *MessagingService) authorize(ctx context.Context, a, b uuid.UUID) error {
	for _, id := range []uuid.UUID{a, b} {
		role, err := s.roles.LookupRole(ctx, id)
		if err != nil {
			return err
		}
		if role == domain.RoleAdmin {
			return nil
		}
	}

	shared, err := s.appointments.SharesAppointment(ctx, a, b)
	if err != nil {
		return err
	}
	if !shared {
		return domain.ErrNotParticipant
	}
	return nil
}
