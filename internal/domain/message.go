package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type MessageRepository interface {
	Create(ctx context.Context, m Message) (*Message, error)
	ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]Message, error)
	MarkRead(ctx context.Context, recipientID, senderID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
}

// MessagePublisher fans new messages out to live connections on every instance.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, m Message) error
}
