package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, sender_id, recipient_id, body, read_at, created_at`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m domain.Message) (*domain.Message, error) {
	created, err := scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageColumns, m.ID, m.SenderID, m.RecipientID, m.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return created, nil
}

// ListConversation returns the latest limit messages between a and b, oldest first.
func (r *MessageRepo) ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE LEAST(sender_id, recipient_id) = LEAST($1::uuid, $2::uuid)
			  AND GREATEST(sender_id, recipient_id) = GREATEST($1::uuid, $2::uuid)
			ORDER BY created_at DESC
			LIMIT $3
		) latest
		ORDER BY created_at`, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MessageRepo) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET read_at = $3
		WHERE recipient_id = $1 AND sender_id = $2 AND read_at IS NULL`, recipientID, senderID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE recipient_id = $1 AND read_at IS NULL`, recipientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}
