package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uxurimx/uxuri-sub001/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, channelID uuid.UUID, senderID string, body string) (*models.Message, error) {
	query := `
		INSERT INTO messages (channel_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, channel_id, sender_id, body, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, channelID, senderID, body).Scan(
		&msg.ID,
		&msg.ChannelID,
		&msg.SenderID,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListByChannel pages backwards by id: before=0 is the first page, before=N
// returns messages older than N.
//
// The casts matter: without them Postgres types $2 from the literal 0 as
// int4, and a cursor past 2^31-1 fails to encode.
func (s *MessageStore) ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	query := `
		SELECT id, channel_id, sender_id, body, created_at
		FROM messages
		WHERE channel_id = $1 AND ($2::bigint = 0 OR id < $2::bigint)
		ORDER BY id DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, channelID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
