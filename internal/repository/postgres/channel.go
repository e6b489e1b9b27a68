package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
)

const channelColumns = `id, name, entity_type, entity_id, agent_id, dm_key, created_by, created_at`

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// Create relies on the unique indexes on dm_key and entity_id. A losing
// concurrent insert surfaces as repository.ErrConflict, not a raw pg error.
func (s *ChannelStore) Create(ctx context.Context, ch *models.Channel) (*models.Channel, error) {
	query := `
		INSERT INTO channels (id, name, entity_type, entity_id, agent_id, dm_key, created_by, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now())
		RETURNING ` + channelColumns

	row := s.pool.QueryRow(ctx, query,
		ch.Name,
		string(ch.EntityType),
		ch.EntityID,
		ch.AgentID,
		ch.DMKey,
		ch.CreatedBy,
	)
	created, err := scanChannel(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return created, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	return s.getOne(ctx, "get channel", `SELECT `+channelColumns+` FROM channels WHERE id = $1`, channelID)
}

func (s *ChannelStore) GetByDMKey(ctx context.Context, dmKey string) (*models.Channel, error) {
	return s.getOne(ctx, "get channel by dm key", `SELECT `+channelColumns+` FROM channels WHERE dm_key = $1`, dmKey)
}

func (s *ChannelStore) GetByEntityID(ctx context.Context, entityID string) (*models.Channel, error) {
	return s.getOne(ctx, "get channel by entity", `SELECT `+channelColumns+` FROM channels WHERE entity_id = $1`, entityID)
}

func (s *ChannelStore) getOne(ctx context.Context, op, query string, arg any) (*models.Channel, error) {
	ch, err := scanChannel(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var (
		ch         models.Channel
		entityType string
	)
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&entityType,
		&ch.EntityID,
		&ch.AgentID,
		&ch.DMKey,
		&ch.CreatedBy,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	ch.EntityType = models.EntityType(entityType)
	return &ch, nil
}
