package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uxurimx/uxuri-sub001/internal/models"
)

type AgentStore struct {
	pool *pgxpool.Pool
}

func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

func (s *AgentStore) GetByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM agents
		WHERE id = $1`

	var a models.Agent
	err := s.pool.QueryRow(ctx, query, agentID).Scan(
		&a.ID,
		&a.Name,
		&a.IsActive,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}
