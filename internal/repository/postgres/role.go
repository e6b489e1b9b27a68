package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uxurimx/uxuri-sub001/internal/models"
)

const roleColumns = `name, permissions, is_default, created_at`

type RoleStore struct {
	pool *pgxpool.Pool
}

func NewRoleStore(pool *pgxpool.Pool) *RoleStore {
	return &RoleStore{pool: pool}
}

func (s *RoleStore) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`
	role, err := scanRole(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (s *RoleStore) GetDefault(ctx context.Context) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE is_default LIMIT 1`
	role, err := scanRole(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get default role: %w", err)
	}
	return role, nil
}

func (s *RoleStore) List(ctx context.Context) ([]models.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// SetDefault runs both updates in one transaction so no reader ever sees
// two default roles. The partial unique index on is_default backs this up.
func (s *RoleStore) SetDefault(ctx context.Context, name string) (*models.Role, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin set default role: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE roles SET is_default = false WHERE is_default AND name <> $1`, name); err != nil {
		return nil, fmt.Errorf("clear default role: %w", err)
	}

	query := `UPDATE roles SET is_default = true WHERE name = $1 RETURNING ` + roleColumns
	role, err := scanRole(tx.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("set default role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit default role: %w", err)
	}
	return role, nil
}

func scanRole(row pgx.Row) (*models.Role, error) {
	var role models.Role
	if err := row.Scan(&role.Name, &role.Permissions, &role.IsDefault, &role.CreatedAt); err != nil {
		return nil, err
	}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	return &role, nil
}
