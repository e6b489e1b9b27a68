package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
)

type PushSubscriptionStore struct {
	pool *pgxpool.Pool
}

func NewPushSubscriptionStore(pool *pgxpool.Pool) *PushSubscriptionStore {
	return &PushSubscriptionStore{pool: pool}
}

// Upsert keys on endpoint. Re-registering one's own endpoint refreshes its
// keys; an endpoint already owned by another user is left untouched and
// reported as repository.ErrConflict.
//
// Why not just take it over? Endpoints travel in client payloads and logs,
// so knowing one must not be enough to redirect someone's notifications.
// The owner unregisters on sign-out, which frees the endpoint.
func (s *PushSubscriptionStore) Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, auth, p256dh, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, now())
		ON CONFLICT (endpoint) DO UPDATE
		SET auth = EXCLUDED.auth, p256dh = EXCLUDED.p256dh
		WHERE push_subscriptions.user_id = EXCLUDED.user_id
		RETURNING id, user_id, endpoint, auth, p256dh, created_at`

	var out models.PushSubscription
	err := s.pool.QueryRow(ctx, query, sub.UserID, sub.Endpoint, sub.Auth, sub.P256dh).Scan(
		&out.ID,
		&out.UserID,
		&out.Endpoint,
		&out.Auth,
		&out.P256dh,
		&out.CreatedAt,
	)
	if err != nil {
		// The conflict branch's WHERE filtered the row out: someone else
		// owns this endpoint.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}
	return &out, nil
}

func (s *PushSubscriptionStore) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, auth, p256dh, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]models.PushSubscription, 0)
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.Auth, &sub.P256dh, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscriptions: %w", err)
	}
	return subs, nil
}

func (s *PushSubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushSubscriptionStore) DeleteForUser(ctx context.Context, userID, endpoint string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1 AND user_id = $2`, endpoint, userID)
	if err != nil {
		return false, fmt.Errorf("delete user push subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
