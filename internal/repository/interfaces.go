package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uxurimx/uxuri-sub001/internal/models"
)

// Read methods return nil, nil when the row does not exist. Callers decide
// whether absence is an error.

// ErrConflict is returned by create and upsert methods when a unique
// constraint rejects the write. Find-or-create callers treat it as "someone else won
// the race" and re-read by key.
var ErrConflict = errors.New("unique constraint conflict")

// ChannelRepository stores conversation threads.
type ChannelRepository interface {
	// Create inserts a channel. Returns ErrConflict when dm_key or entity_id
	// is already taken.
	Create(ctx context.Context, ch *models.Channel) (*models.Channel, error)

	GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error)

	GetByDMKey(ctx context.Context, dmKey string) (*models.Channel, error)

	GetByEntityID(ctx context.Context, entityID string) (*models.Channel, error)
}

// UserRepository reads the local mirror of identity-provider users.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// AgentRepository reads agents.
type AgentRepository interface {
	GetByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error)
}

// RoleRepository stores roles and resolves a user's effective role.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*models.Role, error)

	// GetDefault returns the role assigned to users without one.
	GetDefault(ctx context.Context) (*models.Role, error)

	List(ctx context.Context) ([]models.Role, error)

	// SetDefault marks name as the default role and clears the flag on
	// every other role. Returns nil, nil when the role does not exist.
	SetDefault(ctx context.Context, name string) (*models.Role, error)
}

// PushSubscriptionRepository stores web push registrations.
type PushSubscriptionRepository interface {
	// Upsert registers a device. Re-registering one's own endpoint
	// refreshes its keys; an endpoint owned by another user yields
	// ErrConflict and is not modified.
	Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error)

	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)

	// DeleteByEndpoint removes a registration. No-op if absent.
	DeleteByEndpoint(ctx context.Context, endpoint string) error

	// DeleteForUser removes a registration only if it belongs to userID.
	// Reports whether a row was removed.
	DeleteForUser(ctx context.Context, userID, endpoint string) (bool, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	Create(ctx context.Context, channelID uuid.UUID, senderID string, body string) (*models.Message, error)

	// ListByChannel returns messages newest first. before=0 means "from the
	// latest".
	ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error)
}
