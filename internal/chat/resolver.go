// Package chat resolves the canonical channel for a conversation.
//
// Find-or-create never takes an application lock. The unique index on
// dm_key is the serialization point: the insert that loses a race gets
// repository.ErrConflict and re-reads the row that won.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

const fallbackUserName = "User"

type Resolver struct {
	channels repository.ChannelRepository
	users    repository.UserRepository
	agents   repository.AgentRepository
	logger   *zap.Logger
}

func NewResolver(
	channels repository.ChannelRepository,
	users repository.UserRepository,
	agents repository.AgentRepository,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		channels: channels,
		users:    users,
		agents:   agents,
		logger:   logger,
	}
}

// ResolveDirect returns the DM channel between userA and userB, creating it
// on first use. Argument order does not matter.
func (r *Resolver) ResolveDirect(ctx context.Context, userA, userB string) (*models.Channel, error) {
	key, err := DirectKey(userA, userB)
	if err != nil {
		return nil, err
	}

	existing, err := r.channels.GetByDMKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup direct channel: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	nameA, err := r.displayName(ctx, userA)
	if err != nil {
		return nil, err
	}
	nameB, err := r.displayName(ctx, userB)
	if err != nil {
		return nil, err
	}

	return r.findOrCreate(ctx, &models.Channel{
		Name:       nameA + " & " + nameB,
		EntityType: models.EntityDirect,
		DMKey:      &key,
		CreatedBy:  userA,
	})
}

// ResolveAgentDM returns the DM thread between userID and an active agent.
// A missing or inactive agent is NotFound and nothing is created.
func (r *Resolver) ResolveAgentDM(ctx context.Context, agentID uuid.UUID, userID string) (*models.Channel, error) {
	key, err := AgentKey(agentID, userID)
	if err != nil {
		return nil, err
	}

	agent, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("lookup agent: %w", err)
	}
	if agent == nil || !agent.IsActive {
		return nil, apperr.NotFound("agent not found")
	}

	existing, err := r.channels.GetByDMKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup agent channel: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	id := agent.ID
	return r.findOrCreate(ctx, &models.Channel{
		Name:       agent.Name,
		EntityType: models.EntityAgentDM,
		AgentID:    &id,
		DMKey:      &key,
		CreatedBy:  userID,
	})
}

// ResolveByEntity looks up the thread attached to a business entity. It
// never creates one; the action that first references the entity does.
func (r *Resolver) ResolveByEntity(ctx context.Context, entityID string) (*models.Channel, error) {
	if entityID == "" {
		return nil, apperr.Validation("entity id is required")
	}
	ch, err := r.channels.GetByEntityID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("lookup entity channel: %w", err)
	}
	return ch, nil
}

func (r *Resolver) findOrCreate(ctx context.Context, ch *models.Channel) (*models.Channel, error) {
	created, err := r.channels.Create(ctx, ch)
	if err == nil {
		r.logger.Info("channel created",
			zap.String("channel_id", created.ID.String()),
			zap.String("entity_type", string(created.EntityType)),
		)
		return created, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	// Lost the race; the winner's row is committed.
	winner, err := r.channels.GetByDMKey(ctx, *ch.DMKey)
	if err != nil {
		return nil, fmt.Errorf("reread channel after conflict: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("channel %q conflicted but is not readable", *ch.DMKey)
	}
	r.logger.Debug("channel create lost race", zap.String("dm_key", *ch.DMKey))
	return winner, nil
}

func (r *Resolver) displayName(ctx context.Context, userID string) (string, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if u == nil || u.DisplayName == "" {
		return fallbackUserName, nil
	}
	return u.DisplayName, nil
}
