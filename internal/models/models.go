package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType tags what a channel is attached to.
type EntityType string

const (
	EntityDirect  EntityType = "direct"
	EntityAgentDM EntityType = "agent-dm"
	EntityTask    EntityType = "task"
	EntityProject EntityType = "project"
)

// Role is a named set of path permissions. Permissions are evaluated in
// order by policy.CanAccess.
//
// At most one role is the default; the role store clears the flag on every
// other row when one is set.
type Role struct {
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// User mirrors what the identity provider knows about a person. IDs are the
// provider's opaque identifiers, not UUIDs we generate.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	RoleName    *string   `json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Agent is an automated participant a user can open a DM thread with.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is one conversation thread.
//
// DMKey is set for direct and agent-dm channels and is unique when present.
// EntityID is set for entity-linked threads; at most one channel exists per
// entity.
type Channel struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	EntityType EntityType `json:"entity_type"`
	EntityID   *string    `json:"entity_id,omitempty"`
	AgentID    *uuid.UUID `json:"agent_id,omitempty"`
	DMKey      *string    `json:"dm_key,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PushSubscription is one registered web push device.
type PushSubscription struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	Auth      string    `json:"-"`
	P256dh    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single chat message in a channel.
//
// bigserial ID: higher is newer, which the list endpoint uses as a cursor.
type Message struct {
	ID        int64     `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
