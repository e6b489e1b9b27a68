package chat

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/models"
)

// keySeparator never appears in a valid user identifier, so a DM key
// splits back into its parts unambiguously.
const (
	keySeparator = "|"
	agentPrefix  = "agent"
)

// DirectKey returns the order-independent key for a human-to-human DM:
// the two ids sorted and joined.
func DirectKey(userA, userB string) (string, error) {
	if err := validateUserID(userA); err != nil {
		return "", err
	}
	if err := validateUserID(userB); err != nil {
		return "", err
	}
	if userA == userB {
		return "", apperr.Validation("cannot open a direct message with yourself")
	}
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + keySeparator + userB, nil
}

// AgentKey returns the key for a human-to-agent DM. The agent always comes
// first, so the key is not order-normalized.
func AgentKey(agentID uuid.UUID, userID string) (string, error) {
	if agentID == uuid.Nil {
		return "", apperr.Validation("agent id is required")
	}
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	return agentPrefix + keySeparator + agentID.String() + keySeparator + userID, nil
}

// Participants returns the human user ids encoded in a DM key. Agent keys
// yield only the human.
func Participants(dmKey string) []string {
	parts := strings.Split(dmKey, keySeparator)
	switch {
	case len(parts) == 3 && parts[0] == agentPrefix:
		return []string{parts[2]}
	case len(parts) == 2:
		return parts
	default:
		return nil
	}
}

// CanParticipate reports whether userID may read and post in ch. A DM
// belongs to the users encoded in its key; entity-linked threads are open
// to anyone whose role reaches the channel routes.
func CanParticipate(ch *models.Channel, userID string) bool {
	if ch == nil || userID == "" {
		return false
	}
	if ch.DMKey == nil {
		return true
	}
	return slices.Contains(Participants(*ch.DMKey), userID)
}

func validateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("user id is required")
	}
	if strings.Contains(id, keySeparator) {
		return apperr.Validation("user id contains a reserved character")
	}
	return nil
}
