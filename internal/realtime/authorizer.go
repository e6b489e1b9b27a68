package realtime

import (
	"regexp"

	"github.com/uxurimx/uxuri-sub001/internal/apperr"
)

// socketIDPattern matches the "<digits>.<digits>" ids the hub hands out.
var socketIDPattern = regexp.MustCompile(`^\d+\.\d+$`)

// Signer produces the grant a client presents to the hub when it
// subscribes.
type Signer interface {
	Sign(userID, socketID, channel string) (string, error)
}

type Authorizer struct {
	signer Signer
}

func NewAuthorizer(signer Signer) *Authorizer {
	return &Authorizer{signer: signer}
}

// Authorize decides whether callerID may subscribe socketID to channel and
// returns a signed grant if so.
//
// Order matters: identity, then input shape, then ownership, and only then
// signing. Channels outside the per-user namespace are open to any
// authenticated caller.
func (a *Authorizer) Authorize(callerID, socketID, channel string) (string, error) {
	if callerID == "" {
		return "", apperr.Unauthenticated("authentication required")
	}
	if !socketIDPattern.MatchString(socketID) {
		return "", apperr.Validation("invalid socket id")
	}
	if channel == "" {
		return "", apperr.Validation("channel name is required")
	}

	if owner, ok := ChannelOwner(channel); ok && owner != callerID {
		return "", apperr.Forbidden("cannot subscribe to another user's channel")
	}

	grant, err := a.signer.Sign(callerID, socketID, channel)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "sign subscription grant", err)
	}
	return grant, nil
}
