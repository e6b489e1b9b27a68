package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
)

type countingSigner struct {
	calls int
	err   error
}

func (s *countingSigner) Sign(userID, socketID, channel string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "grant:" + userID + ":" + socketID + ":" + channel, nil
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name     string
		caller   string
		socketID string
		channel  string
		kind     apperr.Kind
	}{
		{name: "own channel", caller: "user_a", socketID: "12.34", channel: "private-user-user_a"},
		{name: "shared channel", caller: "user_a", socketID: "12.34", channel: "presence-project-9"},
		{name: "other user", caller: "user_a", socketID: "12.34", channel: "private-user-user_b", kind: apperr.KindForbidden},
		{name: "prefix of other user", caller: "user_a", socketID: "12.34", channel: "private-user-user_ab", kind: apperr.KindForbidden},
		{name: "unauthenticated", caller: "", socketID: "12.34", channel: "private-user-user_a", kind: apperr.KindUnauthenticated},
		{name: "unauthenticated beats bad input", caller: "", socketID: "bogus", channel: "", kind: apperr.KindUnauthenticated},
		{name: "bad socket id", caller: "user_a", socketID: "abc", channel: "private-user-user_a", kind: apperr.KindValidationFailed},
		{name: "empty channel", caller: "user_a", socketID: "1.2", channel: "", kind: apperr.KindValidationFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signer := &countingSigner{}
			grant, err := NewAuthorizer(signer).Authorize(tc.caller, tc.socketID, tc.channel)

			if tc.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, "grant:"+tc.caller+":"+tc.socketID+":"+tc.channel, grant)
				assert.Equal(t, 1, signer.calls)
				return
			}
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Empty(t, grant)
			assert.Zero(t, signer.calls, "signer must not run for rejected requests")
		})
	}
}

func TestAuthorizeSignerFailure(t *testing.T) {
	signer := &countingSigner{err: errors.New("hsm offline")}
	_, err := NewAuthorizer(signer).Authorize("user_a", "1.2", "private-user-user_a")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestGrantSignerRoundTrip(t *testing.T) {
	signer := NewGrantSigner("grant-secret", time.Minute)

	grant, err := signer.Sign("user_a", "1.2", "private-user-user_a")
	require.NoError(t, err)

	user, err := signer.Verify(grant, "1.2", "private-user-user_a")
	require.NoError(t, err)
	assert.Equal(t, "user_a", user)

	_, err = signer.Verify(grant, "1.3", "private-user-user_a")
	assert.ErrorIs(t, err, ErrGrantMismatch)

	_, err = signer.Verify(grant, "1.2", "private-user-user_b")
	assert.ErrorIs(t, err, ErrGrantMismatch)

	_, err = NewGrantSigner("other-secret", time.Minute).Verify(grant, "1.2", "private-user-user_a")
	assert.Error(t, err)
}

func TestGrantSignerExpiry(t *testing.T) {
	signer := NewGrantSigner("grant-secret", time.Minute)
	issued := time.Now()
	signer.now = func() time.Time { return issued }

	grant, err := signer.Sign("user_a", "1.2", "c")
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = signer.Verify(grant, "1.2", "c")
	assert.Error(t, err)
}

func TestChannelOwner(t *testing.T) {
	owner, ok := ChannelOwner(UserChannel("user_a"))
	assert.True(t, ok)
	assert.Equal(t, "user_a", owner)

	_, ok = ChannelOwner("presence-room")
	assert.False(t, ok)
}
