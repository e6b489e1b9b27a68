package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("user_a", "client", "sess-1", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user_a", claims.UserID)
	assert.Equal(t, "client", claims.Role)
	assert.Equal(t, "sess-1", claims.SessionID())
}

func TestParseTokenMissingRoleIsEmpty(t *testing.T) {
	token, err := GenerateToken("user_a", "", "", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Empty(t, claims.Role)
	assert.Equal(t, "user_a", claims.SessionID())
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken("user_a", "", "", testSecret, -time.Minute)
	require.NoError(t, err)

	wrongKey, err := GenerateToken("user_a", "", "", "other-secret", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user_a"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  wrongKey,
		"alg none":   none,
		"no subject": noSubject,
		"garbage":    "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, testSecret)
			assert.Error(t, err)
		})
	}
}
