package realtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrGrantMismatch = errors.New("grant does not match socket or channel")

// grantClaims binds a subscription to exactly one socket and one channel.
type grantClaims struct {
	SocketID string `json:"socket_id"`
	Channel  string `json:"channel"`
	jwt.RegisteredClaims
}

// GrantSigner issues and verifies subscription grants as short-lived HS256
// tokens.
type GrantSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGrantSigner(secret string, ttl time.Duration) *GrantSigner {
	return &GrantSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *GrantSigner) Sign(userID, socketID, channel string) (string, error) {
	now := s.now()
	claims := grantClaims{
		SocketID: socketID,
		Channel:  channel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, nil
}

// Verify checks the grant's signature and expiry and that it was issued
// for socketID and channel. It returns the user the grant was issued to.
func (s *GrantSigner) Verify(grant, socketID, channel string) (string, error) {
	token, err := jwt.ParseWithClaims(grant, &grantClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse grant: %w", err)
	}
	claims, ok := token.Claims.(*grantClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid grant claims")
	}
	if claims.SocketID != socketID || claims.Channel != channel {
		return "", ErrGrantMismatch
	}
	return claims.Subject, nil
}
