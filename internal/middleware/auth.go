package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/auth"
)

// Keys under which AuthMiddleware stores claims in gin.Context.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyRoleClaim = "role_claim"
	ContextKeySessionID = "session_id"
	ContextKeyRole      = "role"
)

// AuthMiddleware validates the session token and stores the caller's
// identity. The token comes from "Authorization: Bearer <token>" or, for
// websocket upgrades where browsers cannot set headers, the "token" query
// parameter.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWithError(c, apperr.Unauthenticated("missing or malformed authorization"))
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			abortWithError(c, apperr.Unauthenticated("invalid or expired token"))
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRoleClaim, claims.Role)
		c.Set(ContextKeySessionID, claims.SessionID())
		c.Next()
	}
}

// bearerToken prefers the header. Why accept a query token at all?
//   - The browser WebSocket API cannot set headers, so /realtime/ws would
//     otherwise be unreachable from a page.
//   - Query strings end up in access logs, which is why the header wins
//     when both are present.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("token"); q != "" {
			return q, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID returns the authenticated caller, or "" outside AuthMiddleware.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GetRoleClaim returns the role named in the token, "" when absent.
func GetRoleClaim(c *gin.Context) string {
	return c.GetString(ContextKeyRoleClaim)
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(ContextKeySessionID)
}

// WriteError renders err as {"error": ..., "code": ...} with the status its
// kind maps to.
func WriteError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(apperr.HTTPStatus(kind), gin.H{
		"error": apperr.PublicMessage(err),
		"code":  string(kind),
	})
}

func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{
		"error": apperr.PublicMessage(err),
		"code":  string(kind),
	})
}
