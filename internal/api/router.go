package api

import (
	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/observ"
	"go.uber.org/zap"
)

// APIPrefix is stripped from request paths before role permissions are
// checked, so roles grant "/channels/*" rather than "/v1/channels/*".
const APIPrefix = "/v1"

// Handlers groups everything NewRouter mounts.
type Handlers struct {
	Health   *HealthHandler
	Channels *ChannelHandler
	Messages *MessageHandler
	Realtime *RealtimeHandler
	Push     *PushHandler
	Unread   *UnreadHandler
	Roles    *RoleHandler
	Users    *UserHandler
}

// NewRouter builds the HTTP surface. Health is public. The websocket
// endpoint needs a valid token only; every other route also passes the
// role access gate.
func NewRouter(h Handlers, jwtSecret string, access *middleware.RoleResolver, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(observ.RequestLogger(logger), gin.Recovery())

	v1 := r.Group(APIPrefix)
	v1.GET("/health", h.Health.Health)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(jwtSecret))
	authed.GET("/realtime/ws", h.Realtime.Connect)

	gated := authed.Group("")
	gated.Use(middleware.AccessGate(access, APIPrefix, logger))

	gated.POST("/channels/direct", h.Channels.Direct)
	gated.POST("/channels/agent", h.Channels.Agent)
	gated.GET("/channels/entity/:entityId", h.Channels.ByEntity)
	gated.GET("/channels/:id", h.Channels.GetByID)
	gated.POST("/channels/:id/messages", h.Messages.Create)
	gated.GET("/channels/:id/messages", h.Messages.List)

	gated.POST("/realtime/auth", h.Realtime.Auth)

	gated.GET("/push/key", h.Push.PublicKey)
	gated.POST("/push/subscriptions", h.Push.Register)
	gated.DELETE("/push/subscriptions", h.Push.Unregister)

	gated.GET("/unread", h.Unread.List)
	gated.PUT("/unread/:channelId", h.Unread.Mark)
	gated.DELETE("/unread/:channelId", h.Unread.Clear)

	gated.GET("/roles", h.Roles.List)
	gated.PUT("/roles/:name/default", h.Roles.SetDefault)

	gated.GET("/users/me", h.Users.GetMe)

	return r
}
