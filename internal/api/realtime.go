package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/realtime"
	"go.uber.org/zap"
)

type RealtimeHandler struct {
	authorizer *realtime.Authorizer
	hub        *realtime.Hub
	logger     *zap.Logger
}

func NewRealtimeHandler(authorizer *realtime.Authorizer, hub *realtime.Hub, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{authorizer: authorizer, hub: hub, logger: logger}
}

// Field names follow the form browsers' socket clients post.
type subscriptionAuthRequest struct {
	SocketID    string `json:"socket_id" form:"socket_id"`
	ChannelName string `json:"channel_name" form:"channel_name"`
}

// Auth handles POST /v1/realtime/auth
func (h *RealtimeHandler) Auth(c *gin.Context) {
	var req subscriptionAuthRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.WriteError(c, bindError(err))
		return
	}

	grant, err := h.authorizer.Authorize(middleware.GetUserID(c), req.SocketID, req.ChannelName)
	if err != nil {
		respondError(c, h.logger, "failed to authorize subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth": grant})
}

// Connect handles GET /v1/realtime/ws. The hub owns the connection from
// here on.
func (h *RealtimeHandler) Connect(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request, middleware.GetUserID(c))
}
