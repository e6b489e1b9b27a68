package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/chat"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

// ChannelHandler serves canonical channel lookups. Clients never create
// channels by name; they ask for the thread of a conversation and the
// resolver finds or creates it.
//
// Why hold the resolver and not just the repo?
//   - "Open a DM with Bo" must land on the same channel no matter who asks
//     first or how many tabs ask at once. That rule lives in chat.Resolver;
//     the handler only translates HTTP to it.
//   - GetByID is a plain read, so it goes to the repo directly.
type ChannelHandler struct {
	resolver *chat.Resolver
	repo     repository.ChannelRepository
	logger   *zap.Logger
}

func NewChannelHandler(resolver *chat.Resolver, repo repository.ChannelRepository, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{resolver: resolver, repo: repo, logger: logger}
}

type directChannelRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type agentChannelRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

// Direct handles POST /v1/channels/direct
func (h *ChannelHandler) Direct(c *gin.Context) {
	var req directChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteError(c, bindError(err))
		return
	}

	ch, err := h.resolver.ResolveDirect(c.Request.Context(), middleware.GetUserID(c), req.UserID)
	if err != nil {
		respondError(c, h.logger, "failed to resolve direct channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Agent handles POST /v1/channels/agent
func (h *ChannelHandler) Agent(c *gin.Context) {
	var req agentChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteError(c, bindError(err))
		return
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		middleware.WriteError(c, apperr.Validation("invalid agent id"))
		return
	}

	ch, err := h.resolver.ResolveAgentDM(c.Request.Context(), agentID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "failed to resolve agent channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// ByEntity handles GET /v1/channels/entity/:entityId
func (h *ChannelHandler) ByEntity(c *gin.Context) {
	ch, err := h.resolver.ResolveByEntity(c.Request.Context(), c.Param("entityId"))
	if err != nil {
		respondError(c, h.logger, "failed to resolve entity channel", err)
		return
	}
	if ch == nil {
		middleware.WriteError(c, apperr.NotFound("channel not found"))
		return
	}
	c.JSON(http.StatusOK, ch)
}

// GetByID handles GET /v1/channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.WriteError(c, apperr.Validation("invalid channel id"))
		return
	}

	ch, err := channelForCaller(c.Request.Context(), h.repo, channelID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "failed to get channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// channelForCaller loads a channel and checks that callerID takes part in
// it. Every route that reads or writes a channel by id goes through here.
//
// Why not leave this to the access gate?
//   - The gate sees only the path. "/channels/<id>/messages" looks the same
//     for Ana's DM and for Eve's, so ownership has to be checked against
//     the row itself.
func channelForCaller(ctx context.Context, repo repository.ChannelRepository, channelID uuid.UUID, callerID string) (*models.Channel, error) {
	ch, err := repo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, apperr.NotFound("channel not found")
	}
	if !chat.CanParticipate(ch, callerID) {
		return nil, apperr.Forbidden("not a participant of this channel")
	}
	return ch, nil
}
