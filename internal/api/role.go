package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

type RoleHandler struct {
	repo   repository.RoleRepository
	logger *zap.Logger
}

func NewRoleHandler(repo repository.RoleRepository, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{repo: repo, logger: logger}
}

// List handles GET /v1/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to list roles", err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// SetDefault handles PUT /v1/roles/:name/default. The previous default
// loses the flag in the same transaction.
func (h *RoleHandler) SetDefault(c *gin.Context) {
	role, err := h.repo.SetDefault(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, h.logger, "failed to set default role", err)
		return
	}
	if role == nil {
		middleware.WriteError(c, apperr.NotFound("role not found"))
		return
	}
	h.logger.Info("default role changed",
		zap.String("role", role.Name),
		zap.String("by", middleware.GetUserID(c)),
	)
	c.JSON(http.StatusOK, role)
}
