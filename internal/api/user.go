package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/realtime"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

// UserHandler handles user-related operations.
type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

type meResponse struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Role        *models.Role `json:"role"`
	// Channel is the private channel to subscribe to for notifications.
	Channel string `json:"channel"`
}

// GetMe handles GET /v1/users/me
//
// Users are provisioned by the identity provider, so a caller with a valid
// token but no row yet still gets a profile built from the token.
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "failed to get user", err)
		return
	}

	resp := meResponse{
		ID:      userID,
		Role:    middleware.GetRole(c),
		Channel: realtime.UserChannel(userID),
	}
	if user != nil {
		resp.DisplayName = user.DisplayName
	}
	c.JSON(http.StatusOK, resp)
}
