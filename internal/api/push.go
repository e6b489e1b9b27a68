package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

// PushHandler manages the caller's web push devices.
type PushHandler struct {
	subs           repository.PushSubscriptionRepository
	vapidPublicKey string
	logger         *zap.Logger
}

func NewPushHandler(subs repository.PushSubscriptionRepository, vapidPublicKey string, logger *zap.Logger) *PushHandler {
	return &PushHandler{subs: subs, vapidPublicKey: vapidPublicKey, logger: logger}
}

// registerPushRequest mirrors PushSubscription.toJSON() in the browser.
type registerPushRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys"`
}

type deletePushRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// PublicKey handles GET /v1/push/key. Clients need it to subscribe.
func (h *PushHandler) PublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		middleware.WriteError(c, apperr.NotFound("web push is not configured"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}

// Register handles POST /v1/push/subscriptions. Registering an endpoint
// the caller already owns refreshes its keys; one owned by someone else is
// refused.
func (h *PushHandler) Register(c *gin.Context) {
	var req registerPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteError(c, bindError(err))
		return
	}

	sub, err := h.subs.Upsert(c.Request.Context(), &models.PushSubscription{
		UserID:   middleware.GetUserID(c),
		Endpoint: req.Endpoint,
		Auth:     req.Keys.Auth,
		P256dh:   req.Keys.P256dh,
	})
	if errors.Is(err, repository.ErrConflict) {
		middleware.WriteError(c, apperr.Forbidden("endpoint is registered to another user"))
		return
	}
	if err != nil {
		respondError(c, h.logger, "failed to register push subscription", err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// Unregister handles DELETE /v1/push/subscriptions
func (h *PushHandler) Unregister(c *gin.Context) {
	var req deletePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteError(c, bindError(err))
		return
	}

	deleted, err := h.subs.DeleteForUser(c.Request.Context(), middleware.GetUserID(c), req.Endpoint)
	if err != nil {
		respondError(c, h.logger, "failed to delete push subscription", err)
		return
	}
	if !deleted {
		middleware.WriteError(c, apperr.NotFound("push subscription not found"))
		return
	}
	c.Status(http.StatusNoContent)
}
