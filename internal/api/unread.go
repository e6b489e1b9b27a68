package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/realtime"
	"github.com/uxurimx/uxuri-sub001/internal/unread"
	"go.uber.org/zap"
)

// EventUnreadChanged is published to the caller's private channel whenever
// their unread set changes, so other tabs of the same session stay in sync.
const EventUnreadChanged = "unread.changed"

// StorageFunc returns the marker storage of one client session.
type StorageFunc func(sessionID string) unread.Storage

// UnreadHandler exposes a session's unread markers to clients that do not
// keep the set themselves.
type UnreadHandler struct {
	storageFor StorageFunc
	publisher  realtime.Publisher
	logger     *zap.Logger
}

func NewUnreadHandler(storageFor StorageFunc, publisher realtime.Publisher, logger *zap.Logger) *UnreadHandler {
	return &UnreadHandler{storageFor: storageFor, publisher: publisher, logger: logger}
}

type unreadResponse struct {
	Unread  []string `json:"unread"`
	Changed *bool    `json:"changed,omitempty"`
}

// tracker builds the caller's tracker with a listener that republishes
// changes. The returned func detaches the listener.
func (h *UnreadHandler) tracker(c *gin.Context) (*unread.Tracker, func()) {
	userID := middleware.GetUserID(c)
	ctx := context.WithoutCancel(c.Request.Context())
	log := h.logger.With(zap.String("user_id", userID))

	t := unread.NewTracker(h.storageFor(middleware.GetSessionID(c)), log)
	stop := t.Subscribe(func(ids []string) {
		err := h.publisher.Publish(ctx, realtime.UserChannel(userID), EventUnreadChanged, gin.H{"unread": ids})
		if err != nil {
			log.Warn("failed to publish unread change", zap.Error(err))
		}
	})
	return t, stop
}

// List handles GET /v1/unread
func (h *UnreadHandler) List(c *gin.Context) {
	t, stop := h.tracker(c)
	defer stop()

	ids, err := t.Unread(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed to load unread markers", err)
		return
	}
	c.JSON(http.StatusOK, unreadResponse{Unread: ids})
}

// Mark handles PUT /v1/unread/:channelId
func (h *UnreadHandler) Mark(c *gin.Context) {
	h.mutate(c, (*unread.Tracker).MarkUnread)
}

// Clear handles DELETE /v1/unread/:channelId
func (h *UnreadHandler) Clear(c *gin.Context) {
	h.mutate(c, (*unread.Tracker).ClearUnread)
}

func (h *UnreadHandler) mutate(c *gin.Context, op func(*unread.Tracker, context.Context, string) (bool, error)) {
	channelID := c.Param("channelId")
	if channelID == "" {
		middleware.WriteError(c, apperr.Validation("channel id is required"))
		return
	}

	t, stop := h.tracker(c)
	defer stop()

	ctx := c.Request.Context()
	changed, err := op(t, ctx, channelID)
	if err != nil {
		respondError(c, h.logger, "failed to update unread markers", err)
		return
	}
	ids, err := t.Unread(ctx)
	if err != nil {
		respondError(c, h.logger, "failed to load unread markers", err)
		return
	}
	c.JSON(http.StatusOK, unreadResponse{Unread: ids, Changed: &changed})
}
