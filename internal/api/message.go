package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/chat"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/notify"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// Notifier starts a best-effort delivery of ev to userID.
type Notifier interface {
	Go(ctx context.Context, userID string, ev notify.Event) error
}

type MessageHandler struct {
	messages repository.MessageRepository
	channels repository.ChannelRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewMessageHandler(
	messages repository.MessageRepository,
	channels repository.ChannelRepository,
	users repository.UserRepository,
	notifier Notifier,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		channels: channels,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

type createMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// Create handles POST /v1/channels/:id/messages
//
// The other participants of a DM are notified after the message is
// stored. Notification never delays or fails the response.
func (h *MessageHandler) Create(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.WriteError(c, apperr.Validation("invalid channel id"))
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	senderID := middleware.GetUserID(c)
	ch, err := channelForCaller(ctx, h.channels, channelID, senderID)
	if err != nil {
		respondError(c, h.logger, "failed to get channel", err)
		return
	}

	msg, err := h.messages.Create(ctx, channelID, senderID, req.Body)
	if err != nil {
		respondError(c, h.logger, "failed to create message", err)
		return
	}

	h.notifyParticipants(ctx, ch, msg)
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) notifyParticipants(ctx context.Context, ch *models.Channel, msg *models.Message) {
	if ch.DMKey == nil {
		return
	}
	var recipients []string
	for _, userID := range chat.Participants(*ch.DMKey) {
		if userID != msg.SenderID {
			recipients = append(recipients, userID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	sender := "User"
	if u, err := h.users.GetByID(ctx, msg.SenderID); err != nil {
		h.logger.Warn("failed to look up sender name", zap.String("user_id", msg.SenderID), zap.Error(err))
	} else if u != nil && u.DisplayName != "" {
		sender = u.DisplayName
	}

	ev := notify.NewMessage{
		ChannelID: ch.ID.String(),
		Sender:    sender,
		Preview:   msg.Body,
		URL:       "/chat/" + ch.ID.String(),
	}
	for _, userID := range recipients {
		if err := h.notifier.Go(ctx, userID, ev); err != nil {
			h.logger.Warn("message notification rejected",
				zap.String("user_id", userID),
				zap.String("channel_id", ch.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// List handles GET /v1/channels/:id/messages?before=123&limit=50
//
// "before" is a message id cursor, 0 meaning newest. "limit" defaults to 50
// and is capped at 100.
func (h *MessageHandler) List(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.WriteError(c, apperr.Validation("invalid channel id"))
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil || before < 0 {
			middleware.WriteError(c, apperr.Validation("invalid 'before' parameter"))
			return
		}
	}

	limit := defaultMessageLimit
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			middleware.WriteError(c, apperr.Validation("invalid 'limit' parameter"))
			return
		}
		limit = min(limit, maxMessageLimit)
	}

	ctx := c.Request.Context()
	if _, err := channelForCaller(ctx, h.channels, channelID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, "failed to get channel", err)
		return
	}

	messages, err := h.messages.ListByChannel(ctx, channelID, before, limit)
	if err != nil {
		respondError(c, h.logger, "failed to list messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
