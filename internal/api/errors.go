package api

import (
	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/middleware"
	"go.uber.org/zap"
)

// respondError writes err to the client and logs it when it is ours to fix.
// Client mistakes (validation, not found, forbidden) are not logged.
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error(msg, zap.Error(err))
	}
	middleware.WriteError(c, err)
}

// bindError turns a gin binding failure into a validation error.
func bindError(err error) error {
	return apperr.Wrap(apperr.KindValidationFailed, "invalid request body", err)
}
