package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/policy"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
)

// RoleResolver finds the effective role for a caller. A role claim in the
// token wins; without one the user's stored role is used, then the
// default role. nil means the caller has no role at all.
type RoleResolver struct {
	roles repository.RoleRepository
	users repository.UserRepository
}

func NewRoleResolver(roles repository.RoleRepository, users repository.UserRepository) *RoleResolver {
	return &RoleResolver{roles: roles, users: users}
}

func (r *RoleResolver) Resolve(ctx context.Context, userID, roleClaim string) (*models.Role, error) {
	if roleClaim != "" {
		role, err := r.roles.GetByName(ctx, roleClaim)
		if err != nil {
			return nil, fmt.Errorf("resolve claimed role: %w", err)
		}
		return role, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user role: %w", err)
	}
	if user != nil && user.RoleName != nil {
		role, err := r.roles.GetByName(ctx, *user.RoleName)
		if err != nil {
			return nil, fmt.Errorf("resolve stored role: %w", err)
		}
		if role != nil {
			return role, nil
		}
	}

	role, err := r.roles.GetDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve default role: %w", err)
	}
	return role, nil
}

// AccessGate denies any request whose path the caller's role does not
// grant. prefix is stripped first so permissions are written against
// application paths ("/chat/*"), not the API version ("/v1/chat/*").
func AccessGate(resolver *RoleResolver, prefix string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			abortWithError(c, apperr.Unauthenticated("authentication required"))
			return
		}

		role, err := resolver.Resolve(c.Request.Context(), userID, GetRoleClaim(c))
		if err != nil {
			logger.Error("failed to resolve role", zap.String("user_id", userID), zap.Error(err))
			abortWithError(c, err)
			return
		}

		path := strings.TrimPrefix(c.Request.URL.Path, prefix)
		if !policy.CanAccess(role, path) {
			abortWithError(c, apperr.Forbidden("access denied"))
			return
		}

		c.Set(ContextKeyRole, role)
		c.Next()
	}
}

// GetRole returns the role AccessGate resolved, or nil.
func GetRole(c *gin.Context) *models.Role {
	val, exists := c.Get(ContextKeyRole)
	if !exists {
		return nil
	}
	role, _ := val.(*models.Role)
	return role
}
