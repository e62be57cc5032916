package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

const (
	UserIDHeader = "X-User-ID"

	actorKey = "actor"
)

type AuthMiddleware struct {
	users  *services.UserService
	logger *zap.Logger
}

func NewAuthMiddleware(users *services.UserService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		users:  users,
		logger: logger.With(zap.String("middleware", "auth")),
	}
}

// RequireActor resolves the X-User-ID header to an active user.
func (am *AuthMiddleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(UserIDHeader))
		user, err := am.users.ResolveActor(c.Request.Context(), id)
		if err != nil {
			am.logger.Debug("Actor rejected",
				zap.String("request_id", RequestID(c.Request.Context())),
				zap.String("user_id", id),
				zap.Error(err))
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(actorKey, user)
		c.Next()
	}
}

// RequireRole admits actors holding one of roles. ADMIN always passes.
func (am *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			_ = c.Error(apperr.Unauthorized("authentication required"))
			c.Abort()
			return
		}
		if actor.IsAdmin() || slices.Contains(roles, actor.RoleName()) {
			c.Next()
			return
		}
		_ = c.Error(apperr.Forbidden("insufficient permissions").WithDetails(map[string]any{
			"required": roles,
			"role":     actor.RoleName(),
		}))
		c.Abort()
	}
}

// Actor returns the user RequireActor stored on c, or nil.
func Actor(c *gin.Context) *models.User {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
