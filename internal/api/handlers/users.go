package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.With(zap.String("handler", "user")),
	}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	var filter services.UserFilter
	if !bindQuery(c, &filter) {
		return
	}
	users, err := h.userService.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if !bindJSON(c, &in) {
		return
	}
	if in.OrganizationID == "" {
		in.OrganizationID = actor(c).OrganizationID
	}
	user, err := h.userService.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("User created",
		zap.String("user_id", user.ID),
		zap.String("role", user.RoleName()),
		zap.String("by", actor(c).ID))
	respond(c, http.StatusCreated, gin.H{"user": user})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var in services.UpdateUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *UserHandler) ListRoles(c *gin.Context) {
	orgID := c.DefaultQuery("organizationId", actor(c).OrganizationID)
	roles, err := h.userService.ListRoles(c.Request.Context(), orgID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"roles": roles})
}

func (h *UserHandler) CreateRole(c *gin.Context) {
	var in services.CreateRoleInput
	if !bindJSON(c, &in) {
		return
	}
	if in.OrganizationID == "" {
		in.OrganizationID = actor(c).OrganizationID
	}
	role, err := h.userService.CreateRole(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"role": role})
}
