package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	logger              *zap.Logger
}

func NewNotificationHandler(notificationService *services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger.With(zap.String("handler", "notification")),
	}
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var filter services.NotificationFilter
	if !bindQuery(c, &filter) {
		return
	}
	list, err := h.notificationService.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"notifications": list.Notifications,
		"pagination": gin.H{
			"total": list.Total,
			"page":  list.Page,
			"limit": list.Limit,
		},
	})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	note, err := h.notificationService.MarkRead(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"notification": note})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": n})
}
