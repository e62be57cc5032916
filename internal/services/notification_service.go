package services

import (
	"context"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
	now     func() time.Time
}

type NotificationFilter struct {
	Unread bool `form:"unread"`
	Page
}

type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
}

func NewNotificationService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *NotificationService {
	return &NotificationService{
		db:      db,
		logger:  logger.With(zap.String("service", "notification_service")),
		metrics: metrics,
		now:     time.Now,
	}
}

// notify stores notes inside tx so they commit with the change they announce.
func notify(tx *gorm.DB, mc *metrics.MetricsCollector, notes ...models.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	if err := tx.Create(&notes).Error; err != nil {
		return apperr.FromStorage(err, "notification")
	}
	for _, n := range notes {
		mc.IncrementCounter("notifications_sent", map[string]string{"type": string(n.Type)})
	}
	return nil
}

// List returns the actor's notifications, newest first.
func (ns *NotificationService) List(ctx context.Context, actor *models.User, f NotificationFilter) (*NotificationList, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	page := f.Page.normalize()
	query := ns.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", actor.ID)
	if f.Unread {
		query = query.Where("read_at IS NULL")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.FromStorage(err, "notification")
	}
	notes := []models.Notification{}
	err := query.Order("created_at DESC").Offset(page.offset()).Limit(page.Limit).Find(&notes).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "notification")
	}
	return &NotificationList{Notifications: notes, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (ns *NotificationService) MarkRead(ctx context.Context, actor *models.User, id string) (*models.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var note models.Notification
	err := ns.db.WithContext(ctx).First(&note, "id = ? AND recipient_id = ?", id, actor.ID).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "notification")
	}
	if note.ReadAt != nil {
		return &note, nil
	}
	now := ns.now().UTC()
	if err := ns.db.WithContext(ctx).Model(&note).Update("read_at", now).Error; err != nil {
		return nil, apperr.FromStorage(err, "notification")
	}
	note.ReadAt = &now
	return &note, nil
}

// MarkAllRead marks every unread notification of the actor and reports how many changed.
func (ns *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	res := ns.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", actor.ID).
		Update("read_at", ns.now().UTC())
	if res.Error != nil {
		return 0, apperr.FromStorage(res.Error, "notification")
	}
	ns.logger.Debug("Notifications marked read", zap.String("user_id", actor.ID), zap.Int64("count", res.RowsAffected))
	return int(res.RowsAffected), nil
}
