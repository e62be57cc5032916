package services

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DocumentService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

// DocSummary is a document row without its JSON payload.
type DocSummary struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Category       string                `json:"category"`
	Status         models.DocumentStatus `json:"status"`
	CurrentStage   string                `json:"currentStage"`
	OrganizationID string                `json:"organizationId"`
	CreatedByID    string                `json:"createdById"`
	FileSize       int64                 `json:"fileSize"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

type CreateDocumentInput struct {
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Content  string         `json:"content"`
	Template string         `json:"template"`
	Metadata map[string]any `json:"metadata"`
}

type UpdateDocumentInput struct {
	Title    *string `json:"title"`
	Category *string `json:"category"`
	Content  *string `json:"content"`
}

type DocumentFilter struct {
	Status         string `form:"status"`
	Stage          string `form:"stage"`
	OrganizationID string `form:"organizationId"`
	CreatedByID    string `form:"createdBy"`
	Category       string `form:"category"`
	Query          string `form:"q"`
	Page
}

type DocumentList struct {
	Documents []DocSummary `json:"documents"`
	Total     int64        `json:"total"`
	Page      int          `json:"page"`
	Limit     int          `json:"limit"`
}

func NewDocumentService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *DocumentService {
	return &DocumentService{
		db:      db,
		logger:  logger.With(zap.String("service", "document_service")),
		metrics: metrics,
	}
}

func (ds *DocumentService) Create(ctx context.Context, actor *models.User, in CreateDocumentInput) (*models.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	doc := &models.Document{
		Title:          title,
		Category:       strings.TrimSpace(in.Category),
		Status:         models.StatusDraft,
		OrganizationID: actor.OrganizationID,
		CreatedByID:    actor.ID,
		MimeType:       "text/html",
		FileSize:       int64(len(in.Content)),
		Checksum:       checksum(in.Content),
	}
	doc.SetFields(models.CustomFields{
		Content:  in.Content,
		Template: in.Template,
		Metadata: in.Metadata,
	})

	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}

	ds.metrics.IncrementCounter("documents_created", map[string]string{"source": "api"})
	ds.metrics.ObserveSize("document_bytes", float64(doc.FileSize))
	ds.logger.Info("Document created",
		zap.String("document_id", doc.ID),
		zap.String("created_by", actor.ID))
	return doc, nil
}

func (ds *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := ds.db.WithContext(ctx).Preload("CreatedBy").First(&doc, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}
	return &doc, nil
}

// filterSQL renders the filter as a WHERE fragment; empty when nothing is set.
func (f DocumentFilter) filterSQL() (string, []any, error) {
	where := sq.And{}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": strings.ToUpper(f.Status)})
	}
	if f.Stage != "" {
		where = append(where, sq.Eq{"current_stage": f.Stage})
	}
	if f.OrganizationID != "" {
		where = append(where, sq.Eq{"organization_id": f.OrganizationID})
	}
	if f.CreatedByID != "" {
		where = append(where, sq.Eq{"created_by_id": f.CreatedByID})
	}
	if f.Category != "" {
		where = append(where, sq.Eq{"category": f.Category})
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, sq.Like{"LOWER(title)": "%" + strings.ToLower(q) + "%"})
	}
	if len(where) == 0 {
		return "", nil, nil
	}
	return where.ToSql()
}

func (ds *DocumentService) List(ctx context.Context, f DocumentFilter) (*DocumentList, error) {
	if f.Status != "" && !models.DocumentStatus(strings.ToUpper(f.Status)).Valid() {
		return nil, apperr.Validation("unknown document status").WithDetails(map[string]string{"status": f.Status})
	}
	page := f.Page.normalize()

	query := ds.db.WithContext(ctx).Model(&models.Document{})
	cond, args, err := f.filterSQL()
	if err != nil {
		return nil, apperr.Internal("failed to build document filter", err)
	}
	if cond != "" {
		query = query.Where(cond, args...)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}

	summaries := []DocSummary{}
	err = query.
		Select("id, title, category, status, current_stage, organization_id, created_by_id, file_size, created_at, updated_at").
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.offset()).
		Find(&summaries).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "document")
	}

	return &DocumentList{Documents: summaries, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (ds *DocumentService) Update(ctx context.Context, actor *models.User, id string, in UpdateDocumentInput) (*models.Document, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var out *models.Document
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, id)
		if err != nil {
			return err
		}
		if doc.CreatedByID != actor.ID && !actor.IsAdmin() {
			return apperr.Forbidden("only the author or an administrator may edit this document")
		}
		if doc.Status == models.StatusPublished || doc.Status == models.StatusArchived {
			return apperr.Conflict("published or archived documents cannot be edited")
		}

		extra := map[string]any{}
		if in.Title != nil {
			title := trimmed(in.Title)
			if title == "" {
				return apperr.Validation("title cannot be empty")
			}
			extra["title"] = title
		}
		if in.Category != nil {
			extra["category"] = trimmed(in.Category)
		}

		fields := doc.Fields()
		if in.Content != nil {
			fields.Content = *in.Content
		}
		if err := saveFields(tx, doc, fields, extra); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	ds.logger.Info("Document updated", zap.String("document_id", id), zap.String("actor", actor.ID))
	return ds.Get(ctx, out.ID)
}

// Delete soft-deletes the document.
func (ds *DocumentService) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	doc, err := ds.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.CreatedByID != actor.ID && !actor.IsAdmin() {
		return apperr.Forbidden("only the author or an administrator may delete this document")
	}
	if err := ds.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", id).Error; err != nil {
		return apperr.FromStorage(err, "document")
	}
	ds.metrics.IncrementCounter("documents_deleted", nil)
	ds.logger.Info("Document deleted", zap.String("document_id", id), zap.String("actor", actor.ID))
	return nil
}

// CountByStatus counts documents per status, optionally within one organization.
func (ds *DocumentService) CountByStatus(ctx context.Context, organizationID string) (map[models.DocumentStatus]int64, error) {
	var rows []struct {
		Status models.DocumentStatus
		Count  int64
	}
	query := ds.db.WithContext(ctx).Model(&models.Document{}).Select("status, COUNT(*) AS count")
	if organizationID != "" {
		query = query.Where("organization_id = ?", organizationID)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}

	counts := make(map[models.DocumentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
