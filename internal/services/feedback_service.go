package services

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/feedback"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrFeedbackNotAccepted = apperr.Coded(apperr.KindConflict, "FEEDBACK_NOT_ACCEPTED", "only accepted feedback can be applied to a new version")

type FeedbackService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
	now     func() time.Time
}

type FeedbackInput struct {
	Component       string `json:"component"`
	CommentType     string `json:"commentType"`
	Page            int    `json:"page"`
	ParagraphNumber string `json:"paragraphNumber"`
	LineNumber      int    `json:"lineNumber"`
	ChangeFrom      string `json:"changeFrom"`
	ChangeTo        string `json:"changeTo"`
	Comment         string `json:"comment"`
	Justification   string `json:"justification"`
}

type FeedbackFilter struct {
	Stage  string `form:"stage"`
	Status string `form:"status"`
}

type SubmitResult struct {
	Items     []models.FeedbackItem `json:"items"`
	Conflicts []feedback.Conflict   `json:"conflicts"`
}

type CreateVersionInput struct {
	FeedbackIDs []string `json:"feedbackIds"`
	Description string   `json:"description"`
}

func NewFeedbackService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *FeedbackService {
	return &FeedbackService{
		db:      db,
		logger:  logger.With(zap.String("service", "feedback_service")),
		metrics: metrics,
		now:     time.Now,
	}
}

func (in FeedbackInput) validate() error {
	if strings.TrimSpace(in.ChangeFrom) == "" && strings.TrimSpace(in.Comment) == "" {
		return apperr.Validation("feedback needs changeFrom or a comment")
	}
	if in.Page < 0 || in.LineNumber < 0 {
		return apperr.Validation("page and lineNumber must not be negative")
	}
	switch models.CommentType(strings.ToUpper(in.CommentType)) {
	case "", models.CommentCritical, models.CommentSubstantive, models.CommentAdministrative:
		return nil
	}
	return apperr.Validation("commentType must be C, S or A")
}

// appendFeedback adds new items to fields and records conflicts against
// everything still open. It returns the new items and the conflicts that touch them.
func appendFeedback(fields *models.CustomFields, docID string, actor *models.User, stage string, inputs []FeedbackInput, at time.Time) ([]models.FeedbackItem, []feedback.Conflict, error) {
	if len(inputs) == 0 {
		return nil, nil, apperr.Validation("at least one feedback item is required")
	}

	added := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, nil, err
		}
		ct := models.CommentType(strings.ToUpper(in.CommentType))
		if ct == "" {
			ct = models.CommentSubstantive
		}
		item := models.FeedbackItem{
			ID:              uuid.NewString(),
			DocumentID:      docID,
			ReviewerID:      actor.ID,
			ReviewerName:    actor.FullName(),
			ReviewerEmail:   actor.Email,
			Component:       in.Component,
			CommentType:     ct,
			Page:            in.Page,
			ParagraphNumber: strings.TrimSpace(in.ParagraphNumber),
			LineNumber:      in.LineNumber,
			ChangeFrom:      in.ChangeFrom,
			ChangeTo:        in.ChangeTo,
			Comment:         in.Comment,
			Justification:   in.Justification,
			Stage:           stage,
			Status:          models.FeedbackPending,
			CreatedAt:       at,
		}
		fields.DraftFeedback = append(fields.DraftFeedback, item)
		added[item.ID] = struct{}{}
	}

	all := feedback.DetectConflicts(fields.DraftFeedback, paragraphLookup(fields))
	feedback.MarkConflicts(fields.DraftFeedback, all)

	items := []models.FeedbackItem{}
	for _, it := range fields.DraftFeedback {
		if _, ok := added[it.ID]; ok {
			items = append(items, it)
		}
	}
	touching := []feedback.Conflict{}
	for _, c := range all {
		_, a := added[c.A]
		_, b := added[c.B]
		if a || b {
			touching = append(touching, c)
		}
	}
	return items, touching, nil
}

func paragraphLookup(fields *models.CustomFields) feedback.ParagraphLookup {
	return func(p string) string { return fields.ParagraphMap[p] }
}

// Submit appends reviewer feedback to the document.
func (fs *FeedbackService) Submit(ctx context.Context, actor *models.User, docID string, inputs []FeedbackInput) (*SubmitResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var res SubmitResult
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, docID)
		if err != nil {
			return err
		}
		if doc.Status == models.StatusPublished || doc.Status == models.StatusArchived {
			return apperr.Conflict("feedback is closed for published or archived documents")
		}

		fields := doc.Fields()
		items, conflicts, err := appendFeedback(&fields, doc.ID, actor, doc.CurrentStage, inputs, fs.now())
		if err != nil {
			return err
		}
		if err := saveFields(tx, doc, fields, nil); err != nil {
			return err
		}
		res = SubmitResult{Items: items, Conflicts: conflicts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fs.metrics.IncrementCounter("feedback_submitted", nil)
	if len(res.Conflicts) > 0 {
		fs.metrics.IncrementCounter("feedback_conflicts", nil)
	}
	fs.logger.Info("Feedback submitted",
		zap.String("document_id", docID),
		zap.String("reviewer", actor.ID),
		zap.Int("items", len(res.Items)),
		zap.Int("conflicts", len(res.Conflicts)))
	return &res, nil
}

func (fs *FeedbackService) document(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	if err := fs.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}
	return &doc, nil
}

func (fs *FeedbackService) List(ctx context.Context, docID string, f FeedbackFilter) ([]models.FeedbackItem, error) {
	doc, err := fs.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	items := []models.FeedbackItem{}
	for _, it := range doc.Fields().DraftFeedback {
		if f.Stage != "" && it.Stage != f.Stage {
			continue
		}
		if f.Status != "" && string(it.Status) != strings.ToLower(f.Status) {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (fs *FeedbackService) Conflicts(ctx context.Context, docID string) ([]feedback.Conflict, error) {
	doc, err := fs.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	fields := doc.Fields()
	return feedback.DetectConflicts(fields.DraftFeedback, paragraphLookup(&fields)), nil
}

// Decide accepts or rejects one pending item.
func (fs *FeedbackService) Decide(ctx context.Context, actor *models.User, docID, feedbackID string, status models.FeedbackStatus) (*models.FeedbackItem, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if status != models.FeedbackAccepted && status != models.FeedbackRejected {
		return nil, apperr.Validation("status must be accepted or rejected")
	}

	var out models.FeedbackItem
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, docID)
		if err != nil {
			return err
		}
		fields := doc.Fields()
		i := slices.IndexFunc(fields.DraftFeedback, func(it models.FeedbackItem) bool { return it.ID == feedbackID })
		if i < 0 {
			return apperr.NotFound("feedback item not found")
		}
		if fields.DraftFeedback[i].Status == models.FeedbackApplied {
			return apperr.Conflict("feedback item has already been applied")
		}
		fields.DraftFeedback[i].Status = status
		out = fields.DraftFeedback[i]
		return saveFields(tx, doc, fields, nil)
	})
	if err != nil {
		return nil, err
	}
	fs.metrics.IncrementCounter("feedback_decisions", map[string]string{"status": string(status)})
	return &out, nil
}

// baseline is the implicit first version of a document with no recorded versions.
func baseline(doc *models.Document, fields models.CustomFields) models.Version {
	return models.Version{
		ID:          "v1-" + doc.ID,
		Number:      1,
		CreatedBy:   doc.CreatedByID,
		CreatedAt:   doc.CreatedAt,
		Changes:     []models.AppliedChange{},
		Content:     fields.Content,
		Description: "Initial version",
	}
}

func versionsOf(doc *models.Document, fields models.CustomFields) []models.Version {
	if len(fields.Versions) == 0 {
		return []models.Version{baseline(doc, fields)}
	}
	return fields.Versions
}

// CreateVersion applies the selected feedback to the current content.
func (fs *FeedbackService) CreateVersion(ctx context.Context, actor *models.User, docID string, in CreateVersionInput) (*models.Version, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if len(in.FeedbackIDs) == 0 {
		return nil, apperr.Validation("feedbackIds are required")
	}

	var out models.Version
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, docID)
		if err != nil {
			return err
		}
		fields := doc.Fields()

		index := make(map[string]int, len(fields.DraftFeedback))
		for i, it := range fields.DraftFeedback {
			index[it.ID] = i
		}
		selected := make([]models.FeedbackItem, 0, len(in.FeedbackIDs))
		for _, id := range in.FeedbackIDs {
			i, ok := index[id]
			if !ok {
				return apperr.NotFound("feedback item not found").WithDetails(map[string]string{"feedbackId": id})
			}
			if status := fields.DraftFeedback[i].Status; status != models.FeedbackAccepted {
				return ErrFeedbackNotAccepted.WithDetails(map[string]string{"feedbackId": id, "status": string(status)})
			}
			selected = append(selected, fields.DraftFeedback[i])
		}

		now := fs.now()
		content, changes, err := feedback.Apply(fields.Content, selected, actor.ID, now)
		if err != nil {
			return err
		}

		versions := versionsOf(doc, fields)
		parent := versions[len(versions)-1]
		out = models.Version{
			ID:              uuid.NewString(),
			Number:          parent.Number + 1,
			CreatedBy:       actor.ID,
			CreatedAt:       now,
			Changes:         changes,
			Content:         content,
			ParentVersionID: parent.ID,
			Description:     in.Description,
		}
		fields.Versions = append(versions, out)
		fields.Content = content

		for _, c := range changes {
			if c.Status == models.ChangeApplied {
				fields.DraftFeedback[index[c.FeedbackID]].Status = models.FeedbackApplied
			}
		}
		return saveFields(tx, doc, fields, nil)
	})
	if err != nil {
		return nil, err
	}

	fs.metrics.IncrementCounter("versions_created", nil)
	fs.logger.Info("Document version created",
		zap.String("document_id", docID),
		zap.Int("version", out.Number),
		zap.Int("changes", len(out.Changes)))
	return &out, nil
}

func (fs *FeedbackService) Versions(ctx context.Context, docID string) ([]models.Version, error) {
	doc, err := fs.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	return versionsOf(doc, doc.Fields()), nil
}

func (fs *FeedbackService) LatestVersion(ctx context.Context, docID string) (*models.Version, error) {
	versions, err := fs.Versions(ctx, docID)
	if err != nil {
		return nil, err
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

func findVersion(versions []models.Version, number int) (models.Version, bool) {
	for _, v := range versions {
		if v.Number == number {
			return v, true
		}
	}
	return models.Version{}, false
}

func (fs *FeedbackService) Diff(ctx context.Context, docID string, from, to int) (*feedback.VersionDiff, error) {
	versions, err := fs.Versions(ctx, docID)
	if err != nil {
		return nil, err
	}
	v1, ok1 := findVersion(versions, from)
	v2, ok2 := findVersion(versions, to)
	if !ok1 || !ok2 {
		return nil, apperr.NotFound("version not found").WithDetails(map[string]int{"v1": from, "v2": to})
	}
	d := feedback.Diff(v1, v2)
	return &d, nil
}

// Revert records a new version whose content is a copy of versionID's.
func (fs *FeedbackService) Revert(ctx context.Context, actor *models.User, docID, versionID string) (*models.Version, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var out models.Version
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, docID)
		if err != nil {
			return err
		}
		fields := doc.Fields()
		versions := versionsOf(doc, fields)

		i := slices.IndexFunc(versions, func(v models.Version) bool { return v.ID == versionID })
		if i < 0 {
			return apperr.NotFound("version not found")
		}
		target := versions[i]
		parent := versions[len(versions)-1]
		if target.ID == parent.ID {
			return apperr.Validation("cannot revert to the current version")
		}

		out = models.Version{
			ID:              uuid.NewString(),
			Number:          parent.Number + 1,
			CreatedBy:       actor.ID,
			CreatedAt:       fs.now(),
			Changes:         []models.AppliedChange{},
			Content:         target.Content,
			ParentVersionID: parent.ID,
			RevertedFrom:    target.ID,
			Description:     "Reverted to version " + strconv.Itoa(target.Number),
		}
		fields.Versions = append(versions, out)
		fields.Content = target.Content
		return saveFields(tx, doc, fields, nil)
	})
	if err != nil {
		return nil, err
	}

	fs.logger.Info("Document reverted",
		zap.String("document_id", docID),
		zap.String("reverted_from", out.RevertedFrom),
		zap.Int("version", out.Number))
	return &out, nil
}
