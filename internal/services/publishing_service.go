package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/archive"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"

	defaultTimeoutHours = 72
	recentPublications  = 10
	systemActor         = "system"
)

var (
	ErrAlreadySubmitted = apperr.Coded(apperr.KindConflict, "ALREADY_SUBMITTED", "document already has an open publishing request")
	ErrNotApprover      = apperr.Coded(apperr.KindForbidden, "NOT_AUTHORIZED_APPROVER", "user is not authorized to approve this step")
	ErrAlreadyResponded = apperr.Coded(apperr.KindConflict, "ALREADY_RESPONDED", "approval has already been recorded")
	ErrNotPublishable   = apperr.Coded(apperr.KindConflict, "NOT_PUBLISHABLE", "publishing is not approved")
)

type PublishingService struct {
	db      *gorm.DB
	archive archive.Archive
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
	now     func() time.Time
}

type StepInput struct {
	StepName     string `json:"stepName"`
	RequiredRole string `json:"requiredRole"`
	MinApprovals int    `json:"minApprovals"`
	TimeoutHours int    `json:"timeoutHours"`
}

type CreateWorkflowInput struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	AutoApprove  bool        `json:"autoApprove"`
	TimeoutHours int         `json:"timeoutHours"`
	Steps        []StepInput `json:"steps"`
}

type SubmitPublishingInput struct {
	DocumentID         string     `json:"documentId"`
	WorkflowID         string     `json:"workflowId"`
	ScheduledPublishAt *time.Time `json:"scheduledPublishAt"`
	Notes              string     `json:"notes"`
}

type ApprovalInput struct {
	PublishingID string `json:"publishingId"`
	StepID       string `json:"stepId"`
	Decision     string `json:"decision"`
	Comments     string `json:"comments"`
}

type Dashboard struct {
	Pending     []models.Publishing `json:"pendingApprovals"`
	Scheduled   []models.Publishing `json:"scheduledPublications"`
	Recent      []models.Publishing `json:"recentPublications"`
	MyApprovals []models.Approval   `json:"myApprovals"`
}

func NewPublishingService(db *gorm.DB, store archive.Archive, logger *zap.Logger, metrics *metrics.MetricsCollector) *PublishingService {
	if store == nil {
		store = archive.Noop{}
	}
	return &PublishingService{
		db:      db,
		archive: store,
		logger:  logger.With(zap.String("service", "publishing_service")),
		metrics: metrics,
		now:     time.Now,
	}
}

func (ps *PublishingService) CreateWorkflow(ctx context.Context, actor *models.User, in CreateWorkflowInput) (*models.PublishingWorkflow, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("workflow name is required")
	}
	if len(in.Steps) == 0 && !in.AutoApprove {
		return nil, apperr.Validation("at least one approval step is required unless autoApprove is set")
	}

	wf := &models.PublishingWorkflow{
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		OrganizationID: actor.OrganizationID,
		AutoApprove:    in.AutoApprove,
		TimeoutHours:   orDefault(in.TimeoutHours, defaultTimeoutHours),
	}
	for i, s := range in.Steps {
		role := strings.ToUpper(strings.TrimSpace(s.RequiredRole))
		if !slices.Contains(models.WorkflowRoles, role) {
			return nil, apperr.Validation("unknown required role").WithDetails(map[string]any{"step": i + 1, "role": s.RequiredRole})
		}
		if s.MinApprovals < 0 {
			return nil, apperr.Validation("minApprovals must not be negative")
		}
		stepName := strings.TrimSpace(s.StepName)
		if stepName == "" {
			stepName = role + " approval"
		}
		wf.Steps = append(wf.Steps, models.ApprovalStep{
			StepNumber:   i + 1,
			StepName:     stepName,
			RequiredRole: role,
			MinApprovals: orDefault(s.MinApprovals, 1),
			TimeoutHours: orDefault(s.TimeoutHours, wf.TimeoutHours),
		})
	}

	if err := ps.db.WithContext(ctx).Create(wf).Error; err != nil {
		return nil, apperr.FromStorage(err, "publishing workflow")
	}
	ps.logger.Info("Publishing workflow created", zap.String("workflow_id", wf.ID), zap.Int("steps", len(wf.Steps)))
	return wf, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (ps *PublishingService) ListWorkflows(ctx context.Context, organizationID string) ([]models.PublishingWorkflow, error) {
	workflows := []models.PublishingWorkflow{}
	query := ps.db.WithContext(ctx).Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	})
	if organizationID != "" {
		query = query.Where("organization_id = ?", organizationID)
	}
	if err := query.Order("name").Find(&workflows).Error; err != nil {
		return nil, apperr.FromStorage(err, "publishing workflow")
	}
	return workflows, nil
}

func (ps *PublishingService) Get(ctx context.Context, id string) (*models.Publishing, error) {
	var pub models.Publishing
	err := ps.db.WithContext(ctx).
		Preload("Workflow.Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		Preload("Approvals").
		First(&pub, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "publishing")
	}
	return &pub, nil
}

func loadPublishingWorkflow(tx *gorm.DB, id string) (*models.PublishingWorkflow, error) {
	var wf models.PublishingWorkflow
	err := tx.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		First(&wf, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "publishing workflow")
	}
	return &wf, nil
}

func stepNumbered(wf *models.PublishingWorkflow, n int) *models.ApprovalStep {
	for i := range wf.Steps {
		if wf.Steps[i].StepNumber == n {
			return &wf.Steps[i]
		}
	}
	return nil
}

// Submit opens a publishing request for a document.
func (ps *PublishingService) Submit(ctx context.Context, actor *models.User, in SubmitPublishingInput) (*models.Publishing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.DocumentID == "" || in.WorkflowID == "" {
		return nil, apperr.Validation("documentId and workflowId are required")
	}

	var (
		pub       *models.Publishing
		published *models.Document
	)
	now := ps.now().UTC()
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, in.DocumentID)
		if err != nil {
			return err
		}
		if doc.OrganizationID != actor.OrganizationID && !actor.IsAdmin() {
			return apperr.Forbidden("document belongs to another organization")
		}
		if doc.Status == models.StatusPublished || doc.Status == models.StatusArchived {
			return apperr.Conflict("document is already published or archived")
		}

		wf, err := loadPublishingWorkflow(tx, in.WorkflowID)
		if err != nil {
			return err
		}

		var open int64
		err = tx.Model(&models.Publishing{}).
			Where("document_id = ? AND status IN ?", doc.ID, []models.PublishingStatus{
				models.PublishingPending, models.PublishingInApproval, models.PublishingApproved,
			}).
			Count(&open).Error
		if err != nil {
			return apperr.FromStorage(err, "publishing")
		}
		if open > 0 {
			return ErrAlreadySubmitted
		}

		pub = &models.Publishing{
			DocumentID:    doc.ID,
			WorkflowID:    wf.ID,
			Status:        models.PublishingPending,
			CurrentStep:   1,
			SubmittedByID: actor.ID,
			Notes:         strings.TrimSpace(in.Notes),
		}
		if in.ScheduledPublishAt != nil {
			at := in.ScheduledPublishAt.UTC()
			pub.ScheduledPublishAt = &at
		}

		if wf.AutoApprove || len(wf.Steps) == 0 {
			pub.Status = models.PublishingApproved
		}
		if err := tx.Create(pub).Error; err != nil {
			return apperr.FromStorage(err, "publishing")
		}

		if pub.Status == models.PublishingApproved {
			if due(pub, now) {
				published, err = ps.publish(tx, pub, actor.ID, now)
				return err
			}
			return nil
		}
		return ps.requestApprovals(tx, pub, doc.OrganizationID, &wf.Steps[0], now)
	})
	if err != nil {
		return nil, err
	}

	ps.metrics.IncrementCounter("publishing_submitted", map[string]string{"status": string(pub.Status)})
	ps.logger.Info("Document submitted for publishing",
		zap.String("publishing_id", pub.ID),
		zap.String("document_id", pub.DocumentID),
		zap.String("status", string(pub.Status)))
	ps.archiveAfterCommit(ctx, published, actor.ID, now)
	return ps.Get(ctx, pub.ID)
}

func due(pub *models.Publishing, now time.Time) bool {
	return pub.ScheduledPublishAt == nil || !pub.ScheduledPublishAt.After(now)
}

// requestApprovals creates one pending approval per user holding the step's role.
func (ps *PublishingService) requestApprovals(tx *gorm.DB, pub *models.Publishing, organizationID string, step *models.ApprovalStep, now time.Time) error {
	approvers, err := usersWithRole(tx, organizationID, step.RequiredRole)
	if err != nil {
		return err
	}
	if len(approvers) == 0 {
		ps.logger.Warn("No approvers hold the required role",
			zap.String("publishing_id", pub.ID),
			zap.String("role", step.RequiredRole))
		return nil
	}

	dueAt := now.Add(time.Duration(orDefault(step.TimeoutHours, defaultTimeoutHours)) * time.Hour)
	approvals := make([]models.Approval, 0, len(approvers))
	notes := make([]models.Notification, 0, len(approvers))
	for _, u := range approvers {
		approvals = append(approvals, models.Approval{
			PublishingID: pub.ID,
			StepID:       step.ID,
			ApproverID:   u.ID,
			Status:       models.ApprovalPending,
			DueAt:        &dueAt,
		})
		notes = append(notes, models.Notification{
			RecipientID:  u.ID,
			Type:         models.NotifyApprovalRequest,
			Title:        "Approval requested: " + step.StepName,
			Message:      fmt.Sprintf("Step %d (%s) awaits your decision by %s.", step.StepNumber, step.StepName, dueAt.Format(time.RFC3339)),
			DocumentID:   pub.DocumentID,
			PublishingID: pub.ID,
		})
	}
	if err := tx.Create(&approvals).Error; err != nil {
		return apperr.FromStorage(err, "approval")
	}
	ps.metrics.IncrementCounter("approval_requests", map[string]string{"role": step.RequiredRole})
	return notify(tx, ps.metrics, notes...)
}

// ProcessApproval records an approver's decision and advances the publishing.
// Any rejection rejects the whole publishing.
func (ps *PublishingService) ProcessApproval(ctx context.Context, actor *models.User, in ApprovalInput) (*models.Approval, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	decision := strings.ToUpper(strings.TrimSpace(in.Decision))
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperr.Validation("decision must be APPROVE or REJECT")
	}

	var (
		approval  *models.Approval
		published *models.Document
	)
	now := ps.now().UTC()
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pub models.Publishing
		if err := forUpdate(tx).First(&pub, "id = ?", in.PublishingID).Error; err != nil {
			return apperr.FromStorage(err, "publishing")
		}
		if pub.Status != models.PublishingPending && pub.Status != models.PublishingInApproval {
			return apperr.Conflict("publishing is not awaiting approval").
				WithDetails(map[string]string{"status": string(pub.Status)})
		}

		wf, err := loadPublishingWorkflow(tx, pub.WorkflowID)
		if err != nil {
			return err
		}
		step := stepNumbered(wf, pub.CurrentStep)
		if step == nil {
			return apperr.Internal("publishing points at a missing step", nil)
		}
		if in.StepID != "" && in.StepID != step.ID {
			return apperr.Conflict("approval step is not the current step").
				WithDetails(map[string]any{"currentStep": step.StepNumber, "currentStepId": step.ID})
		}
		if !actor.IsAdmin() {
			if actor.RoleName() != step.RequiredRole {
				return ErrNotApprover.WithDetails(map[string]string{"requiredRole": step.RequiredRole})
			}
			var doc models.Document
			if err := tx.Select("id", "organization_id").First(&doc, "id = ?", pub.DocumentID).Error; err != nil {
				return apperr.FromStorage(err, "document")
			}
			if doc.OrganizationID != actor.OrganizationID {
				return ErrNotApprover.WithDetails(map[string]string{"reason": "document belongs to another organization"})
			}
		}

		var existing models.Approval
		err = tx.Where("publishing_id = ? AND step_id = ? AND approver_id = ?", pub.ID, step.ID, actor.ID).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Status != models.ApprovalPending {
				return ErrAlreadyResponded
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			dueAt := now.Add(time.Duration(orDefault(step.TimeoutHours, defaultTimeoutHours)) * time.Hour)
			existing = models.Approval{PublishingID: pub.ID, StepID: step.ID, ApproverID: actor.ID, DueAt: &dueAt}
		default:
			return apperr.FromStorage(err, "approval")
		}

		existing.Status = models.ApprovalApproved
		if decision == DecisionReject {
			existing.Status = models.ApprovalRejected
		}
		existing.Decision = decision
		existing.Comments = strings.TrimSpace(in.Comments)
		existing.RespondedAt = &now
		if err := tx.Save(&existing).Error; err != nil {
			return apperr.FromStorage(err, "approval")
		}
		approval = &existing

		published, err = ps.advance(tx, &pub, wf, step, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	ps.metrics.IncrementCounter("approvals_processed", map[string]string{"decision": decision})
	ps.logger.Info("Approval processed",
		zap.String("publishing_id", in.PublishingID),
		zap.String("approver", actor.ID),
		zap.String("decision", decision))
	ps.archiveAfterCommit(ctx, published, systemActor, now)
	return approval, nil
}

// advance checks whether step is settled and moves the publishing on.
func (ps *PublishingService) advance(tx *gorm.DB, pub *models.Publishing, wf *models.PublishingWorkflow, step *models.ApprovalStep, now time.Time) (*models.Document, error) {
	var rows []struct {
		Status models.ApprovalStatus
		Count  int64
	}
	err := tx.Model(&models.Approval{}).
		Select("status, COUNT(*) AS count").
		Where("publishing_id = ? AND step_id = ?", pub.ID, step.ID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "approval")
	}
	counts := map[models.ApprovalStatus]int64{}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	if counts[models.ApprovalRejected] > 0 {
		pub.Status = models.PublishingRejected
		return nil, apperr.FromStorage(tx.Model(pub).Update("status", pub.Status).Error, "publishing")
	}
	if counts[models.ApprovalApproved] < int64(step.MinApprovals) {
		if pub.Status == models.PublishingPending {
			pub.Status = models.PublishingInApproval
			return nil, apperr.FromStorage(tx.Model(pub).Update("status", pub.Status).Error, "publishing")
		}
		return nil, nil
	}

	if next := stepNumbered(wf, step.StepNumber+1); next != nil {
		pub.CurrentStep = next.StepNumber
		pub.Status = models.PublishingInApproval
		err := tx.Model(pub).Updates(map[string]any{"current_step": pub.CurrentStep, "status": pub.Status}).Error
		if err != nil {
			return nil, apperr.FromStorage(err, "publishing")
		}
		var doc models.Document
		if err := tx.Select("id", "organization_id").First(&doc, "id = ?", pub.DocumentID).Error; err != nil {
			return nil, apperr.FromStorage(err, "document")
		}
		return nil, ps.requestApprovals(tx, pub, doc.OrganizationID, next, now)
	}

	pub.Status = models.PublishingApproved
	if err := tx.Model(pub).Update("status", pub.Status).Error; err != nil {
		return nil, apperr.FromStorage(err, "publishing")
	}
	if due(pub, now) {
		return ps.publish(tx, pub, systemActor, now)
	}
	return nil, nil
}

// publish marks the publishing and its document published inside tx.
func (ps *PublishingService) publish(tx *gorm.DB, pub *models.Publishing, by string, now time.Time) (*models.Document, error) {
	doc, err := loadDocumentForUpdate(tx, pub.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(doc).Update("status", models.StatusPublished).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}
	doc.Status = models.StatusPublished

	pub.Status = models.PublishingPublished
	pub.PublishedAt = &now
	pub.PublishedByID = by
	err = tx.Model(pub).Updates(map[string]any{
		"status":          pub.Status,
		"published_at":    now,
		"published_by_id": by,
	}).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "publishing")
	}

	err = notify(tx, ps.metrics, models.Notification{
		RecipientID:  pub.SubmittedByID,
		Type:         models.NotifyPublished,
		Title:        "Document published: " + doc.Title,
		Message:      fmt.Sprintf("%q was published at %s.", doc.Title, now.Format(time.RFC3339)),
		DocumentID:   doc.ID,
		PublishingID: pub.ID,
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (ps *PublishingService) archiveAfterCommit(ctx context.Context, doc *models.Document, by string, at time.Time) {
	if doc == nil {
		return
	}
	ps.metrics.IncrementCounter("documents_published", nil)
	ps.logger.Info("Document published", zap.String("document_id", doc.ID), zap.String("published_by", by))
	if err := ps.archive.Store(ctx, archive.SnapshotOf(doc, by, at)); err != nil {
		ps.metrics.IncrementCounter("archive_errors", nil)
		ps.logger.Error("Failed to archive published document", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

// Publish releases an approved publishing. Only AFDPO and administrators may do this.
func (ps *PublishingService) Publish(ctx context.Context, actor *models.User, publishingID string) (*models.Publishing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.RoleName() != models.RoleAFDPO && !actor.IsAdmin() {
		return nil, apperr.Forbidden("only AFDPO or an administrator may publish")
	}

	var published *models.Document
	now := ps.now().UTC()
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pub models.Publishing
		if err := forUpdate(tx).First(&pub, "id = ?", publishingID).Error; err != nil {
			return apperr.FromStorage(err, "publishing")
		}
		if pub.Status != models.PublishingApproved {
			return ErrNotPublishable.WithDetails(map[string]string{"status": string(pub.Status)})
		}
		var err error
		published, err = ps.publish(tx, &pub, actor.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	ps.archiveAfterCommit(ctx, published, actor.ID, now)
	return ps.Get(ctx, publishingID)
}

func (ps *PublishingService) Dashboard(ctx context.Context, actor *models.User) (*Dashboard, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	db := ps.db.WithContext(ctx)
	orgDocs := db.Model(&models.Document{}).Select("id").Where("organization_id = ?", actor.OrganizationID)
	scoped := func() *gorm.DB {
		return db.Model(&models.Publishing{}).Where("document_id IN (?)", orgDocs)
	}

	d := &Dashboard{
		Pending:     []models.Publishing{},
		Scheduled:   []models.Publishing{},
		Recent:      []models.Publishing{},
		MyApprovals: []models.Approval{},
	}
	err := scoped().Preload("Document", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "title", "status", "current_stage", "organization_id")
	}).
		Where("status IN ?", []models.PublishingStatus{models.PublishingPending, models.PublishingInApproval}).
		Order("created_at DESC").
		Find(&d.Pending).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "publishing")
	}

	err = scoped().
		Where("status = ? AND scheduled_publish_at > ?", models.PublishingApproved, ps.now().UTC()).
		Order("scheduled_publish_at ASC").
		Find(&d.Scheduled).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "publishing")
	}

	err = scoped().
		Where("status = ?", models.PublishingPublished).
		Order("published_at DESC").
		Limit(recentPublications).
		Find(&d.Recent).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "publishing")
	}

	err = db.Preload("Step").
		Where("approver_id = ? AND status = ?", actor.ID, models.ApprovalPending).
		Order("due_at ASC").
		Find(&d.MyApprovals).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "approval")
	}
	return d, nil
}

// ExpireApprovals marks pending approvals past their due time as expired and
// tells each approver.
func (ps *PublishingService) ExpireApprovals(ctx context.Context, now time.Time) (int, error) {
	var expired []models.Approval
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).Preload("Step").
			Where("status = ? AND due_at <= ?", models.ApprovalPending, now.UTC()).
			Find(&expired).Error
		if err != nil {
			return apperr.FromStorage(err, "approval")
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, len(expired))
		notes := make([]models.Notification, len(expired))
		for i, a := range expired {
			ids[i] = a.ID
			stepName := "approval step"
			if a.Step != nil {
				stepName = a.Step.StepName
			}
			notes[i] = models.Notification{
				RecipientID:  a.ApproverID,
				Type:         models.NotifyApprovalExpired,
				Title:        "Approval expired: " + stepName,
				Message:      fmt.Sprintf("The %s request passed its due time without a decision.", stepName),
				PublishingID: a.PublishingID,
			}
		}
		err = tx.Model(&models.Approval{}).Where("id IN ?", ids).Update("status", models.ApprovalExpired).Error
		if err != nil {
			return apperr.FromStorage(err, "approval")
		}
		return notify(tx, ps.metrics, notes...)
	})
	if err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		ps.metrics.IncrementCounter("approvals_expired", nil)
		ps.logger.Info("Expired overdue approvals", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

// PublishScheduled publishes every approved item whose schedule has passed.
func (ps *PublishingService) PublishScheduled(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	var ids []string
	err := ps.db.WithContext(ctx).Model(&models.Publishing{}).
		Where("status = ? AND scheduled_publish_at <= ?", models.PublishingApproved, now).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, apperr.FromStorage(err, "publishing")
	}

	published := 0
	var errs []error
	for _, id := range ids {
		var doc *models.Document
		err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var pub models.Publishing
			if err := forUpdate(tx).First(&pub, "id = ?", id).Error; err != nil {
				return apperr.FromStorage(err, "publishing")
			}
			if pub.Status != models.PublishingApproved {
				return nil
			}
			var err error
			doc, err = ps.publish(tx, &pub, systemActor, now)
			return err
		})
		if err != nil {
			ps.logger.Error("Scheduled publication failed", zap.String("publishing_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if doc != nil {
			published++
			ps.archiveAfterCommit(ctx, doc, systemActor, now)
		}
	}
	return published, errors.Join(errs...)
}
