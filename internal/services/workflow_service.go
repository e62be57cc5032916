package services

import (
	"context"
	"errors"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/feedback"
	"github.com/richmond-dms/docflow/internal/workflow"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrWorkflowExists     = apperr.Coded(apperr.KindConflict, "WORKFLOW_EXISTS", "a workflow is already running for this document")
	ErrWorkflowNotStarted = apperr.Coded(apperr.KindNotFound, "WORKFLOW_NOT_FOUND", "no workflow has been started for this document")
	ErrConcurrentUpdate   = apperr.Coded(apperr.KindConflict, "CONCURRENT_MODIFICATION", "the workflow was changed by another request")
	ErrInvalidReviewers   = apperr.Coded(apperr.KindValidation, "INVALID_REVIEWERS", "every reviewer must be an active user allowed at the review stage")
)

type WorkflowService struct {
	db      *gorm.DB
	catalog *workflow.Catalog
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
	now     func() time.Time
}

type TransitionInput struct {
	Action        string          `json:"action"`
	Comment       string          `json:"comment"`
	ExpectedStage string          `json:"expectedStage"`
	Reviewers     []string        `json:"reviewers"`
	OnBehalfOf    string          `json:"onBehalfOf"`
	Feedback      []FeedbackInput `json:"feedback"`
}

type TransitionResult struct {
	DocumentID      string                   `json:"documentId"`
	Action          string                   `json:"action"`
	FromStage       string                   `json:"fromStage"`
	ToStage         string                   `json:"toStage"`
	Transitioned    bool                     `json:"transitioned"`
	Completed       bool                     `json:"completed"`
	DocumentStatus  models.DocumentStatus    `json:"documentStatus"`
	ApprovalsNeeded int                      `json:"approvalsNeeded,omitempty"`
	Feedback        []models.FeedbackItem    `json:"feedback,omitempty"`
	Conflicts       []feedback.Conflict      `json:"conflicts,omitempty"`
	Instance        *models.WorkflowInstance `json:"instance"`
}

type WorkflowStatus struct {
	DocumentID       string                      `json:"documentId"`
	WorkflowID       string                      `json:"workflowId"`
	Status           models.InstanceStatus       `json:"status"`
	Revision         int                         `json:"revision"`
	Stage            *workflow.Stage             `json:"stage,omitempty"`
	StageID          string                      `json:"stageId"`
	StageName        string                      `json:"stageName"`
	StageCode        string                      `json:"stageCode"`
	StageEnteredAt   time.Time                   `json:"stageEnteredAt"`
	DueAt            *time.Time                  `json:"dueAt,omitempty"`
	Overdue          bool                        `json:"overdue"`
	Reviewers        []models.ReviewerAssignment `json:"reviewers"`
	PendingReviewers []string                    `json:"pendingReviewers"`
	Approvals        []models.StageApproval      `json:"approvals"`
	AvailableActions []workflow.Action           `json:"availableActions"`
}

func NewWorkflowService(db *gorm.DB, catalog *workflow.Catalog, logger *zap.Logger, metrics *metrics.MetricsCollector) *WorkflowService {
	return &WorkflowService{
		db:      db,
		catalog: catalog,
		logger:  logger.With(zap.String("service", "workflow_service")),
		metrics: metrics,
		now:     time.Now,
	}
}

func (ws *WorkflowService) Catalog() *workflow.Catalog { return ws.catalog }

// registryFor resolves the definition an instance was started under.
func (ws *WorkflowService) registryFor(inst *models.WorkflowInstance) (*workflow.Registry, error) {
	reg, err := ws.catalog.Get(inst.WorkflowID)
	if err != nil {
		return nil, apperr.Internal("workflow instance references an unregistered definition", err)
	}
	return reg, nil
}

func (ws *WorkflowService) instance(tx *gorm.DB, docID string) (*models.WorkflowInstance, error) {
	var inst models.WorkflowInstance
	if err := tx.First(&inst, "document_id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkflowNotStarted
		}
		return nil, apperr.FromStorage(err, "workflow")
	}
	return &inst, nil
}

// Start opens a workflow for the document at the first stage of the named
// definition, or of the default one when workflowID is empty.
func (ws *WorkflowService) Start(ctx context.Context, actor *models.User, docID, workflowID string) (*models.WorkflowInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	registry, err := ws.catalog.Get(workflowID)
	if err != nil {
		return nil, err
	}
	first := registry.First()

	var inst *models.WorkflowInstance
	err = ws.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := loadDocumentForUpdate(tx, docID)
		if err != nil {
			return err
		}
		if doc.CreatedByID != actor.ID && !first.Allows(actor.RoleName()) {
			return workflow.ErrRoleNotAllowed.WithDetails(map[string]any{
				"role":         actor.RoleName(),
				"allowedRoles": first.Roles,
			})
		}

		var existing int64
		if err := tx.Model(&models.WorkflowInstance{}).Where("document_id = ?", docID).Count(&existing).Error; err != nil {
			return apperr.FromStorage(err, "workflow")
		}
		if existing > 0 {
			return ErrWorkflowExists
		}

		now := ws.now()
		inst = &models.WorkflowInstance{
			DocumentID:     docID,
			WorkflowID:     registry.ID(),
			CurrentStage:   first.ID,
			Status:         models.InstanceActive,
			Revision:       1,
			StageEnteredAt: now,
			StartedByID:    actor.ID,
			Reviewers:      []models.ReviewerAssignment{},
			Approvals:      []models.StageApproval{},
		}
		if err := tx.Create(inst).Error; err != nil {
			return apperr.FromStorage(err, "workflow")
		}
		if err := tx.Model(doc).Updates(map[string]any{"current_stage": first.ID, "status": first.Status}).Error; err != nil {
			return apperr.FromStorage(err, "document")
		}
		return ws.audit(tx, inst, "", first.ID, "start", actor, "")
	})
	if err != nil {
		return nil, err
	}

	ws.metrics.IncrementCounter("workflows_started", map[string]string{"workflow": registry.ID()})
	ws.logger.Info("Workflow started",
		zap.String("document_id", docID),
		zap.String("workflow", registry.ID()),
		zap.String("actor", actor.ID))
	return inst, nil
}

func (ws *WorkflowService) audit(tx *gorm.DB, inst *models.WorkflowInstance, from, to, action string, actor *models.User, comment string) error {
	row := models.WorkflowTransition{
		InstanceID: inst.ID,
		DocumentID: inst.DocumentID,
		FromStage:  from,
		ToStage:    to,
		Action:     action,
		ActorID:    actor.ID,
		ActorRole:  actor.RoleName(),
		Comment:    comment,
		Revision:   inst.Revision,
	}
	return apperr.FromStorage(tx.Create(&row).Error, "workflow transition")
}

// Status describes where the document sits and what the actor may do next.
func (ws *WorkflowService) Status(ctx context.Context, actor *models.User, docID string) (*WorkflowStatus, error) {
	inst, err := ws.instance(ws.db.WithContext(ctx), docID)
	if err != nil {
		return nil, err
	}
	registry, err := ws.registryFor(inst)
	if err != nil {
		return nil, err
	}
	stage, err := registry.Stage(inst.CurrentStage)
	if err != nil {
		return nil, err
	}

	st := &WorkflowStatus{
		DocumentID:       docID,
		WorkflowID:       inst.WorkflowID,
		Status:           inst.Status,
		Revision:         inst.Revision,
		Stage:            stage,
		StageID:          stage.ID,
		StageName:        stage.Name,
		StageCode:        stage.Code,
		StageEnteredAt:   inst.StageEnteredAt,
		Reviewers:        inst.Reviewers,
		PendingReviewers: workflow.PendingReviewers(inst.Reviewers, stage.ID),
		Approvals:        inst.Approvals,
		AvailableActions: []workflow.Action{},
	}
	if st.Reviewers == nil {
		st.Reviewers = []models.ReviewerAssignment{}
	}
	if st.Approvals == nil {
		st.Approvals = []models.StageApproval{}
	}
	if due := stage.Due(inst.StageEnteredAt); !due.IsZero() && inst.Status == models.InstanceActive {
		st.DueAt = &due
		st.Overdue = ws.now().After(due)
	}
	if inst.Status == models.InstanceActive && actor != nil {
		st.AvailableActions, _ = registry.AvailableActions(stage.ID, actor.RoleName())
	}
	return st, nil
}

// Transition runs one workflow action. Validation happens first; the instance,
// the document and the audit row are then written in one transaction, guarded
// by the instance revision.
func (ws *WorkflowService) Transition(ctx context.Context, actor *models.User, docID string, in TransitionInput) (*TransitionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var res TransitionResult
	err := ws.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := ws.instance(forUpdate(tx), docID)
		if err != nil {
			return err
		}
		registry, err := ws.registryFor(inst)
		if err != nil {
			return err
		}
		decision, err := registry.Validate(workflow.Request{
			Instance:      inst,
			ActorID:       actor.ID,
			ActorRole:     actor.RoleName(),
			Action:        in.Action,
			Comment:       in.Comment,
			ExpectedStage: in.ExpectedStage,
			Reviewers:     in.Reviewers,
			OnBehalfOf:    in.OnBehalfOf,
		})
		if err != nil {
			return err
		}

		res = TransitionResult{
			DocumentID:      docID,
			Action:          decision.Action.ID,
			FromStage:       decision.From.ID,
			ToStage:         decision.From.ID,
			DocumentStatus:  decision.Status,
			ApprovalsNeeded: decision.ApprovalsNeeded,
			Instance:        inst,
		}
		if decision.Noop && len(in.Feedback) == 0 {
			return nil
		}
		if len(decision.Assign) > 0 {
			if err := checkReviewers(tx, decision.To, decision.Assign); err != nil {
				return err
			}
		}

		doc, err := loadDocumentForUpdate(tx, docID)
		if err != nil {
			return err
		}
		docUpdates := map[string]any{}

		if len(in.Feedback) > 0 {
			fields := doc.Fields()
			items, conflicts, err := appendFeedback(&fields, doc.ID, actor, decision.From.ID, in.Feedback, ws.now())
			if err != nil {
				return err
			}
			res.Feedback, res.Conflicts = items, conflicts
			if err := saveFields(tx, doc, fields, nil); err != nil {
				return err
			}
		}
		// late feedback on a repeated submission leaves the instance untouched
		if decision.Noop {
			return nil
		}

		now := ws.now()
		applyDecision(inst, decision, actor, now)
		if decision.Transition {
			res.Transitioned = true
			res.Completed = decision.Terminal
			if decision.To != nil {
				res.ToStage = decision.To.ID
			}
			docUpdates["status"] = decision.Status
			docUpdates["current_stage"] = inst.CurrentStage
		}

		if err := ws.saveInstance(tx, inst); err != nil {
			return err
		}
		if len(docUpdates) > 0 {
			if err := tx.Model(doc).Updates(docUpdates).Error; err != nil {
				return apperr.FromStorage(err, "document")
			}
		}
		return ws.audit(tx, inst, res.FromStage, res.ToStage, decision.Action.ID, actor, in.Comment)
	})
	if err != nil {
		if ae := apperr.As(err); ae.Kind == apperr.KindForbidden || ae.Kind == apperr.KindConflict {
			ws.metrics.IncrementCounter("workflow_rejected_actions", map[string]string{"code": ae.Code})
		}
		return nil, err
	}

	ws.metrics.IncrementCounter("workflow_actions", map[string]string{
		"action": res.Action,
		"from":   res.FromStage,
		"to":     res.ToStage,
	})
	ws.logger.Info("Workflow action applied",
		zap.String("document_id", docID),
		zap.String("action", res.Action),
		zap.String("from", res.FromStage),
		zap.String("to", res.ToStage),
		zap.Bool("transitioned", res.Transitioned),
		zap.String("actor", actor.ID))
	return &res, nil
}

// checkReviewers makes sure every distributed reviewer is an active user whose
// role may act at the collection stage.
func checkReviewers(tx *gorm.DB, stage *workflow.Stage, ids []string) error {
	var users []models.User
	if err := tx.Preload("Role").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return apperr.FromStorage(err, "user")
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	var unknown, inactive, gated []string
	for _, id := range ids {
		u, ok := byID[id]
		switch {
		case !ok:
			unknown = append(unknown, id)
		case !u.Active:
			inactive = append(inactive, id)
		case !stage.Allows(u.RoleName()):
			gated = append(gated, id)
		}
	}
	if len(unknown)+len(inactive)+len(gated) == 0 {
		return nil
	}
	details := map[string]any{"stage": stage.ID, "allowedRoles": stage.Roles}
	if len(unknown) > 0 {
		details["unknown"] = unknown
	}
	if len(inactive) > 0 {
		details["inactive"] = inactive
	}
	if len(gated) > 0 {
		details["roleNotAllowed"] = gated
	}
	return ErrInvalidReviewers.WithDetails(details)
}

// applyDecision mutates inst in memory.
func applyDecision(inst *models.WorkflowInstance, d workflow.Decision, actor *models.User, now time.Time) {
	reviewers := []models.ReviewerAssignment(inst.Reviewers)
	approvals := []models.StageApproval(inst.Approvals)

	if len(d.Assign) > 0 && d.To != nil {
		kept := reviewers[:0:0]
		for _, r := range reviewers {
			if r.Stage != d.To.ID {
				kept = append(kept, r)
			}
		}
		for _, id := range d.Assign {
			kept = append(kept, models.ReviewerAssignment{UserID: id, Stage: d.To.ID, AssignedBy: actor.ID, AssignedAt: now})
		}
		reviewers = kept
	}

	if d.SubmittedBy != "" {
		for i := range reviewers {
			if reviewers[i].Stage == d.From.ID && reviewers[i].UserID == d.SubmittedBy {
				at := now
				reviewers[i].SubmittedAt = &at
			}
		}
	}

	if d.RecordApproval {
		approvals = append(approvals, models.StageApproval{
			Stage:      d.From.ID,
			ApproverID: actor.ID,
			Role:       actor.RoleName(),
			Action:     d.Action.ID,
			At:         now,
		})
	}

	if d.Transition {
		switch {
		case d.Terminal:
			inst.Status = models.InstanceCompleted
		case d.To != nil:
			inst.CurrentStage = d.To.ID
			inst.StageEnteredAt = now
			// re-entering a stage starts its approval count over
			fresh := approvals[:0:0]
			for _, a := range approvals {
				if a.Stage != d.To.ID {
					fresh = append(fresh, a)
				}
			}
			approvals = fresh
		}
	}

	inst.Reviewers = reviewers
	inst.Approvals = approvals
}

// saveInstance writes inst if its revision is unchanged since it was read.
func (ws *WorkflowService) saveInstance(tx *gorm.DB, inst *models.WorkflowInstance) error {
	res := tx.Model(&models.WorkflowInstance{}).
		Where("id = ? AND revision = ?", inst.ID, inst.Revision).
		Updates(map[string]any{
			"current_stage":    inst.CurrentStage,
			"status":           inst.Status,
			"stage_entered_at": inst.StageEnteredAt,
			"reviewers":        inst.Reviewers,
			"approvals":        inst.Approvals,
			"revision":         inst.Revision + 1,
		})
	if res.Error != nil {
		return apperr.FromStorage(res.Error, "workflow")
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	inst.Revision++
	return nil
}

func (ws *WorkflowService) AvailableActions(ctx context.Context, actor *models.User, docID string) ([]workflow.Action, error) {
	st, err := ws.Status(ctx, actor, docID)
	if err != nil {
		return nil, err
	}
	return st.AvailableActions, nil
}

func (ws *WorkflowService) History(ctx context.Context, docID string) ([]models.WorkflowTransition, error) {
	rows := []models.WorkflowTransition{}
	err := ws.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("revision ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "workflow transition")
	}
	return rows, nil
}

// Reset returns the workflow to its first stage. Administrators only.
func (ws *WorkflowService) Reset(ctx context.Context, actor *models.User, docID, comment string) (*models.WorkflowInstance, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var inst *models.WorkflowInstance
	err := ws.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inst, err = ws.instance(forUpdate(tx), docID)
		if err != nil {
			return err
		}
		registry, err := ws.registryFor(inst)
		if err != nil {
			return err
		}
		first := registry.First()
		from := inst.CurrentStage

		inst.CurrentStage = first.ID
		inst.Status = models.InstanceActive
		inst.StageEnteredAt = ws.now()
		inst.Reviewers = []models.ReviewerAssignment{}
		inst.Approvals = []models.StageApproval{}
		if err := ws.saveInstance(tx, inst); err != nil {
			return err
		}

		err = tx.Model(&models.Document{}).Where("id = ?", docID).
			Updates(map[string]any{"current_stage": first.ID, "status": first.Status}).Error
		if err != nil {
			return apperr.FromStorage(err, "document")
		}
		return ws.audit(tx, inst, from, first.ID, "reset", actor, comment)
	})
	if err != nil {
		return nil, err
	}

	ws.metrics.IncrementCounter("workflow_resets", nil)
	ws.logger.Warn("Workflow reset", zap.String("document_id", docID), zap.String("actor", actor.ID))
	return inst, nil
}
