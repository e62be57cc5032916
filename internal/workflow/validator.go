package workflow

import (
	"slices"
	"strings"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
)

var (
	ErrUnknownStage      = apperr.Coded(apperr.KindValidation, "UNKNOWN_STAGE", "unknown workflow stage")
	ErrUnknownAction     = apperr.Coded(apperr.KindValidation, "INVALID_ACTION", "action is not available at the current stage")
	ErrRoleNotAllowed    = apperr.Coded(apperr.KindForbidden, "ROLE_NOT_ALLOWED", "role may not act at the current stage")
	ErrCommentRequired   = apperr.Coded(apperr.KindValidation, "COMMENT_REQUIRED", "a comment is required for this action")
	ErrReviewersRequired = apperr.Coded(apperr.KindValidation, "REVIEWERS_REQUIRED", "at least one reviewer must be selected")
	ErrNotAssigned       = apperr.Coded(apperr.KindForbidden, "NOT_ASSIGNED_REVIEWER", "actor is not an assigned reviewer at this stage")
	ErrStaleStage        = apperr.Coded(apperr.KindConflict, "STALE_STAGE", "document has moved to another stage")
	ErrReviewsPending    = apperr.Coded(apperr.KindConflict, "REVIEWS_PENDING", "not every distributed reviewer has submitted")
	ErrInactive          = apperr.Coded(apperr.KindConflict, "WORKFLOW_INACTIVE", "workflow is not active")
)

// Request is one attempted action against a workflow instance.
type Request struct {
	Instance      *models.WorkflowInstance
	ActorID       string
	ActorRole     string
	Action        string
	Comment       string
	ExpectedStage string
	// Reviewers are the user IDs handed the document by a distribution action.
	Reviewers []string
	// OnBehalfOf lets a coordinator or admin record a reviewer's submission.
	OnBehalfOf string
}

// Decision tells the caller what to persist.
type Decision struct {
	From       *Stage
	To         *Stage
	Action     Action
	Transition bool
	Terminal   bool
	Status     models.DocumentStatus
	// Assign is set for distribution actions.
	Assign []string
	// SubmittedBy is the reviewer whose submission gets recorded.
	SubmittedBy string
	// RecordApproval is set when the actor's approval must be stored.
	RecordApproval bool
	// Noop marks a repeated submission or approval.
	Noop bool
	// ApprovalsNeeded is how many distinct approvals the stage still lacks.
	ApprovalsNeeded int
}

// Validate is the only place that decides whether an action may run.
func (r *Registry) Validate(req Request) (Decision, error) {
	inst := req.Instance
	if inst == nil || inst.Status != models.InstanceActive {
		return Decision{}, ErrInactive
	}

	current, err := r.Stage(inst.CurrentStage)
	if err != nil {
		return Decision{}, err
	}

	if req.ExpectedStage != "" {
		expected, err := r.Stage(req.ExpectedStage)
		if err != nil {
			return Decision{}, err
		}
		if expected.ID != current.ID {
			return Decision{}, ErrStaleStage.WithDetails(map[string]string{
				"expectedStage": expected.ID,
				"currentStage":  current.ID,
			})
		}
	}

	action, ok := current.Action(req.Action)
	if !ok {
		return Decision{}, ErrUnknownAction.WithDetails(map[string]any{
			"action":       req.Action,
			"stage":        current.ID,
			"validActions": actionIDs(current.Actions),
		})
	}

	if !current.Allows(req.ActorRole) {
		return Decision{}, ErrRoleNotAllowed.WithDetails(map[string]any{
			"role":         req.ActorRole,
			"stage":        current.ID,
			"allowedRoles": current.Roles,
		})
	}

	if action.RequireComment && strings.TrimSpace(req.Comment) == "" {
		return Decision{}, ErrCommentRequired.WithDetails(map[string]string{"action": action.ID})
	}

	d := Decision{From: current, To: current, Action: action, Status: current.Status}

	switch action.Kind {
	case ActionDistribute:
		reviewers := dedupe(req.Reviewers)
		if len(reviewers) == 0 {
			return Decision{}, ErrReviewersRequired
		}
		d.Assign = reviewers

	case ActionSubmitReview:
		reviewer := req.ActorID
		assigned := findAssignment(inst.Reviewers, current.ID, reviewer)
		if assigned == nil {
			onBehalf := req.ActorRole == models.RoleAdmin || req.ActorRole == models.RoleCoordinator
			if !onBehalf {
				return Decision{}, ErrNotAssigned
			}
			if req.OnBehalfOf != "" {
				reviewer = req.OnBehalfOf
				if assigned = findAssignment(inst.Reviewers, current.ID, reviewer); assigned == nil {
					return Decision{}, ErrNotAssigned.WithDetails(map[string]string{"reviewer": reviewer})
				}
			}
		}
		if assigned != nil {
			if assigned.SubmittedAt != nil {
				d.Noop = true
			} else {
				d.SubmittedBy = reviewer
			}
		}

	case ActionCompleteReviews:
		if pending := PendingReviewers(inst.Reviewers, current.ID); len(pending) > 0 {
			return Decision{}, ErrReviewsPending.WithDetails(map[string]any{"pending": pending})
		}

	case ActionApprove:
		if hasApproved(inst.Approvals, current.ID, req.ActorID) {
			d.Noop = true
			break
		}
		d.RecordApproval = true
		got := distinctApprovers(inst.Approvals, current.ID) + 1
		if current.RequiredApprovals > 1 && got < current.RequiredApprovals {
			d.ApprovalsNeeded = current.RequiredApprovals - got
			return d, nil
		}
	}

	if action.Kind == ActionComplete {
		d.Terminal = true
		d.Transition = true
		d.To = nil
		d.Status = action.Status
		return d, nil
	}

	if action.Target != "" && !d.Noop {
		to, err := r.Stage(action.Target)
		if err != nil {
			return Decision{}, err
		}
		d.To = to
		d.Transition = true
		d.Status = to.Status
		if action.Status != "" {
			d.Status = action.Status
		}
	}
	return d, nil
}

// PendingReviewers lists reviewers assigned at stage who have not submitted.
func PendingReviewers(assignments []models.ReviewerAssignment, stage string) []string {
	pending := []string{}
	for _, a := range assignments {
		if a.Stage == stage && a.SubmittedAt == nil {
			pending = append(pending, a.UserID)
		}
	}
	return pending
}

func findAssignment(assignments []models.ReviewerAssignment, stage, userID string) *models.ReviewerAssignment {
	for i := range assignments {
		if assignments[i].Stage == stage && assignments[i].UserID == userID {
			return &assignments[i]
		}
	}
	return nil
}

func hasApproved(approvals []models.StageApproval, stage, userID string) bool {
	return slices.ContainsFunc(approvals, func(a models.StageApproval) bool {
		return a.Stage == stage && a.ApproverID == userID
	})
}

func distinctApprovers(approvals []models.StageApproval, stage string) int {
	seen := map[string]struct{}{}
	for _, a := range approvals {
		if a.Stage == stage {
			seen[a.ApproverID] = struct{}{}
		}
	}
	return len(seen)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func actionIDs(actions []Action) []string {
	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}
