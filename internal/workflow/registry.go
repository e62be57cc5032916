// Package workflow holds the stage registry, the role gates and the single
// validator every stage transition goes through.
package workflow

import (
	"embed"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/richmond-dms/docflow/internal/db/models"
	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// DefaultID is the workflow started when the caller names none.
const DefaultID = "af-12-stage-review"

type StageKind string

const (
	KindSequential StageKind = "sequential"
	KindApproval   StageKind = "approval"
	KindParallel   StageKind = "parallel"
)

type ActionKind string

const (
	// ActionNote is recorded in the audit trail without changing stage.
	ActionNote            ActionKind = "note"
	ActionMove            ActionKind = "move"
	ActionDistribute      ActionKind = "distribute"
	ActionSubmitReview    ActionKind = "submit_review"
	ActionCompleteReviews ActionKind = "complete_reviews"
	ActionApprove         ActionKind = "approve"
	ActionReject          ActionKind = "reject"
	// ActionComplete ends the workflow.
	ActionComplete ActionKind = "complete"
)

type Action struct {
	ID             string                `yaml:"id" json:"id"`
	Label          string                `yaml:"label" json:"label"`
	Kind           ActionKind            `yaml:"kind" json:"kind"`
	Target         string                `yaml:"target,omitempty" json:"target,omitempty"`
	RequireComment bool                  `yaml:"require_comment,omitempty" json:"requireComment,omitempty"`
	Status         models.DocumentStatus `yaml:"status,omitempty" json:"status,omitempty"`
}

type Stage struct {
	ID                string                `yaml:"id" json:"id"`
	Code              string                `yaml:"code" json:"code"`
	Name              string                `yaml:"name" json:"name"`
	Order             int                   `yaml:"-" json:"order"`
	Kind              StageKind             `yaml:"kind" json:"kind"`
	TimeLimitHours    int                   `yaml:"time_limit_hours" json:"timeLimitHours"`
	RequiredApprovals int                   `yaml:"required_approvals,omitempty" json:"requiredApprovals,omitempty"`
	Status            models.DocumentStatus `yaml:"status" json:"documentStatus"`
	Roles             []string              `yaml:"roles" json:"allowedRoles"`
	Actions           []Action              `yaml:"actions" json:"actions"`
}

// Due is when a stage entered at enteredAt runs out of time. Zero when unlimited.
func (s *Stage) Due(enteredAt time.Time) time.Time {
	if s.TimeLimitHours <= 0 {
		return time.Time{}
	}
	return enteredAt.Add(time.Duration(s.TimeLimitHours) * time.Hour)
}

func (s *Stage) Action(id string) (Action, bool) {
	for _, a := range s.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// Allows reports whether role may act here. ADMIN acts everywhere.
func (s *Stage) Allows(role string) bool {
	return role == models.RoleAdmin || slices.Contains(s.Roles, role)
}

type Definition struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Version     string  `yaml:"version" json:"version"`
	Description string  `yaml:"description" json:"description"`
	Stages      []Stage `yaml:"stages" json:"stages"`
}

// Registry resolves stages by ID, code or display name.
type Registry struct {
	def    Definition
	byID   map[string]*Stage
	byCode map[string]*Stage
	byName map[string]*Stage
}

// Load parses and checks a YAML workflow definition.
func Load(raw []byte) (*Registry, error) {
	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("workflow definition has no id")
	}
	if len(def.Stages) == 0 {
		return nil, fmt.Errorf("workflow %s has no stages", def.ID)
	}

	r := &Registry{
		def:    def,
		byID:   make(map[string]*Stage, len(def.Stages)),
		byCode: make(map[string]*Stage, len(def.Stages)),
		byName: make(map[string]*Stage, len(def.Stages)),
	}
	for i := range r.def.Stages {
		s := &r.def.Stages[i]
		s.Order = i + 1
		if s.ID == "" || s.Code == "" {
			return nil, fmt.Errorf("stage %d: id and code are required", i+1)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage id %q", s.ID)
		}
		if len(s.Roles) == 0 {
			return nil, fmt.Errorf("stage %s allows no roles", s.ID)
		}
		if !s.Status.Valid() {
			return nil, fmt.Errorf("stage %s: invalid document status %q", s.ID, s.Status)
		}
		if s.Kind == KindApproval && s.RequiredApprovals < 1 {
			s.RequiredApprovals = 1
		}
		r.byID[s.ID] = s
		r.byCode[s.Code] = s
		r.byName[strings.ToLower(s.Name)] = s
	}

	for _, s := range r.def.Stages {
		for _, a := range s.Actions {
			if a.Target != "" {
				if _, ok := r.byID[a.Target]; !ok {
					return nil, fmt.Errorf("stage %s action %s targets unknown stage %q", s.ID, a.ID, a.Target)
				}
			}
			if a.Kind == ActionComplete && !a.Status.Valid() {
				return nil, fmt.Errorf("stage %s action %s must set a final status", s.ID, a.ID)
			}
		}
	}
	return r, nil
}

// Default returns the embedded Air Force hierarchical review workflow.
func Default() *Registry {
	return Builtin().Default()
}

func (r *Registry) Definition() Definition { return r.def }

func (r *Registry) ID() string { return r.def.ID }

func (r *Registry) First() *Stage { return &r.def.Stages[0] }

func (r *Registry) Stages() []Stage { return slices.Clone(r.def.Stages) }

// Stage resolves ref as a stage ID, a backend code or a display name.
func (r *Registry) Stage(ref string) (*Stage, error) {
	ref = strings.TrimSpace(ref)
	if s, ok := r.byID[ref]; ok {
		return s, nil
	}
	if s, ok := r.byCode[strings.ToUpper(ref)]; ok {
		return s, nil
	}
	if s, ok := r.byName[strings.ToLower(ref)]; ok {
		return s, nil
	}
	return nil, ErrUnknownStage.WithDetails(map[string]string{"stage": ref})
}

// CodeFor translates a display name or ID into the backend stage code.
func (r *Registry) CodeFor(ref string) (string, error) {
	s, err := r.Stage(ref)
	if err != nil {
		return "", err
	}
	return s.Code, nil
}

// NameFor translates a backend code or ID into the display name.
func (r *Registry) NameFor(ref string) (string, error) {
	s, err := r.Stage(ref)
	if err != nil {
		return "", err
	}
	return s.Name, nil
}

func (r *Registry) AllowedRoles(ref string) ([]string, error) {
	s, err := r.Stage(ref)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.Roles), nil
}

func (r *Registry) Actions(ref string) ([]Action, error) {
	s, err := r.Stage(ref)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.Actions), nil
}

// AvailableActions lists what role may do at the stage; empty when the role is gated out.
func (r *Registry) AvailableActions(ref, role string) ([]Action, error) {
	s, err := r.Stage(ref)
	if err != nil {
		return nil, err
	}
	if !s.Allows(role) {
		return []Action{}, nil
	}
	return slices.Clone(s.Actions), nil
}
