package models

import (
	"time"

	"gorm.io/datatypes"
)

type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "active"
	InstanceCompleted InstanceStatus = "completed"
	InstanceCancelled InstanceStatus = "cancelled"
)

type WorkflowInstance struct {
	Base
	DocumentID     string                                  `gorm:"type:varchar(36);uniqueIndex;not null" json:"documentId"`
	WorkflowID     string                                  `gorm:"not null" json:"workflowId"`
	CurrentStage   string                                  `gorm:"not null" json:"currentStage"`
	Status         InstanceStatus                          `gorm:"not null;default:'active'" json:"status"`
	Revision       int                                     `gorm:"not null;default:1" json:"revision"`
	StageEnteredAt time.Time                               `json:"stageEnteredAt"`
	StartedByID    string                                  `gorm:"type:varchar(36)" json:"startedById"`
	Reviewers      datatypes.JSONSlice[ReviewerAssignment] `json:"reviewers"`
	Approvals      datatypes.JSONSlice[StageApproval]      `json:"approvals"`
}

// ReviewerAssignment is one reviewer handed the document by a distribution action.
type ReviewerAssignment struct {
	UserID      string     `json:"userId"`
	Stage       string     `json:"stage"`
	AssignedBy  string     `json:"assignedBy"`
	AssignedAt  time.Time  `json:"assignedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

type StageApproval struct {
	Stage      string    `json:"stage"`
	ApproverID string    `json:"approverId"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	At         time.Time `json:"at"`
}

// WorkflowTransition is the append-only audit trail of stage changes and
// in-stage actions.
type WorkflowTransition struct {
	Base
	InstanceID string `gorm:"type:varchar(36);index;not null" json:"instanceId"`
	DocumentID string `gorm:"type:varchar(36);index;not null" json:"documentId"`
	FromStage  string `json:"fromStage"`
	ToStage    string `json:"toStage"`
	Action     string `gorm:"not null" json:"action"`
	ActorID    string `gorm:"type:varchar(36)" json:"actorId"`
	ActorRole  string `json:"actorRole"`
	Comment    string `json:"comment,omitempty"`
	// Revision is the instance revision this row produced.
	Revision int `gorm:"not null;default:1" json:"revision"`
}
