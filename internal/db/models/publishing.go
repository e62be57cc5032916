package models

import "time"

type PublishingWorkflow struct {
	Base
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `json:"description,omitempty"`
	OrganizationID string         `gorm:"type:varchar(36);index" json:"organizationId"`
	AutoApprove    bool           `json:"autoApprove"`
	TimeoutHours   int            `gorm:"default:72" json:"timeoutHours"`
	Steps          []ApprovalStep `gorm:"foreignKey:WorkflowID" json:"steps"`
}

type ApprovalStep struct {
	Base
	WorkflowID   string `gorm:"type:varchar(36);index;not null" json:"workflowId"`
	StepNumber   int    `gorm:"not null" json:"stepNumber"`
	StepName     string `gorm:"not null" json:"stepName"`
	RequiredRole string `gorm:"not null" json:"requiredRole"`
	MinApprovals int    `gorm:"not null;default:1" json:"minApprovals"`
	TimeoutHours int    `gorm:"default:72" json:"timeoutHours"`
}

type PublishingStatus string

const (
	PublishingPending    PublishingStatus = "PENDING_APPROVAL"
	PublishingInApproval PublishingStatus = "IN_APPROVAL"
	PublishingApproved   PublishingStatus = "APPROVED"
	PublishingPublished  PublishingStatus = "PUBLISHED"
	PublishingRejected   PublishingStatus = "REJECTED"
)

type Publishing struct {
	Base
	DocumentID         string              `gorm:"type:varchar(36);index;not null" json:"documentId"`
	Document           *Document           `json:"document,omitempty"`
	WorkflowID         string              `gorm:"type:varchar(36);index;not null" json:"workflowId"`
	Workflow           *PublishingWorkflow `json:"workflow,omitempty"`
	Status             PublishingStatus    `gorm:"not null;index" json:"status"`
	CurrentStep        int                 `gorm:"not null;default:1" json:"currentStep"`
	ScheduledPublishAt *time.Time          `gorm:"index" json:"scheduledPublishAt,omitempty"`
	PublishedAt        *time.Time          `json:"publishedAt,omitempty"`
	SubmittedByID      string              `gorm:"type:varchar(36)" json:"submittedById"`
	PublishedByID      string              `gorm:"type:varchar(36)" json:"publishedById,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	Approvals          []Approval          `gorm:"foreignKey:PublishingID" json:"approvals,omitempty"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalExpired  ApprovalStatus = "EXPIRED"
)

type Approval struct {
	Base
	PublishingID string         `gorm:"type:varchar(36);index;not null" json:"publishingId"`
	StepID       string         `gorm:"type:varchar(36);index;not null" json:"stepId"`
	Step         *ApprovalStep  `json:"step,omitempty"`
	ApproverID   string         `gorm:"type:varchar(36);index;not null" json:"approverId"`
	Status       ApprovalStatus `gorm:"not null;index" json:"status"`
	Decision     string         `json:"decision,omitempty"`
	Comments     string         `json:"comments,omitempty"`
	DueAt        *time.Time     `json:"dueAt,omitempty"`
	RespondedAt  *time.Time     `json:"respondedAt,omitempty"`
}
