package models

import "time"

type NotificationType string

const (
	NotifyApprovalRequest NotificationType = "APPROVAL_REQUEST"
	NotifyApprovalExpired NotificationType = "APPROVAL_EXPIRED"
	NotifyPublished       NotificationType = "DOCUMENT_PUBLISHED"
)

// Notification is an in-app notice addressed to one user.
type Notification struct {
	Base
	RecipientID  string           `gorm:"type:varchar(36);index;not null" json:"recipientId"`
	Type         NotificationType `gorm:"not null;index" json:"type"`
	Title        string           `gorm:"not null" json:"title"`
	Message      string           `json:"message"`
	DocumentID   string           `gorm:"type:varchar(36);index" json:"documentId,omitempty"`
	PublishingID string           `gorm:"type:varchar(36);index" json:"publishingId,omitempty"`
	ReadAt       *time.Time       `json:"readAt,omitempty"`
}
