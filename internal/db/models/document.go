package models

import (
	"time"

	"gorm.io/datatypes"
)

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusInReview  DocumentStatus = "IN_REVIEW"
	StatusApproved  DocumentStatus = "APPROVED"
	StatusPublished DocumentStatus = "PUBLISHED"
	StatusArchived  DocumentStatus = "ARCHIVED"
	StatusRejected  DocumentStatus = "REJECTED"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusApproved, StatusPublished, StatusArchived, StatusRejected:
		return true
	}
	return false
}

type Document struct {
	Base
	Title          string                           `gorm:"not null" json:"title"`
	Category       string                           `gorm:"index" json:"category"`
	Status         DocumentStatus                   `gorm:"not null;default:'DRAFT';index" json:"status"`
	CurrentStage   string                           `gorm:"index" json:"currentStage"`
	OrganizationID string                           `gorm:"type:varchar(36);index" json:"organizationId"`
	CreatedByID    string                           `gorm:"type:varchar(36);index" json:"createdById"`
	CreatedBy      *User                            `json:"createdBy,omitempty"`
	MimeType       string                           `gorm:"default:'text/html'" json:"mimeType"`
	FileSize       int64                            `json:"fileSize"`
	Checksum       string                           `json:"checksum"`
	CustomFields   datatypes.JSONType[CustomFields] `json:"customFields"`
}

// Fields returns a mutable copy of the JSON blob.
func (d *Document) Fields() CustomFields {
	return d.CustomFields.Data()
}

func (d *Document) SetFields(f CustomFields) {
	d.CustomFields = datatypes.NewJSONType(f)
}

// CustomFields is the free-form JSON attached to each document. Feedback and
// versions live here rather than in their own tables.
type CustomFields struct {
	Content       string            `json:"content,omitempty"`
	Template      string            `json:"template,omitempty"`
	Pages         int               `json:"pages,omitempty"`
	ParagraphMap  map[string]string `json:"paragraphMap,omitempty"`
	Sections      []Section         `json:"sections,omitempty"`
	DraftFeedback []FeedbackItem    `json:"draftFeedback,omitempty"`
	Versions      []Version         `json:"versions,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

type Section struct {
	Number     string    `json:"number"`
	Title      string    `json:"title"`
	Level      int       `json:"level"`
	Paragraphs []string  `json:"paragraphs,omitempty"`
	Children   []Section `json:"children,omitempty"`
}

type CommentType string

const (
	CommentCritical       CommentType = "C"
	CommentSubstantive    CommentType = "S"
	CommentAdministrative CommentType = "A"
)

type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackAccepted FeedbackStatus = "accepted"
	FeedbackRejected FeedbackStatus = "rejected"
	FeedbackApplied  FeedbackStatus = "applied"
)

type FeedbackItem struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"documentId"`
	ReviewerID      string         `json:"reviewerId,omitempty"`
	ReviewerName    string         `json:"reviewerName,omitempty"`
	ReviewerEmail   string         `json:"reviewerEmail,omitempty"`
	Component       string         `json:"component,omitempty"`
	CommentType     CommentType    `json:"commentType"`
	Page            int            `json:"page"`
	ParagraphNumber string         `json:"paragraphNumber"`
	LineNumber      int            `json:"lineNumber"`
	ChangeFrom      string         `json:"changeFrom"`
	ChangeTo        string         `json:"changeTo"`
	Comment         string         `json:"comment,omitempty"`
	Justification   string         `json:"justification,omitempty"`
	Stage           string         `json:"stage,omitempty"`
	Status          FeedbackStatus `json:"status"`
	ConflictsWith   []string       `json:"conflictsWith,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type Version struct {
	ID              string          `json:"id"`
	Number          int             `json:"versionNumber"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	Changes         []AppliedChange `json:"changes"`
	Content         string          `json:"content"`
	ParentVersionID string          `json:"parentVersionId,omitempty"`
	RevertedFrom    string          `json:"revertedFrom,omitempty"`
	Description     string          `json:"description,omitempty"`
}

type ChangeStatus string

const (
	ChangeApplied  ChangeStatus = "applied"
	ChangeNotFound ChangeStatus = "not_found"
)

type AppliedChange struct {
	ID           string       `json:"id"`
	FeedbackID   string       `json:"feedbackId"`
	Page         int          `json:"page"`
	Paragraph    string       `json:"paragraphNumber"`
	Line         int          `json:"lineNumber"`
	OriginalText string       `json:"originalText"`
	AppliedText  string       `json:"appliedText"`
	AppliedBy    string       `json:"appliedBy"`
	AppliedAt    time.Time    `json:"appliedAt"`
	Status       ChangeStatus `json:"status"`
}
