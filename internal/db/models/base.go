package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base replaces gorm.Model with string UUID keys.
type Base struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Organization{},
		&Role{},
		&User{},
		&Document{},
		&WorkflowInstance{},
		&WorkflowTransition{},
		&PublishingWorkflow{},
		&ApprovalStep{},
		&Publishing{},
		&Approval{},
		&Notification{},
	}
}
