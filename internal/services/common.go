package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// forUpdate adds a row lock where the dialect supports it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func requireActor(actor *models.User) error {
	if actor == nil || actor.ID == "" {
		return apperr.Unauthorized("an acting user is required")
	}
	return nil
}

func requireAdmin(actor *models.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperr.Forbidden("administrator role required")
	}
	return nil
}

// Page is a 1-based page request.
type Page struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// loadDocumentForUpdate reads a document inside tx, locking its row.
func loadDocumentForUpdate(tx *gorm.DB, id string) (*models.Document, error) {
	var doc models.Document
	if err := forUpdate(tx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}
	return &doc, nil
}

func saveFields(tx *gorm.DB, doc *models.Document, fields models.CustomFields, extra map[string]any) error {
	doc.SetFields(fields)
	updates := map[string]any{
		"custom_fields": doc.CustomFields,
		"file_size":     int64(len(fields.Content)),
		"checksum":      checksum(fields.Content),
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(doc).Updates(updates).Error; err != nil {
		return apperr.FromStorage(err, "document")
	}
	return nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
