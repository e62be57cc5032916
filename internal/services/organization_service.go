package services

import (
	"context"
	"strings"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrganizationService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

type OrganizationInput struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Description *string `json:"description"`
}

func NewOrganizationService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *OrganizationService {
	return &OrganizationService{
		db:      db,
		logger:  logger.With(zap.String("service", "organization_service")),
		metrics: metrics,
	}
}

// Create also seeds the workflow role catalogue for the new organization.
func (o *OrganizationService) Create(ctx context.Context, in OrganizationInput) (*models.Organization, error) {
	name, code := trimmed(in.Name), strings.ToUpper(trimmed(in.Code))
	if name == "" || code == "" {
		return nil, apperr.Validation("name and code are required")
	}

	org := &models.Organization{Name: name, Code: code, Description: trimmed(in.Description)}
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Organization{}).Where("code = ?", code).Count(&n).Error; err != nil {
			return apperr.FromStorage(err, "organization")
		}
		if n > 0 {
			return apperr.Coded(apperr.KindConflict, "DUPLICATE_ENTRY", "an organization with this code already exists")
		}
		if err := tx.Create(org).Error; err != nil {
			return apperr.FromStorage(err, "organization")
		}
		roles := make([]models.Role, 0, len(models.WorkflowRoles))
		for _, r := range models.WorkflowRoles {
			roles = append(roles, models.Role{Name: r, OrganizationID: org.ID, Permissions: []string{}})
		}
		return apperr.FromStorage(tx.Create(&roles).Error, "role")
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("Organization created", zap.String("organization_id", org.ID), zap.String("code", org.Code))
	return org, nil
}

func (o *OrganizationService) Get(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := o.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStorage(err, "organization")
	}
	return &org, nil
}

func (o *OrganizationService) List(ctx context.Context) ([]models.Organization, error) {
	orgs := []models.Organization{}
	if err := o.db.WithContext(ctx).Order("name").Find(&orgs).Error; err != nil {
		return nil, apperr.FromStorage(err, "organization")
	}
	return orgs, nil
}

func (o *OrganizationService) Update(ctx context.Context, id string, in OrganizationInput) (*models.Organization, error) {
	org, err := o.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		if trimmed(in.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		updates["name"] = trimmed(in.Name)
	}
	if in.Description != nil {
		updates["description"] = trimmed(in.Description)
	}
	if in.Code != nil {
		return nil, apperr.Validation("organization code cannot be changed")
	}
	if len(updates) > 0 {
		if err := o.db.WithContext(ctx).Model(org).Updates(updates).Error; err != nil {
			return nil, apperr.FromStorage(err, "organization")
		}
	}
	return o.Get(ctx, id)
}

// Delete refuses while users or documents still belong to the organization.
func (o *OrganizationService) Delete(ctx context.Context, id string) error {
	return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Organization{}, "id = ?", id).Error; err != nil {
			return apperr.FromStorage(err, "organization")
		}

		var users, docs int64
		if err := tx.Model(&models.User{}).Where("organization_id = ?", id).Count(&users).Error; err != nil {
			return apperr.FromStorage(err, "user")
		}
		if err := tx.Model(&models.Document{}).Where("organization_id = ?", id).Count(&docs).Error; err != nil {
			return apperr.FromStorage(err, "document")
		}
		if users > 0 || docs > 0 {
			return apperr.Conflict("organization still has users or documents").
				WithDetails(map[string]int64{"users": users, "documents": docs})
		}

		if err := tx.Where("organization_id = ?", id).Delete(&models.Role{}).Error; err != nil {
			return apperr.FromStorage(err, "role")
		}
		if err := tx.Delete(&models.Organization{}, "id = ?", id).Error; err != nil {
			return apperr.FromStorage(err, "organization")
		}
		o.logger.Info("Organization deleted", zap.String("organization_id", id))
		return nil
	})
}
