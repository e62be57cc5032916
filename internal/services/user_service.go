package services

import (
	"context"
	"errors"
	"net/mail"
	"slices"
	"strings"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

type CreateUserInput struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	RoleID         string `json:"roleId"`
	RoleName       string `json:"role"`
	OrganizationID string `json:"organizationId"`
}

type UpdateUserInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	RoleID    *string `json:"roleId"`
	RoleName  *string `json:"role"`
	Active    *bool   `json:"active"`
}

type UserFilter struct {
	OrganizationID string `form:"organizationId"`
	Role           string `form:"role"`
	Page
}

type CreateRoleInput struct {
	Name           string   `json:"name"`
	Permissions    []string `json:"permissions"`
	OrganizationID string   `json:"organizationId"`
}

func NewUserService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *UserService {
	return &UserService{
		db:      db,
		logger:  logger.With(zap.String("service", "user_service")),
		metrics: metrics,
	}
}

// ResolveActor loads the active user behind a request.
func (us *UserService) ResolveActor(ctx context.Context, id string) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Unauthorized("X-User-ID header is required")
	}
	user, err := us.Get(ctx, id)
	if err != nil {
		if ae := apperr.As(err); ae.Kind == apperr.KindNotFound {
			return nil, apperr.Unauthorized("unknown user")
		}
		return nil, err
	}
	if !user.Active {
		return nil, apperr.Unauthorized("user account is inactive")
	}
	return user, nil
}

func (us *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := us.db.WithContext(ctx).Preload("Role").Preload("Organization").First(&user, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "user")
	}
	return &user, nil
}

func (us *UserService) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	page := f.Page.normalize()
	query := us.db.WithContext(ctx).Preload("Role").Preload("Organization").Model(&models.User{})
	if f.OrganizationID != "" {
		query = query.Where("users.organization_id = ?", f.OrganizationID)
	}
	if f.Role != "" {
		query = query.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.name = ?", strings.ToUpper(f.Role))
	}

	users := []models.User{}
	if err := query.Order("users.email").Limit(page.Limit).Offset(page.offset()).Find(&users).Error; err != nil {
		return nil, apperr.FromStorage(err, "user")
	}
	return users, nil
}

// UsersWithRole lists active users in an organization holding role.
func (us *UserService) UsersWithRole(ctx context.Context, organizationID, role string) ([]models.User, error) {
	return usersWithRole(us.db.WithContext(ctx), organizationID, role)
}

func usersWithRole(tx *gorm.DB, organizationID, role string) ([]models.User, error) {
	users := []models.User{}
	query := tx.Preload("Role").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name = ? AND users.active = ?", role, true)
	if organizationID != "" {
		query = query.Where("users.organization_id = ?", organizationID)
	}
	if err := query.Order("users.email").Find(&users).Error; err != nil {
		return nil, apperr.FromStorage(err, "user")
	}
	return users, nil
}

func (us *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("a valid email is required")
	}
	if in.OrganizationID == "" {
		return nil, apperr.Validation("organizationId is required")
	}

	var user *models.User
	err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Organization{}, "id = ?", in.OrganizationID).Error; err != nil {
			return apperr.FromStorage(err, "organization")
		}

		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return apperr.FromStorage(err, "user")
		}
		if existing > 0 {
			return apperr.Coded(apperr.KindConflict, "DUPLICATE_ENTRY", "a user with this email already exists")
		}

		role, err := resolveRole(tx, in.OrganizationID, in.RoleID, in.RoleName)
		if err != nil {
			return err
		}

		user = &models.User{
			Email:          email,
			FirstName:      strings.TrimSpace(in.FirstName),
			LastName:       strings.TrimSpace(in.LastName),
			RoleID:         role.ID,
			OrganizationID: in.OrganizationID,
			Active:         true,
		}
		return apperr.FromStorage(tx.Create(user).Error, "user")
	})
	if err != nil {
		return nil, err
	}

	us.metrics.IncrementCounter("users_created", nil)
	us.logger.Info("User created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return us.Get(ctx, user.ID)
}

func resolveRole(tx *gorm.DB, organizationID, roleID, roleName string) (*models.Role, error) {
	var role models.Role
	switch {
	case roleID != "":
		if err := tx.First(&role, "id = ?", roleID).Error; err != nil {
			return nil, apperr.FromStorage(err, "role")
		}
	case roleName != "":
		err := tx.Where("name = ? AND organization_id = ?", strings.ToUpper(roleName), organizationID).First(&role).Error
		if err != nil {
			return nil, apperr.FromStorage(err, "role")
		}
	default:
		return nil, apperr.Validation("roleId or role is required")
	}
	return &role, nil
}

func (us *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return apperr.FromStorage(err, "user")
		}

		updates := map[string]any{}
		if in.FirstName != nil {
			updates["first_name"] = trimmed(in.FirstName)
		}
		if in.LastName != nil {
			updates["last_name"] = trimmed(in.LastName)
		}
		if in.Active != nil {
			updates["active"] = *in.Active
		}
		if in.RoleID != nil || in.RoleName != nil {
			role, err := resolveRole(tx, user.OrganizationID, trimmed(in.RoleID), trimmed(in.RoleName))
			if err != nil {
				return err
			}
			updates["role_id"] = role.ID
		}
		if len(updates) == 0 {
			return nil
		}
		return apperr.FromStorage(tx.Model(&user).Updates(updates).Error, "user")
	})
	if err != nil {
		return nil, err
	}
	us.logger.Info("User updated", zap.String("user_id", id))
	return us.Get(ctx, id)
}

func (us *UserService) Delete(ctx context.Context, actor *models.User, id string) error {
	if actor != nil && actor.ID == id {
		return apperr.Validation("users cannot delete themselves")
	}
	res := us.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromStorage(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	us.logger.Info("User deleted", zap.String("user_id", id))
	return nil
}

func (us *UserService) ListRoles(ctx context.Context, organizationID string) ([]models.Role, error) {
	roles := []models.Role{}
	query := us.db.WithContext(ctx).Order("name")
	if organizationID != "" {
		query = query.Where("organization_id = ?", organizationID)
	}
	if err := query.Find(&roles).Error; err != nil {
		return nil, apperr.FromStorage(err, "role")
	}
	return roles, nil
}

func (us *UserService) CreateRole(ctx context.Context, in CreateRoleInput) (*models.Role, error) {
	name := strings.ToUpper(strings.TrimSpace(in.Name))
	if name == "" {
		return nil, apperr.Validation("role name is required")
	}
	if in.OrganizationID == "" {
		return nil, apperr.Validation("organizationId is required")
	}

	var existing models.Role
	err := us.db.WithContext(ctx).Where("name = ? AND organization_id = ?", name, in.OrganizationID).First(&existing).Error
	if err == nil {
		return nil, apperr.Coded(apperr.KindConflict, "DUPLICATE_ENTRY", "role already exists in this organization")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStorage(err, "role")
	}

	role := &models.Role{Name: name, OrganizationID: in.OrganizationID, Permissions: slices.Clone(in.Permissions)}
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	if err := us.db.WithContext(ctx).Create(role).Error; err != nil {
		return nil, apperr.FromStorage(err, "role")
	}
	us.logger.Info("Role created", zap.String("role", role.Name), zap.String("organization_id", role.OrganizationID))
	return role, nil
}
