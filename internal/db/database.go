package db

import (
	"context"
	"fmt"
	"time"

	"github.com/richmond-dms/docflow/internal/config"
	"github.com/richmond-dms/docflow/internal/db/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize connects to Postgres, applies pool settings and migrates the schema.
func Initialize(cfg *config.Configuration, log *zap.Logger) (*gorm.DB, error) {
	database, err := Open(postgres.Open(cfg.Database.DSN()), cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	log.Info("Running database migrations...")
	if err := Migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// Open builds a gorm handle for any dialector. Tests pass an in-memory sqlite one.
func Open(dialector gorm.Dialector, quiet bool) (*gorm.DB, error) {
	level := logger.Info
	if quiet {
		level = logger.Warn
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
}

func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(models.All()...)
}

type seedUser struct {
	email, first, last, role string
}

var seedUsers = []seedUser{
	{"admin@airforce.mil", "System", "Administrator", models.RoleAdmin},
	{"ao1@airforce.mil", "Primary", "Action Officer", models.RoleActionOfficer},
	{"ao2@airforce.mil", "Secondary", "Action Officer", models.RoleActionOfficer},
	{"pcm@airforce.mil", "Program Control", "Manager", models.RolePCM},
	{"coordinator1@airforce.mil", "Workflow", "Coordinator", models.RoleCoordinator},
	{"john.doe.ops@airforce.mil", "John", "Doe", models.RoleSubReviewer},
	{"jane.smith.log@airforce.mil", "Jane", "Smith", models.RoleSubReviewer},
	{"ops.frontoffice@airforce.mil", "Operations", "Front Office", models.RoleOPR},
	{"opr.leadership@airforce.mil", "OPR", "Leadership", models.RoleOPRLeadership},
	{"sq.cc@airforce.mil", "Squadron", "Commander", models.RoleLeadership},
	{"legal.reviewer@airforce.mil", "Legal", "Reviewer", models.RoleLegal},
	{"afdpo.publisher@airforce.mil", "AFDPO", "Publisher", models.RoleAFDPO},
}

// Seed creates the default organization, the workflow role catalogue and one
// user per role. It is a no-op once any user exists.
func Seed(ctx context.Context, database *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := database.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Info("Database already seeded, skipping")
		return nil
	}
	log.Info("Seeding database with initial data")

	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org := models.Organization{Name: "Air Force Publishing", Code: "AF", Description: "Default organization"}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		roleIDs := make(map[string]string, len(models.WorkflowRoles))
		for _, name := range models.WorkflowRoles {
			role := models.Role{Name: name, OrganizationID: org.ID, Permissions: permissionsFor(name)}
			if err := tx.Create(&role).Error; err != nil {
				return err
			}
			roleIDs[name] = role.ID
		}

		users := make([]models.User, 0, len(seedUsers))
		for _, su := range seedUsers {
			users = append(users, models.User{
				Email:          su.email,
				FirstName:      su.first,
				LastName:       su.last,
				RoleID:         roleIDs[su.role],
				OrganizationID: org.ID,
				Active:         true,
			})
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}

		log.Info("Database seeding completed successfully",
			zap.String("organization", org.Code),
			zap.Int("roles", len(roleIDs)),
			zap.Int("users", len(users)))
		return nil
	})
}

func permissionsFor(role string) []string {
	switch role {
	case models.RoleAdmin:
		return []string{"*"}
	case models.RoleActionOfficer, models.RoleOPR:
		return []string{"document:create", "document:update", "document:read", "workflow:act"}
	case models.RoleAFDPO:
		return []string{"document:read", "document:publish", "workflow:act"}
	default:
		return []string{"document:read", "workflow:act", "feedback:submit"}
	}
}
