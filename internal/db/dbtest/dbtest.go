// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/richmond-dms/docflow/internal/db"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns an isolated, migrated database that is closed with the test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", uuid.NewString())
	database, err := db.Open(sqlite.Open(dsn), true)
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// Seeded returns a database holding the default organization, roles and users.
func Seeded(t testing.TB) *gorm.DB {
	t.Helper()
	database := New(t)
	require.NoError(t, db.Seed(context.Background(), database, zap.NewNop()))
	return database
}

// UserByRole loads the first seeded user holding role.
func UserByRole(t testing.TB, database *gorm.DB, role string) *models.User {
	t.Helper()
	var user models.User
	err := database.Preload("Role").Preload("Organization").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name = ?", role).
		Order("users.email").
		First(&user).Error
	require.NoError(t, err)
	return &user
}
