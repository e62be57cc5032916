package db_test

import (
	"context"
	"testing"

	"github.com/richmond-dms/docflow/internal/db"
	"github.com/richmond-dms/docflow/internal/db/dbtest"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeed(t *testing.T) {
	database := dbtest.New(t)
	ctx := context.Background()

	require.NoError(t, db.Seed(ctx, database, zap.NewNop()))

	var roles, users, orgs int64
	database.Model(&models.Role{}).Count(&roles)
	database.Model(&models.User{}).Count(&users)
	database.Model(&models.Organization{}).Count(&orgs)
	assert.EqualValues(t, len(models.WorkflowRoles), roles)
	assert.EqualValues(t, 12, users)
	assert.EqualValues(t, 1, orgs)

	// second run is a no-op
	require.NoError(t, db.Seed(ctx, database, zap.NewNop()))
	database.Model(&models.User{}).Count(&users)
	assert.EqualValues(t, 12, users)

	admin := dbtest.UserByRole(t, database, models.RoleAdmin)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "AF", admin.Organization.Code)
	assert.Equal(t, []string{"*"}, []string(admin.Role.Permissions))
}

func TestDocumentCustomFieldsRoundTrip(t *testing.T) {
	database := dbtest.New(t)

	doc := models.Document{Title: "AFI 36-2903", Status: models.StatusDraft}
	doc.SetFields(models.CustomFields{
		Content:      "<p>Dress and appearance.</p>",
		ParagraphMap: map[string]string{"1.0.1": "Dress and appearance."},
		DraftFeedback: []models.FeedbackItem{
			{ID: "fb-1", ParagraphNumber: "1.0.1", ChangeFrom: "Dress", ChangeTo: "Uniform", Status: models.FeedbackPending},
		},
	})
	require.NoError(t, database.Create(&doc).Error)
	require.NotEmpty(t, doc.ID)

	var loaded models.Document
	require.NoError(t, database.First(&loaded, "id = ?", doc.ID).Error)
	fields := loaded.Fields()
	assert.Equal(t, "Dress and appearance.", fields.ParagraphMap["1.0.1"])
	require.Len(t, fields.DraftFeedback, 1)
	assert.Equal(t, "Uniform", fields.DraftFeedback[0].ChangeTo)
}
