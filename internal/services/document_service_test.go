package services

import (
	"context"
	"testing"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_CreateAndGet(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)

	doc := env.createDoc(t, ao, "<p>Hello.</p>")
	assert.Equal(t, models.StatusDraft, doc.Status)
	assert.Equal(t, ao.OrganizationID, doc.OrganizationID)
	assert.Equal(t, int64(len("<p>Hello.</p>")), doc.FileSize)
	assert.Len(t, doc.Checksum, 64)

	got, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello.</p>", got.Fields().Content)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, ao.Email, got.CreatedBy.Email)

	_, err = env.docs.Create(ctx, ao, CreateDocumentInput{Title: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind)

	_, err = env.docs.Get(ctx, "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.As(err).Kind)
}

func TestDocumentService_List(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)

	for _, title := range []string{"Flight Safety", "Ground Safety", "Supply Chain"} {
		_, err := env.docs.Create(ctx, ao, CreateDocumentInput{Title: title, Category: "Instruction"})
		require.NoError(t, err)
	}
	_, err := env.docs.Create(ctx, pcm, CreateDocumentInput{Title: "PCM Memo", Category: "Memo"})
	require.NoError(t, err)

	all, err := env.docs.List(ctx, DocumentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, defaultPageSize, all.Limit)

	safety, err := env.docs.List(ctx, DocumentFilter{Query: "SAFETY"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, safety.Total)

	mine, err := env.docs.List(ctx, DocumentFilter{CreatedByID: pcm.ID, Category: "Memo"})
	require.NoError(t, err)
	require.Len(t, mine.Documents, 1)
	assert.Equal(t, "PCM Memo", mine.Documents[0].Title)

	paged, err := env.docs.List(ctx, DocumentFilter{Page: Page{Page: 2, Limit: 3}})
	require.NoError(t, err)
	assert.EqualValues(t, 4, paged.Total)
	assert.Len(t, paged.Documents, 1)

	drafts, err := env.docs.List(ctx, DocumentFilter{Status: "draft"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, drafts.Total)

	_, err = env.docs.List(ctx, DocumentFilter{Status: "lost"})
	assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind)
}

func TestDocumentService_UpdateAndDelete(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)
	admin := env.user(t, models.RoleAdmin)
	doc := env.createDoc(t, ao, "<p>Old.</p>")

	title, content := "Renamed", "<p>New content.</p>"
	updated, err := env.docs.Update(ctx, ao, doc.ID, UpdateDocumentInput{Title: &title, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, content, updated.Fields().Content)
	assert.Equal(t, checksum(content), updated.Checksum)

	_, err = env.docs.Update(ctx, pcm, doc.ID, UpdateDocumentInput{Title: &title})
	assert.Equal(t, apperr.KindForbidden, apperr.As(err).Kind)

	require.NoError(t, env.db.Model(&models.Document{}).Where("id = ?", doc.ID).Update("status", models.StatusPublished).Error)
	_, err = env.docs.Update(ctx, admin, doc.ID, UpdateDocumentInput{Title: &title})
	assert.Equal(t, apperr.KindConflict, apperr.As(err).Kind)

	assert.Error(t, env.docs.Delete(ctx, pcm, doc.ID))
	require.NoError(t, env.docs.Delete(ctx, admin, doc.ID))
	_, err = env.docs.Get(ctx, doc.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.As(err).Kind)

	counts, err := env.docs.CountByStatus(ctx, ao.OrganizationID)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
