package services

import (
	"context"
	"testing"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/feedback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewBody = "<p>The system utilizes a number of modules in order to process data.</p>"

func TestFeedbackService_SubmitDetectsConflicts(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	reviewer := env.user(t, models.RoleSubReviewer)
	doc := env.createDoc(t, ao, reviewBody)

	res, err := env.feedback.Submit(ctx, reviewer, doc.ID, []FeedbackInput{
		{Page: 1, ParagraphNumber: "1.0.1", LineNumber: 3, ChangeFrom: "utilizes", ChangeTo: "uses"},
		{Page: 1, ParagraphNumber: "1.0.1", LineNumber: 3, ChangeFrom: "utilizes a number", ChangeTo: "has several"},
		{Page: 1, ParagraphNumber: "1.0.1", LineNumber: 5, ChangeFrom: "in order to", ChangeTo: "to", CommentType: "a"},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "same line", res.Conflicts[0].Reason)
	assert.Equal(t, models.CommentSubstantive, res.Items[0].CommentType)
	assert.Equal(t, models.CommentAdministrative, res.Items[2].CommentType)
	assert.Equal(t, reviewer.Email, res.Items[0].ReviewerEmail)

	items, err := env.feedback.List(ctx, doc.ID, FeedbackFilter{Status: "PENDING"})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{items[1].ID}, items[0].ConflictsWith)
	assert.Equal(t, []string{items[0].ID}, items[1].ConflictsWith)
	assert.Empty(t, items[2].ConflictsWith)

	conflicts, err := env.feedback.Conflicts(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)

	_, err = env.feedback.Submit(ctx, reviewer, doc.ID, []FeedbackInput{{ChangeFrom: "x", CommentType: "Z"}})
	assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind)
	_, err = env.feedback.Submit(ctx, reviewer, doc.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind)
}

func TestFeedbackService_VersionLifecycle(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	reviewer := env.user(t, models.RoleSubReviewer)
	doc := env.createDoc(t, ao, reviewBody)

	latest, err := env.feedback.LatestVersion(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Number)
	assert.Equal(t, reviewBody, latest.Content)

	res, err := env.feedback.Submit(ctx, reviewer, doc.ID, []FeedbackInput{
		{Page: 1, ParagraphNumber: "1.0.1", LineNumber: 3, ChangeFrom: "utilizes", ChangeTo: "uses"},
		{Page: 1, ParagraphNumber: "1.0.1", LineNumber: 3, ChangeFrom: "utilizes a number", ChangeTo: "has several"},
		{Page: 1, ParagraphNumber: "1.0.1", LineNumber: 5, ChangeFrom: "in order to", ChangeTo: "to"},
	})
	require.NoError(t, err)
	a, b, c := res.Items[0].ID, res.Items[1].ID, res.Items[2].ID

	_, err = env.feedback.CreateVersion(ctx, ao, doc.ID, CreateVersionInput{FeedbackIDs: []string{a}})
	assert.ErrorIs(t, err, ErrFeedbackNotAccepted, "pending feedback must be decided first")
	latest, err = env.feedback.LatestVersion(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Number)

	for _, id := range []string{a, b, c} {
		_, err = env.feedback.Decide(ctx, ao, doc.ID, id, models.FeedbackAccepted)
		require.NoError(t, err)
	}

	_, err = env.feedback.CreateVersion(ctx, ao, doc.ID, CreateVersionInput{FeedbackIDs: []string{a, b}})
	assert.ErrorIs(t, err, feedback.ErrConflictingChanges)

	decided, err := env.feedback.Decide(ctx, ao, doc.ID, b, models.FeedbackRejected)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackRejected, decided.Status)

	_, err = env.feedback.CreateVersion(ctx, ao, doc.ID, CreateVersionInput{FeedbackIDs: []string{b}})
	assert.ErrorIs(t, err, ErrFeedbackNotAccepted)

	v2, err := env.feedback.CreateVersion(ctx, ao, doc.ID, CreateVersionInput{FeedbackIDs: []string{a, c}, Description: "First round"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Number)
	assert.Equal(t, "v1-"+doc.ID, v2.ParentVersionID)
	assert.Equal(t, "<p>The system uses a number of modules to process data.</p>", v2.Content)

	stored, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.Content, stored.Fields().Content)
	applied, err := env.feedback.List(ctx, doc.ID, FeedbackFilter{Status: "applied"})
	require.NoError(t, err)
	assert.Len(t, applied, 2)

	_, err = env.feedback.Decide(ctx, ao, doc.ID, a, models.FeedbackAccepted)
	assert.Equal(t, apperr.KindConflict, apperr.As(err).Kind)

	diff, err := env.feedback.Diff(ctx, doc.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, diff.Added, 2)
	assert.Empty(t, diff.Removed)

	_, err = env.feedback.Diff(ctx, doc.ID, 1, 9)
	assert.Equal(t, apperr.KindNotFound, apperr.As(err).Kind)

	v3, err := env.feedback.Revert(ctx, ao, doc.ID, "v1-"+doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Number)
	assert.Equal(t, reviewBody, v3.Content)
	assert.Equal(t, "Reverted to version 1", v3.Description)

	_, err = env.feedback.Revert(ctx, ao, doc.ID, v3.ID)
	assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind)

	versions, err := env.feedback.Versions(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 3)
}

func TestFeedbackService_ClosedForPublishedDocuments(t *testing.T) {
	env := newEnv(t)
	ao := env.user(t, models.RoleActionOfficer)
	doc := env.createDoc(t, ao, reviewBody)
	require.NoError(t, env.db.Model(&models.Document{}).Where("id = ?", doc.ID).Update("status", models.StatusPublished).Error)

	_, err := env.feedback.Submit(context.Background(), ao, doc.ID, []FeedbackInput{{ChangeFrom: "system"}})
	assert.Equal(t, apperr.KindConflict, apperr.As(err).Kind)
}
