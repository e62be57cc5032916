package services

import (
	"context"
	"testing"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNotifications(t *testing.T, env *testEnv) *NotificationService {
	t.Helper()
	ns := NewNotificationService(env.db, zap.NewNop(), env.metrics)
	ns.now = func() time.Time { return env.clock }
	return ns
}

func noteTypes(notes []models.Notification) []models.NotificationType {
	out := make([]models.NotificationType, len(notes))
	for i, n := range notes {
		out[i] = n.Type
	}
	return out
}

func TestNotifications_PublishingLifecycle(t *testing.T) {
	env := newEnv(t)
	ps, _ := newPublishing(t, env)
	ns := newNotifications(t, env)
	ctx := context.Background()
	admin := env.user(t, models.RoleAdmin)
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)
	leader := env.user(t, models.RoleLeadership)

	wf := twoStepWorkflow(t, ps, admin)
	doc := env.createDoc(t, ao, "<p>Final text.</p>")
	pub, err := ps.Submit(ctx, ao, SubmitPublishingInput{DocumentID: doc.ID, WorkflowID: wf.ID})
	require.NoError(t, err)

	inbox, err := ns.List(ctx, pcm, NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	request := inbox.Notifications[0]
	assert.Equal(t, models.NotifyApprovalRequest, request.Type)
	assert.Equal(t, pub.ID, request.PublishingID)
	assert.Equal(t, doc.ID, request.DocumentID)
	assert.Contains(t, request.Title, "PCM Check")

	_, err = ps.ProcessApproval(ctx, pcm, ApprovalInput{PublishingID: pub.ID, Decision: "approve"})
	require.NoError(t, err)
	_, err = ps.ProcessApproval(ctx, leader, ApprovalInput{PublishingID: pub.ID, Decision: "approve"})
	require.NoError(t, err)

	inbox, err = ns.List(ctx, leader, NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []models.NotificationType{models.NotifyApprovalRequest}, noteTypes(inbox.Notifications))

	inbox, err = ns.List(ctx, ao, NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, models.NotifyPublished, inbox.Notifications[0].Type)
	assert.Contains(t, inbox.Notifications[0].Title, doc.Title)
	assert.EqualValues(t, 1, env.metrics.Counter("notifications_sent", map[string]string{"type": string(models.NotifyPublished)}))
}

func TestNotifications_ExpiredApprovalsNotifyApprover(t *testing.T) {
	env := newEnv(t)
	ps, _ := newPublishing(t, env)
	ns := newNotifications(t, env)
	ctx := context.Background()
	admin := env.user(t, models.RoleAdmin)
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)

	wf := twoStepWorkflow(t, ps, admin)
	doc := env.createDoc(t, ao, "<p>Text.</p>")
	_, err := ps.Submit(ctx, ao, SubmitPublishingInput{DocumentID: doc.ID, WorkflowID: wf.ID})
	require.NoError(t, err)

	n, err := ps.ExpireApprovals(ctx, env.clock.Add(73*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inbox, err := ns.List(ctx, pcm, NotificationFilter{Unread: true})
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]models.NotificationType{models.NotifyApprovalRequest, models.NotifyApprovalExpired},
		noteTypes(inbox.Notifications))
	assert.EqualValues(t, 2, inbox.Total)

	n, err = ps.ExpireApprovals(ctx, env.clock.Add(74*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "expired approvals are not announced twice")
}

func TestNotifications_ReadState(t *testing.T) {
	env := newEnv(t)
	ps, _ := newPublishing(t, env)
	ns := newNotifications(t, env)
	ctx := context.Background()
	admin := env.user(t, models.RoleAdmin)
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)

	wf := twoStepWorkflow(t, ps, admin)
	for _, body := range []string{"<p>One.</p>", "<p>Two.</p>"} {
		doc := env.createDoc(t, ao, body)
		_, err := ps.Submit(ctx, ao, SubmitPublishingInput{DocumentID: doc.ID, WorkflowID: wf.ID})
		require.NoError(t, err)
	}

	inbox, err := ns.List(ctx, pcm, NotificationFilter{Unread: true})
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 2)
	first := inbox.Notifications[0]

	_, err = ns.MarkRead(ctx, ao, first.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.As(err).Kind, "only the recipient sees a notification")

	read, err := ns.MarkRead(ctx, pcm, first.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	assert.Equal(t, env.clock.UTC(), read.ReadAt.UTC())

	inbox, err = ns.List(ctx, pcm, NotificationFilter{Unread: true})
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 1)

	n, err := ns.MarkAllRead(ctx, pcm)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inbox, err = ns.List(ctx, pcm, NotificationFilter{Unread: true})
	require.NoError(t, err)
	assert.Empty(t, inbox.Notifications)

	inbox, err = ns.List(ctx, pcm, NotificationFilter{Page: Page{Page: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 1)
	assert.EqualValues(t, 2, inbox.Total)
}
