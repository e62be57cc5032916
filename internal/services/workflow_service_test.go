package services

import (
	"context"
	"testing"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_StartTwiceConflicts(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	doc := env.createDoc(t, ao, "<p>Body.</p>")

	inst, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "1", inst.CurrentStage)
	assert.Equal(t, 1, inst.Revision)

	_, err = env.workflow.Start(ctx, ao, doc.ID, "")
	assert.ErrorIs(t, err, ErrWorkflowExists)

	_, err = env.workflow.Status(ctx, ao, "missing")
	assert.ErrorIs(t, err, ErrWorkflowNotStarted)
}

func TestWorkflow_StartRequiresAuthorOrFirstStageRole(t *testing.T) {
	env := newEnv(t)
	ao := env.user(t, models.RoleActionOfficer)
	legal := env.user(t, models.RoleLegal)
	doc := env.createDoc(t, ao, "<p>Body.</p>")

	_, err := env.workflow.Start(context.Background(), legal, doc.ID, "")
	assert.ErrorIs(t, err, workflow.ErrRoleNotAllowed)
}

func TestWorkflow_FullReviewPath(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)
	coord := env.user(t, models.RoleCoordinator)
	jane := env.userByEmail(t, "jane.smith.log@airforce.mil")
	john := env.userByEmail(t, "john.doe.ops@airforce.mil")
	opr := env.user(t, models.RoleOPR)
	legal := env.user(t, models.RoleLegal)
	leader := env.user(t, models.RoleLeadership)
	afdpo := env.user(t, models.RoleAFDPO)

	doc := env.createDoc(t, ao, "<p>The unit is designed to report daily.</p>")
	_, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)

	step := func(actor *models.User, in TransitionInput) *TransitionResult {
		t.Helper()
		res, err := env.workflow.Transition(ctx, actor, doc.ID, in)
		require.NoError(t, err, "%s by %s", in.Action, actor.Email)
		return res
	}

	res := step(ao, TransitionInput{Action: "submit_to_pcm"})
	assert.True(t, res.Transitioned)
	assert.Equal(t, "2", res.ToStage)

	_, err = env.workflow.Transition(ctx, ao, doc.ID, TransitionInput{Action: "approve"})
	assert.ErrorIs(t, err, workflow.ErrRoleNotAllowed)

	_, err = env.workflow.Transition(ctx, pcm, doc.ID, TransitionInput{Action: "approve", ExpectedStage: "1"})
	assert.ErrorIs(t, err, workflow.ErrStaleStage)

	step(pcm, TransitionInput{Action: "approve", ExpectedStage: "2"})
	res = step(coord, TransitionInput{Action: "distribute_to_reviewers", Reviewers: []string{john.ID, jane.ID}})
	assert.Equal(t, "3.5", res.ToStage)

	_, err = env.workflow.Transition(ctx, coord, doc.ID, TransitionInput{Action: "complete_reviews"})
	assert.ErrorIs(t, err, workflow.ErrReviewsPending)

	res = step(john, TransitionInput{
		Action: "submit_review",
		Feedback: []FeedbackInput{{
			CommentType:     "S",
			ParagraphNumber: "1.0.1",
			ChangeFrom:      "is designed to",
			ChangeTo:        "will",
			Justification:   "Active voice",
		}},
	})
	assert.False(t, res.Transitioned)
	require.Len(t, res.Feedback, 1)
	assert.Equal(t, "3.5", res.Feedback[0].Stage)
	revision := res.Instance.Revision

	res = step(john, TransitionInput{Action: "submit_review"})
	assert.Equal(t, revision, res.Instance.Revision, "repeated submission writes nothing")

	step(coord, TransitionInput{Action: "submit_review", OnBehalfOf: jane.ID})

	st, err := env.workflow.Status(ctx, coord, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, st.PendingReviewers)
	assert.Len(t, st.Reviewers, 2)

	step(coord, TransitionInput{Action: "complete_reviews"})
	step(ao, TransitionInput{Action: "submit_for_second_coordination"})
	step(coord, TransitionInput{Action: "distribute_draft_to_reviewers", Reviewers: []string{opr.ID}})
	step(opr, TransitionInput{Action: "submit_draft_review"})
	step(coord, TransitionInput{Action: "complete_draft_reviews"})
	step(ao, TransitionInput{Action: "submit_to_legal"})

	_, err = env.workflow.Transition(ctx, legal, doc.ID, TransitionInput{Action: "reject"})
	assert.ErrorIs(t, err, workflow.ErrCommentRequired)

	res = step(legal, TransitionInput{Action: "reject", Comment: "Cite the governing AFI."})
	assert.Equal(t, "6", res.ToStage)
	step(ao, TransitionInput{Action: "submit_to_legal"})
	step(legal, TransitionInput{Action: "approve"})
	step(ao, TransitionInput{Action: "submit_to_leadership"})
	step(leader, TransitionInput{Action: "sign_and_approve"})

	res = step(pcm, TransitionInput{Action: "approve_for_publication"})
	assert.Equal(t, "11", res.ToStage)
	assert.Equal(t, models.StatusApproved, res.DocumentStatus)

	res = step(afdpo, TransitionInput{Action: "publish"})
	assert.True(t, res.Completed)
	assert.Equal(t, models.StatusPublished, res.DocumentStatus)

	stored, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, stored.Status)
	assert.Equal(t, "11", stored.CurrentStage)
	assert.Len(t, stored.Fields().DraftFeedback, 1)

	_, err = env.workflow.Transition(ctx, afdpo, doc.ID, TransitionInput{Action: "archive"})
	assert.ErrorIs(t, err, workflow.ErrInactive)

	history, err := env.workflow.History(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "start", history[0].Action)
	assert.Equal(t, "publish", history[len(history)-1].Action)
	assert.Positive(t, env.metrics.Counter("workflow_actions", map[string]string{"action": "publish", "from": "11", "to": "11"}))
}

func TestWorkflow_StatusReportsOverdue(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	doc := env.createDoc(t, ao, "<p>Body.</p>")
	_, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)

	st, err := env.workflow.Status(ctx, ao, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, st.DueAt)
	assert.False(t, st.Overdue)
	assert.Equal(t, "INITIAL_DRAFT", st.StageCode)
	assert.NotEmpty(t, st.AvailableActions)

	env.clock = env.clock.Add(8 * 24 * time.Hour)
	st, err = env.workflow.Status(ctx, ao, doc.ID)
	require.NoError(t, err)
	assert.True(t, st.Overdue)
}

func TestWorkflow_StaleRevisionIsRejected(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	doc := env.createDoc(t, ao, "<p>Body.</p>")
	inst, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.WorkflowInstance{}).
		Where("id = ?", inst.ID).
		Update("revision", inst.Revision+1).Error)

	inst.CurrentStage = "2"
	err = env.workflow.saveInstance(env.db, inst)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestWorkflow_RejectionReturnsToAuthor(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)
	doc := env.createDoc(t, ao, "<p>Body.</p>")
	_, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)

	_, err = env.workflow.Transition(ctx, ao, doc.ID, TransitionInput{Action: "submit_to_pcm"})
	require.NoError(t, err)
	res, err := env.workflow.Transition(ctx, pcm, doc.ID, TransitionInput{Action: "reject", Comment: "Needs references."})
	require.NoError(t, err)
	assert.Equal(t, "1", res.ToStage)
	assert.Equal(t, models.StatusDraft, res.DocumentStatus)

	_, err = env.workflow.Transition(ctx, ao, doc.ID, TransitionInput{Action: "submit_to_pcm"})
	require.NoError(t, err)
	res, err = env.workflow.Transition(ctx, pcm, doc.ID, TransitionInput{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, "3", res.ToStage)
}

func TestApplyDecision_EnteringStageClearsItsApprovals(t *testing.T) {
	reg := workflow.Default()
	nine, err := reg.Stage("9")
	require.NoError(t, err)
	ten, err := reg.Stage("10")
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	inst := &models.WorkflowInstance{
		CurrentStage: "10",
		Status:       models.InstanceActive,
		Approvals: []models.StageApproval{
			{Stage: "9", ApproverID: "leader"},
			{Stage: "7", ApproverID: "legal"},
		},
	}
	pcm := &models.User{Base: models.Base{ID: "pcm"}}
	action, _ := ten.Action("return_to_leadership")

	applyDecision(inst, workflow.Decision{From: ten, To: nine, Action: action, Transition: true}, pcm, now)

	assert.Equal(t, "9", inst.CurrentStage)
	assert.Equal(t, now, inst.StageEnteredAt)
	require.Len(t, inst.Approvals, 1)
	assert.Equal(t, "7", inst.Approvals[0].Stage)
}

func TestWorkflow_Reset(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	admin := env.user(t, models.RoleAdmin)
	doc := env.createDoc(t, ao, "<p>Body.</p>")
	_, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)
	_, err = env.workflow.Transition(ctx, ao, doc.ID, TransitionInput{Action: "submit_to_pcm"})
	require.NoError(t, err)

	_, err = env.workflow.Reset(ctx, ao, doc.ID, "")
	assert.Error(t, err)

	inst, err := env.workflow.Reset(ctx, admin, doc.ID, "restart")
	require.NoError(t, err)
	assert.Equal(t, "1", inst.CurrentStage)
	assert.Equal(t, 3, inst.Revision)

	stored, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.CurrentStage)
	assert.Equal(t, models.StatusDraft, stored.Status)
}

func toFirstCoordination(t *testing.T, env *testEnv) *models.Document {
	t.Helper()
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	pcm := env.user(t, models.RolePCM)
	doc := env.createDoc(t, ao, "<p>The unit is designed to report daily.</p>")
	_, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)
	_, err = env.workflow.Transition(ctx, ao, doc.ID, TransitionInput{Action: "submit_to_pcm"})
	require.NoError(t, err)
	_, err = env.workflow.Transition(ctx, pcm, doc.ID, TransitionInput{Action: "approve"})
	require.NoError(t, err)
	return doc
}

func TestWorkflow_RepeatedReviewKeepsLateFeedback(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	coord := env.user(t, models.RoleCoordinator)
	john := env.userByEmail(t, "john.doe.ops@airforce.mil")
	doc := toFirstCoordination(t, env)

	_, err := env.workflow.Transition(ctx, coord, doc.ID, TransitionInput{Action: "distribute_to_reviewers", Reviewers: []string{john.ID}})
	require.NoError(t, err)
	first, err := env.workflow.Transition(ctx, john, doc.ID, TransitionInput{Action: "submit_review"})
	require.NoError(t, err)
	history, err := env.workflow.History(ctx, doc.ID)
	require.NoError(t, err)

	res, err := env.workflow.Transition(ctx, john, doc.ID, TransitionInput{
		Action: "submit_review",
		Feedback: []FeedbackInput{{
			CommentType:     "A",
			ParagraphNumber: "1.0.1",
			ChangeFrom:      "is designed to",
			ChangeTo:        "will",
		}},
	})
	require.NoError(t, err)
	require.Len(t, res.Feedback, 1)
	assert.False(t, res.Transitioned)
	assert.Equal(t, first.Instance.Revision, res.Instance.Revision)

	stored, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, stored.Fields().DraftFeedback, 1)
	assert.Equal(t, "3.5", stored.Fields().DraftFeedback[0].Stage)

	after, err := env.workflow.History(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(history), "no audit row for a repeated submission")
}

func TestWorkflow_DistributeChecksReviewers(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	coord := env.user(t, models.RoleCoordinator)
	legal := env.user(t, models.RoleLegal)
	john := env.userByEmail(t, "john.doe.ops@airforce.mil")
	jane := env.userByEmail(t, "jane.smith.log@airforce.mil")
	doc := toFirstCoordination(t, env)

	distribute := func(ids ...string) error {
		_, err := env.workflow.Transition(ctx, coord, doc.ID, TransitionInput{Action: "distribute_to_reviewers", Reviewers: ids})
		return err
	}

	err := distribute("no-such-user", john.ID)
	require.ErrorIs(t, err, ErrInvalidReviewers)
	assert.Equal(t, 400, apperr.As(err).StatusCode())

	assert.ErrorIs(t, distribute(legal.ID), ErrInvalidReviewers, "LEGAL may not act during first review collection")

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", jane.ID).Update("active", false).Error)
	assert.ErrorIs(t, distribute(jane.ID), ErrInvalidReviewers)

	st, err := env.workflow.Status(ctx, coord, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", st.StageID)
	assert.Empty(t, st.Reviewers)

	require.NoError(t, distribute(john.ID))
	st, err = env.workflow.Status(ctx, coord, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{john.ID}, st.PendingReviewers)
}

func TestWorkflow_NoteActionIsAudited(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	ao := env.user(t, models.RoleActionOfficer)
	doc := env.createDoc(t, ao, "<p>Body.</p>")
	inst, err := env.workflow.Start(ctx, ao, doc.ID, "")
	require.NoError(t, err)

	res, err := env.workflow.Transition(ctx, ao, doc.ID, TransitionInput{Action: "create_draft", Comment: "outline done"})
	require.NoError(t, err)
	assert.False(t, res.Transitioned)
	assert.Equal(t, "1", res.ToStage)
	assert.Equal(t, inst.Revision+1, res.Instance.Revision)

	history, err := env.workflow.History(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "create_draft", history[1].Action)
	assert.Equal(t, "1", history[1].FromStage)
	assert.Equal(t, "1", history[1].ToStage)
	assert.Equal(t, "outline done", history[1].Comment)
}
