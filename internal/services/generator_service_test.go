package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (s *scriptedCompleter) Model() string { return "test/model" }

func (s *scriptedCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.prompts = append(s.prompts, user)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

const generatedHTML = `<h1>Policy Document</h1>
<h2>1. Purpose and Scope</h2>
<h3>1.1 Objectives</h3>
<p>This policy is designed to standardize reporting.</p>
<p>Units must file reports in order to remain compliant.</p>
<h2>2. Responsibilities</h2>
<p>The commander utilizes staff to review submissions.</p>`

func newGenerator(env *testEnv, c *scriptedCompleter) *GeneratorService {
	var gs *GeneratorService
	if c == nil {
		gs = NewGeneratorService(env.db, nil, zap.NewNop(), env.metrics)
	} else {
		gs = NewGeneratorService(env.db, c, zap.NewNop(), env.metrics)
	}
	gs.now = func() time.Time { return env.clock }
	return gs
}

func TestGenerator_Validation(t *testing.T) {
	env := newEnv(t)
	gs := newGenerator(env, nil)
	ao := env.user(t, models.RoleActionOfficer)
	ctx := context.Background()

	for _, in := range []GenerateInput{
		{Template: "memo", Pages: 1},
		{Template: "policy", Pages: 0},
		{Template: "policy", Pages: 21},
		{Template: "policy", Pages: 1, Feedbacks: 51},
		{Template: "policy", Pages: 1, Feedbacks: -1},
	} {
		_, err := gs.Generate(ctx, ao, in)
		assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind, "%+v", in)
	}
}

func TestGenerator_ModelReply(t *testing.T) {
	env := newEnv(t)
	ao := env.user(t, models.RoleActionOfficer)
	c := &scriptedCompleter{replies: []string{
		generatedHTML,
		`Sure: [{"paragraphNumber":"1.1.1","originalPhrase":"This policy is designed to standardize reporting.","improvedPhrase":"This policy standardizes reporting.","justification":"Active voice"},
		        {"paragraphNumber":"2.0.1","originalPhrase":"utilizes","improvedPhrase":"uses","justification":"Plain language"}]`,
	}}
	gs := newGenerator(env, c)

	res, err := gs.Generate(context.Background(), ao, GenerateInput{Template: "policy", Pages: 2, Feedbacks: 1})
	require.NoError(t, err)
	assert.Equal(t, "openrouter-ai", res.Generator)
	assert.Equal(t, 3, res.Paragraphs)
	assert.Equal(t, 2, res.Sections)
	assert.Equal(t, 1, res.Feedback, "reply is trimmed to the requested count")

	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1], "[1.1.1]: This policy is designed to standardize reporting.")
	assert.Contains(t, c.prompts[1], "[1.1.2]: Units must file reports")
	assert.NotContains(t, c.prompts[1], "[2.0.1]", "only the first 2*count paragraphs are analysed")

	doc, err := env.docs.Get(context.Background(), res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "AI POLICY - 2025-03-01", doc.Title)
	assert.Equal(t, models.StatusDraft, doc.Status)
	assert.Equal(t, "Technical Manual", doc.Category)

	fields := doc.Fields()
	assert.Equal(t, "policy", fields.Template)
	assert.Equal(t, 2, fields.Pages)
	assert.Equal(t, "The commander utilizes staff to review submissions.", fields.ParagraphMap["2.0.1"])
	assert.Equal(t, "test/model", fields.Metadata["model"])
	assert.Equal(t, true, fields.Metadata["aiGenerated"])

	require.Len(t, fields.DraftFeedback, 1)
	fb := fields.DraftFeedback[0]
	assert.Equal(t, doc.ID, fb.DocumentID)
	assert.Equal(t, "This policy standardizes reporting.", fb.ChangeTo)
	assert.Equal(t, "Col Anderson", fb.ReviewerName)
	assert.Equal(t, "Technical Review", fb.Component)
	assert.Equal(t, models.CommentSubstantive, fb.CommentType)
	assert.Equal(t, 1, fb.Page)
	assert.Equal(t, 10, fb.LineNumber)
	assert.Equal(t, "AI-suggested improvement for clarity and accuracy", fb.Comment)
}

func TestGenerator_FallsBackOnUnusableFeedback(t *testing.T) {
	env := newEnv(t)
	ao := env.user(t, models.RoleActionOfficer)
	c := &scriptedCompleter{replies: []string{generatedHTML, "I cannot help with that."}}
	gs := newGenerator(env, c)

	res, err := gs.Generate(context.Background(), ao, GenerateInput{Template: "policy", Pages: 1, Feedbacks: 5, Title: "Reporting Policy"})
	require.NoError(t, err)
	assert.Equal(t, "Reporting Policy", res.Document.Title)
	assert.Equal(t, 3, res.Feedback)

	items := res.Document.Fields().DraftFeedback
	assert.Equal(t, "This policy will standardize reporting.", items[0].ChangeTo)
	assert.Equal(t, "Simplify passive construction to active voice", items[0].Justification)
	assert.Equal(t, "Units must file reports to remain compliant.", items[1].ChangeTo)
	assert.Equal(t, "The commander uses staff to review submissions.", items[2].ChangeTo)
	assert.Equal(t, models.CommentAdministrative, items[2].CommentType)
	assert.Equal(t, 20, items[2].LineNumber)
	assert.EqualValues(t, 1, env.metrics.Counter("ai_feedback_fallbacks", nil))
}

func TestGenerator_ModelFailure(t *testing.T) {
	env := newEnv(t)
	ao := env.user(t, models.RoleActionOfficer)
	gs := newGenerator(env, &scriptedCompleter{err: errors.New("upstream 503")})

	_, err := gs.Generate(context.Background(), ao, GenerateInput{Template: "sop", Pages: 1})
	assert.ErrorIs(t, err, ErrAIService)

	var n int64
	env.db.Model(&models.Document{}).Count(&n)
	assert.Zero(t, n)
}

func TestGenerator_Offline(t *testing.T) {
	env := newEnv(t)
	ao := env.user(t, models.RoleActionOfficer)
	gs := newGenerator(env, nil)
	require.True(t, gs.Offline())

	res, err := gs.Generate(context.Background(), ao, GenerateInput{Template: "af-manual", Pages: 3, Feedbacks: 4})
	require.NoError(t, err)
	assert.Equal(t, "offline-composer", res.Generator)
	assert.Equal(t, 18, res.Paragraphs)
	assert.Equal(t, 3, res.Sections)
	assert.Equal(t, 4, res.Feedback)

	fields := res.Document.Fields()
	assert.True(t, strings.HasPrefix(fields.Content, "<h1>AIR FORCE TECHNICAL MANUAL</h1>"))
	assert.Equal(t, checksum(fields.Content), res.Document.Checksum)
	for _, fb := range fields.DraftFeedback {
		assert.NotEqual(t, fb.ChangeFrom, fb.ChangeTo)
	}
}
