package services

import (
	"context"
	"testing"
	"time"

	"github.com/richmond-dms/docflow/internal/db/dbtest"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/workflow"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	metrics  *metrics.MetricsCollector
	clock    time.Time
	docs     *DocumentService
	users    *UserService
	orgs     *OrganizationService
	feedback *FeedbackService
	workflow *WorkflowService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	database := dbtest.Seeded(t)
	mc := metrics.NewMetricsCollector()
	log := zap.NewNop()

	env := &testEnv{
		db:       database,
		metrics:  mc,
		clock:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		docs:     NewDocumentService(database, log, mc),
		users:    NewUserService(database, log, mc),
		orgs:     NewOrganizationService(database, log, mc),
		feedback: NewFeedbackService(database, log, mc),
		workflow: NewWorkflowService(database, workflow.Builtin(), log, mc),
	}
	now := func() time.Time { return env.clock }
	env.feedback.now = now
	env.workflow.now = now
	return env
}

func (e *testEnv) user(t *testing.T, role string) *models.User {
	t.Helper()
	return dbtest.UserByRole(t, e.db, role)
}

func (e *testEnv) userByEmail(t *testing.T, email string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.Preload("Role").First(&u, "email = ?", email).Error)
	return &u
}

func (e *testEnv) createDoc(t *testing.T, author *models.User, content string) *models.Document {
	t.Helper()
	doc, err := e.docs.Create(context.Background(), author, CreateDocumentInput{
		Title:    "AFI 10-101 Operations Reporting",
		Category: "Instruction",
		Content:  content,
	})
	require.NoError(t, err)
	return doc
}
