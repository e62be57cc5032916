package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/api/handlers"
	"github.com/richmond-dms/docflow/internal/api/middleware"
	"github.com/richmond-dms/docflow/internal/config"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/services"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
)

const serviceName = "docflow"

// Services bundles what the handlers depend on.
type Services struct {
	Documents     *services.DocumentService
	Users         *services.UserService
	Organizations *services.OrganizationService
	Feedback      *services.FeedbackService
	Workflow      *services.WorkflowService
	Publishing    *services.PublishingService
	Generator     *services.GeneratorService
	Notifications *services.NotificationService
}

type Router struct {
	engine          *gin.Engine
	cfg             *config.Configuration
	logger          *zap.Logger
	metrics         *metrics.MetricsCollector
	started         time.Time
	docHandler      *handlers.DocumentHandler
	userHandler     *handlers.UserHandler
	orgHandler      *handlers.OrganizationHandler
	feedbackHandler *handlers.FeedbackHandler
	workflowHandler *handlers.WorkflowHandler
	pubHandler      *handlers.PublishingHandler
	genHandler      *handlers.GenerateHandler
	noteHandler     *handlers.NotificationHandler
	authMiddleware  *middleware.AuthMiddleware
	reqMiddleware   *middleware.RequestMiddleware
	generateLimiter *middleware.AttemptTracker
}

func NewRouter(
	cfg *config.Configuration,
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
	svc Services,
) *Router {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	logMiddleware := middleware.NewLoggingMiddleware(logger, metrics)
	errMiddleware := middleware.NewErrorMiddleware(logger, cfg.IsProduction())

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(logMiddleware.LogRequest())
	engine.Use(errMiddleware.HandleErrors())
	engine.Use(reqMiddleware.RecoverPanic())
	engine.Use(reqMiddleware.LimitBody(cfg.Server.MaxBodyBytes))
	engine.Use(reqMiddleware.RequireJSON())
	engine.NoRoute(middleware.NotFound)

	return &Router{
		engine:          engine,
		cfg:             cfg,
		logger:          logger,
		metrics:         metrics,
		started:         time.Now(),
		docHandler:      handlers.NewDocumentHandler(svc.Documents, logger),
		userHandler:     handlers.NewUserHandler(svc.Users, logger),
		orgHandler:      handlers.NewOrganizationHandler(svc.Organizations, logger),
		feedbackHandler: handlers.NewFeedbackHandler(svc.Feedback, logger),
		workflowHandler: handlers.NewWorkflowHandler(svc.Workflow, logger),
		pubHandler:      handlers.NewPublishingHandler(svc.Publishing, logger),
		genHandler:      handlers.NewGenerateHandler(svc.Generator, logger),
		noteHandler:     handlers.NewNotificationHandler(svc.Notifications, logger),
		authMiddleware:  middleware.NewAuthMiddleware(svc.Users, logger),
		reqMiddleware:   reqMiddleware,
		generateLimiter: middleware.NewAttemptTracker(cfg.Security.GenerateRequestsPerWindow, cfg.Security.GenerateWindow),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "up",
			"name":        serviceName,
			"environment": r.cfg.Environment,
			"uptime":      time.Since(r.started).Round(time.Second).String(),
		})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
			"sizes":     r.metrics.GetSizes(),
		})
	})

	admin := r.authMiddleware.RequireRole(models.RoleAdmin)

	api := r.engine.Group("/api")
	api.Use(r.authMiddleware.RequireActor())
	{
		orgs := api.Group("/organizations")
		orgs.GET("", r.orgHandler.ListOrganizations)
		orgs.GET("/:id", r.orgHandler.GetOrganization)
		orgs.POST("", admin, r.orgHandler.CreateOrganization)
		orgs.PUT("/:id", admin, r.orgHandler.UpdateOrganization)
		orgs.DELETE("/:id", admin, r.orgHandler.DeleteOrganization)

		users := api.Group("/users", admin)
		users.GET("", r.userHandler.ListUsers)
		users.POST("", r.userHandler.CreateUser)
		users.GET("/:id", r.userHandler.GetUser)
		users.PUT("/:id", r.userHandler.UpdateUser)
		users.DELETE("/:id", r.userHandler.DeleteUser)

		api.GET("/roles", r.userHandler.ListRoles)
		api.POST("/roles", admin, r.userHandler.CreateRole)

		docs := api.Group("/documents")
		docs.GET("", r.docHandler.ListDocuments)
		docs.POST("", r.docHandler.CreateDocument)
		docs.GET("/:id", r.docHandler.GetDocument)
		docs.PUT("/:id", r.docHandler.UpdateDocument)
		docs.DELETE("/:id", r.docHandler.DeleteDocument)

		docs.GET("/:id/feedback", r.feedbackHandler.ListFeedback)
		docs.POST("/:id/feedback", r.feedbackHandler.SubmitFeedback)
		docs.GET("/:id/feedback/conflicts", r.feedbackHandler.Conflicts)
		docs.PATCH("/:id/feedback/:feedbackId", r.feedbackHandler.DecideFeedback)

		docs.GET("/:id/versions", r.feedbackHandler.ListVersions)
		docs.GET("/:id/versions/latest", r.feedbackHandler.LatestVersion)
		docs.GET("/:id/versions/diff", r.feedbackHandler.DiffVersions)
		docs.POST("/:id/versions", r.feedbackHandler.CreateVersion)
		docs.POST("/:id/versions/:versionId/revert", r.feedbackHandler.RevertVersion)

		wf := api.Group("/workflow")
		wf.GET("/definitions", r.workflowHandler.Definitions)
		wf.GET("/definition", r.workflowHandler.Definition)
		wf.GET("/stages/:stage", r.workflowHandler.StageConfig)
		wf.GET("/:documentId", r.workflowHandler.Status)
		wf.POST("/:documentId/start", r.workflowHandler.Start)
		wf.POST("/:documentId/transition", r.workflowHandler.Transition)
		wf.GET("/:documentId/actions", r.workflowHandler.Actions)
		wf.GET("/:documentId/history", r.workflowHandler.History)
		wf.POST("/:documentId/reset", admin, r.workflowHandler.Reset)

		pub := api.Group("/publishing")
		pub.GET("/workflows", r.pubHandler.ListWorkflows)
		pub.POST("/workflows", admin, r.pubHandler.CreateWorkflow)
		pub.POST("/submit", r.pubHandler.Submit)
		pub.POST("/approvals", r.pubHandler.ProcessApproval)
		pub.GET("/dashboard", r.pubHandler.Dashboard)
		pub.GET("/:publishingId", r.pubHandler.GetPublishing)
		pub.POST("/:publishingId/publish", r.authMiddleware.RequireRole(models.RoleAFDPO), r.pubHandler.Publish)

		notes := api.Group("/notifications")
		notes.GET("", r.noteHandler.ListNotifications)
		notes.POST("/read", r.noteHandler.MarkAllRead)
		notes.POST("/:id/read", r.noteHandler.MarkRead)

		gen := api.Group("/ai")
		gen.GET("/templates", r.genHandler.Templates)
		gen.POST("/generate", r.reqMiddleware.RateLimit(r.generateLimiter), r.genHandler.Generate)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Server wraps the engine in an http.Server using the configured timeouts.
func (r *Router) Server(addr string) *http.Server {
	r.logger.Info("HTTP server configured", zap.String("address", addr))
	return &http.Server{
		Addr:         addr,
		Handler:      r.engine,
		ReadTimeout:  r.cfg.Server.ReadTimeout,
		WriteTimeout: r.cfg.Server.WriteTimeout,
		IdleTimeout:  r.cfg.Server.IdleTimeout,
	}
}
