package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type PublishingHandler struct {
	publishingService *services.PublishingService
	logger            *zap.Logger
}

func NewPublishingHandler(publishingService *services.PublishingService, logger *zap.Logger) *PublishingHandler {
	return &PublishingHandler{
		publishingService: publishingService,
		logger:            logger.With(zap.String("handler", "publishing")),
	}
}

func (h *PublishingHandler) ListWorkflows(c *gin.Context) {
	orgID := c.DefaultQuery("organizationId", actor(c).OrganizationID)
	workflows, err := h.publishingService.ListWorkflows(c.Request.Context(), orgID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"workflows": workflows})
}

func (h *PublishingHandler) CreateWorkflow(c *gin.Context) {
	var in services.CreateWorkflowInput
	if !bindJSON(c, &in) {
		return
	}
	wf, err := h.publishingService.CreateWorkflow(c.Request.Context(), actor(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Publishing workflow created",
		zap.String("workflow_id", wf.ID),
		zap.Int("steps", len(wf.Steps)))
	respond(c, http.StatusCreated, gin.H{"workflow": wf})
}

func (h *PublishingHandler) Submit(c *gin.Context) {
	var in services.SubmitPublishingInput
	if !bindJSON(c, &in) {
		return
	}
	pub, err := h.publishingService.Submit(c.Request.Context(), actor(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Document submitted for publishing",
		zap.String("publishing_id", pub.ID),
		zap.String("document_id", pub.DocumentID),
		zap.String("status", string(pub.Status)))
	respond(c, http.StatusCreated, gin.H{"publishing": pub})
}

func (h *PublishingHandler) ProcessApproval(c *gin.Context) {
	var in services.ApprovalInput
	if !bindJSON(c, &in) {
		return
	}
	approval, err := h.publishingService.ProcessApproval(c.Request.Context(), actor(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	pub, err := h.publishingService.Get(c.Request.Context(), in.PublishingID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"approval": approval, "publishing": pub})
}

func (h *PublishingHandler) GetPublishing(c *gin.Context) {
	pub, err := h.publishingService.Get(c.Request.Context(), c.Param("publishingId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"publishing": pub})
}

func (h *PublishingHandler) Publish(c *gin.Context) {
	pub, err := h.publishingService.Publish(c.Request.Context(), actor(c), c.Param("publishingId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Document published",
		zap.String("publishing_id", pub.ID),
		zap.String("user_id", actor(c).ID))
	respond(c, http.StatusOK, gin.H{"publishing": pub})
}

func (h *PublishingHandler) Dashboard(c *gin.Context) {
	dash, err := h.publishingService.Dashboard(c.Request.Context(), actor(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"dashboard": dash})
}
