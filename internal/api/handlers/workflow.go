package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type WorkflowHandler struct {
	workflowService *services.WorkflowService
	logger          *zap.Logger
}

func NewWorkflowHandler(workflowService *services.WorkflowService, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
		logger:          logger.With(zap.String("handler", "workflow")),
	}
}

type resetRequest struct {
	Comment string `json:"comment"`
}

type startRequest struct {
	WorkflowID string `json:"workflowId"`
}

func (h *WorkflowHandler) Definitions(c *gin.Context) {
	catalog := h.workflowService.Catalog()
	respond(c, http.StatusOK, gin.H{
		"workflows": catalog.Definitions(),
		"default":   catalog.Default().ID(),
	})
}

// Definition returns the definition named by ?workflowId=, or the default one.
func (h *WorkflowHandler) Definition(c *gin.Context) {
	registry, err := h.workflowService.Catalog().Get(c.Query("workflowId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"workflow": registry.Definition()})
}

// StageConfig describes one stage and the actions the caller, or the role in
// ?role=, may take there.
func (h *WorkflowHandler) StageConfig(c *gin.Context) {
	registry, err := h.workflowService.Catalog().Get(c.Query("workflowId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	stage, err := registry.Stage(c.Param("stage"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	role := c.DefaultQuery("role", actor(c).RoleName())
	actions, err := registry.AvailableActions(stage.ID, role)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"stage":            stage,
		"role":             role,
		"canAct":           stage.Allows(role),
		"availableActions": actions,
	})
}

func (h *WorkflowHandler) Status(c *gin.Context) {
	status, err := h.workflowService.Status(c.Request.Context(), actor(c), c.Param("documentId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"workflow": status})
}

func (h *WorkflowHandler) Start(c *gin.Context) {
	var req startRequest
	if !bindJSON(c, &req) {
		return
	}
	inst, err := h.workflowService.Start(c.Request.Context(), actor(c), c.Param("documentId"), req.WorkflowID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Workflow started",
		zap.String("document_id", inst.DocumentID),
		zap.String("workflow", inst.WorkflowID),
		zap.String("user_id", actor(c).ID))
	respond(c, http.StatusCreated, gin.H{"instance": inst})
}

func (h *WorkflowHandler) Transition(c *gin.Context) {
	var in services.TransitionInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.workflowService.Transition(c.Request.Context(), actor(c), c.Param("documentId"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"result": res})
}

func (h *WorkflowHandler) Actions(c *gin.Context) {
	actions, err := h.workflowService.AvailableActions(c.Request.Context(), actor(c), c.Param("documentId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"actions": actions})
}

func (h *WorkflowHandler) History(c *gin.Context) {
	history, err := h.workflowService.History(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"history": history})
}

func (h *WorkflowHandler) Reset(c *gin.Context) {
	var req resetRequest
	if !bindJSON(c, &req) {
		return
	}
	inst, err := h.workflowService.Reset(c.Request.Context(), actor(c), c.Param("documentId"), req.Comment)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Warn("Workflow reset",
		zap.String("document_id", inst.DocumentID),
		zap.String("user_id", actor(c).ID))
	respond(c, http.StatusOK, gin.H{"instance": inst})
}
