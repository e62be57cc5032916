package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

// FeedbackHandler serves review feedback and document versions.
type FeedbackHandler struct {
	feedbackService *services.FeedbackService
	logger          *zap.Logger
}

func NewFeedbackHandler(feedbackService *services.FeedbackService, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		logger:          logger.With(zap.String("handler", "feedback")),
	}
}

type submitFeedbackRequest struct {
	Feedback []services.FeedbackInput `json:"feedback"`
}

type decideFeedbackRequest struct {
	Status string `json:"status"`
}

func (h *FeedbackHandler) ListFeedback(c *gin.Context) {
	var filter services.FeedbackFilter
	if !bindQuery(c, &filter) {
		return
	}
	items, err := h.feedbackService.List(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"feedback": items, "count": len(items)})
}

func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req submitFeedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.feedbackService.Submit(c.Request.Context(), actor(c), c.Param("id"), req.Feedback)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(res.Conflicts) > 0 {
		h.logger.Info("Conflicting feedback recorded",
			zap.String("document_id", c.Param("id")),
			zap.Int("conflicts", len(res.Conflicts)))
	}
	respond(c, http.StatusCreated, gin.H{"feedback": res.Items, "conflicts": res.Conflicts})
}

func (h *FeedbackHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.feedbackService.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"conflicts": conflicts, "count": len(conflicts)})
}

func (h *FeedbackHandler) DecideFeedback(c *gin.Context) {
	var req decideFeedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	status := models.FeedbackStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	item, err := h.feedbackService.Decide(c.Request.Context(), actor(c), c.Param("id"), c.Param("feedbackId"), status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"feedback": item})
}

func (h *FeedbackHandler) ListVersions(c *gin.Context) {
	versions, err := h.feedbackService.Versions(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"versions": versions})
}

func (h *FeedbackHandler) LatestVersion(c *gin.Context) {
	v, err := h.feedbackService.LatestVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"version": v})
}

func (h *FeedbackHandler) DiffVersions(c *gin.Context) {
	if c.Query("v1") == "" || c.Query("v2") == "" {
		_ = c.Error(apperr.Validation("query parameters v1 and v2 are required"))
		return
	}
	from, ok := queryInt(c, "v1")
	if !ok {
		return
	}
	to, ok := queryInt(c, "v2")
	if !ok {
		return
	}
	diff, err := h.feedbackService.Diff(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"diff": diff})
}

func (h *FeedbackHandler) CreateVersion(c *gin.Context) {
	var in services.CreateVersionInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.feedbackService.CreateVersion(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Version created",
		zap.String("document_id", c.Param("id")),
		zap.Int("version", v.Number),
		zap.Int("applied", len(in.FeedbackIDs)))
	respond(c, http.StatusCreated, gin.H{"version": v})
}

func (h *FeedbackHandler) RevertVersion(c *gin.Context) {
	v, err := h.feedbackService.Revert(c.Request.Context(), actor(c), c.Param("id"), c.Param("versionId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"version": v})
}
