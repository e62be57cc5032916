package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documentService *services.DocumentService
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger.With(zap.String("handler", "document")),
	}
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var filter services.DocumentFilter
	if !bindQuery(c, &filter) {
		return
	}
	list, err := h.documentService.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"documents": list.Documents,
		"pagination": gin.H{
			"total": list.Total,
			"page":  list.Page,
			"limit": list.Limit,
		},
	})
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var in services.CreateDocumentInput
	if !bindJSON(c, &in) {
		return
	}
	doc, err := h.documentService.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Document created",
		zap.String("document_id", doc.ID),
		zap.String("user_id", actor(c).ID))
	respond(c, http.StatusCreated, gin.H{"document": doc})
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.documentService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"document": doc})
}

func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	var in services.UpdateDocumentInput
	if !bindJSON(c, &in) {
		return
	}
	doc, err := h.documentService.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"document": doc})
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := h.documentService.Delete(c.Request.Context(), actor(c), id); err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Document deleted",
		zap.String("document_id", id),
		zap.String("user_id", actor(c).ID))
	respond(c, http.StatusOK, gin.H{"message": "document deleted"})
}
