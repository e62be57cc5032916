package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/ai"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type GenerateHandler struct {
	generatorService *services.GeneratorService
	logger           *zap.Logger
}

func NewGenerateHandler(generatorService *services.GeneratorService, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		generatorService: generatorService,
		logger:           logger.With(zap.String("handler", "generate")),
	}
}

func (h *GenerateHandler) Templates(c *gin.Context) {
	templates := make([]gin.H, 0, len(ai.TemplateKeys()))
	for _, key := range ai.TemplateKeys() {
		t, _ := ai.LookupTemplate(key)
		templates = append(templates, gin.H{"key": t.Key, "description": t.Description})
	}
	respond(c, http.StatusOK, gin.H{
		"templates": templates,
		"limits": gin.H{
			"minPages":     ai.MinPages,
			"maxPages":     ai.MaxPages,
			"maxFeedbacks": ai.MaxFeedbacks,
		},
		"offline": h.generatorService.Offline(),
	})
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var in services.GenerateInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.generatorService.Generate(c.Request.Context(), actor(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Document generated",
		zap.String("document_id", res.Document.ID),
		zap.String("template", in.Template),
		zap.Int("pages", in.Pages),
		zap.Int("feedback", res.Feedback),
		zap.String("generator", res.Generator))
	respond(c, http.StatusCreated, gin.H{
		"documentId": res.Document.ID,
		"title":      res.Document.Title,
		"stats": gin.H{
			"paragraphs": res.Paragraphs,
			"sections":   res.Sections,
			"feedback":   res.Feedback,
			"generator":  res.Generator,
			"model":      res.Model,
		},
		"document": res.Document,
	})
}
