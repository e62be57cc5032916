package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richmond-dms/docflow/internal/ai"
	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	generatedCategory  = "Technical Manual"
	generatorName      = "openrouter-ai"
	offlineGenerator   = "offline-composer"
	coordinatorComment = "AI-suggested improvement for clarity and accuracy"
)

var ErrAIService = apperr.Coded(apperr.KindInternal, "AI_SERVICE_ERROR", "document generation failed")

var (
	feedbackTypes = []models.CommentType{
		models.CommentSubstantive,
		models.CommentSubstantive,
		models.CommentAdministrative,
		models.CommentCritical,
	}
	feedbackComponents = []string{"Technical Review", "Editorial Review", "Compliance Review", "Quality Review"}
	pocNames           = []string{"Col Anderson", "Maj Williams", "Capt Davis", "Lt Martinez", "MSgt Thompson"}
	pocEmails          = []string{"anderson.j@mil", "williams.m@mil", "davis.k@mil", "martinez.r@mil", "thompson.s@mil"}
)

// GeneratorService writes AI drafted documents. A nil completer switches to
// the offline composer.
type GeneratorService struct {
	db        *gorm.DB
	completer ai.Completer
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
	now       func() time.Time
}

type GenerateInput struct {
	Template  string `json:"template"`
	Pages     int    `json:"pages"`
	Feedbacks int    `json:"feedbacks"`
	Title     string `json:"title"`
}

type GenerateResult struct {
	Document   *models.Document `json:"document"`
	Paragraphs int              `json:"paragraphs"`
	Sections   int              `json:"sections"`
	Feedback   int              `json:"feedback"`
	Generator  string           `json:"generator"`
	Model      string           `json:"model,omitempty"`
}

func NewGeneratorService(db *gorm.DB, completer ai.Completer, logger *zap.Logger, metrics *metrics.MetricsCollector) *GeneratorService {
	return &GeneratorService{
		db:        db,
		completer: completer,
		logger:    logger.With(zap.String("service", "generator_service")),
		metrics:   metrics,
		now:       time.Now,
	}
}

func (in GenerateInput) validate() (ai.Template, error) {
	t, ok := ai.LookupTemplate(in.Template)
	if !ok {
		return ai.Template{}, apperr.Validation("invalid template").
			WithDetails(map[string]any{"template": in.Template, "valid": ai.TemplateKeys()})
	}
	if in.Pages < ai.MinPages || in.Pages > ai.MaxPages {
		return ai.Template{}, apperr.Validation("pages must be between 1 and 20")
	}
	if in.Feedbacks < 0 || in.Feedbacks > ai.MaxFeedbacks {
		return ai.Template{}, apperr.Validation("feedbacks must be between 0 and 50")
	}
	return t, nil
}

func (gs *GeneratorService) Offline() bool { return gs.completer == nil }

// Generate drafts the document, derives feedback for it and stores both as a
// new DRAFT owned by actor.
func (gs *GeneratorService) Generate(ctx context.Context, actor *models.User, in GenerateInput) (*GenerateResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	tmpl, err := in.validate()
	if err != nil {
		return nil, err
	}
	start := gs.now()

	generator, model := generatorName, ""
	var content string
	if gs.Offline() {
		generator = offlineGenerator
		content = ai.Compose(tmpl, in.Pages, "")
	} else {
		model = gs.completer.Model()
		system, user := ai.DocumentPrompt(tmpl, in.Pages, in.Feedbacks)
		content, err = gs.completer.Complete(ctx, system, user)
		if err != nil {
			gs.metrics.IncrementCounter("ai_generation_errors", map[string]string{"template": tmpl.Key})
			return nil, ErrAIService.Wrap(err)
		}
	}

	parsed, err := ai.ParseHTML(content)
	if err != nil {
		return nil, ErrAIService.Wrap(err)
	}
	paragraphs := make([]ai.Paragraph, 0, len(parsed.Order))
	for _, num := range parsed.Order {
		paragraphs = append(paragraphs, ai.Paragraph{Number: num, Text: parsed.Paragraphs[num]})
	}

	suggestions := gs.suggest(ctx, tmpl, paragraphs, in.Feedbacks)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "AI " + strings.ToUpper(tmpl.Key) + " - " + start.UTC().Format(time.DateOnly)
	}

	doc := &models.Document{
		Base:           models.Base{ID: uuid.NewString()},
		Title:          title,
		Category:       generatedCategory,
		Status:         models.StatusDraft,
		OrganizationID: actor.OrganizationID,
		CreatedByID:    actor.ID,
		MimeType:       "text/html",
		FileSize:       int64(len(content)),
		Checksum:       checksum(content),
	}
	items := feedbackFromSuggestions(doc.ID, suggestions, start)
	doc.SetFields(models.CustomFields{
		Content:       content,
		Template:      tmpl.Key,
		Pages:         in.Pages,
		ParagraphMap:  parsed.Paragraphs,
		Sections:      parsed.Sections,
		DraftFeedback: items,
		Metadata: map[string]any{
			"generatedAt":     start.UTC().Format(time.RFC3339),
			"generator":       generator,
			"model":           model,
			"totalParagraphs": len(parsed.Paragraphs),
			"totalSections":   len(parsed.Sections),
			"totalFeedback":   len(items),
			"aiGenerated":     true,
			"createdVia":      "ai-generator",
		},
	})

	if err := gs.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, apperr.FromStorage(err, "document")
	}

	gs.metrics.IncrementCounter("documents_created", map[string]string{"source": generator})
	gs.metrics.ObserveLatency("ai_generation", gs.now().Sub(start))
	gs.logger.Info("Generated document stored",
		zap.String("document_id", doc.ID),
		zap.String("template", tmpl.Key),
		zap.String("generator", generator),
		zap.Int("paragraphs", len(parsed.Paragraphs)),
		zap.Int("feedback", len(items)))

	return &GenerateResult{
		Document:   doc,
		Paragraphs: len(parsed.Paragraphs),
		Sections:   len(parsed.Sections),
		Feedback:   len(items),
		Generator:  generator,
		Model:      model,
	}, nil
}

// suggest asks the model for feedback over the first 2*count paragraphs and
// falls back to rule-based rewrites when the reply is unusable.
func (gs *GeneratorService) suggest(ctx context.Context, tmpl ai.Template, paragraphs []ai.Paragraph, count int) []ai.Suggestion {
	if count == 0 || len(paragraphs) == 0 {
		return nil
	}
	window := paragraphs[:min(count*2, len(paragraphs))]
	if gs.Offline() {
		return ai.FallbackSuggestions(window, count)
	}

	system, user := ai.FeedbackPrompt(tmpl.Key, window, count)
	reply, err := gs.completer.Complete(ctx, system, user)
	if err != nil {
		gs.logger.Warn("Feedback generation failed, using fallback rewrites", zap.Error(err))
		return ai.FallbackSuggestions(window, count)
	}
	suggestions, ok := ai.ParseSuggestions(reply)
	if !ok {
		gs.logger.Warn("Unusable feedback reply, using fallback rewrites", zap.Int("reply_bytes", len(reply)))
		gs.metrics.IncrementCounter("ai_feedback_fallbacks", nil)
		return ai.FallbackSuggestions(window, count)
	}
	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}
	return suggestions
}

func feedbackFromSuggestions(docID string, suggestions []ai.Suggestion, at time.Time) []models.FeedbackItem {
	items := make([]models.FeedbackItem, 0, len(suggestions))
	for i, s := range suggestions {
		items = append(items, models.FeedbackItem{
			ID:              uuid.NewString(),
			DocumentID:      docID,
			ReviewerName:    pocNames[i%len(pocNames)],
			ReviewerEmail:   pocEmails[i%len(pocEmails)],
			Component:       feedbackComponents[i%len(feedbackComponents)],
			CommentType:     feedbackTypes[i%len(feedbackTypes)],
			Page:            i/3 + 1,
			ParagraphNumber: s.ParagraphNumber,
			LineNumber:      10 + i*5,
			ChangeFrom:      s.OriginalPhrase,
			ChangeTo:        s.ImprovedPhrase,
			Comment:         coordinatorComment,
			Justification:   s.Justification,
			Status:          models.FeedbackPending,
			CreatedAt:       at,
		})
	}
	return items
}
