package services

import (
	"context"
	"embed"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"englishapp/internal/config"
	"englishapp/internal/llm"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed schemas/*.json
var schemasFS embed.FS

const quizItemSchemaFile = "schemas/quiz_item.json"

// QuizGeneratorInterface produces new candidate questions for a topic and level
type QuizGeneratorInterface interface {
	Generate(ctx context.Context, topic, level string, count int) ([]models.QuizQuestion, error)
}

// QuizGenerator asks the quiz provider for a batch of questions and keeps the ones that pass the item schema
type QuizGenerator struct {
	provider  llm.Provider
	templates *PromptTemplateManager
	schema    *gojsonschema.Schema
	cfg       config.QuizConfig
	logger    *observability.Logger
}

// NewQuizGenerator creates a new QuizGenerator, compiling the embedded item schema
func NewQuizGenerator(provider llm.Provider, templates *PromptTemplateManager, cfg config.QuizConfig, logger *observability.Logger) (*QuizGenerator, error) {
	raw, err := schemasFS.ReadFile(quizItemSchemaFile)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read quiz item schema")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to compile quiz item schema")
	}
	return &QuizGenerator{
		provider:  provider,
		templates: templates,
		schema:    schema,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

type generatedQuiz struct {
	Quiz []json.RawMessage `json:"quiz"`
}

// Generate returns up to count valid questions tagged with topic and level. Items that fail
// decoding or validation are skipped; the caller decides what an empty result means.
func (g *QuizGenerator) Generate(ctx context.Context, topic, level string, count int) (result0 []models.QuizQuestion, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "generate",
		observability.AttributeTopic(topic),
		observability.AttributeLevel(level),
		observability.AttributeProvider(g.provider.Name()),
	)
	defer observability.FinishSpan(span, &err)

	data := PromptData{Topic: topic, Level: level, Count: count}
	system, err := g.templates.Render(QuizSystemPromptTemplate, data)
	if err != nil {
		return nil, err
	}
	prompt, err := g.templates.Render(QuizUserPromptTemplate, data)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt(system, prompt)
	req.Temperature = g.cfg.Temperature
	req.JSONMode = true
	text, err := g.provider.Complete(callCtx, req)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "quiz generation failed: %w", err)
	}

	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "quiz response has no JSON object: %w", err)
	}
	var payload generatedQuiz
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "quiz response is not valid JSON: %w", err)
	}

	questions := make([]models.QuizQuestion, 0, len(payload.Quiz))
	skipped := 0
	for i, item := range payload.Quiz {
		q, err := g.parseItem(item)
		if err != nil {
			skipped++
			g.logger.Debug(ctx, "Skipping generated quiz item", map[string]interface{}{"index": i, "error": err.Error()})
			continue
		}
		q.Topic = topic
		q.Level = level
		questions = append(questions, *q)
		if len(questions) == count {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("quiz.generated", len(payload.Quiz)),
		attribute.Int("quiz.valid", len(questions)),
		attribute.Int("quiz.skipped", skipped),
	)
	if skipped > 0 {
		g.logger.Warn(ctx, "Generated quiz items failed validation", map[string]interface{}{
			"topic":   topic,
			"level":   level,
			"skipped": skipped,
			"valid":   len(questions),
		})
	}
	return questions, nil
}

// generatedItem is one element of the model's quiz array. The answer arrives as 1, 1.0 or "1"
// depending on the model, so it is decoded loosely.
type generatedItem struct {
	Question    string             `json:"question"`
	Options     models.QuizOptions `json:"options"`
	Answer      json.Number        `json:"answer"`
	Explanation string             `json:"explanation"`
}

// parseItem decodes one generated item, normalizes it and checks it against the item schema
func (g *QuizGenerator) parseItem(raw json.RawMessage) (*models.QuizQuestion, error) {
	var gen generatedItem
	if err := json.Unmarshal(raw, &gen); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "undecodable item: %w", err)
	}
	answer, err := parseGeneratedAnswer(gen.Answer)
	if err != nil {
		return nil, err
	}
	item := models.QuizItem{
		Question:    strings.TrimSpace(gen.Question),
		Options:     gen.Options,
		Answer:      answer,
		Explanation: gen.Explanation,
	}

	if err := g.validate(item); err != nil {
		return nil, err
	}
	if item.Answer >= len(item.Options) {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "answer %d out of range for %d options", item.Answer, len(item.Options))
	}

	return &models.QuizQuestion{
		Type:        models.DefaultQuizType,
		Question:    item.Question,
		Options:     item.Options,
		Answer:      item.Answer,
		Explanation: item.Explanation,
	}, nil
}

// parseGeneratedAnswer accepts an integral JSON number or a string holding one
func parseGeneratedAnswer(n json.Number) (int, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, contextutils.WrapError(contextutils.ErrMissingRequired, "answer is missing")
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "answer %q is not a whole number", s)
	}
	return int(f), nil
}

func (g *QuizGenerator) validate(item models.QuizItem) error {
	result, err := g.schema.Validate(gojsonschema.NewGoLoader(item))
	if err != nil {
		return contextutils.WrapError(err, "quiz item schema validation failed")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return contextutils.WrapError(contextutils.ErrValidationFailed, strings.Join(msgs, "; "))
	}
	return nil
}
