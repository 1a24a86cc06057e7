package services

import (
	"context"
	"fmt"
	"strings"

	"englishapp/internal/config"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const emergencyExplanation = "Đang đồng bộ câu hỏi nâng cao từ hệ thống."

// QuizServiceInterface defines the interface for quiz delivery and the question bank
type QuizServiceInterface interface {
	GenerateQuiz(ctx context.Context, topic, level string) (*models.QuizResult, error)
	SaveQuiz(ctx context.Context, question *models.QuizQuestion) error
	Stats(ctx context.Context) ([]models.QuizStat, error)
}

// QuizService serves quizzes from the bank and seeds the bank through the generator
type QuizService struct {
	repo      QuizRepository
	generator QuizGeneratorInterface
	cfg       config.QuizConfig
	logger    *observability.Logger
}

// NewQuizService creates a new QuizService
func NewQuizService(repo QuizRepository, generator QuizGeneratorInterface, cfg config.QuizConfig, logger *observability.Logger) *QuizService {
	return &QuizService{repo: repo, generator: generator, cfg: cfg, logger: logger}
}

// GenerateQuiz picks the quiz source for a topic and level:
//
//	database_full   the pair has reached the saturation threshold, sample stored rows
//	ai_seeding      generate, store and serve new questions
//	fallback_db     generation yielded nothing, sample stored rows of the level
//	emergency_sync  nothing stored either, serve placeholders
//
// Only store failures on the count are returned as errors.
func (s *QuizService) GenerateQuiz(ctx context.Context, topic, level string) (result0 *models.QuizResult, err error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = s.cfg.DefaultTopic
	}
	level = strings.TrimSpace(level)
	if level == "" {
		level = s.cfg.DefaultLevel
	}

	ctx, span := observability.TraceQuizFunction(ctx, "generate_quiz",
		observability.AttributeTopic(topic),
		observability.AttributeLevel(level),
	)
	defer observability.FinishSpan(span, &err)

	total, err := s.repo.CountByTopicLevel(ctx, topic, level)
	if err != nil {
		return nil, err
	}

	var (
		questions []models.QuizQuestion
		source    string
	)
	if total >= s.cfg.SaturationThreshold {
		questions, err = s.repo.RandomByTopicLevel(ctx, topic, level, s.cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		source = models.QuizSourceDatabaseFull
	} else {
		questions = s.seed(ctx, topic, level)
		source = models.QuizSourceAISeeding
	}

	if len(questions) == 0 {
		questions, err = s.repo.RandomByLevel(ctx, level, s.cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		source = models.QuizSourceFallbackDB
	}

	result := &models.QuizResult{
		Status:    "success",
		Source:    source,
		TotalInDB: total,
		Topic:     topic,
		Level:     level,
	}
	if len(questions) == 0 {
		result.Source = models.QuizSourceEmergencySync
		result.Quiz = emergencyQuiz(topic, s.cfg.BatchSize)
	} else {
		if len(questions) > s.cfg.BatchSize {
			questions = questions[:s.cfg.BatchSize]
		}
		result.Quiz = make([]models.QuizItem, 0, len(questions))
		for i := range questions {
			result.Quiz = append(result.Quiz, questions[i].Item())
		}
	}

	span.SetAttributes(
		observability.AttributeSource(result.Source),
		attribute.Int("quiz.total_in_db", total),
		attribute.Int("quiz.items", len(result.Quiz)),
	)
	s.logger.Info(ctx, "Quiz served", map[string]interface{}{
		"topic":       topic,
		"level":       level,
		"source":      result.Source,
		"total_in_db": total,
		"items":       len(result.Quiz),
	})
	return result, nil
}

// seed generates and stores a new batch. Any failure yields an empty batch so the caller falls back.
func (s *QuizService) seed(ctx context.Context, topic, level string) []models.QuizQuestion {
	generated, err := s.generator.Generate(ctx, topic, level, s.cfg.BatchSize)
	if err != nil {
		s.logger.Warn(ctx, "Quiz generation failed", map[string]interface{}{"topic": topic, "level": level, "error": err.Error()})
		return nil
	}
	if len(generated) == 0 {
		return nil
	}

	inserted, err := s.repo.InsertNew(ctx, generated)
	if err != nil {
		s.logger.Error(ctx, "Failed to store generated quiz", err, map[string]interface{}{"topic": topic, "level": level})
		return nil
	}
	return inserted
}

// emergencyQuiz builds placeholder questions naming the topic
func emergencyQuiz(topic string, n int) []models.QuizItem {
	items := make([]models.QuizItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, models.QuizItem{
			Question:    fmt.Sprintf("[%s] Advanced grammar challenge %d (Syncing...)", topic, i),
			Options:     models.QuizOptions{"Option A", "Option B", "Option C", "Option D"},
			Answer:      0,
			Explanation: emergencyExplanation,
		})
	}
	return items
}

// SaveQuiz stores a client-authored question
func (s *QuizService) SaveQuiz(ctx context.Context, question *models.QuizQuestion) (err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "save_quiz",
		observability.AttributeTopic(question.Topic),
		observability.AttributeLevel(question.Level),
	)
	defer observability.FinishSpan(span, &err)

	question.Question = strings.TrimSpace(question.Question)
	if question.Question == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "question is required")
	}
	if strings.TrimSpace(question.Type) == "" {
		question.Type = models.DefaultQuizType
	}
	if question.Options == nil {
		question.Options = models.QuizOptions{}
	}
	return s.repo.SaveQuestion(ctx, question)
}

// Stats counts stored questions per topic and level
func (s *QuizService) Stats(ctx context.Context) (result0 []models.QuizStat, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "stats")
	defer observability.FinishSpan(span, &err)

	return s.repo.Stats(ctx)
}
