package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"englishapp/internal/config"
	"englishapp/internal/llm"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Speaking prompts and tuning
const (
	SpeakingQuestionsSystemPrompt = "Bạn là giám khảo IELTS tạo câu hỏi Speaking Part 1."
	SpeakingFeedbackSystemPrompt  = "You are a friendly IELTS speaking examiner."
	DefaultSpeakingFeedback       = "Good effort! Try to speak more naturally next time."

	speakingQuestionsTemperature = 0.8
	speakingQuestionsMaxTokens   = 400
	speakingFeedbackTemperature  = 0.7
	speakingFeedbackMaxTokens    = 200
)

// SpeakingServiceInterface defines the interface for speaking practice
type SpeakingServiceInterface interface {
	Start(ctx context.Context, topic, userID string) (*models.SpeakingStart, error)
	Feedback(ctx context.Context, sessionID, question, answer string) (*models.SpeakingFeedback, error)
	History(ctx context.Context, sessionID string) (*models.SpeakingSession, []models.SpeakingTurn, error)
}

// SpeakingService generates practice questions and grades answers
type SpeakingService struct {
	repo      SpeakingRepository
	users     UserServiceInterface
	provider  llm.Provider
	templates *PromptTemplateManager
	cfg       config.SpeakingConfig
	logger    *observability.Logger
}

// NewSpeakingService creates a new SpeakingService
func NewSpeakingService(repo SpeakingRepository, users UserServiceInterface, provider llm.Provider, templates *PromptTemplateManager, cfg config.SpeakingConfig, logger *observability.Logger) *SpeakingService {
	return &SpeakingService{
		repo:      repo,
		users:     users,
		provider:  provider,
		templates: templates,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start generates practice questions for topic and opens a session.
// A provider failure is returned as *SoftReplyError and no session is created.
func (s *SpeakingService) Start(ctx context.Context, topic, userID string) (result0 *models.SpeakingStart, err error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = s.cfg.DefaultTopic
	}
	userID = strings.TrimSpace(userID)

	ctx, span := observability.TraceSpeakingFunction(ctx, "start",
		observability.AttributeTopic(topic),
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if userID != "" {
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "User not found")
		}
	}

	prompt, err := s.templates.Render(SpeakingQuestionsPromptTemplate, PromptData{Topic: topic, Count: s.cfg.QuestionCount})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt(SpeakingQuestionsSystemPrompt, prompt)
	req.Temperature = speakingQuestionsTemperature
	req.MaxTokens = speakingQuestionsMaxTokens
	text, err := s.provider.Complete(callCtx, req)
	if err != nil {
		return nil, &SoftReplyError{Reply: fallbackReply(err), Err: err}
	}

	questions := SplitQuestions(text, s.cfg.QuestionCount)
	span.SetAttributes(attribute.Int("speaking.questions", len(questions)))

	session := &models.SpeakingSession{
		ID:        uuid.NewString(),
		UserID:    sql.NullString{String: userID, Valid: userID != ""},
		Topic:     topic,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeSessionID(session.ID))

	s.logger.Info(ctx, "Speaking session started", map[string]interface{}{
		"session_id": session.ID,
		"topic":      topic,
		"questions":  len(questions),
	})

	return &models.SpeakingStart{SessionID: session.ID, Topic: topic, Questions: questions}, nil
}

// Feedback grades one answer and records the turn. Recording is best effort: a failed write is
// logged and the feedback is still returned.
func (s *SpeakingService) Feedback(ctx context.Context, sessionID, question, answer string) (result0 *models.SpeakingFeedback, err error) {
	ctx, span := observability.TraceSpeakingFunction(ctx, "feedback", observability.AttributeSessionID(sessionID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(sessionID) == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "Thiếu session_id")
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "Phiên học không tồn tại trong hệ thống")
	}

	answer = strings.TrimSpace(answer)
	feedback := s.grade(ctx, question, answer)

	turn := &models.SpeakingTurn{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		QuestionText: question,
		AnswerText:   answer,
		Feedback:     feedback,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.InsertTurn(ctx, turn); err != nil {
		span.SetAttributes(attribute.Bool("speaking.turn_saved", false))
		s.logger.Error(ctx, "Failed to save speaking turn", err, map[string]interface{}{"session_id": sessionID})
	} else {
		span.SetAttributes(attribute.Bool("speaking.turn_saved", true))
	}

	return &models.SpeakingFeedback{SessionID: sessionID, Question: question, Feedback: feedback}, nil
}

// grade asks the provider for short examiner feedback, falling back to a generic encouragement
func (s *SpeakingService) grade(ctx context.Context, question, answer string) string {
	prompt, err := s.templates.Render(SpeakingFeedbackPromptTemplate, PromptData{Question: question, Answer: answer})
	if err != nil {
		s.logger.Error(ctx, "Failed to render feedback prompt", err)
		return DefaultSpeakingFeedback
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt(SpeakingFeedbackSystemPrompt, prompt)
	req.Temperature = speakingFeedbackTemperature
	req.MaxTokens = speakingFeedbackMaxTokens
	feedback, err := s.provider.Complete(callCtx, req)
	if err != nil {
		s.logger.Warn(ctx, "Speaking feedback fell back to default", map[string]interface{}{"error": err.Error()})
		return DefaultSpeakingFeedback
	}
	return feedback
}

// History returns a session and its turns
func (s *SpeakingService) History(ctx context.Context, sessionID string) (result0 *models.SpeakingSession, result1 []models.SpeakingTurn, err error) {
	ctx, span := observability.TraceSpeakingFunction(ctx, "history", observability.AttributeSessionID(sessionID))
	defer observability.FinishSpan(span, &err)

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "Phiên học không tồn tại trong hệ thống")
	}

	turns, err := s.repo.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if turns == nil {
		turns = []models.SpeakingTurn{}
	}
	return session, turns, nil
}

// SplitQuestions cuts generated text at every "?", strips list markers and keeps the first
// limit non-empty questions. Fewer questions are returned when the text holds fewer.
func SplitQuestions(text string, limit int) []string {
	questions := make([]string, 0, limit)
	for _, part := range strings.Split(strings.ReplaceAll(text, "\n", " "), "?") {
		if len(questions) == limit {
			break
		}
		q := trimBulletNoise(part)
		if q == "" {
			continue
		}
		questions = append(questions, q+"?")
	}
	return questions
}

// trimBulletNoise removes list bullets, numbering such as "2." or "3)", and surrounding spaces
func trimBulletNoise(s string) string {
	for {
		t := strings.Trim(s, "-•* \t\r")
		i := 0
		for i < len(t) && t[i] >= '0' && t[i] <= '9' {
			i++
		}
		if i > 0 && i < len(t) && (t[i] == '.' || t[i] == ')') {
			t = t[i+1:]
		}
		if t == s {
			return t
		}
		s = t
	}
}
