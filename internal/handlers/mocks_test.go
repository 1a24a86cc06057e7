package handlers

import (
	"context"

	"englishapp/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) Register(ctx context.Context, name, username, password string) (*models.User, error) {
	args := m.Called(ctx, name, username, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserService) ResetPassword(ctx context.Context, username, newPassword string) error {
	return m.Called(ctx, username, newPassword).Error(0)
}

func (m *mockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserService) UpdateProgress(ctx context.Context, update models.ProgressUpdate) (*models.User, error) {
	args := m.Called(ctx, update)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserService) UpdateAvatar(ctx context.Context, userID string, avatar *string) error {
	return m.Called(ctx, userID, avatar).Error(0)
}

func (m *mockUserService) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	args := m.Called(ctx, limit)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

type mockDictionaryService struct {
	mock.Mock
}

func (m *mockDictionaryService) Lookup(ctx context.Context, message string) (*models.DictionaryLookup, error) {
	args := m.Called(ctx, message)
	result, _ := args.Get(0).(*models.DictionaryLookup)
	return result, args.Error(1)
}

func (m *mockDictionaryService) CacheEntry(ctx context.Context, entry *models.DictionaryEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type mockChatService struct {
	mock.Mock
}

func (m *mockChatService) Reply(ctx context.Context, message string, history []models.ChatMessage) (string, error) {
	args := m.Called(ctx, message, history)
	return args.String(0), args.Error(1)
}

type mockSpeakingService struct {
	mock.Mock
}

func (m *mockSpeakingService) Start(ctx context.Context, topic, userID string) (*models.SpeakingStart, error) {
	args := m.Called(ctx, topic, userID)
	result, _ := args.Get(0).(*models.SpeakingStart)
	return result, args.Error(1)
}

func (m *mockSpeakingService) Feedback(ctx context.Context, sessionID, question, answer string) (*models.SpeakingFeedback, error) {
	args := m.Called(ctx, sessionID, question, answer)
	result, _ := args.Get(0).(*models.SpeakingFeedback)
	return result, args.Error(1)
}

func (m *mockSpeakingService) History(ctx context.Context, sessionID string) (*models.SpeakingSession, []models.SpeakingTurn, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*models.SpeakingSession)
	turns, _ := args.Get(1).([]models.SpeakingTurn)
	return session, turns, args.Error(2)
}

type mockQuizService struct {
	mock.Mock
}

func (m *mockQuizService) GenerateQuiz(ctx context.Context, topic, level string) (*models.QuizResult, error) {
	args := m.Called(ctx, topic, level)
	result, _ := args.Get(0).(*models.QuizResult)
	return result, args.Error(1)
}

func (m *mockQuizService) SaveQuiz(ctx context.Context, question *models.QuizQuestion) error {
	return m.Called(ctx, question).Error(0)
}

func (m *mockQuizService) Stats(ctx context.Context) ([]models.QuizStat, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).([]models.QuizStat)
	return stats, args.Error(1)
}

type stubSchema struct {
	err error
}

func (s stubSchema) EnsureSchema(context.Context) error { return s.err }
