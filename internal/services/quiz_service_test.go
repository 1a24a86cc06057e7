package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"englishapp/internal/config"
	"englishapp/internal/llm"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockQuizRepository struct {
	mock.Mock
}

func (m *mockQuizRepository) CountByTopicLevel(ctx context.Context, topic, level string) (int, error) {
	args := m.Called(ctx, topic, level)
	return args.Int(0), args.Error(1)
}

func (m *mockQuizRepository) RandomByTopicLevel(ctx context.Context, topic, level string, limit int) ([]models.QuizQuestion, error) {
	args := m.Called(ctx, topic, level, limit)
	return quizQuestionsArg(args, 0), args.Error(1)
}

func (m *mockQuizRepository) RandomByLevel(ctx context.Context, level string, limit int) ([]models.QuizQuestion, error) {
	args := m.Called(ctx, level, limit)
	return quizQuestionsArg(args, 0), args.Error(1)
}

func (m *mockQuizRepository) InsertNew(ctx context.Context, questions []models.QuizQuestion) ([]models.QuizQuestion, error) {
	args := m.Called(ctx, questions)
	return quizQuestionsArg(args, 0), args.Error(1)
}

func (m *mockQuizRepository) SaveQuestion(ctx context.Context, question *models.QuizQuestion) error {
	return m.Called(ctx, question).Error(0)
}

func (m *mockQuizRepository) Stats(ctx context.Context) ([]models.QuizStat, error) {
	args := m.Called(ctx)
	if stats, ok := args.Get(0).([]models.QuizStat); ok {
		return stats, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQuizRepository) List(ctx context.Context, topic, level string) ([]models.QuizQuestion, error) {
	args := m.Called(ctx, topic, level)
	return quizQuestionsArg(args, 0), args.Error(1)
}

func quizQuestionsArg(args mock.Arguments, i int) []models.QuizQuestion {
	if qs, ok := args.Get(i).([]models.QuizQuestion); ok {
		return qs
	}
	return nil
}

type mockQuizGenerator struct {
	mock.Mock
}

func (m *mockQuizGenerator) Generate(ctx context.Context, topic, level string, count int) ([]models.QuizQuestion, error) {
	args := m.Called(ctx, topic, level, count)
	return quizQuestionsArg(args, 0), args.Error(1)
}

func testQuizConfig() config.QuizConfig {
	return config.QuizConfig{
		SaturationThreshold: 800,
		BatchSize:           20,
		DefaultTopic:        "General English",
		DefaultLevel:        "Intermediate",
		Temperature:         0.9,
		Timeout:             time.Second,
	}
}

func sampleQuestions(n int, topic, level string) []models.QuizQuestion {
	qs := make([]models.QuizQuestion, n)
	for i := range qs {
		qs[i] = models.QuizQuestion{
			ID:       i + 1,
			Topic:    topic,
			Level:    level,
			Type:     models.DefaultQuizType,
			Question: fmt.Sprintf("Question %d _____?", i+1),
			Options:  models.QuizOptions{"a", "b", "c", "d"},
			Answer:   i % 4,
		}
	}
	return qs
}

func TestQuizService_GenerateQuiz_DatabaseFull(t *testing.T) {
	repo := &mockQuizRepository{}
	gen := &mockQuizGenerator{}
	svc := NewQuizService(repo, gen, testQuizConfig(), observability.NewNopLogger())

	repo.On("CountByTopicLevel", mock.Anything, "Food", "Advanced").Return(812, nil)
	repo.On("RandomByTopicLevel", mock.Anything, "Food", "Advanced", 20).Return(sampleQuestions(20, "Food", "Advanced"), nil)

	result, err := svc.GenerateQuiz(context.Background(), "Food", "Advanced")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, models.QuizSourceDatabaseFull, result.Source)
	assert.Equal(t, 812, result.TotalInDB)
	assert.Len(t, result.Quiz, 20)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQuizService_GenerateQuiz_Seeding(t *testing.T) {
	repo := &mockQuizRepository{}
	gen := &mockQuizGenerator{}
	svc := NewQuizService(repo, gen, testQuizConfig(), observability.NewNopLogger())

	generated := sampleQuestions(20, "General English", "Intermediate")
	repo.On("CountByTopicLevel", mock.Anything, "General English", "Intermediate").Return(40, nil)
	gen.On("Generate", mock.Anything, "General English", "Intermediate", 20).Return(generated, nil)
	repo.On("InsertNew", mock.Anything, generated).Return(generated[:15], nil)

	result, err := svc.GenerateQuiz(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Equal(t, models.QuizSourceAISeeding, result.Source)
	assert.Equal(t, "General English", result.Topic)
	assert.Equal(t, "Intermediate", result.Level)
	assert.Equal(t, 40, result.TotalInDB)
	assert.Len(t, result.Quiz, 15)
	assert.Equal(t, generated[0].Question, result.Quiz[0].Question)
}

func TestQuizService_GenerateQuiz_FallbackDB(t *testing.T) {
	tests := []struct {
		name  string
		setup func(repo *mockQuizRepository, gen *mockQuizGenerator)
	}{
		{
			name: "generator error",
			setup: func(repo *mockQuizRepository, gen *mockQuizGenerator) {
				gen.On("Generate", mock.Anything, "Jobs", "B2", 20).Return(nil, errors.New("provider down"))
			},
		},
		{
			name: "all duplicates",
			setup: func(repo *mockQuizRepository, gen *mockQuizGenerator) {
				gen.On("Generate", mock.Anything, "Jobs", "B2", 20).Return(sampleQuestions(3, "Jobs", "B2"), nil)
				repo.On("InsertNew", mock.Anything, mock.Anything).Return([]models.QuizQuestion{}, nil)
			},
		},
		{
			name: "store failure",
			setup: func(repo *mockQuizRepository, gen *mockQuizGenerator) {
				gen.On("Generate", mock.Anything, "Jobs", "B2", 20).Return(sampleQuestions(3, "Jobs", "B2"), nil)
				repo.On("InsertNew", mock.Anything, mock.Anything).Return(nil, contextutils.ErrDatabaseTransaction)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockQuizRepository{}
			gen := &mockQuizGenerator{}
			svc := NewQuizService(repo, gen, testQuizConfig(), observability.NewNopLogger())

			repo.On("CountByTopicLevel", mock.Anything, "Jobs", "B2").Return(0, nil)
			repo.On("RandomByLevel", mock.Anything, "B2", 20).Return(sampleQuestions(7, "Animals", "B2"), nil)
			tt.setup(repo, gen)

			result, err := svc.GenerateQuiz(context.Background(), "Jobs", "B2")
			require.NoError(t, err)
			assert.Equal(t, models.QuizSourceFallbackDB, result.Source)
			assert.Len(t, result.Quiz, 7)
			repo.AssertExpectations(t)
		})
	}
}

func TestQuizService_GenerateQuiz_EmergencySync(t *testing.T) {
	repo := &mockQuizRepository{}
	gen := &mockQuizGenerator{}
	svc := NewQuizService(repo, gen, testQuizConfig(), observability.NewNopLogger())

	repo.On("CountByTopicLevel", mock.Anything, "Space", "C1").Return(0, nil)
	gen.On("Generate", mock.Anything, "Space", "C1", 20).Return([]models.QuizQuestion{}, nil)
	repo.On("RandomByLevel", mock.Anything, "C1", 20).Return(nil, nil)

	result, err := svc.GenerateQuiz(context.Background(), "Space", "C1")
	require.NoError(t, err)
	assert.Equal(t, models.QuizSourceEmergencySync, result.Source)
	require.Len(t, result.Quiz, 20)
	for i, item := range result.Quiz {
		assert.Contains(t, item.Question, "Space")
		assert.Equal(t, fmt.Sprintf("[Space] Advanced grammar challenge %d (Syncing...)", i+1), item.Question)
		assert.Equal(t, models.QuizOptions{"Option A", "Option B", "Option C", "Option D"}, item.Options)
		assert.Equal(t, 0, item.Answer)
	}
	repo.AssertNotCalled(t, "InsertNew", mock.Anything, mock.Anything)
}

func TestQuizService_GenerateQuiz_CountFailure(t *testing.T) {
	repo := &mockQuizRepository{}
	svc := NewQuizService(repo, &mockQuizGenerator{}, testQuizConfig(), observability.NewNopLogger())

	repo.On("CountByTopicLevel", mock.Anything, "Food", "A1").Return(0, contextutils.WrapError(contextutils.ErrDatabaseQuery, "connection refused"))

	_, err := svc.GenerateQuiz(context.Background(), "Food", "A1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrDatabaseQuery))
}

func TestQuizService_SaveQuiz(t *testing.T) {
	repo := &mockQuizRepository{}
	svc := NewQuizService(repo, &mockQuizGenerator{}, testQuizConfig(), observability.NewNopLogger())

	repo.On("SaveQuestion", mock.Anything, mock.MatchedBy(func(q *models.QuizQuestion) bool {
		return q.Type == models.DefaultQuizType && q.Question == "Pick one" && q.Options != nil
	})).Return(nil)

	require.NoError(t, svc.SaveQuiz(context.Background(), &models.QuizQuestion{Question: " Pick one "}))

	err := svc.SaveQuiz(context.Background(), &models.QuizQuestion{Question: "  "})
	assert.True(t, errors.Is(err, contextutils.ErrMissingRequired))
	repo.AssertNumberOfCalls(t, "SaveQuestion", 1)
}

func newTestQuizGenerator(t *testing.T, provider llm.Provider) *QuizGenerator {
	t.Helper()
	gen, err := NewQuizGenerator(provider, MustPromptTemplateManager(), testQuizConfig(), observability.NewNopLogger())
	require.NoError(t, err)
	return gen
}

func TestQuizGenerator_Generate(t *testing.T) {
	response := `{"quiz": [
		{"question": " By next year, they _____ here. ", "options": ["will have lived", "live", "lived", "living"], "answer": 0, "explanation": "Tương lai hoàn thành"},
		{"question": "Encoded options", "options": "[\"a\", \"b\", \"c\", \"d\"]", "answer": 3},
		{"question": "String answer", "options": ["w", "x", "y", "z"], "answer": "1"},
		{"question": "Float answer", "options": ["w", "x", "y", "z"], "answer": 2.0},
		{"question": "", "options": ["a", "b", "c", "d"], "answer": 0},
		{"question": "Two options", "options": ["a", "b"], "answer": 0},
		{"question": "Five options", "options": ["a", "b", "c", "d", "e"], "answer": 0},
		{"question": "Out of range", "options": ["a", "b", "c", "d"], "answer": 4},
		{"question": "Negative", "options": ["a", "b", "c", "d"], "answer": -1},
		{"question": "Fractional", "options": ["a", "b", "c", "d"], "answer": 1.5},
		{"question": "Word answer", "options": ["a", "b", "c", "d"], "answer": "second"},
		{"question": "No answer", "options": ["a", "b", "c", "d"]}
	]}`
	provider := llm.NewMockProvider(llm.MockResponse{Text: response})
	gen := newTestQuizGenerator(t, provider)

	questions, err := gen.Generate(context.Background(), "Food", "Advanced", 20)
	require.NoError(t, err)
	require.Len(t, questions, 4)

	assert.Equal(t, "By next year, they _____ here.", questions[0].Question)
	assert.Equal(t, "Food", questions[0].Topic)
	assert.Equal(t, "Advanced", questions[0].Level)
	assert.Equal(t, models.DefaultQuizType, questions[0].Type)
	assert.Equal(t, "Tương lai hoàn thành", questions[0].Explanation)
	assert.Equal(t, models.QuizOptions{"a", "b", "c", "d"}, questions[1].Options)
	assert.Equal(t, 3, questions[1].Answer)
	assert.Empty(t, questions[1].Explanation)
	assert.Equal(t, 1, questions[2].Answer)
	assert.Equal(t, 2, questions[3].Answer)

	req := provider.LastCall()
	assert.True(t, req.JSONMode)
	assert.InDelta(t, 0.9, req.Temperature, 0.0001)
	assert.Contains(t, req.System, "LEVEL: Advanced")
	assert.Equal(t, "Create 20 HIGH-LEVEL challenge questions about Food. Mix the 12 tenses with academic structures. Ensure level is Advanced.", req.Messages[0].Content)
}

func TestQuizGenerator_Generate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response llm.MockResponse
		code     *contextutils.AppError
	}{
		{name: "provider error", response: llm.MockResponse{Err: context.DeadlineExceeded}, code: contextutils.ErrAIRequestFailed},
		{name: "no json", response: llm.MockResponse{Text: "sorry, I cannot"}, code: contextutils.ErrAIResponseInvalid},
		{name: "wrong shape", response: llm.MockResponse{Text: `{"quiz": "none"}`}, code: contextutils.ErrAIResponseInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newTestQuizGenerator(t, llm.NewMockProvider(tt.response))
			_, err := gen.Generate(context.Background(), "Food", "A1", 20)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code))
		})
	}
}

func TestQuizGenerator_Generate_RespectsCount(t *testing.T) {
	var items []string
	for i := 0; i < 25; i++ {
		items = append(items, fmt.Sprintf(`{"question": "Q%d", "options": ["a", "b", "c", "d"], "answer": 1}`, i))
	}
	gen := newTestQuizGenerator(t, llm.NewMockProvider(llm.MockResponse{Text: `{"quiz": [` + strings.Join(items, ",") + `]}`}))

	questions, err := gen.Generate(context.Background(), "Food", "A1", 20)
	require.NoError(t, err)
	assert.Len(t, questions, 20)
}

func TestQuizRepository_InsertNew(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewQuizRepository(db, observability.NewNopLogger())

	questions := []models.QuizQuestion{
		{Topic: "Food", Level: "A1", Question: "New one", Options: models.QuizOptions{"a", "b"}, Answer: 1},
		{Topic: "Food", Level: "A1", Question: "Already stored", Options: models.QuizOptions{"a", "b"}},
		{Topic: "Food", Level: "A1", Question: "New one", Options: models.QuizOptions{"c", "d"}},
	}

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(`SELECT EXISTS`).WithArgs("New one").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	sqlMock.ExpectQuery(`INSERT INTO quizzes`).
		WithArgs("Food", "A1", models.DefaultQuizType, "New one", `["a","b"]`, 1, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
	sqlMock.ExpectQuery(`SELECT EXISTS`).WithArgs("Already stored").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	sqlMock.ExpectCommit()

	inserted, err := repo.InsertNew(context.Background(), questions)
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, 41, inserted[0].ID)
	assert.Equal(t, models.DefaultQuizType, inserted[0].Type)
}

func TestQuizRepository_InsertNew_RollsBackOnError(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewQuizRepository(db, observability.NewNopLogger())

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("broken pipe"))
	sqlMock.ExpectRollback()

	_, err := repo.InsertNew(context.Background(), sampleQuestions(1, "Food", "A1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrDatabaseQuery))
}

func TestQuizRepository_RandomByTopicLevel(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewQuizRepository(db, observability.NewNopLogger())

	rows := sqlmock.NewRows([]string{"id", "topic", "level", "type", "question", "options", "answer", "explanation"}).
		AddRow(1, "Food", "A1", "text", "Q1", `["a","b"]`, 0, "").
		AddRow(2, "Food", "A1", "text", "Q2", `['x', 'y']`, 1, "legacy")
	sqlMock.ExpectQuery(`FROM quizzes WHERE topic = \$1 AND level = \$2 ORDER BY RANDOM\(\) LIMIT \$3`).
		WithArgs("Food", "A1", 20).
		WillReturnRows(rows)

	questions, err := repo.RandomByTopicLevel(context.Background(), "Food", "A1", 20)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, models.QuizOptions{"x", "y"}, questions[1].Options)
}

func TestQuizRepository_Stats(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewQuizRepository(db, observability.NewNopLogger())

	sqlMock.ExpectQuery(`GROUP BY topic, level`).
		WillReturnRows(sqlmock.NewRows([]string{"topic", "level", "count"}).AddRow("Food", "A1", 12).AddRow("Jobs", "B2", 3))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.QuizStat{{Topic: "Food", Level: "A1", Count: 12}, {Topic: "Jobs", Level: "B2", Count: 3}}, stats)
}

func TestQuizBank_ExportThenImport(t *testing.T) {
	stored := []models.QuizQuestion{
		{ID: 1, Topic: "Food", Level: "A1", Type: "text", Question: "Pick the fruit", Options: models.QuizOptions{"apple", "chair", "car", "cloud"}, Answer: 0, Explanation: "Táo"},
		{ID: 2, Topic: "Food", Level: "A1", Type: "text", Question: "Two options", Options: models.QuizOptions{"yes", "no"}, Answer: 1},
	}

	exportRepo := &mockQuizRepository{}
	exportRepo.On("List", mock.Anything, "Food", "").Return(stored, nil)

	var buf bytes.Buffer
	n, err := NewQuizBank(exportRepo, observability.NewNopLogger()).Export(context.Background(), &buf, "Food", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	importRepo := &mockQuizRepository{}
	importRepo.On("InsertNew", mock.Anything, mock.MatchedBy(func(qs []models.QuizQuestion) bool {
		return len(qs) == 2 &&
			qs[0].Question == "Pick the fruit" && qs[0].Explanation == "Táo" && len(qs[0].Options) == 4 &&
			qs[1].Answer == 1 && len(qs[1].Options) == 2
	})).Return(stored[:1], nil)

	result, err := NewQuizBank(importRepo, observability.NewNopLogger()).Import(context.Background(), bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Empty(t, result.Errors)
	importRepo.AssertExpectations(t)
}

func TestQuizBank_ImportReportsBadRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"topic", "level", "type", "question", "option A", "option B", "option C", "option D", "answer", "explanation"},
		{"Food", "A1", "", "Letter answer", "a", "b", "c", "", "C", ""},
		{"Food", "A1", "", "", "a", "b", "", "", "0", ""},
		{"Food", "A1", "", "One option", "a", "", "", "", "0", ""},
		{"Food", "A1", "", "Bad answer", "a", "b", "", "", "x", ""},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	repo := &mockQuizRepository{}
	repo.On("InsertNew", mock.Anything, mock.MatchedBy(func(qs []models.QuizQuestion) bool {
		return len(qs) == 1 && qs[0].Answer == 2 && qs[0].Type == models.DefaultQuizType
	})).Return(sampleQuestions(1, "Food", "A1"), nil)

	result, err := NewQuizBank(repo, observability.NewNopLogger()).Import(context.Background(), &buf, "")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Errors, 3)
	assert.True(t, strings.HasPrefix(result.Errors[0], "row 3:"))
}
