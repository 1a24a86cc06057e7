package handlers

import (
	"errors"
	"net/http"
	"testing"

	"englishapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGenerateQuiz(t *testing.T) {
	svc := newTestServices()
	svc.quiz.On("GenerateQuiz", mock.Anything, "Travel", "Beginner").Return(&models.QuizResult{
		Status:    "success",
		Source:    models.QuizSourceDatabaseFull,
		TotalInDB: 900,
		Topic:     "Travel",
		Level:     "Beginner",
		Quiz: []models.QuizItem{
			{Question: "Pick the noun", Options: models.QuizOptions{"run", "ticket"}, Answer: 1, Explanation: "A ticket is a thing."},
		},
	}, nil)

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/deepseek/generate-quiz", map[string]string{"topic": "Travel", "level": "Beginner"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "database_full", body["source"])
	assert.Equal(t, float64(900), body["total_in_db"])
	quiz := body["quiz"].([]interface{})
	require.Len(t, quiz, 1)
	assert.Equal(t, []interface{}{"run", "ticket"}, quiz[0].(map[string]interface{})["options"])
	svc.assertExpectations(t)
}

func TestGenerateQuiz_EmptyBodyUsesDefaults(t *testing.T) {
	svc := newTestServices()
	svc.quiz.On("GenerateQuiz", mock.Anything, "", "").Return(&models.QuizResult{
		Status: "success",
		Source: models.QuizSourceEmergencySync,
		Topic:  "General English",
		Level:  "Intermediate",
		Quiz:   []models.QuizItem{},
	}, nil)

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/deepseek/generate-quiz", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "General English", decodeBody(t, w)["topic"])
	svc.assertExpectations(t)
}

func TestGenerateQuiz_MalformedBody(t *testing.T) {
	svc := newTestServices()

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/deepseek/generate-quiz", `{"topic":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.assertExpectations(t)
}

func TestGenerateQuiz_Failure(t *testing.T) {
	svc := newTestServices()
	svc.quiz.On("GenerateQuiz", mock.Anything, "", "").Return(nil, errors.New("database is unavailable"))

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/deepseek/generate-quiz", map[string]string{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "error", "message": "database is unavailable"}, decodeBody(t, w))
}

func TestSaveQuiz(t *testing.T) {
	svc := newTestServices()
	svc.quiz.On("SaveQuiz", mock.Anything, mock.MatchedBy(func(q *models.QuizQuestion) bool {
		return q.Question == "Choose the past tense of go" &&
			len(q.Options) == 3 && q.Options[1] == "went" && q.Answer == 1 && q.Topic == "Grammar"
	})).Return(nil)

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/save-quiz", map[string]interface{}{
		"topic":    "Grammar",
		"level":    "Beginner",
		"question": "Choose the past tense of go",
		"options":  `["goed", "went", "gone"]`,
		"answer":   1,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "quiz saved"}, decodeBody(t, w))
	svc.assertExpectations(t)
}

func TestSaveQuiz_MissingQuestion(t *testing.T) {
	svc := newTestServices()
	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/save-quiz", map[string]interface{}{"options": []string{"a"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.assertExpectations(t)
}
