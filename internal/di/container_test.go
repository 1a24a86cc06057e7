package di

import (
	"context"
	"testing"

	"englishapp/internal/config"
	"englishapp/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContainerConfig() *config.Config {
	return &config.Config{
		Chat:       config.ChatConfig{Provider: config.ChatProviderOpenAI, Timeout: config.ChatTimeout},
		Dictionary: config.DictionaryConfig{APIVersions: []string{"v1beta"}, Timeout: config.DictionaryTimeout},
		Quiz:       config.QuizConfig{SaturationThreshold: 800, BatchSize: 20, Timeout: config.QuizTimeout},
		Speaking:   config.SpeakingConfig{QuestionCount: 3, Timeout: config.SpeakingTimeout},
	}
}

func TestInitializeWithDB_RegistersServices(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	container := NewServiceContainer(testContainerConfig(), observability.NewNopLogger())
	require.NoError(t, container.InitializeWithDB(context.Background(), db))

	_, err = container.GetUserService()
	assert.NoError(t, err)
	_, err = container.GetDictionaryService()
	assert.NoError(t, err)
	_, err = container.GetChatService()
	assert.NoError(t, err)
	_, err = container.GetSpeakingService()
	assert.NoError(t, err)
	_, err = container.GetQuizService()
	assert.NoError(t, err)
	bank, err := container.GetQuizBank()
	assert.NoError(t, err)
	assert.NotNil(t, bank)

	assert.Same(t, db, container.GetDatabase())
	assert.NotNil(t, container.GetSchemaManager())

	require.NoError(t, container.Shutdown(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetService_Unknown(t *testing.T) {
	container := NewServiceContainer(testContainerConfig(), observability.NewNopLogger())

	_, err := container.GetService("worker")
	assert.Error(t, err)
}

func TestGetServiceAs_WrongType(t *testing.T) {
	container := NewServiceContainer(testContainerConfig(), observability.NewNopLogger())
	container.services["user"] = "not a service"

	_, err := container.GetUserService()
	assert.Error(t, err)
}

func TestInitialize_NoDatabaseURL(t *testing.T) {
	container := NewServiceContainer(testContainerConfig(), observability.NewNopLogger())

	err := container.Initialize(context.Background())
	assert.Error(t, err)
}
