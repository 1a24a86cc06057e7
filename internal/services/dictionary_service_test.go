package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"englishapp/internal/config"
	"englishapp/internal/llm"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDictionaryRepository struct {
	mock.Mock
}

func (m *mockDictionaryRepository) GetEntry(ctx context.Context, word string) (*models.DictionaryEntry, error) {
	args := m.Called(ctx, word)
	if entry, ok := args.Get(0).(*models.DictionaryEntry); ok {
		return entry, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDictionaryRepository) InsertEntry(ctx context.Context, entry *models.DictionaryEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func testDictionaryConfig() config.DictionaryConfig {
	return config.DictionaryConfig{
		TargetLanguage:  config.DefaultDictionaryLanguage,
		APIVersions:     []string{"v1beta", "v1"},
		Temperature:     0.1,
		MaxOutputTokens: 1024,
		Timeout:         config.DictionaryTimeout,
	}
}

func newTestDictionaryService(repo DictionaryRepository, provider llm.Provider) *DictionaryService {
	return NewDictionaryService(repo, provider, MustPromptTemplateManager(), testDictionaryConfig(), observability.NewNopLogger())
}

func TestLookupKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Apple", "apple"},
		{"what does 'Resilient' mean?", "mean"},
		{"define 'Resilient'?!", "resilient"},
		{"   ", ""},
		{"...", ""},
		{strings.Repeat("a", 150), strings.Repeat("a", 100)},
		{"Tra từ ĐẸP.", "đẹp"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, LookupKey(tt.input), "input %q", tt.input)
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "plain", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\": {\"b\": 2}}\n```", expected: `{"a": {"b": 2}}`},
		{name: "braces in strings", input: `note: {"a":"}{","b":"\"}"} trailing {"c":1}`, expected: `{"a":"}{","b":"\"}"}`},
		{name: "no object", input: "no json here", wantErr: true},
		{name: "unterminated", input: `{"a": {"b": 1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeField(t *testing.T) {
	assert.Equal(t, "", normalizeField(nil))
	assert.Equal(t, "text", normalizeField("text"))
	assert.Equal(t, "one\ntwo", normalizeField([]interface{}{"one", "two"}))
	assert.Equal(t, "3", normalizeField(float64(3)))
	assert.Equal(t, "1.5", normalizeField(1.5))
	assert.Equal(t, "true", normalizeField(true))
	assert.Equal(t, `{"k":"v"}`, normalizeField(map[string]interface{}{"k": "v"}))
}

func TestDictionaryService_Lookup_CacheHit(t *testing.T) {
	repo := &mockDictionaryRepository{}
	provider := llm.NewMockProvider()
	service := newTestDictionaryService(repo, provider)

	repo.On("GetEntry", mock.Anything, "resilient").Return(&models.DictionaryEntry{
		ID: 1, Word: "resilient", Phonetic: "/rɪˈzɪliənt/", Definition: "kiên cường",
	}, nil)

	result, err := service.Lookup(context.Background(), "define resilient?")
	require.NoError(t, err)
	assert.Equal(t, models.DictionarySourceDatabase, result.Source)
	assert.Equal(t, "RESILIENT", result.Word)
	assert.Equal(t, "kiên cường", result.Definition)
	assert.Equal(t, 0, provider.CallCount())
	repo.AssertNotCalled(t, "InsertEntry", mock.Anything, mock.Anything)
}

func TestDictionaryService_Lookup_ProviderAnswer(t *testing.T) {
	repo := &mockDictionaryRepository{}
	provider := llm.NewMockProvider(llm.MockResponse{Text: "```json\n" + `{
		"phonetic": "/ˈæp.əl/",
		"word_type": "danh từ",
		"definition": "quả táo",
		"examples": ["I eat an apple.", "Apples are red."]
	}` + "\n```"})
	service := newTestDictionaryService(repo, provider)

	repo.On("GetEntry", mock.Anything, "apple").Return(nil, nil)
	repo.On("InsertEntry", mock.Anything, mock.MatchedBy(func(e *models.DictionaryEntry) bool {
		return e.Word == "apple" &&
			e.Examples == "I eat an apple.\nApples are red." &&
			e.GrammarNotes == ""
	})).Return(true, nil)

	result, err := service.Lookup(context.Background(), "Apple")
	require.NoError(t, err)
	assert.Equal(t, models.DictionarySourceAPI, result.Source)
	assert.Equal(t, "APPLE", result.Word)
	assert.Equal(t, "danh từ", result.WordType)
	repo.AssertExpectations(t)

	req := provider.LastCall()
	assert.InDelta(t, 0.1, req.Temperature, 0.0001)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Contains(t, req.Messages[0].Content, `"apple"`)
	assert.Contains(t, req.Messages[0].Content, "Nội dung phải là tiếng Việt.")
}

func TestDictionaryService_Lookup_SoftReplies(t *testing.T) {
	tests := []struct {
		name        string
		response    llm.MockResponse
		replyPrefix string
	}{
		{
			name:        "upstream error",
			response:    llm.MockResponse{Err: &llm.UpstreamError{Provider: "gemini", StatusCode: 429, Message: "Quota exceeded"}},
			replyPrefix: "Lỗi API: Quota exceeded",
		},
		{
			name:        "timeout",
			response:    llm.MockResponse{Err: context.DeadlineExceeded},
			replyPrefix: "Lỗi API: timeout",
		},
		{
			name:        "no json",
			response:    llm.MockResponse{Text: "Sorry, I cannot help."},
			replyPrefix: "Lỗi xử lý AI:",
		},
		{
			name:        "invalid json",
			response:    llm.MockResponse{Text: `{"phonetic": tá}`},
			replyPrefix: "Lỗi xử lý AI:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockDictionaryRepository{}
			service := newTestDictionaryService(repo, llm.NewMockProvider(tt.response))
			repo.On("GetEntry", mock.Anything, "apple").Return(nil, nil)

			_, err := service.Lookup(context.Background(), "apple")
			soft, ok := AsSoftReply(err)
			require.True(t, ok, "expected soft reply, got %v", err)
			assert.True(t, strings.HasPrefix(soft.Reply, tt.replyPrefix), "reply %q", soft.Reply)
			repo.AssertNotCalled(t, "InsertEntry", mock.Anything, mock.Anything)
		})
	}
}

func TestDictionaryService_Lookup_StoreFailure(t *testing.T) {
	repo := &mockDictionaryRepository{}
	service := newTestDictionaryService(repo, llm.NewMockProvider())
	repo.On("GetEntry", mock.Anything, "apple").Return(nil, errors.New("connection refused"))

	_, err := service.Lookup(context.Background(), "apple")
	soft, ok := AsSoftReply(err)
	require.True(t, ok)
	assert.Contains(t, soft.Reply, "Lỗi hệ thống")
}

func TestDictionaryService_Lookup_EmptyMessage(t *testing.T) {
	service := newTestDictionaryService(&mockDictionaryRepository{}, llm.NewMockProvider())

	_, err := service.Lookup(context.Background(), "  ")
	assert.True(t, errors.Is(err, contextutils.ErrMissingRequired))
	_, isSoft := AsSoftReply(err)
	assert.False(t, isSoft)
}

func TestDictionaryService_CacheEntry(t *testing.T) {
	repo := &mockDictionaryRepository{}
	service := newTestDictionaryService(repo, llm.NewMockProvider())

	repo.On("InsertEntry", mock.Anything, mock.MatchedBy(func(e *models.DictionaryEntry) bool {
		return e.Word == "apple"
	})).Return(false, nil)

	require.NoError(t, service.CacheEntry(context.Background(), &models.DictionaryEntry{Word: " Apple "}))
	repo.AssertExpectations(t)

	err := service.CacheEntry(context.Background(), &models.DictionaryEntry{Word: " "})
	assert.True(t, errors.Is(err, contextutils.ErrMissingRequired))
}

func TestDictionaryRepository(t *testing.T) {
	db, sqlMock := newMockDB(t)
	repo := NewDictionaryRepository(db, observability.NewNopLogger())

	columns := []string{"id", "word", "phonetic", "word_type", "definition", "examples", "grammar_notes"}
	sqlMock.ExpectQuery("SELECT (.+) FROM dictionary_cache").
		WithArgs("apple").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(1, "apple", "/ˈæp.əl/", "noun", "quả táo", "", ""))
	sqlMock.ExpectQuery("SELECT (.+) FROM dictionary_cache").
		WithArgs("pear").
		WillReturnRows(sqlmock.NewRows(columns))
	sqlMock.ExpectExec("INSERT INTO dictionary_cache (.+) ON CONFLICT \\(word\\) DO NOTHING").
		WithArgs("pear", "", "", "quả lê", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	sqlMock.ExpectExec("INSERT INTO dictionary_cache").
		WillReturnResult(sqlmock.NewResult(0, 0))

	entry, err := repo.GetEntry(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, "quả táo", entry.Definition)

	entry, err = repo.GetEntry(context.Background(), "pear")
	require.NoError(t, err)
	assert.Nil(t, entry)

	inserted, err := repo.InsertEntry(context.Background(), &models.DictionaryEntry{Word: "pear", Definition: "quả lê"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertEntry(context.Background(), &models.DictionaryEntry{Word: "pear"})
	require.NoError(t, err)
	assert.False(t, inserted)
}
