package handlers

import (
	"errors"
	"net/http"
	"testing"

	"englishapp/internal/models"
	"englishapp/internal/services"
	contextutils "englishapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestDictionaryLookup(t *testing.T) {
	svc := newTestServices()
	svc.dictionary.On("Lookup", mock.Anything, "what does apple mean").Return(&models.DictionaryLookup{
		Source:     models.DictionarySourceDatabase,
		Word:       "APPLE",
		Phonetic:   "/ˈæp.əl/",
		WordType:   "noun",
		Definition: "quả táo",
	}, nil)

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/gemini/chat", map[string]string{"message": "what does apple mean"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "database", body["source"])
	assert.Equal(t, "APPLE", body["word"])
	assert.Equal(t, "quả táo", body["definition"])
	svc.assertExpectations(t)
}

func TestDictionaryLookup_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{
			name:       "empty message",
			err:        contextutils.WrapError(contextutils.ErrMissingRequired, "Vui lòng nhập từ cần tra"),
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "Vui lòng nhập từ cần tra",
		},
		{
			name:       "provider failure is a readable reply",
			err:        &services.SoftReplyError{Reply: "Lỗi API: quota exceeded", Err: errors.New("429")},
			wantStatus: http.StatusOK,
			wantKey:    "reply",
			wantValue:  "Lỗi API: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestServices()
			svc.dictionary.On("Lookup", mock.Anything, "").Return(nil, tt.err)

			w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/gemini/chat", map[string]string{"message": ""})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantValue, decodeBody(t, w)[tt.wantKey])
		})
	}
}

func TestCacheDictionary(t *testing.T) {
	svc := newTestServices()
	svc.dictionary.On("CacheEntry", mock.Anything, mock.MatchedBy(func(e *models.DictionaryEntry) bool {
		return e.Word == "Apple" && e.Definition == "quả táo" && e.GrammarNotes == "countable"
	})).Return(nil)

	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/cache-dictionary", map[string]string{
		"word":          "Apple",
		"definition":    "quả táo",
		"grammar_notes": "countable",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "cached"}, decodeBody(t, w))
	svc.assertExpectations(t)
}

func TestCacheDictionary_MissingWord(t *testing.T) {
	svc := newTestServices()
	w := doJSON(t, svc.router(testConfig(t)), http.MethodPost, "/cache-dictionary", map[string]string{"definition": "x"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.assertExpectations(t)
}
