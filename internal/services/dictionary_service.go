package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"englishapp/internal/config"
	"englishapp/internal/llm"
	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const maxLookupKeyLength = 100

// DictionaryServiceInterface defines the interface for word lookups and the dictionary cache
type DictionaryServiceInterface interface {
	Lookup(ctx context.Context, message string) (*models.DictionaryLookup, error)
	CacheEntry(ctx context.Context, entry *models.DictionaryEntry) error
}

// DictionaryService answers word lookups from the cache, asking the dictionary provider on a miss
type DictionaryService struct {
	repo      DictionaryRepository
	provider  llm.Provider
	templates *PromptTemplateManager
	cfg       config.DictionaryConfig
	logger    *observability.Logger
}

// NewDictionaryService creates a new DictionaryService
func NewDictionaryService(repo DictionaryRepository, provider llm.Provider, templates *PromptTemplateManager, cfg config.DictionaryConfig, logger *observability.Logger) *DictionaryService {
	return &DictionaryService{
		repo:      repo,
		provider:  provider,
		templates: templates,
		cfg:       cfg,
		logger:    logger,
	}
}

// LookupKey derives the cache key from a free-text message: the last whitespace-delimited token,
// lower-cased, with quotes and sentence punctuation trimmed, capped at 100 characters.
func LookupKey(message string) string {
	fields := strings.Fields(strings.ToLower(message))
	if len(fields) == 0 {
		return ""
	}
	key := []rune(strings.Trim(fields[len(fields)-1], "'.?!"))
	if len(key) > maxLookupKeyLength {
		key = key[:maxLookupKeyLength]
	}
	return string(key)
}

// Lookup returns the cached entry for the message's word, or asks the provider and caches the answer.
// Provider and storage failures are returned as *SoftReplyError.
func (s *DictionaryService) Lookup(ctx context.Context, message string) (result0 *models.DictionaryLookup, err error) {
	ctx, span := observability.TraceDictionaryFunction(ctx, "lookup")
	defer observability.FinishSpan(span, &err)

	word := LookupKey(message)
	if word == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "Vui lòng nhập từ cần tra")
	}
	span.SetAttributes(observability.AttributeWord(word))

	cached, err := s.repo.GetEntry(ctx, word)
	if err != nil {
		return nil, &SoftReplyError{Reply: "Lỗi hệ thống: " + err.Error(), Err: err}
	}
	if cached != nil {
		span.SetAttributes(observability.AttributeSource(models.DictionarySourceDatabase))
		return models.NewDictionaryLookup(models.DictionarySourceDatabase, cached), nil
	}

	entry, err := s.define(ctx, word)
	if err != nil {
		return nil, err
	}

	inserted, err := s.repo.InsertEntry(ctx, entry)
	if err != nil {
		return nil, &SoftReplyError{Reply: "Lỗi hệ thống: " + err.Error(), Err: err}
	}
	s.logger.Info(ctx, "Dictionary entry cached", map[string]interface{}{"word": word, "inserted": inserted})

	span.SetAttributes(observability.AttributeSource(models.DictionarySourceAPI))
	return models.NewDictionaryLookup(models.DictionarySourceAPI, entry), nil
}

// define asks the provider for the five dictionary fields of word
func (s *DictionaryService) define(ctx context.Context, word string) (*models.DictionaryEntry, error) {
	prompt, err := s.templates.Render(DictionaryPromptTemplate, PromptData{
		Word:           word,
		TargetLanguage: s.cfg.TargetLanguage,
	})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := llm.UserPrompt("", prompt)
	req.Temperature = s.cfg.Temperature
	req.MaxTokens = s.cfg.MaxOutputTokens
	text, err := s.provider.Complete(callCtx, req)
	if err != nil {
		return nil, &SoftReplyError{Reply: "Lỗi API: " + upstreamMessage(err), Err: err}
	}

	raw, err := ExtractJSONObject(text)
	if err != nil {
		s.logger.Warn(ctx, "Dictionary provider returned no JSON object", map[string]interface{}{"word": word, "response": text})
		return nil, &SoftReplyError{Reply: "Lỗi xử lý AI: " + err.Error(), Err: err}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		s.logger.Warn(ctx, "Dictionary provider returned invalid JSON", map[string]interface{}{"word": word, "response": text})
		return nil, &SoftReplyError{Reply: "Lỗi xử lý AI: " + err.Error(), Err: err}
	}

	return &models.DictionaryEntry{
		Word:         word,
		Phonetic:     normalizeField(fields["phonetic"]),
		WordType:     normalizeField(fields["word_type"]),
		Definition:   normalizeField(fields["definition"]),
		Examples:     normalizeField(fields["examples"]),
		GrammarNotes: normalizeField(fields["grammar_notes"]),
	}, nil
}

// CacheEntry stores a client-supplied entry unless the word is already cached
func (s *DictionaryService) CacheEntry(ctx context.Context, entry *models.DictionaryEntry) (err error) {
	ctx, span := observability.TraceDictionaryFunction(ctx, "cache_entry")
	defer observability.FinishSpan(span, &err)

	entry.Word = strings.ToLower(strings.TrimSpace(entry.Word))
	if entry.Word == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "word is required")
	}
	span.SetAttributes(observability.AttributeWord(entry.Word))

	inserted, err := s.repo.InsertEntry(ctx, entry)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Bool("cache.inserted", inserted))
	return nil
}

// ExtractJSONObject returns the first balanced {...} span of text. Braces inside JSON strings
// are ignored, so markdown fences and surrounding prose are tolerated.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errors.New("AI không trả về đúng định dạng JSON")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errors.New("AI trả về JSON không hoàn chỉnh")
}

// normalizeField flattens a decoded JSON value into the text stored in the cache:
// lists are joined with newlines, missing values become "", scalars are stringified.
func normalizeField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, normalizeField(item))
		}
		return strings.Join(parts, "\n")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// upstreamMessage renders a provider error for a soft reply
func upstreamMessage(err error) string {
	if upErr, ok := llm.AsUpstream(err); ok {
		if upErr.Message != "" {
			return upErr.Message
		}
		return fmt.Sprintf("HTTP %d", upErr.StatusCode)
	}
	if llm.IsTimeout(err) {
		return "timeout"
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		return "API key is not configured"
	}
	if errors.Is(err, llm.ErrEmptyResponse) {
		return "empty response"
	}
	return err.Error()
}
