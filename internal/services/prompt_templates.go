package services

import (
	"embed"
	"strings"
	"text/template"

	contextutils "englishapp/internal/utils"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

// Template names as constants
const (
	DictionaryPromptTemplate        = "dictionary_prompt.tmpl"
	SpeakingQuestionsPromptTemplate = "speaking_questions_prompt.tmpl"
	SpeakingFeedbackPromptTemplate  = "speaking_feedback_prompt.tmpl"
	QuizSystemPromptTemplate        = "quiz_system_prompt.tmpl"
	QuizUserPromptTemplate          = "quiz_user_prompt.tmpl"
)

// PromptData holds data for rendering prompt templates
type PromptData struct {
	// Dictionary
	Word           string
	TargetLanguage string

	// Speaking and quiz
	Topic string
	Level string
	Count int

	// Speaking feedback
	Question string
	Answer   string
}

// PromptTemplateManager renders the embedded prompt templates
type PromptTemplateManager struct {
	templates *template.Template
}

// NewPromptTemplateManager parses every embedded template
func NewPromptTemplateManager() (result0 *PromptTemplateManager, err error) {
	templates, err := template.New("").ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to parse prompt templates")
	}
	return &PromptTemplateManager{templates: templates}, nil
}

// MustPromptTemplateManager panics when the embedded templates do not parse
func MustPromptTemplateManager() *PromptTemplateManager {
	tm, err := NewPromptTemplateManager()
	if err != nil {
		panic(err)
	}
	return tm
}

// Render renders a template and trims surrounding whitespace
func (tm *PromptTemplateManager) Render(templateName string, data PromptData) (result0 string, err error) {
	var buf strings.Builder
	if err := tm.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to render %s: %w", templateName, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
