package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
)

// QuizBankSheet is the sheet written by exports and read by default on import
const QuizBankSheet = "Quizzes"

// QuizBankHeader is the column layout of a question bank spreadsheet
var QuizBankHeader = []string{"topic", "level", "type", "question", "option A", "option B", "option C", "option D", "answer", "explanation"}

const (
	colTopic = iota
	colLevel
	colType
	colQuestion
	colOptionA
	colOptionB
	colOptionC
	colOptionD
	colAnswer
	colExplanation
)

// QuizImportResult summarizes an import run
type QuizImportResult struct {
	Rows       int      `json:"rows"`
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
}

// QuizBank imports and exports the question bank as xlsx spreadsheets
type QuizBank struct {
	repo   QuizRepository
	logger *observability.Logger
}

// NewQuizBank creates a new QuizBank
func NewQuizBank(repo QuizRepository, logger *observability.Logger) *QuizBank {
	return &QuizBank{repo: repo, logger: logger}
}

// Import reads questions from the named sheet (the first sheet when empty), skipping the header row.
// Rows that cannot be parsed are reported in the result; questions already stored are skipped.
func (b *QuizBank) Import(ctx context.Context, r io.Reader, sheet string) (result0 *QuizImportResult, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "import_bank", attribute.String("quiz.sheet", sheet))
	defer observability.FinishSpan(span, &err)

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "failed to open spreadsheet: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			b.logger.Warn(ctx, "Failed to close spreadsheet", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "failed to read sheet %q: %w", sheet, err)
	}

	result := &QuizImportResult{Errors: []string{}}
	var questions []models.QuizQuestion
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if isBlankRow(row) {
			continue
		}
		result.Rows++
		q, err := parseBankRow(row)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		questions = append(questions, *q)
	}

	if len(questions) > 0 {
		inserted, err := b.repo.InsertNew(ctx, questions)
		if err != nil {
			return nil, err
		}
		result.Inserted = len(inserted)
	}
	result.Duplicates = len(questions) - result.Inserted

	span.SetAttributes(
		attribute.Int("quiz.rows", result.Rows),
		attribute.Int("quiz.inserted", result.Inserted),
		attribute.Int("quiz.row_errors", len(result.Errors)),
	)
	b.logger.Info(ctx, "Quiz bank imported", map[string]interface{}{
		"sheet":      sheet,
		"rows":       result.Rows,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"errors":     len(result.Errors),
	})
	return result, nil
}

// Export writes the stored questions, optionally filtered by topic and level, and returns the row count
func (b *QuizBank) Export(ctx context.Context, w io.Writer, topic, level string) (result0 int, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "export_bank",
		observability.AttributeTopic(topic),
		observability.AttributeLevel(level),
	)
	defer observability.FinishSpan(span, &err)

	questions, err := b.repo.List(ctx, topic, level)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), QuizBankSheet); err != nil {
		return 0, contextutils.WrapError(err, "failed to name sheet")
	}

	header := make([]interface{}, len(QuizBankHeader))
	for i, h := range QuizBankHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(QuizBankSheet, "A1", &header); err != nil {
		return 0, contextutils.WrapError(err, "failed to write header")
	}

	for i, q := range questions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, contextutils.WrapError(err, "failed to address row")
		}
		row := bankRow(q)
		if err := f.SetSheetRow(QuizBankSheet, cell, &row); err != nil {
			return 0, contextutils.WrapErrorf(err, "failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return 0, contextutils.WrapError(err, "failed to write spreadsheet")
	}

	span.SetAttributes(attribute.Int("quiz.exported", len(questions)))
	return len(questions), nil
}

func bankRow(q models.QuizQuestion) []interface{} {
	row := make([]interface{}, len(QuizBankHeader))
	row[colTopic] = q.Topic
	row[colLevel] = q.Level
	row[colType] = q.Type
	row[colQuestion] = q.Question
	for i := 0; i < 4; i++ {
		if i < len(q.Options) {
			row[colOptionA+i] = q.Options[i]
		} else {
			row[colOptionA+i] = ""
		}
	}
	row[colAnswer] = q.Answer
	row[colExplanation] = q.Explanation
	return row
}

// parseBankRow converts one spreadsheet row. The answer column holds a zero-based index or a letter A-D.
func parseBankRow(row []string) (*models.QuizQuestion, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	q := &models.QuizQuestion{
		Topic:       cell(colTopic),
		Level:       cell(colLevel),
		Type:        cell(colType),
		Question:    cell(colQuestion),
		Explanation: cell(colExplanation),
	}
	if q.Question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if q.Type == "" {
		q.Type = models.DefaultQuizType
	}

	options := models.QuizOptions{}
	for i := colOptionA; i <= colOptionD; i++ {
		if opt := cell(i); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("at least two options are required")
	}
	q.Options = options

	answer, err := parseBankAnswer(cell(colAnswer))
	if err != nil {
		return nil, err
	}
	if answer >= len(options) {
		return nil, fmt.Errorf("answer %d out of range for %d options", answer, len(options))
	}
	q.Answer = answer
	return q, nil
}

func parseBankAnswer(s string) (int, error) {
	if len(s) == 1 {
		if c := strings.ToUpper(s)[0]; c >= 'A' && c <= 'D' {
			return int(c - 'A'), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid answer %q", s)
	}
	return n, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
