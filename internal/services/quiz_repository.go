package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// QuizRepository defines the interface for the stored question bank
type QuizRepository interface {
	CountByTopicLevel(ctx context.Context, topic, level string) (int, error)
	RandomByTopicLevel(ctx context.Context, topic, level string, limit int) ([]models.QuizQuestion, error)
	RandomByLevel(ctx context.Context, level string, limit int) ([]models.QuizQuestion, error)
	InsertNew(ctx context.Context, questions []models.QuizQuestion) ([]models.QuizQuestion, error)
	SaveQuestion(ctx context.Context, question *models.QuizQuestion) error
	Stats(ctx context.Context) ([]models.QuizStat, error)
	List(ctx context.Context, topic, level string) ([]models.QuizQuestion, error)
}

// QuizRepositoryImpl implements QuizRepository
type QuizRepositoryImpl struct {
	db     *sql.DB
	logger *observability.Logger
}

const quizSelectFields = `id, COALESCE(topic, ''), COALESCE(level, ''), type, COALESCE(question, ''), options, COALESCE(answer, 0), COALESCE(explanation, '')`

// NewQuizRepository creates a new quiz repository
func NewQuizRepository(db *sql.DB, logger *observability.Logger) *QuizRepositoryImpl {
	return &QuizRepositoryImpl{db: db, logger: logger}
}

// CountByTopicLevel counts stored questions for a topic and level
func (r *QuizRepositoryImpl) CountByTopicLevel(ctx context.Context, topic, level string) (result0 int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "count_quizzes",
		observability.AttributeTopic(topic),
		observability.AttributeLevel(level),
	)
	defer observability.FinishSpan(span, &err)

	var count int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes WHERE topic = $1 AND level = $2`, topic, level).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count quizzes: %w", err)
	}
	span.SetAttributes(attribute.Int("quiz.count", count))
	return count, nil
}

// RandomByTopicLevel samples up to limit questions for a topic and level
func (r *QuizRepositoryImpl) RandomByTopicLevel(ctx context.Context, topic, level string, limit int) (result0 []models.QuizQuestion, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "random_quizzes_by_topic_level",
		observability.AttributeTopic(topic),
		observability.AttributeLevel(level),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	return r.queryQuestions(ctx, `SELECT `+quizSelectFields+` FROM quizzes WHERE topic = $1 AND level = $2 ORDER BY RANDOM() LIMIT $3`, topic, level, limit)
}

// RandomByLevel samples up to limit questions of a level across every topic
func (r *QuizRepositoryImpl) RandomByLevel(ctx context.Context, level string, limit int) (result0 []models.QuizQuestion, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "random_quizzes_by_level",
		observability.AttributeLevel(level),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	return r.queryQuestions(ctx, `SELECT `+quizSelectFields+` FROM quizzes WHERE level = $1 ORDER BY RANDOM() LIMIT $2`, level, limit)
}

// List returns stored questions, optionally filtered by topic and level, in insertion order
func (r *QuizRepositoryImpl) List(ctx context.Context, topic, level string) (result0 []models.QuizQuestion, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_quizzes",
		observability.AttributeTopic(topic),
		observability.AttributeLevel(level),
	)
	defer observability.FinishSpan(span, &err)

	var (
		conditions []string
		args       []interface{}
	)
	if topic != "" {
		args = append(args, topic)
		conditions = append(conditions, "topic = $1")
	}
	if level != "" {
		args = append(args, level)
		if len(args) == 1 {
			conditions = append(conditions, "level = $1")
		} else {
			conditions = append(conditions, "level = $2")
		}
	}

	query := `SELECT ` + quizSelectFields + ` FROM quizzes`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id ASC`
	return r.queryQuestions(ctx, query, args...)
}

func (r *QuizRepositoryImpl) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]models.QuizQuestion, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to query quizzes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var questions []models.QuizQuestion
	for rows.Next() {
		var q models.QuizQuestion
		if err := rows.Scan(&q.ID, &q.Topic, &q.Level, &q.Type, &q.Question, &q.Options, &q.Answer, &q.Explanation); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan quiz: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to iterate quizzes: %w", err)
	}
	return questions, nil
}

// InsertNew stores every question whose text is not already in the bank, or earlier in the same
// batch, inside a single transaction. It returns the inserted questions with their ids.
func (r *QuizRepositoryImpl) InsertNew(ctx context.Context, questions []models.QuizQuestion) (result0 []models.QuizQuestion, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "insert_new_quizzes", attribute.Int("quiz.candidates", len(questions)))
	defer observability.FinishSpan(span, &err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.logger.Warn(ctx, "Failed to rollback quiz transaction", map[string]interface{}{"error": rollbackErr.Error()})
		}
	}()

	seen := make(map[string]struct{}, len(questions))
	inserted := make([]models.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.Question]; dup {
			continue
		}
		seen[q.Question] = struct{}{}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM quizzes WHERE question = $1)`, q.Question).Scan(&exists); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to check existing quiz: %w", err)
		}
		if exists {
			continue
		}

		if q.Type == "" {
			q.Type = models.DefaultQuizType
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO quizzes (topic, level, type, question, options, answer, explanation) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			q.Topic, q.Level, q.Type, q.Question, q.Options, q.Answer, q.Explanation,
		).Scan(&q.ID)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert quiz: %w", err)
		}
		inserted = append(inserted, q)
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to commit quizzes: %w", err)
	}

	span.SetAttributes(attribute.Int("quiz.inserted", len(inserted)))
	return inserted, nil
}

// SaveQuestion stores one question as given, without de-duplication
func (r *QuizRepositoryImpl) SaveQuestion(ctx context.Context, question *models.QuizQuestion) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "save_quiz",
		observability.AttributeTopic(question.Topic),
		observability.AttributeLevel(question.Level),
	)
	defer observability.FinishSpan(span, &err)

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO quizzes (topic, level, type, question, options, answer, explanation) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		question.Topic, question.Level, question.Type, question.Question, question.Options, question.Answer, question.Explanation,
	).Scan(&question.ID)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to save quiz: %w", err)
	}
	return nil
}

// Stats counts stored questions per topic and level
func (r *QuizRepositoryImpl) Stats(ctx context.Context) (result0 []models.QuizStat, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "quiz_stats")
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(topic, ''), COALESCE(level, ''), COUNT(*)
		FROM quizzes
		GROUP BY topic, level
		ORDER BY topic, level`)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to query quiz stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []models.QuizStat
	for rows.Next() {
		var s models.QuizStat
		if err := rows.Scan(&s.Topic, &s.Level, &s.Count); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan quiz stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to iterate quiz stats: %w", err)
	}
	return stats, nil
}
