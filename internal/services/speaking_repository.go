package services

import (
	"context"
	"database/sql"
	"errors"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"
)

// SpeakingRepository defines the interface for speaking session persistence
type SpeakingRepository interface {
	CreateSession(ctx context.Context, session *models.SpeakingSession) error
	GetSession(ctx context.Context, id string) (*models.SpeakingSession, error)
	InsertTurn(ctx context.Context, turn *models.SpeakingTurn) error
	ListTurns(ctx context.Context, sessionID string) ([]models.SpeakingTurn, error)
}

// SpeakingRepositoryImpl implements SpeakingRepository
type SpeakingRepositoryImpl struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSpeakingRepository creates a new speaking repository
func NewSpeakingRepository(db *sql.DB, logger *observability.Logger) *SpeakingRepositoryImpl {
	return &SpeakingRepositoryImpl{db: db, logger: logger}
}

// CreateSession inserts a new session row
func (r *SpeakingRepositoryImpl) CreateSession(ctx context.Context, session *models.SpeakingSession) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "create_speaking_session",
		observability.AttributeSessionID(session.ID),
		observability.AttributeTopic(session.Topic),
	)
	defer observability.FinishSpan(span, &err)

	query := `INSERT INTO speaking_sessions (id, user_id, topic, created_at) VALUES ($1, $2, $3, $4)`
	if _, err = r.db.ExecContext(ctx, query, session.ID, session.UserID, session.Topic, session.CreatedAt); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create speaking session: %w", err)
	}
	return nil
}

// GetSession returns the session with id, or nil when it does not exist
func (r *SpeakingRepositoryImpl) GetSession(ctx context.Context, id string) (result0 *models.SpeakingSession, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_speaking_session", observability.AttributeSessionID(id))
	defer observability.FinishSpan(span, &err)

	session := &models.SpeakingSession{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, COALESCE(topic, ''), created_at FROM speaking_sessions WHERE id = $1`, id,
	).Scan(&session.ID, &session.UserID, &session.Topic, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load speaking session: %w", err)
	}
	return session, nil
}

// InsertTurn appends a graded answer inside its own transaction
func (r *SpeakingRepositoryImpl) InsertTurn(ctx context.Context, turn *models.SpeakingTurn) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "insert_speaking_turn", observability.AttributeSessionID(turn.SessionID))
	defer observability.FinishSpan(span, &err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.logger.Warn(ctx, "Failed to rollback speaking turn transaction", map[string]interface{}{"error": rollbackErr.Error()})
		}
	}()

	query := `INSERT INTO speaking_turns (id, session_id, question_text, answer_text, feedback, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, query, turn.ID, turn.SessionID, turn.QuestionText, turn.AnswerText, turn.Feedback, turn.CreatedAt); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert speaking turn: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to commit speaking turn: %w", err)
	}
	return nil
}

// ListTurns returns the turns of a session, oldest first
func (r *SpeakingRepositoryImpl) ListTurns(ctx context.Context, sessionID string) (result0 []models.SpeakingTurn, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_speaking_turns", observability.AttributeSessionID(sessionID))
	defer observability.FinishSpan(span, &err)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, COALESCE(question_text, ''), COALESCE(answer_text, ''), COALESCE(feedback, ''), created_at
		FROM speaking_turns
		WHERE session_id = $1
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list speaking turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []models.SpeakingTurn
	for rows.Next() {
		var turn models.SpeakingTurn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.QuestionText, &turn.AnswerText, &turn.Feedback, &turn.CreatedAt); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan speaking turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to iterate speaking turns: %w", err)
	}
	return turns, nil
}
