package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for account and progress operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	Register(ctx context.Context, name, username, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	ResetPassword(ctx context.Context, username, newPassword string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProgress(ctx context.Context, update models.ProgressUpdate) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID string, avatar *string) error
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
}

// UserService provides methods for user management.
type UserService struct {
	db     *sql.DB
	logger *observability.Logger
}

const userSelectFields = `id, name, username, password, xp, streak, avatar, created_at`

// NewUserService creates a new UserService instance
func NewUserService(db *sql.DB, logger *observability.Logger) *UserService {
	return &UserService{db: db, logger: logger}
}

// Register creates an account with a bcrypt hashed password
func (s *UserService) Register(ctx context.Context, name, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "register", observability.AttributeUsername(username))
	defer observability.FinishSpan(span, &err)

	username = strings.TrimSpace(username)
	if !contextutils.IsValidUsername(username) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "username must be 1-80 characters without spaces")
	}
	if password == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "password is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	query := `INSERT INTO users (id, name, username, password, xp, streak, created_at) VALUES ($1, $2, $3, $4, 0, 0, $5) RETURNING created_at`
	err = s.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Username, user.PasswordHash, time.Now().UTC()).Scan(&user.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.WrapError(contextutils.ErrRecordExists, "User exists")
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert user: %w", err)
	}

	s.logger.Info(ctx, "User registered", map[string]interface{}{"user_id": user.ID, "username": username})
	return user, nil
}

// Authenticate verifies credentials and returns the user when they match
func (s *UserService) Authenticate(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate", observability.AttributeUsername(username))
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "Unauthorized")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "Unauthorized")
	}

	span.SetAttributes(observability.AttributeUserID(user.ID))
	return user, nil
}

// ResetPassword overwrites the password of the named account
func (s *UserService) ResetPassword(ctx context.Context, username, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "reset_password", observability.AttributeUsername(username))
	defer observability.FinishSpan(span, &err)

	if newPassword == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "password is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET password = $1 WHERE username = $2`, string(hashedPassword), username)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to update password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "Tên tài khoản không tồn tại")
	}

	s.logger.Info(ctx, "Password reset", map[string]interface{}{"username": username})
	return nil
}

// GetUserByID retrieves a user by id; a missing user returns nil, nil
func (s *UserService) GetUserByID(ctx context.Context, id string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return s.getUserByQuery(ctx, `SELECT `+userSelectFields+` FROM users WHERE id = $1`, id)
}

// GetUserByUsername retrieves a user by username; a missing user returns nil, nil
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username", observability.AttributeUsername(username))
	defer observability.FinishSpan(span, &err)

	return s.getUserByQuery(ctx, `SELECT `+userSelectFields+` FROM users WHERE username = $1`, username)
}

func (s *UserService) getUserByQuery(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found is not an error here
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load user: %w", err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Username, &user.PasswordHash, &user.XP, &user.Streak, &user.Avatar, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProgress adds the xp gain and overwrites streak and avatar when they are provided.
// It is not idempotent: replaying the same update adds the xp again.
func (s *UserService) UpdateProgress(ctx context.Context, update models.ProgressUpdate) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_progress",
		observability.AttributeUserID(update.UserID),
		attribute.Int("progress.xp_gain", update.XPGain),
		attribute.Bool("progress.has_streak", update.Streak != nil),
		attribute.Bool("progress.has_avatar", update.Avatar != nil),
	)
	defer observability.FinishSpan(span, &err)

	var streak sql.NullInt64
	if update.Streak != nil {
		streak = sql.NullInt64{Int64: int64(*update.Streak), Valid: true}
	}
	var avatar sql.NullString
	if update.Avatar != nil {
		avatar = sql.NullString{String: *update.Avatar, Valid: true}
	}

	query := `UPDATE users
		SET xp = xp + $2,
			streak = COALESCE($3, streak),
			avatar = COALESCE($4, avatar)
		WHERE id = $1
		RETURNING ` + userSelectFields
	user, err := scanUser(s.db.QueryRowContext(ctx, query, update.UserID, update.XPGain, streak, avatar))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "User not found")
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to update progress: %w", err)
	}

	s.logger.Debug(ctx, "Progress updated", map[string]interface{}{"user_id": user.ID, "xp": user.XP, "streak": user.Streak})
	return user, nil
}

// UpdateAvatar overwrites the avatar of a user; a nil avatar clears it
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, avatar *string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_avatar",
		observability.AttributeUserID(userID),
		attribute.Bool("avatar.clear", avatar == nil),
	)
	defer observability.FinishSpan(span, &err)

	var value sql.NullString
	if avatar != nil {
		value = sql.NullString{String: *avatar, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET avatar = $1 WHERE id = $2`, value, userID)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to update avatar: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return contextutils.WrapError(contextutils.ErrRecordNotFound, "User not found")
	}
	return nil
}

// ListUsers returns up to limit users ordered by xp, highest first
func (s *UserService) ListUsers(ctx context.Context, limit int) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userSelectFields+` FROM users ORDER BY xp DESC, username ASC LIMIT $1`, limit)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list users: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to iterate users: %w", err)
	}
	return users, nil
}

// isDuplicateKeyError checks if the error is a unique constraint violation
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	// PostgreSQL error code 23505 is for unique constraint violations
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
