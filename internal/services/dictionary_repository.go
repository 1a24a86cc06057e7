package services

import (
	"context"
	"database/sql"
	"errors"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// DictionaryRepository defines the interface for dictionary cache operations
type DictionaryRepository interface {
	// GetEntry returns the cached entry for word, or nil when it is not cached
	GetEntry(ctx context.Context, word string) (*models.DictionaryEntry, error)

	// InsertEntry stores an entry unless the word is already cached; it reports whether a row was written
	InsertEntry(ctx context.Context, entry *models.DictionaryEntry) (bool, error)
}

// DictionaryRepositoryImpl implements DictionaryRepository
type DictionaryRepositoryImpl struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDictionaryRepository creates a new dictionary cache repository
func NewDictionaryRepository(db *sql.DB, logger *observability.Logger) *DictionaryRepositoryImpl {
	return &DictionaryRepositoryImpl{db: db, logger: logger}
}

// GetEntry retrieves a cached entry
func (r *DictionaryRepositoryImpl) GetEntry(ctx context.Context, word string) (result0 *models.DictionaryEntry, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_dictionary_entry", observability.AttributeWord(word))
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, word, COALESCE(phonetic, ''), COALESCE(word_type, ''), COALESCE(definition, ''),
		       COALESCE(examples, ''), COALESCE(grammar_notes, '')
		FROM dictionary_cache
		WHERE word = $1
	`

	entry := &models.DictionaryEntry{}
	err = r.db.QueryRowContext(ctx, query, word).Scan(
		&entry.ID,
		&entry.Word,
		&entry.Phonetic,
		&entry.WordType,
		&entry.Definition,
		&entry.Examples,
		&entry.GrammarNotes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("cache.found", false))
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to query dictionary cache: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache.found", true))
	return entry, nil
}

// InsertEntry stores an entry; the unique index on word makes concurrent inserts of the same word safe
func (r *DictionaryRepositoryImpl) InsertEntry(ctx context.Context, entry *models.DictionaryEntry) (result0 bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "insert_dictionary_entry", observability.AttributeWord(entry.Word))
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO dictionary_cache (word, phonetic, word_type, definition, examples, grammar_notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (word) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.Word, entry.Phonetic, entry.WordType, entry.Definition, entry.Examples, entry.GrammarNotes)
	if err != nil {
		return false, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to save dictionary entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read affected rows: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.inserted", rows > 0))
	return rows > 0, nil
}
