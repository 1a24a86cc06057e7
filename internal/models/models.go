// Package models defines data structures shared by the repositories, services and handlers.
package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User represents a learner account
type User struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"-"`
	XP           int            `json:"xp"`
	Streak       int            `json:"streak"`
	Avatar       sql.NullString `json:"avatar"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MarshalJSON renders the public user snapshot: id, name, username, xp, streak, avatar
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Username string  `json:"username"`
		XP       int     `json:"xp"`
		Streak   int     `json:"streak"`
		Avatar   *string `json:"avatar"`
	}{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		XP:       u.XP,
		Streak:   u.Streak,
		Avatar:   nullStringToPointer(u.Avatar),
	})
}

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// ProgressUpdate describes one progress event. Streak and Avatar overwrite only when non-nil.
type ProgressUpdate struct {
	UserID string
	XPGain int
	Streak *int
	Avatar *string
}

// DictionaryEntry is one cached word definition
type DictionaryEntry struct {
	ID           int    `json:"-"`
	Word         string `json:"word"`
	Phonetic     string `json:"phonetic"`
	WordType     string `json:"word_type"`
	Definition   string `json:"definition"`
	Examples     string `json:"examples"`
	GrammarNotes string `json:"grammar_notes"`
}

// Dictionary lookup sources
const (
	DictionarySourceDatabase = "database"
	DictionarySourceAPI      = "api"
)

// DictionaryLookup is the response of a word lookup
type DictionaryLookup struct {
	Source       string `json:"source"`
	Word         string `json:"word"`
	Phonetic     string `json:"phonetic"`
	WordType     string `json:"word_type"`
	Definition   string `json:"definition"`
	Examples     string `json:"examples"`
	GrammarNotes string `json:"grammar_notes"`
}

// NewDictionaryLookup builds the response for an entry, upper-casing the word
func NewDictionaryLookup(source string, e *DictionaryEntry) *DictionaryLookup {
	return &DictionaryLookup{
		Source:       source,
		Word:         strings.ToUpper(e.Word),
		Phonetic:     e.Phonetic,
		WordType:     e.WordType,
		Definition:   e.Definition,
		Examples:     e.Examples,
		GrammarNotes: e.GrammarNotes,
	}
}

// DefaultQuizType is stored when a question does not name its type
const DefaultQuizType = "text"

// QuizOptions is the answer list of a question. It is stored as JSON text and accepts,
// on input, either a JSON array or a string holding a JSON array.
type QuizOptions []string

// UnmarshalJSON accepts ["a","b"] as well as "[\"a\",\"b\"]"
func (o *QuizOptions) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*o = list
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("options must be a list of strings or a JSON encoded list: %w", err)
	}
	parsed, err := ParseQuizOptions(encoded)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Value stores the options as JSON text
func (o QuizOptions) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads options stored as JSON text
func (o *QuizOptions) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*o = QuizOptions{}
		return nil
	case []byte:
		parsed, err := ParseQuizOptions(string(v))
		if err != nil {
			return err
		}
		*o = parsed
		return nil
	case string:
		parsed, err := ParseQuizOptions(v)
		if err != nil {
			return err
		}
		*o = parsed
		return nil
	default:
		return fmt.Errorf("unsupported options column type %T", src)
	}
}

// ParseQuizOptions decodes a stored options value. Rows written by the earliest deployments
// hold a single-quoted list literal (['a', 'b']), which is converted before decoding.
func ParseQuizOptions(raw string) (QuizOptions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return QuizOptions{}, nil
	}

	var list []string
	err := json.Unmarshal([]byte(raw), &list)
	if err == nil {
		return list, nil
	}

	if strings.HasPrefix(raw, "[") && strings.Contains(raw, "'") {
		if legacyErr := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &list); legacyErr == nil {
			return list, nil
		}
	}
	return nil, fmt.Errorf("invalid quiz options %q: %w", raw, err)
}

// QuizQuestion is one stored multiple-choice question
type QuizQuestion struct {
	ID          int         `json:"id"`
	Topic       string      `json:"topic"`
	Level       string      `json:"level"`
	Type        string      `json:"type"`
	Question    string      `json:"question"`
	Options     QuizOptions `json:"options"`
	Answer      int         `json:"answer"`
	Explanation string      `json:"explanation"`
}

// QuizItem is the public shape of a question inside a quiz response
type QuizItem struct {
	Question    string      `json:"question"`
	Options     QuizOptions `json:"options"`
	Answer      int         `json:"answer"`
	Explanation string      `json:"explanation"`
}

// Item converts a stored question to its response shape
func (q *QuizQuestion) Item() QuizItem {
	opts := q.Options
	if opts == nil {
		opts = QuizOptions{}
	}
	return QuizItem{Question: q.Question, Options: opts, Answer: q.Answer, Explanation: q.Explanation}
}

// Quiz sources, in fallback order
const (
	QuizSourceDatabaseFull  = "database_full"
	QuizSourceAISeeding     = "ai_seeding"
	QuizSourceFallbackDB    = "fallback_db"
	QuizSourceEmergencySync = "emergency_sync"
)

// QuizResult is the response of a quiz generation request
type QuizResult struct {
	Status    string     `json:"status"`
	Source    string     `json:"source"`
	TotalInDB int        `json:"total_in_db"`
	Topic     string     `json:"topic"`
	Level     string     `json:"level"`
	Quiz      []QuizItem `json:"quiz"`
}

// QuizStat counts stored questions per topic and level
type QuizStat struct {
	Topic string `json:"topic"`
	Level string `json:"level"`
	Count int    `json:"count"`
}

// SpeakingSession groups the turns of one practice session
type SpeakingSession struct {
	ID        string         `json:"id"`
	UserID    sql.NullString `json:"user_id"`
	Topic     string         `json:"topic"`
	CreatedAt time.Time      `json:"created_at"`
}

// MarshalJSON renders user_id as a string or null
func (s SpeakingSession) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID        string    `json:"id"`
		UserID    *string   `json:"user_id"`
		Topic     string    `json:"topic"`
		CreatedAt time.Time `json:"created_at"`
	}{
		ID:        s.ID,
		UserID:    nullStringToPointer(s.UserID),
		Topic:     s.Topic,
		CreatedAt: s.CreatedAt,
	})
}

// SpeakingTurn is one graded answer
type SpeakingTurn struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	QuestionText string    `json:"question_text"`
	AnswerText   string    `json:"answer_text"`
	Feedback     string    `json:"feedback"`
	CreatedAt    time.Time `json:"created_at"`
}

// SpeakingStart is the response of starting a session
type SpeakingStart struct {
	SessionID string   `json:"session_id"`
	Topic     string   `json:"topic"`
	Questions []string `json:"questions"`
}

// SpeakingFeedback is the response for one graded answer
type SpeakingFeedback struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Feedback  string `json:"feedback"`
}

// ChatMessage is one prior turn of an assistant conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
