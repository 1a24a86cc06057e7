package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		user     User
		expected string
	}{
		{
			name: "user with avatar",
			user: User{
				ID:           "a1",
				Name:         "Lan",
				Username:     "lan",
				PasswordHash: "secret-hash",
				XP:           120,
				Streak:       4,
				Avatar:       sql.NullString{String: "data:image/png;base64,AAA", Valid: true},
			},
			expected: `{"id":"a1","name":"Lan","username":"lan","xp":120,"streak":4,"avatar":"data:image/png;base64,AAA"}`,
		},
		{
			name:     "user without avatar",
			user:     User{ID: "b2", Name: "Minh", Username: "minh"},
			expected: `{"id":"b2","name":"Minh","username":"minh","xp":0,"streak":0,"avatar":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.user)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
			assert.NotContains(t, string(data), "secret-hash")
		})
	}
}

func TestQuizOptions_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected QuizOptions
		wantErr  bool
	}{
		{name: "array", input: `["a","b","c","d"]`, expected: QuizOptions{"a", "b", "c", "d"}},
		{name: "encoded array", input: `"[\"x\",\"y\"]"`, expected: QuizOptions{"x", "y"}},
		{name: "legacy list literal", input: `"['x', 'y']"`, expected: QuizOptions{"x", "y"}},
		{name: "number", input: `42`, wantErr: true},
		{name: "plain string", input: `"not a list"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts QuizOptions
			err := json.Unmarshal([]byte(tt.input), &opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, opts)
		})
	}
}

func TestQuizOptions_ValueAndScan(t *testing.T) {
	opts := QuizOptions{"đi", "went", "gone", "going"}
	v, err := opts.Value()
	require.NoError(t, err)
	assert.Equal(t, `["đi","went","gone","going"]`, v)

	var scanned QuizOptions
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.Equal(t, opts, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	var nilOpts QuizOptions
	v, err = nilOpts.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	assert.Error(t, scanned.Scan(12))
}

func TestQuizQuestion_Item(t *testing.T) {
	q := QuizQuestion{ID: 7, Topic: "Food", Level: "B1", Question: "q?", Answer: 2, Explanation: "vì"}
	item := q.Item()
	assert.Equal(t, "q?", item.Question)
	assert.Equal(t, 2, item.Answer)
	assert.NotNil(t, item.Options)

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q?","options":[],"answer":2,"explanation":"vì"}`, string(data))
}

func TestNewDictionaryLookup(t *testing.T) {
	entry := &DictionaryEntry{Word: "resilient", Phonetic: "/rɪˈzɪliənt/", Definition: "kiên cường"}
	lookup := NewDictionaryLookup(DictionarySourceDatabase, entry)
	assert.Equal(t, "RESILIENT", lookup.Word)
	assert.Equal(t, "database", lookup.Source)
	assert.Equal(t, "kiên cường", lookup.Definition)
}

func TestSpeakingSession_MarshalJSON(t *testing.T) {
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	anonymous, err := json.Marshal(SpeakingSession{ID: "s-1", Topic: "food", CreatedAt: created})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s-1","user_id":null,"topic":"food","created_at":"2025-03-01T08:00:00Z"}`, string(anonymous))

	owned, err := json.Marshal(SpeakingSession{ID: "s-2", UserID: sql.NullString{String: "u-1", Valid: true}, CreatedAt: created})
	require.NoError(t, err)
	assert.Contains(t, string(owned), `"user_id":"u-1"`)
}
