package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a recording does not exist or belongs to
// another user.
var ErrNotFound = errors.New("recording not found")

// RecordingRow is the input for persisting one analyzed recording.
type RecordingRow struct {
	UserID         string
	CreatedAt      time.Time
	DurationSec    float64
	AudioKey       string // object-store key, "" if archiving is disabled
	AudioMIME      string
	Text           string
	Provider       string
	Confidence     float64
	Language       string
	UsedFallback   bool
	ElapsedMs      int64
	WordCount      int
	WordsPerMinute float64
	FillerCount    int
	Fillers        []string
	LexiconVersion string
	Feedback       json.RawMessage // structured coaching suggestions, null if unavailable
}

// RecordingAPI is the recording representation for API responses.
type RecordingAPI struct {
	ID             int64           `json:"id"`
	UserID         string          `json:"user_id"`
	CreatedAt      time.Time       `json:"created_at"`
	DurationSec    float64         `json:"duration_sec"`
	AudioKey       string          `json:"audio_key,omitempty"`
	AudioMIME      string          `json:"audio_mime,omitempty"`
	Text           string          `json:"text"`
	Provider       string          `json:"provider"`
	Confidence     float64         `json:"confidence"`
	Language       string          `json:"language,omitempty"`
	UsedFallback   bool            `json:"used_fallback"`
	ElapsedMs      int64           `json:"elapsed_ms"`
	WordCount      int             `json:"word_count"`
	WordsPerMinute float64         `json:"words_per_minute"`
	FillerCount    int             `json:"filler_count"`
	Fillers        []string        `json:"fillers,omitempty"`
	LexiconVersion string          `json:"lexicon_version,omitempty"`
	Feedback       json.RawMessage `json:"feedback,omitempty"`
}

// Migrate creates the recordings schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS recordings (
			id               BIGSERIAL PRIMARY KEY,
			user_id          TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			duration_sec     DOUBLE PRECISION NOT NULL DEFAULT 0,
			audio_key        TEXT NOT NULL DEFAULT '',
			audio_mime       TEXT NOT NULL DEFAULT '',
			text             TEXT NOT NULL,
			provider         TEXT NOT NULL,
			confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
			language         TEXT NOT NULL DEFAULT '',
			used_fallback    BOOLEAN NOT NULL DEFAULT false,
			elapsed_ms       BIGINT NOT NULL DEFAULT 0,
			word_count       INTEGER NOT NULL DEFAULT 0,
			words_per_minute DOUBLE PRECISION NOT NULL DEFAULT 0,
			filler_count     INTEGER NOT NULL DEFAULT 0,
			fillers          TEXT[] NOT NULL DEFAULT '{}',
			lexicon_version  TEXT NOT NULL DEFAULT '',
			feedback         JSONB
		);
		CREATE INDEX IF NOT EXISTS recordings_user_created_idx
			ON recordings (user_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("migrate recordings: %w", err)
	}
	return nil
}

// InsertRecording stores one recording and returns its id.
func (db *DB) InsertRecording(ctx context.Context, row *RecordingRow) (int64, error) {
	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	fillers := row.Fillers
	if fillers == nil {
		fillers = []string{}
	}

	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO recordings (
			user_id, created_at, duration_sec, audio_key, audio_mime,
			text, provider, confidence, language, used_fallback, elapsed_ms,
			word_count, words_per_minute, filler_count, fillers,
			lexicon_version, feedback
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`,
		row.UserID, createdAt, row.DurationSec, row.AudioKey, row.AudioMIME,
		row.Text, row.Provider, row.Confidence, row.Language, row.UsedFallback, row.ElapsedMs,
		row.WordCount, row.WordsPerMinute, row.FillerCount, fillers,
		row.LexiconVersion, row.Feedback,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert recording: %w", err)
	}
	return id, nil
}

// GetRecording returns one recording scoped to a user.
func (db *DB) GetRecording(ctx context.Context, id int64, userID string) (*RecordingAPI, error) {
	var r RecordingAPI
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, created_at, duration_sec, audio_key, audio_mime,
			text, provider, confidence, language, used_fallback, elapsed_ms,
			word_count, words_per_minute, filler_count, fillers,
			lexicon_version, feedback
		FROM recordings
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&r.ID, &r.UserID, &r.CreatedAt, &r.DurationSec, &r.AudioKey, &r.AudioMIME,
		&r.Text, &r.Provider, &r.Confidence, &r.Language, &r.UsedFallback, &r.ElapsedMs,
		&r.WordCount, &r.WordsPerMinute, &r.FillerCount, &r.Fillers,
		&r.LexiconVersion, &r.Feedback,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecordings returns a user's recordings newest first, plus the total
// count for pagination.
func (db *DB) ListRecordings(ctx context.Context, userID string, limit, offset int) ([]RecordingAPI, int, error) {
	var total int
	if err := db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM recordings WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, created_at, duration_sec, audio_key, audio_mime,
			text, provider, confidence, language, used_fallback, elapsed_ms,
			word_count, words_per_minute, filler_count, fillers,
			lexicon_version, feedback
		FROM recordings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []RecordingAPI
	for rows.Next() {
		var r RecordingAPI
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.CreatedAt, &r.DurationSec, &r.AudioKey, &r.AudioMIME,
			&r.Text, &r.Provider, &r.Confidence, &r.Language, &r.UsedFallback, &r.ElapsedMs,
			&r.WordCount, &r.WordsPerMinute, &r.FillerCount, &r.Fillers,
			&r.LexiconVersion, &r.Feedback,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, r)
	}
	if result == nil {
		result = []RecordingAPI{}
	}
	return result, total, rows.Err()
}
