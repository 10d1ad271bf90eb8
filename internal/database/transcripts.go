package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transcript statuses stored in transcripts.status.
const (
	TranscriptPending    = "PENDING"
	TranscriptProcessing = "PROCESSING"
	TranscriptCompleted  = "COMPLETED"
	TranscriptFailed     = "FAILED"
)

// TranscriptRow is the durable transcript for one video (one-to-one).
type TranscriptRow struct {
	VideoID     string          `json:"video_id"`
	Content     string          `json:"content"`
	Language    string          `json:"language"`
	Status      string          `json:"status"`
	Confidence  float64         `json:"confidence"`
	Segments    json.RawMessage `json:"segments,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Model       string          `json:"model,omitempty"`
	WordCount   int             `json:"word_count"`
	DurationMs  int             `json:"duration_ms"`
	GeneratedAt *time.Time      `json:"generated_at,omitempty"`
}

// UpsertTranscript inserts the transcript for row.VideoID or overwrites the
// existing one. A video never has more than one transcript row.
func (db *DB) UpsertTranscript(ctx context.Context, row *TranscriptRow) error {
	segments := row.Segments
	if len(segments) == 0 {
		segments = json.RawMessage("[]")
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transcripts (
			video_id, content, language, status, confidence, segments,
			provider, model, word_count, duration_ms, generated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (video_id) DO UPDATE SET
			content      = EXCLUDED.content,
			language     = EXCLUDED.language,
			status       = EXCLUDED.status,
			confidence   = EXCLUDED.confidence,
			segments     = EXCLUDED.segments,
			provider     = EXCLUDED.provider,
			model        = EXCLUDED.model,
			word_count   = EXCLUDED.word_count,
			duration_ms  = EXCLUDED.duration_ms,
			generated_at = EXCLUDED.generated_at,
			updated_at   = now()
	`,
		row.VideoID, row.Content, row.Language, row.Status, row.Confidence, segments,
		pqString(row.Provider), pqString(row.Model), row.WordCount, row.DurationMs, row.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

// GetTranscript returns the transcript for a video, or ErrNotFound.
func (db *DB) GetTranscript(ctx context.Context, videoID string) (*TranscriptRow, error) {
	var t TranscriptRow
	var provider, model *string
	err := db.Pool.QueryRow(ctx, `
		SELECT video_id, content, language, status, confidence, segments,
			provider, model, word_count, duration_ms, generated_at
		FROM transcripts WHERE video_id = $1
	`, videoID).Scan(
		&t.VideoID, &t.Content, &t.Language, &t.Status, &t.Confidence, &t.Segments,
		&provider, &model, &t.WordCount, &t.DurationMs, &t.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	t.Provider = deref(provider)
	t.Model = deref(model)
	return &t, nil
}

func pqString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
