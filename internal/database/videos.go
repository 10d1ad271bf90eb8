package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// VideoContext is a lecture video joined with its course metadata and
// transcript, as needed by quiz generation.
type VideoContext struct {
	ID          string
	Title       string
	Description string
	AIPrompt    string // author-supplied free-text context
	MediaRef    string
	CourseID    string
	CourseTitle string
	Category    string
	Level       string
	Transcript  *TranscriptRow // nil when no transcript row exists
}

// GetVideoContext loads a video with course metadata and transcript.
// Returns ErrNotFound if the video does not exist.
func (db *DB) GetVideoContext(ctx context.Context, videoID string) (*VideoContext, error) {
	var v VideoContext
	var description, aiPrompt, mediaRef, courseID, courseTitle, category, level *string

	var tVideoID, tContent, tLanguage, tStatus, tProvider, tModel *string
	var tConfidence *float64
	var tSegments []byte
	var tWordCount, tDurationMs *int
	var tGeneratedAt *time.Time

	err := db.Pool.QueryRow(ctx, `
		SELECT v.id, v.title, v.description, v.ai_prompt, v.media_ref,
			c.id, c.title, c.category, c.level,
			t.video_id, t.content, t.language, t.status, t.confidence, t.segments,
			t.provider, t.model, t.word_count, t.duration_ms, t.generated_at
		FROM videos v
		LEFT JOIN courses c ON c.id = v.course_id
		LEFT JOIN transcripts t ON t.video_id = v.id
		WHERE v.id = $1
	`, videoID).Scan(
		&v.ID, &v.Title, &description, &aiPrompt, &mediaRef,
		&courseID, &courseTitle, &category, &level,
		&tVideoID, &tContent, &tLanguage, &tStatus, &tConfidence, &tSegments,
		&tProvider, &tModel, &tWordCount, &tDurationMs, &tGeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video context: %w", err)
	}

	v.Description = deref(description)
	v.AIPrompt = deref(aiPrompt)
	v.MediaRef = deref(mediaRef)
	v.CourseID = deref(courseID)
	v.CourseTitle = deref(courseTitle)
	v.Category = deref(category)
	v.Level = deref(level)

	if tVideoID != nil {
		t := &TranscriptRow{
			VideoID:     *tVideoID,
			Content:     deref(tContent),
			Language:    deref(tLanguage),
			Status:      deref(tStatus),
			Segments:    tSegments,
			Provider:    deref(tProvider),
			Model:       deref(tModel),
			GeneratedAt: tGeneratedAt,
		}
		if tConfidence != nil {
			t.Confidence = *tConfidence
		}
		if tWordCount != nil {
			t.WordCount = *tWordCount
		}
		if tDurationMs != nil {
			t.DurationMs = *tDurationMs
		}
		v.Transcript = t
	}
	return &v, nil
}
