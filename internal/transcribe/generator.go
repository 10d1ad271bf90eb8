package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/database"
	"github.com/snarg/lecture-pipeline/internal/metrics"
	"github.com/snarg/lecture-pipeline/internal/storage"
)

// TranscriptStore persists transcripts. *database.DB satisfies it.
type TranscriptStore interface {
	UpsertTranscript(ctx context.Context, row *database.TranscriptRow) error
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	Provider    Provider
	Media       storage.MediaStore
	Store       TranscriptStore
	Language    string // default language when the provider reports none
	Temperature float64
	Hotwords    string // comma-separated vocabulary boost terms
	Log         zerolog.Logger
}

// Generator turns a video's media into a stored transcript.
type Generator struct {
	provider Provider
	media    storage.MediaStore
	store    TranscriptStore
	opts     GeneratorOptions
	log      zerolog.Logger
	now      func() time.Time
}

// NewGenerator creates a transcript generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	return &Generator{
		provider: opts.Provider,
		media:    opts.Media,
		store:    opts.Store,
		opts:     opts,
		log:      opts.Log.With().Str("component", "transcribe").Logger(),
		now:      time.Now,
	}
}

// Generate resolves the audio for mediaRef, transcribes it and upserts the
// video's transcript as COMPLETED. On any failure the stored transcript is
// left as it was.
func (g *Generator) Generate(ctx context.Context, videoID, mediaRef string) (*Result, error) {
	start := time.Now()

	locator, err := g.media.AudioLocator(ctx, mediaRef)
	if err != nil {
		return nil, fmt.Errorf("resolve audio for video %s: %w", videoID, err)
	}

	resp, err := g.provider.Transcribe(ctx, locator, TranscribeOpts{
		Temperature: g.opts.Temperature,
		Language:    g.opts.Language,
		Hotwords:    g.opts.Hotwords,
	})
	metrics.ObserveProvider("stt", g.provider.Name(), start, err)
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			err = &ProviderError{Provider: g.provider.Name(), Err: err}
		}
		return nil, err
	}

	result := Normalize(resp, g.opts.Language)
	if result.Text == "" {
		return nil, &ProviderError{Provider: g.provider.Name(), Err: errors.New("empty transcript")}
	}

	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return nil, fmt.Errorf("marshal segments: %w", err)
	}

	generatedAt := g.now()
	row := &database.TranscriptRow{
		VideoID:     videoID,
		Content:     result.Text,
		Language:    result.Language,
		Status:      database.TranscriptCompleted,
		Confidence:  result.Confidence,
		Segments:    segments,
		Provider:    g.provider.Name(),
		Model:       g.provider.Model(),
		WordCount:   result.WordCount(),
		DurationMs:  int(result.Duration * 1000),
		GeneratedAt: &generatedAt,
	}
	if err := g.store.UpsertTranscript(ctx, row); err != nil {
		return nil, fmt.Errorf("store transcript: %w", err)
	}

	g.log.Info().
		Str("video_id", videoID).
		Str("provider", g.provider.Name()).
		Str("language", result.Language).
		Int("words", row.WordCount).
		Int("segments", len(result.Segments)).
		Float64("confidence", result.Confidence).
		Dur("elapsed", time.Since(start)).
		Msg("transcript generated")

	return &result, nil
}
