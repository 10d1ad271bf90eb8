package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lecture-pipeline/internal/config"
)

// ErrMediaNotFound is returned when a media reference cannot be resolved.
var ErrMediaNotFound = errors.New("media not found")

// MediaStore resolves a video's media reference into a locator that a
// speech-to-text provider can read audio from.
type MediaStore interface {
	// AudioLocator returns a local path or URL for the audio track of mediaRef.
	AudioLocator(ctx context.Context, mediaRef string) (string, error)

	// Type returns "local", "s3", "rendition", or "composite".
	Type() string
}

// New creates a MediaStore based on config. Absolute http(s) references are
// always served by a RenditionStore; everything else goes to S3 when a bucket
// is configured, otherwise to the local media directory.
// Returns an error if S3 is configured but unreachable.
func New(cfg *config.Config, log zerolog.Logger) (MediaStore, error) {
	rendition := NewRenditionStore(cfg.MediaAudioParam)

	if !cfg.S3.Enabled() {
		return NewCompositeStore(rendition, NewLocalStore(cfg.MediaDir, cfg.MediaAudioParam)), nil
	}

	s3store, err := NewS3Store(cfg.S3, cfg.MediaAudioParam, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.S3.Bucket, cfg.S3.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.S3.Bucket).Str("endpoint", cfg.S3.Endpoint).Msg("S3 connection verified")

	return NewCompositeStore(rendition, s3store), nil
}

// CompositeStore routes URL references to one store and keys/paths to another.
type CompositeStore struct {
	urls MediaStore
	keys MediaStore
}

// NewCompositeStore creates a store that sends http(s) refs to urls and all
// other refs to keys.
func NewCompositeStore(urls, keys MediaStore) *CompositeStore {
	return &CompositeStore{urls: urls, keys: keys}
}

func (s *CompositeStore) AudioLocator(ctx context.Context, mediaRef string) (string, error) {
	if IsURL(mediaRef) {
		return s.urls.AudioLocator(ctx, mediaRef)
	}
	return s.keys.AudioLocator(ctx, mediaRef)
}

func (s *CompositeStore) Type() string { return "composite" }

// IsURL reports whether ref is an absolute http(s) URL.
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
