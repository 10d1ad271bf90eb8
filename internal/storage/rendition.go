package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// RenditionStore serves media refs that are already URLs on a media host
// capable of returning an audio-only rendition when asked via query parameter.
type RenditionStore struct {
	param string // "key=value"
}

// NewRenditionStore creates a store that appends param to media URLs.
// An empty param returns URLs unchanged.
func NewRenditionStore(param string) *RenditionStore {
	return &RenditionStore{param: param}
}

func (s *RenditionStore) AudioLocator(ctx context.Context, mediaRef string) (string, error) {
	if !IsURL(mediaRef) {
		return "", fmt.Errorf("%w: not a URL: %q", ErrMediaNotFound, mediaRef)
	}
	return withAudioParam(mediaRef, s.param)
}

func (s *RenditionStore) Type() string { return "rendition" }

// withAudioParam sets the rendition query parameter on rawURL, replacing any
// existing value for the same key.
func withAudioParam(rawURL, param string) (string, error) {
	if param == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse media url: %w", err)
	}
	k, v, _ := strings.Cut(param, "=")
	q := u.Query()
	q.Set(k, v)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
