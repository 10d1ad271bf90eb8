package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves media from the local filesystem.
type LocalStore struct {
	mediaDir   string
	audioParam string
}

// NewLocalStore creates a local filesystem media store. audioParam is
// "format=mp3" style; when a sibling file with that extension exists next to
// the video it is preferred over the video itself.
func NewLocalStore(mediaDir, audioParam string) *LocalStore {
	return &LocalStore{mediaDir: mediaDir, audioParam: audioParam}
}

func (s *LocalStore) AudioLocator(ctx context.Context, mediaRef string) (string, error) {
	if mediaRef == "" {
		return "", fmt.Errorf("%w: empty media reference", ErrMediaNotFound)
	}
	clean := filepath.Clean("/" + mediaRef)
	full := filepath.Join(s.mediaDir, clean)

	// Pre-extracted audio track (e.g. lecture.mp4 → lecture.mp3)
	if ext := audioExtension(s.audioParam); ext != "" {
		sibling := strings.TrimSuffix(full, filepath.Ext(full)) + ext
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}

	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMediaNotFound, mediaRef)
	}
	return full, nil
}

func (s *LocalStore) Type() string { return "local" }

// Dir returns the media directory path.
func (s *LocalStore) Dir() string { return s.mediaDir }

// audioExtension maps "format=mp3" to ".mp3". Returns "" for other params.
func audioExtension(param string) string {
	k, v, ok := strings.Cut(param, "=")
	if !ok || k != "format" || v == "" {
		return ""
	}
	return "." + v
}
