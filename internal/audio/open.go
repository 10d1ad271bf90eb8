package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Open returns a reader for the audio at locator along with a filename
// suitable for a multipart form field.
// Priority: 1) http(s) URL streamed with client  2) local file path
func Open(ctx context.Context, client *http.Client, locator string) (io.ReadCloser, string, error) {
	if locator == "" {
		return nil, "", fmt.Errorf("empty audio locator")
	}

	if IsRemote(locator) {
		u, err := url.Parse(locator)
		if err != nil {
			return nil, "", fmt.Errorf("parse audio url: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, "", fmt.Errorf("create request: %w", err)
		}
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("fetch audio: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", fmt.Errorf("fetch audio: status %d", resp.StatusCode)
		}
		name := path.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = "audio"
		}
		return resp.Body, name, nil
	}

	f, err := os.Open(locator)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	return f, filepath.Base(locator), nil
}

// IsRemote reports whether locator is an http(s) URL.
func IsRemote(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
