package audio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Run("local_file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "lecture.mp3")
		if err := os.WriteFile(p, []byte("ID3data"), 0o644); err != nil {
			t.Fatal(err)
		}
		rc, name, err := Open(context.Background(), nil, p)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer rc.Close()
		if name != "lecture.mp3" {
			t.Errorf("name = %q, want lecture.mp3", name)
		}
		b, _ := io.ReadAll(rc)
		if string(b) != "ID3data" {
			t.Errorf("data = %q", b)
		}
	})

	t.Run("remote_url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("format") != "mp3" {
				t.Errorf("format param = %q, want mp3", r.URL.Query().Get("format"))
			}
			w.Write([]byte("remote-audio"))
		}))
		defer srv.Close()

		rc, name, err := Open(context.Background(), srv.Client(), srv.URL+"/media/lecture.mp4?format=mp3")
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer rc.Close()
		if name != "lecture.mp4" {
			t.Errorf("name = %q, want lecture.mp4", name)
		}
		b, _ := io.ReadAll(rc)
		if string(b) != "remote-audio" {
			t.Errorf("data = %q", b)
		}
	})

	t.Run("remote_error_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		if _, _, err := Open(context.Background(), srv.Client(), srv.URL+"/x.mp3"); err == nil {
			t.Fatal("expected error for 403")
		}
	})

	t.Run("missing_local", func(t *testing.T) {
		if _, _, err := Open(context.Background(), nil, "/nonexistent/file.mp3"); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
