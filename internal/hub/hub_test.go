package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestFetcherResolve(t *testing.T) {
	logger := zap.NewNop()

	t.Run("CachedArtifactReturnedWithoutNetwork", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gpt2", "vocab.json")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}

		f := NewFetcher(Config{CacheDir: dir, BaseURL: "http://127.0.0.1:1", AutoDownload: true}, logger)
		got, err := f.Resolve(context.Background(), "gpt2", "vocab.json")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if got != path {
			t.Errorf("Resolve = %q, want %q", got, path)
		}
	})

	t.Run("DownloadsOnMiss", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/gpt2/resolve/main/vocab.json" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"hello":0}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		f := NewFetcher(Config{CacheDir: dir, BaseURL: srv.URL, AutoDownload: true, RequestsPerSec: 100}, logger)

		got, err := f.Resolve(context.Background(), "gpt2", "vocab.json")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		data, err := os.ReadFile(got)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != `{"hello":0}` {
			t.Errorf("cached artifact = %q", data)
		}
	})

	t.Run("MissWithoutAutoDownloadFails", func(t *testing.T) {
		f := NewFetcher(Config{CacheDir: t.TempDir(), AutoDownload: false}, logger)
		_, err := f.Resolve(context.Background(), "gpt2", "model.onnx")
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("err = %v, want ErrFetchFailed", err)
		}
	})

	t.Run("HTTPErrorSurfacedAsFetchFailure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer srv.Close()

		f := NewFetcher(Config{CacheDir: t.TempDir(), BaseURL: srv.URL, AutoDownload: true, RequestsPerSec: 100}, logger)
		_, err := f.Resolve(context.Background(), "gpt2", "model.onnx")
		if !errors.Is(err, ErrFetchFailed) {
			t.Errorf("err = %v, want ErrFetchFailed", err)
		}
	})
}
