// Package hub resolves pretrained checkpoint artifacts (model bodies, vocab
// files, merge ranks) to local paths, downloading them into the cache
// directory on miss when auto-download is enabled.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrFetchFailed marks checkpoint or tokenizer artifacts that could not be
// retrieved. It wraps the underlying transport or filesystem error and is
// surfaced to the caller unchanged; retry policy belongs to the surrounding
// pipeline.
var ErrFetchFailed = errors.New("checkpoint artifact fetch failed")

// Config contains artifact resolution configuration.
type Config struct {
	CacheDir       string
	BaseURL        string
	AutoDownload   bool
	RequestsPerSec float64
}

// Fetcher resolves checkpoint artifacts to files under the cache directory.
type Fetcher struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates an artifact fetcher.
func NewFetcher(config Config, logger *zap.Logger) *Fetcher {
	rps := config.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	return &Fetcher{
		config:  config,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Resolve returns the local path of an artifact for the given checkpoint,
// downloading it first if it is not cached and auto-download is enabled.
func (f *Fetcher) Resolve(ctx context.Context, checkpoint, filename string) (string, error) {
	localPath := filepath.Join(f.config.CacheDir, filepath.FromSlash(checkpoint), filename)

	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: stat %s: %v", ErrFetchFailed, localPath, err)
	}

	if !f.config.AutoDownload {
		return "", fmt.Errorf("%w: %s/%s not cached and auto-download disabled", ErrFetchFailed, checkpoint, filename)
	}

	if err := f.download(ctx, checkpoint, filename, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// download fetches one artifact over HTTP into the cache directory. Writes go
// to a temp file first so a failed download never leaves a truncated artifact
// behind.
func (f *Fetcher) download(ctx context.Context, checkpoint, filename, localPath string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", f.config.BaseURL, checkpoint, filename)
	f.logger.Info("downloading checkpoint artifact",
		zap.String("checkpoint", checkpoint),
		zap.String("file", filename),
		zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrFetchFailed, url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), filename+".partial-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	f.logger.Info("checkpoint artifact cached",
		zap.String("path", localPath),
		zap.Int64("bytes", written))
	return nil
}
