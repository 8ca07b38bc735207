package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/transport"
)

// DownloadDelegate receives the asynchronous outcome of a binary download.
// Exactly one of the two callbacks fires per Download call.
type DownloadDelegate interface {
	DownloadDidComplete(appID, versionID, archivePath string)
	DownloadDidFail(appID, versionID string, err error)
}

// Downloader streams bundle archives to disk. It shares the transport retry
// policy: server errors retried with exponential backoff, capped attempts.
type Downloader struct {
	client *retryablehttp.Client
	logger *logging.Logger
}

// NewDownloader creates an archive downloader.
func NewDownloader(logger *logging.Logger) *Downloader {
	rc := retryablehttp.NewClient()
	rc.RetryMax = transport.RetryMax
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err == nil && resp != nil && resp.StatusCode >= 500, nil
	}
	rc.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return 500 * time.Millisecond * (1 << uint(attemptNum))
	}
	return &Downloader{client: rc, logger: logger}
}

// Download begins fetching the archive and returns immediately; completion is
// reported through the delegate.
func (d *Downloader) Download(ctx context.Context, url, dest, appID, versionID string, delegate DownloadDelegate) {
	go func() {
		if err := d.fetch(ctx, url, dest); err != nil {
			d.logger.Warn("archive download failed",
				zap.String("app_id", appID),
				zap.String("version_id", versionID),
				zap.Error(err),
			)
			delegate.DownloadDidFail(appID, versionID, err)
			return
		}
		delegate.DownloadDidComplete(appID, versionID, dest)
	}()
}

// Fetch downloads the archive synchronously. The installer uses this form so
// its state machine owns the sequencing.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	return d.fetch(ctx, url, dest)
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	if url == "" {
		return transport.ErrInvalidURL
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrInvalidURL, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return transport.DecodeServerError(resp.StatusCode, body)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("downloading failed: %w", err)
	}
	return out.Close()
}
