// Package media adapts ffmpeg, ffprobe and external recognizers to the pipeline's collaborator interfaces.
package media

import (
	"context"
	"crypto/sha1" //nolint:gosec // content-addressing only
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/models"
)

const (
	defaultExt          = ".mp4"
	lockRetryDelay      = 200 * time.Millisecond
	defaultDownloadWait = 10 * time.Minute
)

// FileFetcher copies local files or downloads URLs into a cache directory keyed by a stable uid.
type FileFetcher struct {
	cacheDir string
	client   *retryablehttp.Client
	logger   *slog.Logger
}

// FetcherOption configures a FileFetcher.
type FetcherOption func(*FileFetcher)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *retryablehttp.Client) FetcherOption {
	return func(f *FileFetcher) { f.client = c }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(f *FileFetcher) { f.logger = l }
}

// NewFileFetcher creates a FileFetcher writing into cacheDir.
func NewFileFetcher(cacheDir string, opts ...FetcherOption) *FileFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = defaultDownloadWait
	client.Logger = nil

	f := &FileFetcher{cacheDir: cacheDir, client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch returns the cached copy of source. Missing files and 404/410 responses are NotFound errors.
func (f *FileFetcher) Fetch(ctx context.Context, source string) (models.LocalVideo, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return models.LocalVideo{}, huberrors.NewValidationError("source", "source is required")
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return models.LocalVideo{}, fmt.Errorf("create video cache dir: %w", err)
	}

	if isRemote(source) {
		return f.fetchRemote(ctx, source)
	}

	return f.fetchLocal(ctx, source)
}

func (f *FileFetcher) fetchLocal(ctx context.Context, source string) (models.LocalVideo, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return models.LocalVideo{}, fmt.Errorf("resolve %s: %w", source, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.LocalVideo{}, huberrors.NewNotFoundError("video", "video file not found: "+source)
		}

		return models.LocalVideo{}, fmt.Errorf("stat %s: %w", source, err)
	}

	if info.IsDir() {
		return models.LocalVideo{}, huberrors.NewNotFoundError("video", "not a video file: "+source)
	}

	uid := SourceUID(abs)
	dst := f.cachePath(uid, filepath.Ext(abs))

	if sameFile(abs, dst) {
		return models.LocalVideo{Path: dst, ExternalUID: &uid}, nil
	}

	err = f.withLock(ctx, dst, func() error {
		if cached, err := os.Stat(dst); err == nil && cached.Size() == info.Size() {
			return nil
		}

		src, err := os.Open(abs)
		if err != nil {
			return fmt.Errorf("open %s: %w", source, err)
		}
		defer src.Close()

		return writeAtomic(dst, src)
	})
	if err != nil {
		return models.LocalVideo{}, err
	}

	f.logger.Debug("media: local video cached", "source", source, "path", dst, "uid", uid)

	return models.LocalVideo{Path: dst, ExternalUID: &uid}, nil
}

func (f *FileFetcher) fetchRemote(ctx context.Context, source string) (models.LocalVideo, error) {
	u, err := url.Parse(source)
	if err != nil {
		return models.LocalVideo{}, huberrors.NewValidationError("source", "invalid url")
	}

	uid := SourceUID(source)
	dst := f.cachePath(uid, path.Ext(u.Path))

	err = f.withLock(ctx, dst, func() error {
		if cached, err := os.Stat(dst); err == nil && cached.Size() > 0 {
			return nil
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return fmt.Errorf("build download request: %w", err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("download %s: %w", source, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return huberrors.NewNotFoundError("video", fmt.Sprintf("video url returned %d: %s", resp.StatusCode, source))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return fmt.Errorf("download %s: unexpected status %d", source, resp.StatusCode)
		}

		return writeAtomic(dst, resp.Body)
	})
	if err != nil {
		return models.LocalVideo{}, err
	}

	f.logger.Debug("media: remote video cached", "source", source, "path", dst, "uid", uid)

	return models.LocalVideo{Path: dst, ExternalUID: &uid}, nil
}

// withLock runs fn while holding an exclusive lock next to target.
func (f *FileFetcher) withLock(ctx context.Context, target string, fn func() error) error {
	lock := flock.New(target + ".lock")

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", target, err)
	}

	if !locked {
		return fmt.Errorf("lock %s: not acquired", target)
	}

	defer func() { _ = lock.Unlock() }()

	return fn()
}

func (f *FileFetcher) cachePath(uid, ext string) string {
	if ext == "" {
		ext = defaultExt
	}

	return filepath.Join(f.cacheDir, uid+strings.ToLower(ext))
}

// SourceUID is the first 16 hex characters of sha1(s).
func SourceUID(s string) string {
	sum := sha1.Sum([]byte(s)) //nolint:gosec

	return hex.EncodeToString(sum[:])[:16]
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)

	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}

	bi, err := os.Stat(b)
	if err != nil {
		return false
	}

	return os.SameFile(ai, bi)
}

// writeAtomic streams r into a temp file beside dst and renames it into place.
func writeAtomic(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write %s: %w", dst, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("close %s: %w", dst, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("rename %s: %w", dst, err)
	}

	return nil
}
