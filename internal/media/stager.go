// Package media stages chat attachments on local disk and forwards them to
// the ticket tracker.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/intakebot/internal/intakeerr"
)

const defaultMaxBytes int64 = 20 << 20

var ErrTooLarge = errors.New("attachment exceeds size limit")

// FileResolver turns a chat attachment id into a download URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

type Uploader interface {
	AttachFile(ctx context.Context, issueKey, filename string, content io.Reader) error
}

type Stager struct {
	dir        string
	maxBytes   int64
	resolver   FileResolver
	uploader   Uploader
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Stager)

func WithHTTPClient(client *http.Client) Option {
	return func(stager *Stager) {
		if client != nil {
			stager.httpClient = client
		}
	}
}

func New(dir string, maxBytes int64, resolver FileResolver, uploader Uploader, logger *slog.Logger, opts ...Option) *Stager {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	stager := &Stager{
		dir:        strings.TrimSpace(dir),
		maxBytes:   maxBytes,
		resolver:   resolver,
		uploader:   uploader,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(stager)
		}
	}
	return stager
}

func (s *Stager) Dir() string {
	return s.dir
}

// Stage downloads the attachment into the staging directory and returns the
// local path. Partial files are removed on failure. Errors wrap intakeerr.ErrDownload.
func (s *Stager) Stage(ctx context.Context, fileID string) (string, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return "", fmt.Errorf("%w: empty file id", intakeerr.ErrDownload)
	}
	if s.resolver == nil {
		return "", fmt.Errorf("%w: file resolver not configured", intakeerr.ErrDownload)
	}
	fileURL, err := s.resolver.FileURL(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve file: %w", intakeerr.ErrDownload, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create staging dir: %w", intakeerr.ErrDownload, err)
	}

	target := filepath.Join(s.dir, stagedName(fileID, fileURL))
	if err := s.download(ctx, fileURL, target); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("%w: %w", intakeerr.ErrDownload, err)
	}
	s.logger.Info("attachment staged", "file_id", fileID, "path", target)
	return target, nil
}

func (s *Stager) download(ctx context.Context, fileURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	res, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("file download failed with status %d", res.StatusCode)
	}
	if res.ContentLength > s.maxBytes {
		return ErrTooLarge
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	written, copyErr := io.Copy(file, &io.LimitedReader{R: res.Body, N: s.maxBytes + 1})
	closeErr := file.Close()
	if copyErr != nil {
		return copyErr
	}
	if written > s.maxBytes {
		return ErrTooLarge
	}
	return closeErr
}

// Forward uploads a staged file to the issue and always removes the local
// copy, whether or not the upload succeeded. Errors wrap intakeerr.ErrUpload.
func (s *Stager) Forward(ctx context.Context, issueKey, localPath string) error {
	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove staged file failed", "path", localPath, "error", err)
		}
	}()
	if s.uploader == nil {
		return fmt.Errorf("%w: uploader not configured", intakeerr.ErrUpload)
	}
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open staged file: %w", intakeerr.ErrUpload, err)
	}
	defer file.Close()
	if err := s.uploader.AttachFile(ctx, issueKey, filepath.Base(localPath), file); err != nil {
		return fmt.Errorf("%w: %w", intakeerr.ErrUpload, err)
	}
	s.logger.Info("attachment forwarded", "issue_key", issueKey, "path", localPath)
	return nil
}

// Discard removes staged files without uploading them.
func (s *Stager) Discard(paths []string) {
	for _, localPath := range paths {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("discard staged file failed", "path", localPath, "error", err)
		}
	}
}

// Purge removes staged files last modified before now minus olderThan and
// returns how many were removed. Files named in keep, matched by base name,
// still belong to a flow and stay.
func (s *Stager) Purge(ctx context.Context, olderThan time.Duration, keep []string) (int, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, localPath := range keep {
		kept[filepath.Base(localPath)] = struct{}{}
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read staging dir: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		if _, ok := kept[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("purge staged file failed", "name", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("staged files purged", "count", removed)
	}
	return removed, nil
}

var nameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func stagedName(fileID, fileURL string) string {
	key := nameSanitizer.ReplaceAllString(fileID, "")
	if len(key) > 32 {
		key = key[len(key)-32:]
	}
	if key == "" {
		key = "file"
	}
	extension := ""
	if parsed, err := url.Parse(fileURL); err == nil {
		extension = strings.ToLower(path.Ext(parsed.Path))
	}
	if len(extension) > 8 || strings.ContainsAny(extension, `/\`) {
		extension = ""
	}
	return key + "-" + uuid.NewString()[:8] + extension
}
