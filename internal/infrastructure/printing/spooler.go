package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Spooler hands printed output to a spool location. Spool files are
// transient and subject to retention cleanup.
type Spooler interface {
	// Spool stores the printed document and returns where it can be fetched
	Spool(ctx context.Context, req *SpoolRequest) (*SpoolResult, error)
	// Get opens a spooled document by its relative path
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes a spooled document
	Delete(ctx context.Context, path string) error
	// CleanupOlderThan removes spooled documents older than age
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// SpoolRequest contains the parameters for spooling a printed document
type SpoolRequest struct {
	DialogID     uuid.UUID
	DocumentType printing.DocumentType
	Revision     int
	Data         []byte
}

// Validate checks the request fields shared by every spooler
func (r *SpoolRequest) Validate() error {
	if r == nil {
		return NewRenderError(ErrCodeSpoolFailed, "spool request is nil", nil)
	}
	if r.DialogID == uuid.Nil {
		return NewRenderError(ErrCodeSpoolFailed, "dialog ID is required", nil)
	}
	if len(r.Data) == 0 {
		return NewRenderError(ErrCodeSpoolFailed, "document is empty", nil)
	}
	return nil
}

// FileName is the spool file name: {dialog_id}-r{revision}.pdf
func (r *SpoolRequest) FileName() string {
	return fmt.Sprintf("%s-r%d.pdf", r.DialogID, r.Revision)
}

// SpoolResult describes a spooled document
type SpoolResult struct {
	// Path is relative to the spool root
	Path string
	URL  string
	Size int64
}

// FileSystemSpoolerConfig contains configuration for the disk spooler
type FileSystemSpoolerConfig struct {
	// BasePath is the spool root directory
	// Default: /var/spool/loadorder
	BasePath string
	// BaseURL is the URL prefix under which spool files are served
	BaseURL string
	Logger  *zap.Logger
}

// FileSystemSpooler spools printed documents to the local file system
type FileSystemSpooler struct {
	config *FileSystemSpoolerConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewFileSystemSpooler creates the spool root if needed
func NewFileSystemSpooler(config *FileSystemSpoolerConfig) (*FileSystemSpooler, error) {
	if config == nil {
		config = &FileSystemSpoolerConfig{}
	}
	if config.BasePath == "" {
		config.BasePath = "/var/spool/loadorder"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/spool"
	}

	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeSpoolFailed,
			fmt.Sprintf("failed to create spool directory: %s", config.BasePath), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSpooler{config: config, logger: logger, now: time.Now}, nil
}

// Spool writes the document to {base}/{year}/{month}/{dialog_id}-r{revision}.pdf
func (s *FileSystemSpooler) Spool(ctx context.Context, req *SpoolRequest) (*SpoolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeSpoolFailed, "operation cancelled", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	relativeDir := filepath.Join(fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()))
	dirPath := filepath.Join(s.config.BasePath, relativeDir)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeSpoolFailed, "failed to create directory", err)
	}

	relativePath := filepath.Join(relativeDir, req.FileName())
	if err := os.WriteFile(filepath.Join(s.config.BasePath, relativePath), req.Data, 0o644); err != nil {
		return nil, NewRenderError(ErrCodeSpoolFailed, "failed to write spool file", err)
	}

	url := s.GetURL(relativePath)
	s.logger.Info("document spooled",
		zap.String("path", relativePath),
		zap.Int("size", len(req.Data)),
		zap.String("document_type", req.DocumentType.String()))

	return &SpoolResult{
		Path: filepath.ToSlash(relativePath),
		URL:  url,
		Size: int64(len(req.Data)),
	}, nil
}

// resolve maps a relative path to an absolute one under BasePath
func (s *FileSystemSpooler) resolve(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) || containsDotDot(path) {
		s.logger.Warn("blocked potentially malicious path", zap.String("path", path))
		return "", NewRenderError(ErrCodeSpoolFailed, "invalid path", nil)
	}

	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", NewRenderError(ErrCodeSpoolFailed, "failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.config.BasePath, cleanPath))
	if err != nil {
		return "", NewRenderError(ErrCodeSpoolFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", path),
			zap.String("absPath", absPath))
		return "", NewRenderError(ErrCodeSpoolFailed, "invalid path", nil)
	}
	return absPath, nil
}

// Get opens a spooled document
func (s *FileSystemSpooler) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeSpoolFailed, "operation cancelled", err)
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewRenderError(ErrCodeSpoolFailed, "spool file not found", err)
		}
		return nil, NewRenderError(ErrCodeSpoolFailed, "failed to open spool file", err)
	}
	return file, nil
}

// Delete removes a spooled document. Missing files are not an error.
func (s *FileSystemSpooler) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeSpoolFailed, "operation cancelled", err)
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return NewRenderError(ErrCodeSpoolFailed, "failed to delete spool file", err)
	}
	s.logger.Debug("spool file deleted", zap.String("path", path))
	return nil
}

// CleanupOlderThan removes spooled PDFs whose modification time is before now-age
func (s *FileSystemSpooler) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)
	deleted := 0

	err := filepath.WalkDir(s.config.BasePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".pdf" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deleted++
			}
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return deleted, NewRenderError(ErrCodeSpoolFailed, "cleanup walk failed", err)
	}

	s.logger.Info("spool cleanup completed",
		zap.Int("deleted", deleted),
		zap.Duration("age", age))
	return deleted, nil
}

// GetURL returns the URL for a relative spool path
func (s *FileSystemSpooler) GetURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(s.config.BaseURL, "/"), filepath.ToSlash(filepath.Clean(path)))
}

// containsDotDot reports whether path has a ".." component
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

var _ Spooler = (*FileSystemSpooler)(nil)
