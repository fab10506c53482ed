package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Writer is the interface for build output destinations.
type Writer interface {
	// Write stores data at path.
	Write(path string, data []byte) error
}

// FileWriter writes build outputs to disk, creating parent directories as
// needed. Files are written to a temporary sibling and renamed into place
// so the development server never serves a partially written asset.
type FileWriter struct {
	perm    os.FileMode
	dirPerm os.FileMode
	logger  *slog.Logger
}

// FileWriterOption configures a FileWriter.
type FileWriterOption func(*FileWriter)

// WithPermissions overrides the default file permissions (0644).
func WithPermissions(perm os.FileMode) FileWriterOption {
	return func(fw *FileWriter) {
		fw.perm = perm
	}
}

// WithLogger sets a logger for the FileWriter.
func WithLogger(logger *slog.Logger) FileWriterOption {
	return func(fw *FileWriter) {
		fw.logger = logger
	}
}

// NewFileWriter creates a file writer.
func NewFileWriter(opts ...FileWriterOption) *FileWriter {
	fw := &FileWriter{
		perm:    0o644,
		dirPerm: 0o755,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw
}

// Write creates parent directories and writes data to path.
func (fw *FileWriter) Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, fw.dirPerm); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("writing file %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	if err := os.Chmod(tmpName, fw.perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	fw.logger.Debug("wrote file", slog.String("path", path), slog.Int("bytes", len(data)))

	return nil
}

// Copy copies the file at src to dst.
func (fw *FileWriter) Copy(dst, src string) error {
	f, err := os.Open(src) //nolint:gosec // paths come from the path table
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	return fw.Write(dst, data)
}
