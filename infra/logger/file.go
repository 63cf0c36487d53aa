package logger

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var fileOut *lumberjack.Logger

// SetFile mirrors every logger created afterwards into a size-rotated file.
// An empty path disables file output. The returned closer releases the file.
func SetFile(opts FileOptions) (io.Closer, error) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	if opts.Path == "" {
		fileOut = nil
		return nopCloser{}, nil
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	fileOut = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	return fileOut, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
