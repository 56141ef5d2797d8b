package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = log.New(os.Stderr, "[cadugate] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// LogOptions configures the rotated log file. An empty Directory keeps logging
// on stderr only.
type LogOptions struct {
	Directory  string
	FileName   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// SetupLogging tees the package logger to a rotated file. The returned closer
// releases the file; it is a no-op when no directory was configured. Logs never
// go to stdout, which carries frame and packet output.
func SetupLogging(opts LogOptions) (io.Closer, error) {
	if opts.Directory == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := opts.FileName
	if name == "" {
		name = "cadugate.log"
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Directory, name),
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator, nil
}

// SetLogOutput redirects the package logger, mainly for tests.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
