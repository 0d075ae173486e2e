// Package logger provides the process-wide structured logger.
//
// It wraps log/slog behind a small package-level API so components can log
// without threading a logger handle through every constructor. The handler
// is swappable at runtime via Init, which the CLI calls once after the
// configuration is loaded.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration.
type Config struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `mapstructure:"format" yaml:"format"` // text, json
	Output string `mapstructure:"output" yaml:"output"` // stdout, stderr, or file path
}

var (
	mu      sync.RWMutex
	slogger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	closer  io.Closer
)

// Init reconfigures the global logger. Output can be "stdout", "stderr",
// or a file path (opened append-only). Returns an error for unknown levels
// or unopenable files; the previous logger stays active in that case.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var out io.Writer
	var newCloser io.Closer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		out = f
		newCloser = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	closer = newCloser
	slogger = slog.New(handler)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Close releases the log file, if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at DEBUG level with key-value pairs.
func Debug(msg string, args ...any) { get().Debug(msg, args...) }

// Info logs at INFO level with key-value pairs.
func Info(msg string, args ...any) { get().Info(msg, args...) }

// Warn logs at WARN level with key-value pairs.
func Warn(msg string, args ...any) { get().Warn(msg, args...) }

// Error logs at ERROR level with key-value pairs.
func Error(msg string, args ...any) { get().Error(msg, args...) }

// With returns a logger with preset attributes for request-scoped logging.
func With(args ...any) *slog.Logger { return get().With(args...) }
