// Package logging wires log/slog for the service: text on the console, JSON
// in a weekly rotating file, and package-level helpers for the rest of the
// code base.
package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/giygas/openfda-api/config"
)

// Options selects log destinations and levels
type Options struct {
	Dir            string
	Env            config.Environment
	Level          string
	RetentionWeeks int
	MaxFileSize    int64
	Verbose        bool
}

// OptionsFromConfig derives logging options from the loaded configuration
func OptionsFromConfig(cfg *config.Config, dir string) Options {
	return Options{
		Dir:            dir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}
}

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingFile
}

var DefaultLoggingService *LoggingService

// parseLogLevel maps a LOG_LEVEL value to a slog level, info when unknown
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel returns the console level. Tests stay quiet unless run
// verbosely and ignore LOG_LEVEL; elsewhere LOG_LEVEL wins over the
// environment default.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if level != "" {
		return parseLogLevel(level)
	}
	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file level; the file keeps everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// NewLoggingService builds the console and file handlers. When the log
// directory is unusable it falls back to the console alone and reports why.
func NewLoggingService(opts Options) (*LoggingService, error) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if opts.Dir == "" {
		return &LoggingService{Logger: slog.New(console)}, nil
	}

	file, err := NewRotatingFile(opts.Dir, max(opts.RetentionWeeks, 1), opts.MaxFileSize)
	if err != nil {
		return &LoggingService{Logger: slog.New(console)}, err
	}

	handler := &multiHandler{handlers: []slog.Handler{
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: GetFileLogLevel()}),
	}}
	return &LoggingService{Logger: slog.New(handler), file: file}, nil
}

// Close flushes and closes the log file, if any
func (s *LoggingService) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// InitLogger installs the global logger
func InitLogger(opts Options) error {
	svc, err := NewLoggingService(opts)
	DefaultLoggingService = svc
	slog.SetDefault(svc.Logger)
	if err != nil {
		svc.Logger.Error("File logging disabled", "dir", opts.Dir, "error", err)
	}
	return err
}

// Close closes the global logger's file
func Close() error {
	return DefaultLoggingService.Close()
}

// multiHandler fans records out to every handler enabled for their level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

// Logger returns the global logger, slog's default before InitLogger
func Logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.Default()
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
