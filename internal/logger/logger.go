package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sink is the narrow logging surface the validator, extractor, conflict
// filter and repository depend on. *Logger satisfies it.
type Sink interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Logger wraps zerolog with dbkit's defaults
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // rfc3339, unix, unixms, unixmicro
	Output     io.Writer
}

// DefaultConfig returns production-ready defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: "rfc3339",
		Output:     os.Stdout,
	}
}

// New creates a new logger
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = getTimeFormat(cfg.TimeFormat)

	var w io.Writer = out
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	zlog := zerolog.New(w).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().Caller().Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// OpenFile returns a writer appending to path. "" and "stdout" mean
// standard output, "stderr" standard error.
func OpenFile(path string) (io.WriteCloser, error) {
	switch path {
	case "", "stdout":
		return nopCloser{os.Stdout}, nil
	case "stderr":
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// WithContext adds logger to context
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}

// FromContext retrieves logger from context
func FromContext(ctx context.Context) *Logger {
	zlog := zerolog.Ctx(ctx)
	if zlog.GetLevel() == zerolog.Disabled {
		return global
	}
	return &Logger{zlog: *zlog}
}

// With creates a child logger with additional fields
func (l *Logger) With() *Context {
	return &Context{ctx: l.zlog.With()}
}

// Context wraps zerolog.Context for field chaining
type Context struct {
	ctx zerolog.Context
}

func (c *Context) Str(key, val string) *Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

func (c *Context) Int(key string, val int) *Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

func (c *Context) Err(err error) *Context {
	c.ctx = c.ctx.Err(err)
	return c
}

func (c *Context) Any(key string, val any) *Context {
	c.ctx = c.ctx.Interface(key, val)
	return c
}

func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.ctx.Logger()}
}

// Table returns a child logger tagged with the table being processed.
func (l *Logger) Table(name string) *Logger {
	return l.With().Str("table", name).Logger()
}

// Logging methods
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zlog.Debug().Msgf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.zlog.Info().Msgf(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zlog.Warn().Msgf(format, args...)
}

func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zlog.Error().Msgf(format, args...)
}

func (l *Logger) Fatal(msg string) {
	l.zlog.Fatal().Msg(msg)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.zlog.Fatal().Msgf(format, args...)
}

// Structured logging with fields
func (l *Logger) InfoWith(msg string, fields map[string]any) {
	event := l.zlog.Info()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l *Logger) ErrorWith(msg string, err error, fields map[string]any) {
	event := l.zlog.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// HTTPEvent starts an info event for request logging.
func (l *Logger) HTTPEvent() *zerolog.Event {
	return l.zlog.Info()
}

// Helper functions
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func getTimeFormat(format string) string {
	switch format {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	case "unixmicro":
		return zerolog.TimeFormatUnixMicro
	default:
		return time.RFC3339
	}
}

// Global logger instance (for convenience)
var global = New(nil)

// Global convenience functions
func Debug(msg string) {
	global.Debug(msg)
}

func Info(msg string) {
	global.Info(msg)
}

func Warn(msg string) {
	global.Warn(msg)
}

func Error(msg string) {
	global.Error(msg)
}

func Fatal(msg string) {
	global.Fatal(msg)
}

func SetGlobal(l *Logger) {
	global = l
}

// Global returns the process-wide logger.
func Global() *Logger {
	return global
}
