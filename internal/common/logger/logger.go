package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
)

// Logger writes one JSON object per line. Every entry carries the service name,
// an action and the hostname so lines from several robots can be merged.
type Logger struct {
	service string
	base    *slog.Logger
}

var levelMapping = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// New logs to stdout at level, a LOG_LEVEL value.
func New(service, level string) *Logger {
	return NewWithWriter(service, os.Stdout, ParseLevel(level))
}

func NewWithWriter(service string, w io.Writer, level slog.Level) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	})
	base := slog.New(h).With("service", service, "hostname", hostname())
	return &Logger{service: service, base: base}
}

// ParseLevel maps LOG_LEVEL values; anything unknown is info.
func ParseLevel(s string) slog.Level {
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

func (l *Logger) With(fields map[string]any) *Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{service: l.service, base: l.base.With(attrs(fields)...)}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.base.Info(action, append([]any{"action", action}, attrs(fields)...)...)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.base.Debug(action, append([]any{"action", action}, attrs(fields)...)...)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	args := append([]any{"action", action}, attrs(fields)...)
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.base.Error(action, args...)
}

// Watermill adapts the logger for the transport libraries.
func (l *Logger) Watermill() watermill.LoggerAdapter {
	return watermill.NewSlogLoggerWithLevelMapping(l.base.With("action", "transport"), levelMapping)
}

func attrs(fields map[string]any) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func hostname() string { h, _ := os.Hostname(); return h }
