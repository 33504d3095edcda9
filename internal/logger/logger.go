// Package logger provides the leveled, printf-style log sink used by the
// renderer and the testbed. It is a thin layer over log/slog that adds the
// FATAL and TRACE levels the engine reports with.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// ParseLevel maps a level name (case-insensitive) to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(name) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, errors.Newf("unknown log level %q", name)
}

// nopHandler discards every record. Enabled reports false so formatting is
// skipped entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Logger writes printf-style messages at the engine's levels. A nil *Logger
// is valid and discards everything.
type Logger struct {
	l *slog.Logger
}

// New creates a text logger writing to w, dropping records below level.
func New(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey || len(groups) > 0 {
				return a
			}
			lvl, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			if name, ok := levelNames[lvl]; ok {
				a.Value = slog.StringValue(name)
			}
			return a
		},
	})
	return &Logger{l: slog.New(handler)}
}

// Nop returns a Logger that discards all output.
func Nop() *Logger {
	return &Logger{l: slog.New(nopHandler{})}
}

// With returns a Logger that attaches args to every record.
func (lg *Logger) With(args ...any) *Logger {
	if lg == nil {
		return Nop()
	}
	return &Logger{l: lg.l.With(args...)}
}

// Enabled reports whether messages at level would be written.
func (lg *Logger) Enabled(level slog.Level) bool {
	if lg == nil {
		return false
	}
	return lg.l.Enabled(context.Background(), level)
}

func (lg *Logger) logf(level slog.Level, format string, args ...any) {
	if !lg.Enabled(level) {
		return
	}
	lg.l.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Fatalf records an unrecoverable failure. It does not exit; callers unwind
// with an error.
func (lg *Logger) Fatalf(format string, args ...any) { lg.logf(LevelFatal, format, args...) }

func (lg *Logger) Errorf(format string, args ...any) { lg.logf(LevelError, format, args...) }

func (lg *Logger) Warnf(format string, args ...any) { lg.logf(LevelWarn, format, args...) }

func (lg *Logger) Infof(format string, args ...any) { lg.logf(LevelInfo, format, args...) }

func (lg *Logger) Debugf(format string, args ...any) { lg.logf(LevelDebug, format, args...) }

func (lg *Logger) Tracef(format string, args ...any) { lg.logf(LevelTrace, format, args...) }
