// Package logger is the process-wide structured logger.
//
// Package-level functions log through a single *slog.Logger that is swapped
// atomically when the output or format changes. The level lives in a
// slog.LevelVar, so changing it never rebuilds the handler.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

// Config selects level, format and output.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

const (
	formatText = "text"
	formatJSON = "json"
)

// sink is the current destination and rendering.
type sink struct {
	w      io.Writer
	file   *os.File // set when the logger opened w and must close it
	format string
	color  bool
}

var (
	level  = new(slog.LevelVar)
	mu     sync.Mutex
	out    sink
	active atomic.Pointer[slog.Logger]
)

func init() {
	update(func(s *sink) {
		*s = sink{w: os.Stdout, format: formatText, color: isatty.IsTerminal(os.Stdout.Fd())}
	})
}

// update applies fn to a copy of the sink and installs a logger for it.
// A file the new sink no longer uses is closed.
func update(fn func(*sink)) {
	mu.Lock()
	defer mu.Unlock()

	next := out
	fn(&next)
	if out.file != nil && out.file != next.file {
		_ = out.file.Close()
	}
	out = next

	var h slog.Handler
	if next.format == formatJSON {
		h = slog.NewJSONHandler(next.w, &slog.HandlerOptions{Level: level})
	} else {
		h = NewTextHandler(next.w, level, next.color)
	}
	active.Store(slog.New(contextHandler{h}))
}

// Init applies cfg. Empty fields keep their current value.
func Init(cfg Config) error {
	var (
		w     io.Writer
		file  *os.File
		color bool
	)
	switch strings.ToLower(cfg.Output) {
	case "":
	case "stdout":
		w, color = os.Stdout, isatty.IsTerminal(os.Stdout.Fd())
	case "stderr":
		w, color = os.Stderr, isatty.IsTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		w, file = f, f
	}

	SetLevel(cfg.Level)
	format := normalizeFormat(cfg.Format)

	update(func(s *sink) {
		if w != nil {
			s.w, s.file, s.color = w, file, color
		}
		if format != "" {
			s.format = format
		}
	})
	return nil
}

// ParseLevel maps a level name to a slog.Level, reporting false for
// unknown names.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// CurrentLevel returns the minimum level.
func CurrentLevel() slog.Level {
	return level.Level()
}

// SetFormat switches between text and json. Unknown formats are ignored.
func SetFormat(format string) {
	if format = normalizeFormat(format); format != "" {
		update(func(s *sink) { s.format = format })
	}
}

func normalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case formatText, formatJSON:
		return f
	}
	return ""
}

// With returns a logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return active.Load().With(args...)
}

func Debug(msg string, args ...any) { active.Load().Debug(msg, args...) }
func Info(msg string, args ...any) { active.Load().Info(msg, args...) }
func Warn(msg string, args ...any) { active.Load().Warn(msg, args...) }
func Error(msg string, args ...any) { active.Load().Error(msg, args...) }

// The Ctx variants put the LogContext carried by ctx, if any, ahead of
// the call-site fields.

func DebugCtx(ctx context.Context, msg string, args ...any) {
	active.Load().DebugContext(ctx, msg, args...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	active.Load().InfoContext(ctx, msg, args...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	active.Load().WarnContext(ctx, msg, args...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	active.Load().ErrorContext(ctx, msg, args...)
}

// contextHandler prepends LogContext fields found in the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	lc := FromContext(ctx)
	if lc == nil {
		return h.Handler.Handle(ctx, r)
	}

	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	nr.AddAttrs(lc.attrs()...)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, nr)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
