package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset = "\033[0m"
	ansiKey   = "\033[36m"
)

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[90m",
	slog.LevelInfo:  "\033[32m",
	slog.LevelWarn:  "\033[33m",
	slog.LevelError: "\033[31m",
}

// textOutput is shared by a handler and everything derived from it.
type textOutput struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// TextHandler writes one line per record:
//
//	[2006-01-02 15:04:05] [INFO] message key=value key="quoted value"
//
// Attributes added with WithAttrs are rendered once and reused.
type TextHandler struct {
	out    *textOutput
	level  slog.Leveler
	prefix string // group path, "a.b."
	preset []byte
}

// NewTextHandler returns a handler writing to w. A nil level means INFO.
func NewTextHandler(w io.Writer, level slog.Leveler, color bool) *TextHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &TextHandler{out: &textOutput{w: w, color: color}, level: level}
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, time.DateTime)
	buf = append(buf, "] ["...)
	buf = h.appendLevel(buf, r.Level)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)
	buf = append(buf, h.preset...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := h.out.w.Write(buf)
	return err
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = append([]byte(nil), h.preset...)
	for _, a := range attrs {
		next.preset = h.appendAttr(next.preset, h.prefix, a)
	}
	return &next
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *TextHandler) appendLevel(buf []byte, l slog.Level) []byte {
	name := l.String()
	if c, ok := levelColors[l]; ok && h.out.color {
		return append(append(append(buf, c...), name...), ansiReset...)
	}
	return append(buf, name...)
}

func (h *TextHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}

	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, inner, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	if h.out.color {
		buf = append(buf, ansiKey...)
	}
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	if h.out.color {
		buf = append(buf, ansiReset...)
	}
	buf = append(buf, '=')

	val := textValue(a.Value)
	if val == "" || strings.ContainsAny(val, " \t\n\"=") {
		return strconv.AppendQuote(buf, val)
	}
	return append(buf, val...)
}

func textValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}
