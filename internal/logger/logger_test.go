package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput points the logger at a buffer in uncolored text and
// returns a function restoring the previous sink and level.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	saved := out
	mu.Unlock()
	savedLevel := level.Level()

	update(func(s *sink) { *s = sink{w: buf, format: formatText} })

	return buf, func() {
		level.Set(savedLevel)
		update(func(s *sink) { *s = saved })
	}
}

// ============================================================================
// Level Filtering Tests
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "[DEBUG] debug message")
		assert.Contains(t, out, "[INFO] info message")
		assert.Contains(t, out, "[WARN] warn message")
		assert.Contains(t, out, "[ERROR] error message")
	})

	t.Run("WarnLevelFiltersDebugAndInfo", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("ErrorAlwaysLogged", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})
}

func TestSetLevel(t *testing.T) {
	t.Run("CaseInsensitive", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DeBuG")
		Debug("visible")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("IgnoresInvalidValues", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("INVALID")
		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Equal(t, slog.LevelInfo, CurrentLevel())
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseLevel("trace")
	assert.False(t, ok)
}

// ============================================================================
// Formatting Tests
// ============================================================================

func TestTextFormat(t *testing.T) {
	t.Run("TimestampAndFields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		Info("generation live", KeyGeneration, 3, KeySource, "github:acme/schema/schema.graphql@main")

		out := buf.String()
		assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] generation live`, out)
		assert.Contains(t, out, "generation=3")
		assert.Contains(t, out, "source=github:acme/schema/schema.graphql@main")
	})

	t.Run("QuotesValuesWithSpaces", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		Info("fetch failed", KeyError, "connection refused by peer")
		assert.Contains(t, buf.String(), `error="connection refused by peer"`)
	})

	t.Run("GroupsPrefixKeys", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		With().WithGroup("poll").Info("tick", "result", "fresh")
		assert.Contains(t, buf.String(), "poll.result=fresh")
	})

	t.Run("FieldConstructors", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		Info("drained",
			Generation(7),
			Step("close"),
			Digest("0123456789abcdef0123"),
			Interval(5*time.Minute),
			Err(errors.New("boom")),
			Err(nil),
		)

		out := buf.String()
		assert.Contains(t, out, "generation=7")
		assert.Contains(t, out, "step=close")
		assert.Contains(t, out, "digest=0123456789ab")
		assert.NotContains(t, out, "0123456789abc ")
		assert.Contains(t, out, "interval=5m0s")
		assert.Contains(t, out, "error=boom")
	})
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetLevel("INFO")
	Info("restart requested", KeyRestartKind, "soft", KeyGeneration, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "restart requested", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "soft", entry[KeyRestartKind])
	assert.EqualValues(t, 2, entry[KeyGeneration])
}

func TestSetFormatIgnoresInvalid(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetFormat("xml")
	Info("still text")
	assert.True(t, strings.HasPrefix(buf.String(), "["))
}

// ============================================================================
// Context Tests
// ============================================================================

func TestContextFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")

	lc := NewLogContext("req-1", "10.0.0.4", 5).WithOperation("ListMovies").WithTrace("trace-abc", "span-def")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "graphql request", KeyStatus, 200)

	out := buf.String()
	assert.Contains(t, out, "trace_id=trace-abc")
	assert.Contains(t, out, "span_id=span-def")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "generation=5")
	assert.Contains(t, out, "operation=ListMovies")
	assert.Contains(t, out, "client_ip=10.0.0.4")
	assert.Contains(t, out, "status=200")

	// context fields come before call-site fields
	assert.Less(t, strings.Index(out, "request_id"), strings.Index(out, "status"))
}

func TestContextWithoutLogContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	WarnCtx(context.Background(), "plain", "k", "v")
	assert.Contains(t, buf.String(), "k=v")
	assert.Nil(t, FromContext(context.Background()))
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("req-1", "127.0.0.1", 1)
	derived := lc.WithOperation("GetActor")

	assert.Empty(t, lc.Operation)
	assert.Equal(t, "GetActor", derived.Operation)
	assert.Equal(t, lc.RequestID, derived.RequestID)

	var nilLC *LogContext
	assert.Nil(t, nilLC.Clone())
}

// ============================================================================
// Init Tests
// ============================================================================

func TestInitWithFileOutput(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "hotschema.log")
	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInitWithUnwritablePath(t *testing.T) {
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				Info("tick")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, strings.Count(buf.String(), "tick"))
}

func TestTextHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, slog.LevelDebug, false)
	l := slog.New(h).With(KeyPoller, "drift").WithGroup("fetch")

	l.Debug("checked", "result", "unchanged", "note", "")
	l.Info("grouped", slog.Group("artifact", KeyBytes, 42))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[DEBUG] checked poller=drift fetch.result=unchanged fetch.note=\"\"")
	assert.Contains(t, lines[1], "fetch.artifact.bytes=42")
}

func TestTextHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewTextHandler(&buf, nil, true)).Warn("slow", "step", "connect")

	out := buf.String()
	assert.Contains(t, out, "\033[33mWARN\033[0m")
	assert.Contains(t, out, "\033[36mstep\033[0m=connect")
}
