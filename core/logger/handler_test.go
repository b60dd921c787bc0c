package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func renderLine(t *testing.T, format logFormat, ctx context.Context, level slog.Level, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	LogEvent(ctx, slog.New(h).With("component", CompBus), level, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)
	ctx = WithRoute(ctx, "plain")
	ctx = WithHandler(ctx, "echo")

	line := renderLine(t, formatKV, ctx, slog.LevelInfo, "command.done",
		slog.String("status", "OK"),
		slog.Int("depth", 1),
	)
	tokens := strings.Split(line, " ")
	expected := []string{
		"ts=", "level=INFO", "component=tg.bus", "event=command.done", "status=ok",
		"rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "route=plain", "handler=echo", "depth=1",
	}
	if len(tokens) != len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-json")
	line := renderLine(t, formatJSON, ctx, slog.LevelError, "command.failed",
		slog.String("status", "fail"),
		slog.String("command", "echo"),
		slog.Any("err", errors.New("boom")),
		slog.String("err_code", "HANDLER_FAILED"),
	)
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	ordered := []string{`{"ts":`, `"level":"ERROR"`, `"component":"tg.bus"`, `"event":"command.failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"command":"echo"`, `"err":"boom"`, `"err_code":"HANDLER_FAILED"`}
	pos := -1
	for _, pref := range ordered {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("%s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	raw := BuildRID(123, 456, 789)
	ctx := WithRID(Background(), raw)

	kv := renderLine(t, formatKV, ctx, slog.LevelInfo, "rid.test")
	if !strings.Contains(kv, "rid="+CompactRID(raw)) {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in kv output, got %s", kv)
	}

	js := renderLine(t, formatJSON, ctx, slog.LevelInfo, "rid.test")
	if !strings.Contains(js, `"rid_full":"`+raw+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", js)
	}
	if !strings.Contains(js, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", js)
	}
}

func TestStructuredHandlerDurationAndEmpty(t *testing.T) {
	line := renderLine(t, formatKV, Background(), slog.LevelDebug, "update.routed",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("wait", 3*time.Millisecond),
		slog.String("alias", "  "),
	)
	if !strings.Contains(line, "duration_ms=2") {
		t.Fatalf("expected duration_ms=2, got %s", line)
	}
	if !strings.Contains(line, "wait_ms=3") {
		t.Fatalf("expected wait_ms=3, got %s", line)
	}
	if strings.Contains(line, "alias=") {
		t.Fatalf("blank alias should be pruned, got %s", line)
	}
}

func TestStructuredHandlerQuotesValues(t *testing.T) {
	line := renderLine(t, formatKV, Background(), slog.LevelInfo, "command.args",
		slog.String("payload", "hello world"),
	)
	if !strings.Contains(line, `payload="hello world"`) {
		t.Fatalf("expected quoted payload, got %s", line)
	}
}

func TestHelpersWithoutInit(t *testing.T) {
	// Helpers must be no-ops before InitLogger.
	Info(context.Background(), CompBus, "noop")
	Warn(context.TODO(), CompRouter, "noop")
	if Component(CompBus) != nil {
		t.Fatalf("expected nil component logger before init")
	}
}

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{errors.New("x"), "fail"},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "cancelled"},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Fatalf("Status(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID("35:36:-1"); got != "z.10.-1" {
		t.Fatalf("CompactRID = %s", got)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("expected passthrough, got %s", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\tc\u200bd", 4); got != "ab\tc" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
