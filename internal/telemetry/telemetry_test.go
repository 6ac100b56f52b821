package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithExecutionID(NewLogger(&buf, slog.LevelInfo, "json"), "exec-1")

	logger.Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if entry["execution_id"] != "exec-1" {
		t.Errorf("expected execution_id, got %v", entry)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo, "text").Info("hello", "k", "v")

	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("expected text format, got %q", buf.String())
	}
}

func TestParseTraceParent(t *testing.T) {
	traceID, parentID, ok := ParseTraceParent("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	if !ok {
		t.Fatal("expected valid traceparent")
	}
	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" || parentID != "00f067aa0ba902b7" {
		t.Errorf("unexpected ids: %s %s", traceID, parentID)
	}

	invalid := []string{
		"",
		"garbage",
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7",
		"00-zzf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		"00-00000000000000000000000000000000-00f067aa0ba902b7-01",
	}
	for _, h := range invalid {
		if _, _, ok := ParseTraceParent(h); ok {
			t.Errorf("expected %q to be rejected", h)
		}
	}
}

func TestStartSpan(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "execution", "")
	if len(root.TraceID) != 32 || len(root.SpanID) != 16 {
		t.Errorf("unexpected ids: %s %s", root.TraceID, root.SpanID)
	}
	if TraceIDFromContext(ctx) != root.TraceID {
		t.Error("trace id should be available from context")
	}

	// Дочерний спан наследует trace id
	_, child := StartSpan(ctx, "step", "ignored")
	if child.TraceID != root.TraceID {
		t.Error("child should share trace id")
	}
	if child.ParentID != root.SpanID {
		t.Error("child parent should be root span")
	}

	// Внешний trace id для корневого спана
	_, external := StartSpan(context.Background(), "execution", "4bf92f3577b34da6a3ce929d0e0e4736")
	if external.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected external trace id, got %s", external.TraceID)
	}

	tp := external.TraceParent()
	if id, _, ok := ParseTraceParent(tp); !ok || id != external.TraceID {
		t.Errorf("TraceParent should round-trip, got %s", tp)
	}
}
