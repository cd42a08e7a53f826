package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (line: %s)", err, buf.String())
	}
	return entry
}

func TestInfoCarriesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "engine-test", Output: &buf})

	ctx := logg.WithGroupID(context.Background(), "g-123")
	ctx = logg.WithActorRole(ctx, "user")
	logg.Info(ctx, "membership.approved")

	entry := decodeLine(t, &buf)
	if entry["service"] != "engine-test" {
		t.Fatalf("missing service field: %v", entry)
	}
	if entry["group_id"] != "g-123" {
		t.Fatalf("missing group_id field: %v", entry)
	}
	if entry["actor_role"] != "user" {
		t.Fatalf("missing actor_role field: %v", entry)
	}
	if entry["message"] != "membership.approved" {
		t.Fatalf("unexpected message: %v", entry)
	}
}

func TestErrorIncludesErrAndStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "engine-test", Output: &buf})

	logg.Error(context.Background(), "cascade.failed", errors.New("duplicate row"))

	entry := decodeLine(t, &buf)
	if entry["error"] != "duplicate row" {
		t.Fatalf("missing error field: %v", entry)
	}
	if entry["stack"] == nil {
		t.Fatalf("expected stack trace: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %v", got)
	}
	if got := ParseLevel("not-a-level"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback for junk, got %v", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "engine-test", Level: zerolog.WarnLevel, Output: &buf})

	logg.Info(context.Background(), "should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info below warn level to be dropped, got %q", buf.String())
	}
}
