// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Fatalf("CorrelationID on empty context = %q, want empty", got)
	}

	ctx = WithCorrelationID(ctx, "cron-run-1-abc")
	if got := CorrelationID(ctx); got != "cron-run-1-abc" {
		t.Fatalf("CorrelationID = %q, want cron-run-1-abc", got)
	}
}

func TestWithCorrelationIDTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := NewContext(context.Background(), logger)
	ctx = WithCorrelationID(ctx, "rpc-run-42-xyz")

	FromContext(ctx).Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["correlation_id"] != "rpc-run-42-xyz" {
		t.Errorf("correlation_id = %v, want rpc-run-42-xyz", rec["correlation_id"])
	}
}
