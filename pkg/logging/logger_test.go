// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := tt.level.toSlogLevel()
			if got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// File Logging Tests
// =============================================================================

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "claims-test",
		Quiet:   true,
	})

	logger.Info("decision recorded", "request_id", "req-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	pattern := filepath.Join(dir, "claims-test_*.log")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file matching %s, got %v", pattern, matches)
	}

	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), "decision recorded") {
		t.Errorf("log file missing message, got: %s", content)
	}
	if !strings.Contains(string(content), "claims-test") {
		t.Errorf("log file missing service attribute, got: %s", content)
	}
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "claims-test",
		Quiet:   true,
	})

	logger.Info("should be filtered")
	logger.Warn("should appear")
	logger.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	content, _ := os.ReadFile(matches[0])

	if strings.Contains(string(content), "should be filtered") {
		t.Error("info message should have been filtered at warn level")
	}
	if !strings.Contains(string(content), "should appear") {
		t.Error("warn message missing from log file")
	}
}

// =============================================================================
// Redaction Tests
// =============================================================================

func TestLogger_RedactsMessages(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		LogDir:  dir,
		Service: "claims-test",
		Quiet:   true,
		Redact: func(s string) string {
			return strings.ReplaceAll(s, "123-45-6789", "***-**-****")
		},
	})

	logger.Info("claimant provided SSN 123-45-6789 in description")
	logger.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	content, _ := os.ReadFile(matches[0])

	if strings.Contains(string(content), "123-45-6789") {
		t.Error("raw SSN leaked into the log file")
	}
	if !strings.Contains(string(content), "***-**-****") {
		t.Error("masked SSN missing from the log file")
	}
}

func TestLogger_RedactAppliesToExporter(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Quiet:    true,
		Exporter: exporter,
		Redact: func(s string) string {
			return strings.ReplaceAll(s, "secret", "[MASKED]")
		},
	})

	logger.Info("the secret value")
	waitForEntries(t, exporter, 1)

	entries := exporter.Entries()
	if entries[0].Message != "the [MASKED] value" {
		t.Errorf("exported message = %q, want redacted form", entries[0].Message)
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestLogger_ExportsEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "claims-test",
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("audit write ok", "request_id", "req-9")
	waitForEntries(t, exporter, 1)

	entries := exporter.Entries()
	entry := entries[0]
	if entry.Message != "audit write ok" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Service != "claims-test" {
		t.Errorf("Service = %q", entry.Service)
	}
	if entry.Level != LevelInfo {
		t.Errorf("Level = %v", entry.Level)
	}
	if entry.Attrs["request_id"] != "req-9" {
		t.Errorf("Attrs = %v", entry.Attrs)
	}
}

func TestLogger_ExporterRespectsLevel(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelError,
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("below threshold")
	logger.Error("at threshold")
	waitForEntries(t, exporter, 1)

	entries := exporter.Entries()
	if len(entries) != 1 || entries[0].Message != "at threshold" {
		t.Errorf("entries = %v, want only the error entry", entries)
	}
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewWriterExporter(&buf)

	err := exporter.Export(context.Background(), LogEntry{
		Timestamp: time.Now(),
		Level:     LevelWarn,
		Message:   "degraded mode",
		Attrs:     map[string]any{"reason": "history unavailable"},
	})
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if !strings.Contains(buf.String(), "WARN: degraded mode") {
		t.Errorf("output = %q", buf.String())
	}
}

// =============================================================================
// With Tests
// =============================================================================

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		LogDir:  dir,
		Service: "claims-test",
		Quiet:   true,
	})

	child := logger.With("request_id", "req-42")
	child.Info("stage complete")
	logger.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	content, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(content), "req-42") {
		t.Error("child logger attribute missing from output")
	}
}

// =============================================================================
// Helpers
// =============================================================================

// waitForEntries polls the exporter until it has n entries or times out.
// Export runs on a goroutine per entry, so tests must wait.
func waitForEntries(t *testing.T, exporter *BufferedExporter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d exported entries, have %d", n, len(exporter.Entries()))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}

	got := expandPath("~/.clearline/logs")
	want := filepath.Join(home, ".clearline/logs")
	if got != want {
		t.Errorf("expandPath() = %s, want %s", got, want)
	}

	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("absolute path should be unchanged, got %s", got)
	}
}
