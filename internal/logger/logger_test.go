package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
}

func TestSetup_IncludesTimeField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Info("test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_IncludesLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Info("record created",
		slog.String("user_id", "u-123"),
		slog.String("record_id", "f-456"),
		slog.String("url", "https://example.com/records"),
		slog.Int("http_status", 200),
		slog.Int("rows_affected", 25),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["user_id"] != "u-123" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "u-123")
	}
	if entry["record_id"] != "f-456" {
		t.Errorf("record_id = %q, want %q", entry["record_id"], "f-456")
	}
	if entry["url"] != "https://example.com/records" {
		t.Errorf("url = %q, want %q", entry["url"], "https://example.com/records")
	}
	if entry["http_status"] != float64(200) {
		t.Errorf("http_status = %v, want %v", entry["http_status"], 200)
	}
	if entry["rows_affected"] != float64(25) {
		t.Errorf("rows_affected = %v, want %v", entry["rows_affected"], 25)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestWithFile_EmptyPath_ReturnsSameWriter(t *testing.T) {
	var buf bytes.Buffer
	w := WithFile(&buf, FileConfig{})

	if w != &buf {
		t.Error("expected the original writer when no file path is configured")
	}
}

func TestWithFile_WritesToBothOutputs(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "maintlog.log")

	w := WithFile(&buf, FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	l := Setup(w)
	l.Info("tee test", slog.String("record_id", "42"))

	if !strings.Contains(buf.String(), "tee test") {
		t.Errorf("expected log line in buffer, got %q", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "tee test") {
		t.Errorf("expected log line in file, got %q", string(data))
	}
}

func TestNewFileWriter_AppliesConfig(t *testing.T) {
	fw := NewFileWriter(FileConfig{Path: "/tmp/x.log", MaxSizeMB: 5, MaxBackups: 3, MaxAgeDays: 7})

	if fw.Filename != "/tmp/x.log" {
		t.Errorf("Filename = %q, want %q", fw.Filename, "/tmp/x.log")
	}
	if fw.MaxSize != 5 || fw.MaxBackups != 3 || fw.MaxAge != 7 {
		t.Errorf("unexpected rotation settings: %+v", fw)
	}
}
