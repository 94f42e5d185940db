package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hitoshi/maintlog/internal/model"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.Database.Host != "localhost" || cfg.Database.Name != "maintlog" {
		t.Errorf("Database = %+v, want localhost/maintlog", cfg.Database)
	}

	// slogのグローバルロガーがJSON出力に設定されていることを確認する
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestInit_WithLogFile_WritesToBoth(t *testing.T) {
	setTestEnv(t)
	path := filepath.Join(t.TempDir(), "maintlog.log")
	t.Setenv("LOG_FILE", path)

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("file test")

	if !bytes.Contains(buf.Bytes(), []byte("file test")) {
		t.Errorf("stdout writer should receive the log, got %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file should be created: %v", err)
	}
	if !bytes.Contains(data, []byte("file test")) {
		t.Errorf("log file should receive the log, got %q", string(data))
	}
}

func TestNewServices_WiresWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	cfg, err := Init(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	svc, err := newServices(cfg)
	if err != nil {
		t.Fatalf("newServices should not connect to the database: %v", err)
	}
	defer svc.db.Close()

	if svc.auth.GoogleEnabled() {
		t.Error("Google login should be disabled without client credentials")
	}
	if svc.records == nil || svc.bootstrap == nil {
		t.Error("record and bootstrap services should be wired")
	}
}

func TestNewServices_GoogleEnabled(t *testing.T) {
	setTestEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "test-client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "test-client-secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback")

	cfg, err := Init(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	svc, err := newServices(cfg)
	if err != nil {
		t.Fatalf("newServices failed: %v", err)
	}
	defer svc.db.Close()

	if !svc.auth.GoogleEnabled() {
		t.Error("Google login should be enabled when client credentials are set")
	}
}

func TestNewRouterDeps_CarriesConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("SESSION_MAX_AGE", "3600")

	cfg, err := Init(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	svc, err := newServices(cfg)
	if err != nil {
		t.Fatalf("newServices failed: %v", err)
	}
	defer svc.db.Close()

	deps := newRouterDeps(cfg, svc, nil, nil, nil, nil)

	if !deps.TrustProxy {
		t.Error("TrustProxy should follow TRUST_PROXY")
	}
	if deps.SessionConfig.MaxAge.Seconds() != 3600 {
		t.Errorf("MaxAge = %v, want 1h", deps.SessionConfig.MaxAge)
	}
	if deps.AuthConfig.Session != deps.SessionConfig {
		t.Error("auth handler should share the session cookie settings")
	}
	if string(deps.AuthConfig.StateHashKey) != cfg.SessionSecret {
		t.Error("state cookie should be signed with the session secret")
	}
	if deps.AdminPassword != "admin" {
		t.Errorf("AdminPassword = %q, want default admin", deps.AdminPassword)
	}
}

func TestRunMigrate_MissingDatabaseParams(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PASSWORD", "")

	cfg, err := Init(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	err = runMigrate(cfg)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeConfigMissing {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeConfigMissing)
	}
}
