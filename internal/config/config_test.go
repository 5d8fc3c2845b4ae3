package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func minimalEnv() map[string]string {
	return map[string]string{
		"JWT_SECRET":        "0123456789abcdef0123",
		"COMETCHAT_APP_ID":  "app",
		"COMETCHAT_REGION":  "us",
		"COMETCHAT_API_KEY": "key",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(minimalEnv())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Port != 50005 {
		t.Errorf("Port = %d, want 50005", cfg.Port)
	}
	if cfg.Addr() != ":50005" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %v, want 1h", cfg.TokenTTL)
	}
	if cfg.CometChat.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.CometChat.Timeout)
	}
	if cfg.DirectoryPageSize != 1000 {
		t.Errorf("DirectoryPageSize = %d, want 1000", cfg.DirectoryPageSize)
	}
	if cfg.SearchThreshold != 0.3 {
		t.Errorf("SearchThreshold = %v, want 0.3", cfg.SearchThreshold)
	}
	want := []string{"http://localhost:", "http://127.0.0.1:"}
	if strings.Join(cfg.AllowedOriginPrefixes, "|") != strings.Join(want, "|") {
		t.Errorf("AllowedOriginPrefixes = %v, want %v", cfg.AllowedOriginPrefixes, want)
	}
	if cfg.CookieSecure || cfg.StrictCreate {
		t.Error("boolean flags should default to false")
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	environ := minimalEnv()
	environ["PORT"] = "8080"
	environ["LOG_LEVEL"] = "debug"
	environ["TOKEN_TTL"] = "30m"
	environ["SEARCH_THRESHOLD"] = "0.5"
	environ["ALLOWED_ORIGIN_PREFIXES"] = "https://chat.example.com"
	environ["COOKIE_SECURE"] = "true"

	cfg, err := LoadFrom(environ)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Port != 8080 || cfg.LogLevel != slog.LevelDebug || cfg.TokenTTL != 30*time.Minute {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SearchThreshold != 0.5 || !cfg.CookieSecure {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.AllowedOriginPrefixes) != 1 || cfg.AllowedOriginPrefixes[0] != "https://chat.example.com" {
		t.Errorf("AllowedOriginPrefixes = %v", cfg.AllowedOriginPrefixes)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr string
	}{
		{"missing secret", func(e map[string]string) { delete(e, "JWT_SECRET") }, "JWT_SECRET"},
		{"short secret", func(e map[string]string) { e["JWT_SECRET"] = "short" }, "at least 16"},
		{"missing api key", func(e map[string]string) { delete(e, "COMETCHAT_API_KEY") }, "COMETCHAT_API_KEY"},
		{"no region or base url", func(e map[string]string) { delete(e, "COMETCHAT_REGION") }, "COMETCHAT_REGION"},
		{"bad port", func(e map[string]string) { e["PORT"] = "not-a-port" }, "parse env"},
		{"port out of range", func(e map[string]string) { e["PORT"] = "70000" }, "out of range"},
		{"threshold too high", func(e map[string]string) { e["SEARCH_THRESHOLD"] = "1.5" }, "SEARCH_THRESHOLD"},
		{"zero burst", func(e map[string]string) { e["AUTH_RATE_BURST"] = "0" }, "AUTH_RATE_BURST"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			environ := minimalEnv()
			tc.mutate(environ)

			_, err := LoadFrom(environ)
			if err == nil {
				t.Fatal("LoadFrom() should fail")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadFrom_BaseURLWithoutRegion(t *testing.T) {
	environ := minimalEnv()
	delete(environ, "COMETCHAT_REGION")
	environ["COMETCHAT_BASE_URL"] = "http://127.0.0.1:9000/v3"

	if _, err := LoadFrom(environ); err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
}

// clearEnv unsets keys for the test and restores them afterwards.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
}

func TestLoadFiles_Dotenv(t *testing.T) {
	clearEnv(t, "JWT_SECRET", "COMETCHAT_APP_ID", "COMETCHAT_REGION", "COMETCHAT_API_KEY", "PORT")
	t.Setenv("COMETCHAT_REGION", "eu")

	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=dotenv-secret-0123456789\n" +
		"COMETCHAT_APP_ID=app-from-file\n" +
		"COMETCHAT_REGION=us\n" +
		"COMETCHAT_API_KEY=key-from-file\n" +
		"PORT=6000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := LoadFiles(path)
	if err != nil {
		t.Fatalf("LoadFiles() error = %v", err)
	}
	if cfg.JWTSecret != "dotenv-secret-0123456789" || cfg.CometChat.AppID != "app-from-file" || cfg.Port != 6000 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.CometChat.Region != "eu" {
		t.Errorf("Region = %q, want the process value eu to win over the file", cfg.CometChat.Region)
	}
}

func TestLoadFiles_MissingFileIsSkipped(t *testing.T) {
	clearEnv(t, "PORT")
	for k, v := range minimalEnv() {
		t.Setenv(k, v)
	}

	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("LoadFiles() error = %v", err)
	}
	if cfg.CometChat.AppID != "app" {
		t.Errorf("AppID = %q, want app", cfg.CometChat.AppID)
	}
}

func TestLoadFiles_UnreadableFileFails(t *testing.T) {
	for k, v := range minimalEnv() {
		t.Setenv(k, v)
	}

	// A directory exists but cannot be parsed as a dotenv file.
	if _, err := LoadFiles(t.TempDir()); err == nil {
		t.Fatal("LoadFiles(dir) error = nil, want a load error")
	}
}
