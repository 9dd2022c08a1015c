package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// unset clears keys for the duration of the test; t.Setenv restores them afterwards.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unset(t, "PORT", "STORE_DRIVER", "TOKEN_TTL", "JWT_SECRET", "ALLOW_ORIGINS", "DASHBOARD_PAGE_SIZE")

	cfg := Load("")
	if cfg.Port != "8800" || cfg.StoreDriver != "postgres" || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.JWTSecret != "" || cfg.DashboardPageSize != 20 || !slices.Equal(cfg.AllowedOrigins, []string{"*"}) {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	keys := []string{"PORT", "JWT_SECRET", "TOKEN_TTL", "ALLOW_ORIGINS", "STORE_DRIVER", "DB_PASSWORD", "DASHBOARD_PAGE_SIZE", "KC_ENABLED"}
	unset(t, keys...)

	path := filepath.Join(t.TempDir(), "taskhub.env")
	env := strings.Join([]string{
		"PORT=7000",
		"JWT_SECRET=topsecret",
		"TOKEN_TTL=3600",
		"ALLOW_ORIGINS=http://a.test, http://b.test,",
		"STORE_DRIVER=Memory",
		"DB_PASSWORD=hunter2",
		"DASHBOARD_PAGE_SIZE=abc",
		"KC_ENABLED=TRUE",
	}, "\n")
	if err := os.WriteFile(path, []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9000")

	cfg := Load(path)
	if cfg.ConfigPath != "taskhub.env" {
		t.Fatalf("ConfigPath = %q", cfg.ConfigPath)
	}
	if cfg.Port != "9000" {
		t.Fatalf("process env should win over the file, Port = %q", cfg.Port)
	}
	if cfg.JWTSecret != "topsecret" || cfg.TokenTTL != time.Hour || cfg.StoreDriver != "memory" || !cfg.KCEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.AllowedOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Fatalf("origins = %q", cfg.AllowedOrigins)
	}
	if cfg.DashboardPageSize != 20 {
		t.Fatalf("bad int should fall back, got %d", cfg.DashboardPageSize)
	}

	dump := cfg.String()
	if strings.Contains(dump, "topsecret") || strings.Contains(dump, "hunter2") {
		t.Fatalf("secrets leaked:\n%s", dump)
	}
	if !strings.Contains(dump, "JWTSecret") || !strings.Contains(dump, "****") {
		t.Fatalf("dump = %s", dump)
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "app", DBPassword: "p@ss word", DBAddress: "db:5432", DBName: "taskhub", DBSSLMode: "disable"}
	want := "postgres://app:p%40ss%20word@db:5432/taskhub?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"90m", 90 * time.Minute},
		{"120", 2 * time.Minute},
		{"-5s", time.Hour},
		{"soon", time.Hour},
	}
	for _, tt := range tests {
		t.Setenv("TEST_TTL", tt.value)
		if got := getDurationEnv("TEST_TTL", time.Hour); got != tt.want {
			t.Errorf("getDurationEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
