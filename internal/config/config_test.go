package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000", "chat_provider": "openai"},
		"databases": {"sqlite3": {"dsn": "portfolio.db"}},
		"admin": {"username": "admin", "password": "secret"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("unexpected server address %q", cfg.BasicConfig.ServerAddress)
	}
	dsn := cfg.Databases["sqlite3"].DSN
	if !filepath.IsAbs(dsn) {
		t.Fatalf("sqlite dsn should be made absolute, got %q", dsn)
	}
}

func TestLoadRequiresAdminCredentials(t *testing.T) {
	path := writeConfig(t, `{
		"databases": {"sqlite3": {"dsn": "portfolio.db"}}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing admin credentials")
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	path := writeConfig(t, `{
		"admin": {"username": "admin", "password": "secret"}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing databases")
	}
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv("PORTFOLIO_ADMIN_PASSWORD", "from-env")
	t.Setenv("PORTFOLIO_PROVIDER_OPENAI_API_KEY", "sk-env")
	path := writeConfig(t, `{
		"databases": {"sqlite3": {"dsn": "portfolio.db"}},
		"providers": {"openai": {"model": "gpt-4o-mini"}},
		"admin": {"username": "admin", "password": "from-file"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admin.Password != "from-env" {
		t.Fatalf("admin password override not applied")
	}
	if cfg.Providers["openai"].APIKey != "sk-env" {
		t.Fatalf("provider api key override not applied")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
