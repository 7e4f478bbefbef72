package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver: got %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Ledger.DefaultCurrency != "PHP" {
		t.Errorf("currency: got %s, want PHP", cfg.Ledger.DefaultCurrency)
	}
	if cfg.Ledger.StoreTimeout() != 3*time.Second {
		t.Errorf("store timeout: got %v", cfg.Ledger.StoreTimeout())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  driver: mysql
ledger:
  default_currency: USD
  store_timeout_ms: 500
`)
	t.Setenv("FEELEDGER_SERVER_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver: got %s", cfg.Database.Driver)
	}
	if cfg.Ledger.StoreTimeout() != 500*time.Millisecond {
		t.Errorf("store timeout: got %v", cfg.Ledger.StoreTimeout())
	}
	if cfg.Ledger.CallbackLockTTL() != 10*time.Second {
		t.Errorf("lock ttl: got %v", cfg.Ledger.CallbackLockTTL())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: oracle\n"},
		{"zero timeout", "ledger:\n  store_timeout_ms: 0\n"},
		{"empty currency", "ledger:\n  default_currency: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
