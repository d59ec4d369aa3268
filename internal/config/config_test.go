package config

import (
	"os"
	"testing"
)

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		old, had := os.LookupEnv(k)
		os.Setenv(k, v)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
	fn()
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{
		"PORT": "", "DB_PATH": "", "ADMIN_TOKEN": "", "SPECFUSION_DEBUG": "",
	}, func() {
		cfg := Load()
		if cfg.Port != 3456 {
			t.Errorf("default port: got %d", cfg.Port)
		}
		if cfg.DBPath != "./data/specfusion.db" {
			t.Errorf("default db path: got %s", cfg.DBPath)
		}
		if cfg.AdminToken != "dev-token" {
			t.Errorf("default admin token: got %s", cfg.AdminToken)
		}
		if cfg.Debug {
			t.Error("debug should default to false")
		}
	})
}

func TestLoadOverridesFromEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"PORT":             "8080",
		"DB_PATH":          "/tmp/db.sqlite",
		"ADMIN_TOKEN":      "secret",
		"SPECFUSION_DEBUG": "true",
	}, func() {
		cfg := Load()
		if cfg.Port != 8080 {
			t.Errorf("port override: got %d", cfg.Port)
		}
		if cfg.DBPath != "/tmp/db.sqlite" {
			t.Errorf("db path override: got %s", cfg.DBPath)
		}
		if cfg.AdminToken != "secret" {
			t.Errorf("admin token override: got %s", cfg.AdminToken)
		}
		if !cfg.Debug {
			t.Error("debug should be true when SPECFUSION_DEBUG=true")
		}
	})
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	withEnv(t, map[string]string{"PORT": "not-a-number"}, func() {
		cfg := Load()
		if cfg.Port != 3456 {
			t.Errorf("expected fallback to default on malformed PORT, got %d", cfg.Port)
		}
	})
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Port != 3456 || cfg.DBPath == "" || cfg.AdminToken == "" {
		t.Errorf("expected defaults applied, got %+v", cfg)
	}
}
