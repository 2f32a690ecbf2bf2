package config

import "testing"

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DISCORD_TOKEN is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "updatebuddy.db" {
		t.Fatalf("database path = %q", cfg.DatabasePath)
	}
	if cfg.HealthAddr != ":8080" {
		t.Fatalf("health addr = %q", cfg.HealthAddr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadPortForms(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")

	t.Setenv("PORT", "9090")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HealthAddr != ":9090" {
		t.Fatalf("health addr = %q, want :9090", cfg.HealthAddr)
	}

	t.Setenv("PORT", "127.0.0.1:9090")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HealthAddr != "127.0.0.1:9090" {
		t.Fatalf("health addr = %q", cfg.HealthAddr)
	}

	t.Setenv("PORT", "bad value")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid PORT")
	}
}
