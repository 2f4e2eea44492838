package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.RunLog.MinIntervalMinutes != 55 {
		t.Errorf("runlog.min_interval_minutes = %d, want 55", cfg.RunLog.MinIntervalMinutes)
	}
	if cfg.RunLog.Timeout != 15*time.Second {
		t.Errorf("runlog.timeout = %v, want 15s", cfg.RunLog.Timeout)
	}
	if cfg.Scraper.BaseURL == "" {
		t.Error("scraper.base_url default missing")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database.driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9999
  mode: release
runlog:
  url: https://example.supabase.co
  min_interval_minutes: 30
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Mode != "release" {
		t.Errorf("server.mode = %q, want release", cfg.Server.Mode)
	}
	if cfg.RunLog.URL != "https://example.supabase.co" {
		t.Errorf("runlog.url = %q", cfg.RunLog.URL)
	}
	if cfg.RunLog.MinIntervalMinutes != 30 {
		t.Errorf("runlog.min_interval_minutes = %d, want 30", cfg.RunLog.MinIntervalMinutes)
	}
	// Values absent from the file keep their defaults.
	if cfg.Scraper.PageSize != 100 {
		t.Errorf("scraper.page_size = %d, want default 100", cfg.Scraper.PageSize)
	}
}

func TestDatabaseDSN(t *testing.T) {
	pg := &DatabaseConfig{Driver: "postgres", URL: "postgres://u:p@localhost/db"}
	if pg.DSN() != "postgres://u:p@localhost/db" {
		t.Errorf("postgres DSN = %q", pg.DSN())
	}

	sq := &DatabaseConfig{Driver: "sqlite", Path: "/tmp/x.db"}
	if sq.DSN() != "/tmp/x.db" {
		t.Errorf("sqlite DSN = %q", sq.DSN())
	}

	empty := &DatabaseConfig{Driver: "sqlite"}
	if empty.DSN() == "" {
		t.Error("sqlite DSN must have a fallback path")
	}
}
