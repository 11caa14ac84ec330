package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DB.Host != "localhost" || cfg.DB.Port != "5432" {
		t.Fatalf("unexpected DB defaults: %+v", cfg.DB)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default server port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Archive.Enabled {
		t.Fatal("expected archive export to be disabled by default")
	}
	if cfg.Cleanup.InactiveDays != 30 {
		t.Fatalf("expected default inactive days 30, got %d", cfg.Cleanup.InactiveDays)
	}
	if cfg.Cleanup.Interval != 24*time.Hour {
		t.Fatalf("expected default cleanup interval 24h, got %s", cfg.Cleanup.Interval)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ARCHIVE_ENABLED", "true")
	t.Setenv("ARCHIVE_EXPORT_INTERVAL", "15m")
	t.Setenv("CLEANUP_INACTIVE_DAYS", "7")

	cfg := Load()

	if cfg.DB.Host != "db.internal" {
		t.Fatalf("expected DB host override, got %q", cfg.DB.Host)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected server port override, got %q", cfg.Server.Port)
	}
	if !cfg.Archive.Enabled {
		t.Fatal("expected archive export to be enabled")
	}
	if cfg.Archive.ExportInterval != 15*time.Minute {
		t.Fatalf("expected 15m export interval, got %s", cfg.Archive.ExportInterval)
	}
	if cfg.Cleanup.InactiveDays != 7 {
		t.Fatalf("expected inactive days override, got %d", cfg.Cleanup.InactiveDays)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CLEANUP_INACTIVE_DAYS", "soon")
	t.Setenv("ARCHIVE_ENABLED", "definitely")
	t.Setenv("CLEANUP_INTERVAL", "tomorrow")

	cfg := Load()

	if cfg.Cleanup.InactiveDays != 30 {
		t.Fatalf("expected fallback inactive days, got %d", cfg.Cleanup.InactiveDays)
	}
	if cfg.Archive.Enabled {
		t.Fatal("expected fallback archive flag")
	}
	if cfg.Cleanup.Interval != 24*time.Hour {
		t.Fatalf("expected fallback cleanup interval, got %s", cfg.Cleanup.Interval)
	}
}
