package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Fatalf("expected 7 day token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Fatalf("expected sqlite backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.PredictionsTable != "premier-league-predictions" {
		t.Fatalf("unexpected predictions table %s", cfg.Store.PredictionsTable)
	}
	if cfg.Football.CompetitionID != 2021 {
		t.Fatalf("expected Premier League, got %d", cfg.Football.CompetitionID)
	}
	if cfg.Football.Window != 14*24*time.Hour {
		t.Fatalf("expected 14 day window, got %s", cfg.Football.Window)
	}
	if cfg.Snapshot.Enabled() {
		t.Fatalf("snapshots should be off without a bucket")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != defaultAllowedOrigins {
		t.Fatalf("unexpected origins %q", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(envPort, "5000")
	t.Setenv(envStoreBackend, "DynamoDB")
	t.Setenv(envDynamoEndpoint, "http://localhost:8000")
	t.Setenv(envFootballRetryBackoff, "1s")
	t.Setenv(envCompetitionID, "2014")
	t.Setenv(envSnapshotBucket, "scores")
	t.Setenv(envSnapshotPrefix, "/boards/")
	t.Setenv(envCookieSecure, "true")

	cfg := Load()

	if cfg.Port != "5000" {
		t.Fatalf("expected port 5000, got %s", cfg.Port)
	}
	if cfg.Store.Backend != BackendDynamoDB {
		t.Fatalf("expected backend to be lower-cased, got %s", cfg.Store.Backend)
	}
	if cfg.Store.DynamoEndpoint != "http://localhost:8000" {
		t.Fatalf("unexpected endpoint %s", cfg.Store.DynamoEndpoint)
	}
	if cfg.Football.RetryBackoff != time.Second {
		t.Fatalf("expected 1s backoff, got %s", cfg.Football.RetryBackoff)
	}
	if cfg.Football.CompetitionID != 2014 {
		t.Fatalf("expected competition 2014, got %d", cfg.Football.CompetitionID)
	}
	if !cfg.Snapshot.Enabled() || cfg.Snapshot.Prefix != "boards" {
		t.Fatalf("unexpected snapshot config %+v", cfg.Snapshot)
	}
	if !cfg.CookieSecure {
		t.Fatalf("expected secure cookies")
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.JWTSecret = "a-secret-of-sufficient-length"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.JWTSecret = "short"
	cfg.Store.Backend = "postgres"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{envJWTSecret, envStoreBackend, envLogFormat} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := (Config{LogLevel: raw}).SlogLevel(); got != want {
			t.Fatalf("level %q: expected %s, got %s", raw, want, got)
		}
	}
}
