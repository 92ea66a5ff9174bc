package config

import (
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, name := range []string{
		"INTAKEBOT_DATA_DIR",
		"INTAKEBOT_DB_PATH",
		"INTAKEBOT_STAGING_DIR",
		"INTAKEBOT_HTTP_ADDR",
		"PORT",
		"INTAKEBOT_TELEGRAM_API_BASE",
		"INTAKEBOT_TELEGRAM_POLL_SECONDS",
		"INTAKEBOT_JIRA_URL",
		"INTAKEBOT_JIRA_PROJECT_KEY",
		"INTAKEBOT_DISPATCH_SHARDS",
		"INTAKEBOT_DISPATCH_QUEUE_SIZE",
		"INTAKEBOT_REFRESH_SCHEDULE",
		"INTAKEBOT_RESET_STATES_ON_START",
		"INTAKEBOT_TELEGRAM_TOKEN",
	} {
		t.Setenv(name, "")
	}

	cfg := FromEnv()
	if cfg.DataDir != "/data" {
		t.Fatalf("unexpected data dir %s", cfg.DataDir)
	}
	if cfg.DBPath != filepath.Join("/data", "intakebot.sqlite") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.StagingDir != filepath.Join("/data", "uploads") {
		t.Fatalf("unexpected staging dir %s", cfg.StagingDir)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("unexpected http addr %s", cfg.HTTPAddr)
	}
	if cfg.TelegramAPI != "https://api.telegram.org" || cfg.TelegramPoll != 25 {
		t.Fatalf("unexpected telegram defaults %s %d", cfg.TelegramAPI, cfg.TelegramPoll)
	}
	if cfg.JiraProjectKey != "MOP" || cfg.JiraEnabled() {
		t.Fatalf("unexpected jira defaults %+v", cfg)
	}
	if cfg.DispatchShards != 8 || cfg.DispatchQueueSize != 64 {
		t.Fatalf("unexpected dispatch defaults %d %d", cfg.DispatchShards, cfg.DispatchQueueSize)
	}
	if cfg.RefreshSchedule != "0 */6 * * *" {
		t.Fatalf("unexpected refresh schedule %s", cfg.RefreshSchedule)
	}
	if cfg.ResetStatesOnStart {
		t.Fatal("expected states to survive restarts by default")
	}
	if cfg.TelegramEnabled() {
		t.Fatal("expected telegram disabled without token")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("INTAKEBOT_DATA_DIR", "/srv/intake")
	t.Setenv("INTAKEBOT_HTTP_ADDR", "")
	t.Setenv("PORT", "8088")
	t.Setenv("INTAKEBOT_JIRA_URL", "https://example.atlassian.net")
	t.Setenv("INTAKEBOT_JIRA_EMAIL", "bot@example.com")
	t.Setenv("INTAKEBOT_JIRA_API_TOKEN", "secret")
	t.Setenv("INTAKEBOT_DISPATCH_SHARDS", "0")
	t.Setenv("INTAKEBOT_RESET_STATES_ON_START", "yes")
	t.Setenv("INTAKEBOT_TELEGRAM_TOKEN", " 123:abc ")

	cfg := FromEnv()
	if cfg.DBPath != filepath.Join("/srv/intake", "intakebot.sqlite") {
		t.Fatalf("expected db path under data dir, got %s", cfg.DBPath)
	}
	if cfg.HTTPAddr != ":8088" {
		t.Fatalf("expected PORT to set the http addr, got %s", cfg.HTTPAddr)
	}
	if !cfg.JiraEnabled() {
		t.Fatal("expected jira enabled")
	}
	if cfg.DispatchShards != 8 {
		t.Fatalf("expected invalid shard count to fall back, got %d", cfg.DispatchShards)
	}
	if !cfg.ResetStatesOnStart {
		t.Fatal("expected reset on start")
	}
	if cfg.TelegramToken != "123:abc" || !cfg.TelegramEnabled() {
		t.Fatalf("unexpected telegram token %q", cfg.TelegramToken)
	}
}
