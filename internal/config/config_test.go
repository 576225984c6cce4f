package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"LICHESS_BASE_URL", "LICHESS_TOKEN", "LICHESS_TIMEOUT_SECONDS", "LICHESS_BATCH_CAP", "LICHESS_RATE_PER_MINUTE",
	"SLOW_THRESHOLD_MINUTES", "POLL_INTERVAL_SECONDS", "STORE_BACKEND", "DATA_DIR", "REDIS_URL", "DATABASE_URL",
	"NOTIFIER", "ALERT_ROOM", "DISCORD_TOKEN", "DISCORD_CHANNEL_ID", "SLOW_GAMES_THREAD_ID", "IRIS_BASE_URL",
	"IRIS_WS_URL", "IRIS_EGRESS", "BOT_PREFIX", "ALLOWED_ROOMS", "MESSAGES_DIR", "ENDGAME_TRAINER_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.SlowThresholdMinutes != 15 || cfg.PollInterval != 60*time.Second { t.Fatalf("threshold=%v interval=%v", cfg.SlowThresholdMinutes, cfg.PollInterval) }
	if cfg.LichessBaseURL != "https://lichess.org" || cfg.LichessBatchCap != 100 || cfg.StoreBackend != "file" || cfg.BotPrefix != "$" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SLOW_THRESHOLD_MINUTES", "30")
	t.Setenv("POLL_INTERVAL_SECONDS", "120")
	t.Setenv("LICHESS_BATCH_CAP", "500")
	t.Setenv("NOTIFIER", "iris, discord")
	t.Setenv("SLOW_GAMES_THREAD_ID", "999")
	t.Setenv("ALLOWED_ROOMS", "a, b,,c")
	cfg, err := Load()
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.SlowThresholdMinutes != 30 || cfg.PollInterval != 120*time.Second { t.Fatalf("overrides not applied: %+v", cfg) }
	if cfg.LichessBatchCap != 100 { t.Fatalf("batch cap not clamped: %d", cfg.LichessBatchCap) }
	if !cfg.UsesNotifier("discord") || cfg.DiscordChannelID != "999" { t.Fatalf("notifiers=%v channel=%q", cfg.Notifiers, cfg.DiscordChannelID) }
	if len(cfg.AllowedRooms) != 3 { t.Fatalf("rooms=%v", cfg.AllowedRooms) }
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"POLL_INTERVAL_SECONDS":  "soon",
		"SLOW_THRESHOLD_MINUTES": "-1",
		"STORE_BACKEND":          "sqlite",
		"NOTIFIER":               "pager",
		"IRIS_EGRESS":            "smoke",
	}
	for k, v := range cases {
		clearEnv(t)
		t.Setenv(k, v)
		if _, err := Load(); err == nil { t.Fatalf("%s=%s should fail", k, v) }
	}
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "redis")
	if _, err := Load(); err == nil { t.Fatalf("redis backend without REDIS_URL should fail") }
}

func TestValidateBot(t *testing.T) {
	clearEnv(t)
	cfg, _ := Load()
	if err := cfg.ValidateBot(); err == nil { t.Fatalf("missing IRIS_BASE_URL accepted") }
	cfg.IrisBaseURL, cfg.IrisWSURL = "http://iris", "ws://iris/ws"
	if err := cfg.ValidateBot(); err == nil { t.Fatalf("missing ALERT_ROOM accepted") }
	cfg.AlertRoom = "chess"
	if err := cfg.ValidateBot(); err != nil { t.Fatalf("ValidateBot: %v", err) }
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ALERT_ROOM=from-file\nBOT_PREFIX=!\n"), 0o644); err != nil { t.Fatalf("write: %v", err) }
	t.Setenv("BOT_PREFIX", "?")
	// t.Setenv("X","") counts as set, so drop ALERT_ROOM for godotenv to fill it.
	os.Unsetenv("ALERT_ROOM")
	if err := LoadDotEnv(path); err != nil { t.Fatalf("LoadDotEnv: %v", err) }
	if os.Getenv("ALERT_ROOM") != "from-file" { t.Fatalf("ALERT_ROOM=%q", os.Getenv("ALERT_ROOM")) }
	if os.Getenv("BOT_PREFIX") != "?" { t.Fatalf("existing env overridden: %q", os.Getenv("BOT_PREFIX")) }
	os.Unsetenv("ALERT_ROOM")
}
