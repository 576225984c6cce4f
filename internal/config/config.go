package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	LichessBaseURL    string
	LichessToken      string
	LichessTimeout    time.Duration
	LichessBatchCap   int
	LichessRatePerMin int

	SlowThresholdMinutes float64
	PollInterval         time.Duration

	StoreBackend string
	DataDir      string
	RedisURL     string
	DatabaseURL  string

	Notifiers        []string
	AlertRoom        string
	DiscordToken     string
	DiscordChannelID string

	IrisBaseURL string
	IrisWSURL   string
	IrisEgress  string

	BotPrefix    string
	AllowedRooms []string

	XUserID    string
	XUserEmail string
	XSessionID string

	MessagesDir       string
	EndgameTrainerURL string
}

const (
	defaultLichessURL = "https://lichess.org"
	defaultTrainerURL = "https://chess-endgame-trainer.mooo.com"
)

// LoadDotEnv reads .env (or the given files) into the process env without
// overriding variables that are already set. A missing default .env is fine.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads the process environment. Transport specific keys are validated by
// Validate once the caller knows which surfaces it needs.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		LichessBaseURL:       defaultLichessURL,
		LichessTimeout:       10 * time.Second,
		LichessBatchCap:      100,
		LichessRatePerMin:    60,
		SlowThresholdMinutes: 15,
		PollInterval:         60 * time.Second,
		StoreBackend:         "file",
		DataDir:              "data",
		Notifiers:            []string{"iris"},
		IrisEgress:           "http",
		BotPrefix:            "$",
		EndgameTrainerURL:    defaultTrainerURL,
	}

	if v := env("LICHESS_BASE_URL"); v != "" {
		cfg.LichessBaseURL = strings.TrimRight(v, "/")
	}
	cfg.LichessToken = env("LICHESS_TOKEN")

	var err error
	if cfg.LichessTimeout, err = seconds("LICHESS_TIMEOUT_SECONDS", cfg.LichessTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = seconds("POLL_INTERVAL_SECONDS", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.LichessBatchCap, err = positiveInt("LICHESS_BATCH_CAP", cfg.LichessBatchCap); err != nil {
		return nil, err
	}
	if cfg.LichessBatchCap > 100 {
		cfg.LichessBatchCap = 100
	}
	if v := env("LICHESS_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("LICHESS_RATE_PER_MINUTE: invalid value %q", v)
		}
		cfg.LichessRatePerMin = n
	}
	if v := env("SLOW_THRESHOLD_MINUTES"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("SLOW_THRESHOLD_MINUTES: invalid value %q", v)
		}
		cfg.SlowThresholdMinutes = f
	}

	if v := env("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	if v := env("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := env("NOTIFIER"); v != "" {
		cfg.Notifiers = splitList(strings.ToLower(v))
	}
	cfg.AlertRoom = env("ALERT_ROOM")
	cfg.DiscordToken = env("DISCORD_TOKEN")
	cfg.DiscordChannelID = env("DISCORD_CHANNEL_ID")
	if cfg.DiscordChannelID == "" {
		cfg.DiscordChannelID = env("SLOW_GAMES_THREAD_ID")
	}

	cfg.IrisBaseURL = env("IRIS_BASE_URL")
	cfg.IrisWSURL = env("IRIS_WS_URL")
	if v := env("IRIS_EGRESS"); v != "" {
		cfg.IrisEgress = strings.ToLower(v)
	}

	if v := env("BOT_PREFIX"); v != "" {
		cfg.BotPrefix = v
	}
	cfg.AllowedRooms = splitList(env("ALLOWED_ROOMS"))

	cfg.XUserID = env("X_USER_ID")
	cfg.XUserEmail = env("X_USER_EMAIL")
	cfg.XSessionID = env("X_SESSION_ID")

	cfg.MessagesDir = env("MESSAGES_DIR")
	if v := env("ENDGAME_TRAINER_URL"); v != "" {
		cfg.EndgameTrainerURL = strings.TrimRight(v, "/")
	}

	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validateCommon() error {
	switch c.StoreBackend {
	case "file", "memory":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for STORE_BACKEND=redis")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	switch c.IrisEgress {
	case "http", "ws", "auto":
	default:
		return fmt.Errorf("IRIS_EGRESS: unknown mode %q", c.IrisEgress)
	}
	for _, n := range c.Notifiers {
		switch n {
		case "iris", "discord", "log":
		default:
			return fmt.Errorf("NOTIFIER: unknown notifier %q", n)
		}
	}
	return nil
}

// UsesNotifier reports whether name is among the configured notifiers.
func (c *AppConfig) UsesNotifier(name string) bool {
	for _, n := range c.Notifiers {
		if n == name {
			return true
		}
	}
	return false
}

// ValidateBot checks the keys needed to run the chat bot and the alert targets.
func (c *AppConfig) ValidateBot() error {
	if c.IrisBaseURL == "" {
		return errors.New("IRIS_BASE_URL is required")
	}
	if c.IrisWSURL == "" {
		return errors.New("IRIS_WS_URL is required")
	}
	if c.BotPrefix == "" {
		return errors.New("BOT_PREFIX is required")
	}
	return c.ValidateAlerts()
}

func (c *AppConfig) ValidateAlerts() error {
	if c.UsesNotifier("iris") && c.AlertRoom == "" {
		return errors.New("ALERT_ROOM is required for NOTIFIER=iris")
	}
	if c.UsesNotifier("discord") {
		if c.DiscordToken == "" {
			return errors.New("DISCORD_TOKEN is required for NOTIFIER=discord")
		}
		if c.DiscordChannelID == "" {
			return errors.New("DISCORD_CHANNEL_ID is required for NOTIFIER=discord")
		}
	}
	return nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func seconds(key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid seconds %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}

func positiveInt(key string, def int) (int, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return n, nil
}
