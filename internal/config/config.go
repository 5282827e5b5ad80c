package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cooldown-chess/internal/board"
	"github.com/park285/cooldown-chess/internal/obslog"
)

type AppConfig struct {
	ListenAddr     string
	AllowedOrigins []string

	OutboxSize      int
	WSPingInterval  time.Duration
	ShutdownTimeout time.Duration
	Cooldowns       map[board.Kind]time.Duration
	MessagesDir     string

	RedisURL    string
	PresenceTTL time.Duration
	DatabaseURL string

	ResultWebhookURL   string
	ResultWebhookToken string
	RecordQueueSize    int

	Log obslog.Config
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":3000",
		OutboxSize:      32,
		WSPingInterval:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		PresenceTTL:     6 * time.Hour,
		RecordQueueSize: 256,
		Log:             obslog.DefaultConfig(),
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	} else if v := env("PORT"); v != "" {
		cfg.ListenAddr = ":" + strings.TrimPrefix(v, ":")
	}
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS"))

	if n, ok := positiveInt("OUTBOX_SIZE"); ok {
		cfg.OutboxSize = n
	}
	if n, ok := positiveInt("WS_PING_INTERVAL_SEC"); ok {
		cfg.WSPingInterval = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("SHUTDOWN_TIMEOUT_SEC"); ok {
		cfg.ShutdownTimeout = time.Duration(n) * time.Second
	}
	if v := env("COOLDOWN_MS"); v != "" {
		m, err := ParseCooldowns(v)
		if err != nil {
			return nil, fmt.Errorf("COOLDOWN_MS: %w", err)
		}
		cfg.Cooldowns = m
	}
	cfg.MessagesDir = env("MESSAGES_DIR")

	cfg.RedisURL = env("REDIS_URL")
	if n, ok := positiveInt("PRESENCE_TTL_SEC"); ok {
		cfg.PresenceTTL = time.Duration(n) * time.Second
	}
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.ResultWebhookURL = env("RESULT_WEBHOOK_URL")
	cfg.ResultWebhookToken = env("RESULT_WEBHOOK_TOKEN")
	if n, ok := positiveInt("RECORD_QUEUE_SIZE"); ok {
		cfg.RecordQueueSize = n
	}

	// 로그 설정
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if b, ok := boolean("LOG_TO_CONSOLE"); ok {
		cfg.Log.Console = b
	}
	if b, ok := boolean("LOG_TO_FILE"); ok {
		cfg.Log.File = b
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.Log.FilePath = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if b, ok := boolean("LOG_CALLER"); ok {
		cfg.Log.Caller = b
	}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, fmt.Errorf("LISTEN_ADDR is required")
	}
	return cfg, nil
}

// ParseCooldowns reads "P=2000,N=3000,K=4000" (milliseconds per piece letter).
func ParseCooldowns(s string) (map[board.Kind]time.Duration, error) {
	out := make(map[board.Kind]time.Duration)
	for _, part := range splitList(s) {
		letter, ms, ok := strings.Cut(part, "=")
		letter = strings.TrimSpace(letter)
		if !ok || len(letter) != 1 {
			return nil, fmt.Errorf("bad entry %q", part)
		}
		kind, ok := board.ParseKind(letter[0])
		if !ok {
			return nil, fmt.Errorf("unknown piece %q", letter)
		}
		n, err := strconv.Atoi(strings.TrimSpace(ms))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad duration in %q", part)
		}
		out[kind] = time.Duration(n) * time.Millisecond
	}
	return out, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func positiveInt(k string) (int, bool) {
	v := env(k)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func boolean(k string) (bool, bool) {
	v := env(k)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
