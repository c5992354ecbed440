// Package config reads the server settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/quiz-match-backend/internal/matchdata"
	"github.com/DoyleJ11/quiz-match-backend/internal/registry"
	"github.com/DoyleJ11/quiz-match-backend/internal/ws"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	MatchAPIURL     string
	MatchAPITimeout time.Duration
	DatabaseURL     string

	EvictionGrace      time.Duration
	OperatorToken      string
	CORSAllowedOrigins []string

	WSWriteTimeout time.Duration
	WSIdleTimeout  time.Duration
	WSPingInterval time.Duration
	WSSendBuffer   int
}

// Load reads .env (if any) and then the process environment. Variables that
// are already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		MatchAPIURL:        getEnv("MATCH_API_URL", "http://localhost:3000/api"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		OperatorToken:      os.Getenv("OPERATOR_TOKEN"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	var err error
	if cfg.MatchAPITimeout, err = getDuration("MATCH_API_TIMEOUT", matchdata.DefaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.EvictionGrace, err = getDuration("ROOM_EVICTION_GRACE", registry.DefaultEvictionGrace); err != nil {
		return Config{}, err
	}
	if cfg.WSWriteTimeout, err = getDuration("WS_WRITE_TIMEOUT", ws.DefaultWriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WSIdleTimeout, err = getDuration("WS_IDLE_TIMEOUT", ws.DefaultIdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WSPingInterval, err = getDuration("WS_PING_INTERVAL", ws.DefaultPingInterval); err != nil {
		return Config{}, err
	}
	if cfg.WSSendBuffer, err = getInt("WS_SEND_BUFFER", ws.DefaultSendBuffer); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %s", key, d)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	return n, nil
}

// getList splits a comma separated value, dropping blanks.
func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
