package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// --- Config ---

type Config struct {
	ListenAddr    string          `json:"listenAddr,omitempty"`    // default ":7820"
	Timezone      string          `json:"timezone,omitempty"`      // IANA name; default local zone
	Store         string          `json:"store,omitempty"`         // "memory" or "postgres"
	SnoozeMinutes []int           `json:"snoozeMinutes,omitempty"` // reminder button presets
	Telegram      TelegramConfig  `json:"telegram,omitempty"`
	Ollama        OllamaConfig    `json:"ollama,omitempty"`
	Scheduler     SchedulerConfig `json:"scheduler,omitempty"`
	Logging       LoggingConfig   `json:"logging,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"` // TELEGRAM_BOT_TOKEN overrides; empty disables the bot
}

type OllamaConfig struct {
	BaseURL string `json:"baseUrl,omitempty"` // default "http://127.0.0.1:11434"
	Model   string `json:"model,omitempty"`   // default "mistral:latest"
	Timeout string `json:"timeout,omitempty"` // default "60s"
}

type SchedulerConfig struct {
	MisfireGrace   string `json:"misfireGrace,omitempty"`   // default "60s"
	DeliverTimeout string `json:"deliverTimeout,omitempty"` // default "10s"
}

type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
	File   string `json:"file,omitempty"`   // empty = stderr only
}

// --- Defaults ---

func (c *Config) listenAddrOrDefault() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return ":7820"
}

func (c *Config) storeOrDefault() string {
	if c.Store != "" {
		return c.Store
	}
	return "memory"
}

func (c *Config) snoozeMinutesOrDefault() []int {
	if len(c.SnoozeMinutes) > 0 {
		return c.SnoozeMinutes
	}
	return []int{10, 30}
}

// referenceZone resolves the fixed local zone all user-facing times are
// interpreted in. Resolved once at startup; a bad name falls back to the
// system zone with a warning rather than failing the boot.
func (c *Config) referenceZone() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	zone, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logWarn("invalid timezone in config, using system zone", "timezone", c.Timezone, "error", err)
		return time.Local
	}
	return zone
}

func (tc TelegramConfig) tokenOrEnv() string {
	if env := os.Getenv("TELEGRAM_BOT_TOKEN"); env != "" {
		return env
	}
	return tc.Token
}

func (oc OllamaConfig) baseURLOrDefault() string {
	if env := os.Getenv("OLLAMA_HOST"); env != "" {
		return env
	}
	if oc.BaseURL != "" {
		return oc.BaseURL
	}
	return "http://127.0.0.1:11434"
}

func (oc OllamaConfig) modelOrDefault() string {
	if oc.Model != "" {
		return oc.Model
	}
	return "mistral:latest"
}

func (oc OllamaConfig) timeoutOrDefault() time.Duration {
	return durationOrDefault(oc.Timeout, 60*time.Second)
}

func (sc SchedulerConfig) misfireGraceOrDefault() time.Duration {
	return durationOrDefault(sc.MisfireGrace, 60*time.Second)
}

func (sc SchedulerConfig) deliverTimeoutOrDefault() time.Duration {
	return durationOrDefault(sc.DeliverTimeout, 10*time.Second)
}

func (lc LoggingConfig) levelOrDefault() string {
	if lc.Level != "" {
		return lc.Level
	}
	return "info"
}

func (lc LoggingConfig) formatOrDefault() string {
	if lc.Format != "" {
		return lc.Format
	}
	return "text"
}

func durationOrDefault(s string, def time.Duration) time.Duration {
	if s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// loadConfig reads the JSON config file. A missing file yields defaults; a
// malformed file is a startup error.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
