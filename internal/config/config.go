// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the client needs to run a session.
type Config struct {
	// Credentials for the voice channel. All three are required.
	APIKey    string
	SecretKey string
	ConfigID  string

	// ChatURL overrides the production chat endpoint.
	ChatURL string

	// Translation endpoint settings.
	TranslateURL     string
	TranslateTimeout time.Duration

	// Audio format for capture and playback.
	SampleRate int
	Channels   int

	// AllowUserInterrupt lets the microphone stay open while the
	// assistant is speaking. Off by default: barge-in produces feedback
	// loops on laptop speakers.
	AllowUserInterrupt bool

	// InputLanguage is the startup language preference: auto, english,
	// or arabic.
	InputLanguage string

	// PollInterval is how often the terminal renderer checks the
	// transcript for new entries.
	PollInterval time.Duration
}

// LoadFromEnv reads configuration, applying defaults for everything but
// the credentials. Missing credentials are reported together so a fresh
// setup fails once, not three times.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		APIKey:             strings.TrimSpace(os.Getenv("MARHABA_API_KEY")),
		SecretKey:          strings.TrimSpace(os.Getenv("MARHABA_SECRET_KEY")),
		ConfigID:           strings.TrimSpace(os.Getenv("MARHABA_CONFIG_ID")),
		ChatURL:            envOr("MARHABA_CHAT_URL", ""),
		TranslateURL:       envOr("MARHABA_TRANSLATE_URL", ""),
		TranslateTimeout:   envDurationOr("MARHABA_TRANSLATE_TIMEOUT", 10*time.Second),
		SampleRate:         envIntOr("MARHABA_SAMPLE_RATE", 24000),
		Channels:           envIntOr("MARHABA_CHANNELS", 1),
		AllowUserInterrupt: envBoolOr("MARHABA_ALLOW_INTERRUPT", false),
		InputLanguage:      envOr("MARHABA_INPUT_LANGUAGE", "auto"),
		PollInterval:       envDurationOr("MARHABA_POLL_INTERVAL", 200*time.Millisecond),
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, "MARHABA_API_KEY")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "MARHABA_SECRET_KEY")
	}
	if cfg.ConfigID == "" {
		missing = append(missing, "MARHABA_CONFIG_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}

	switch cfg.InputLanguage {
	case "auto", "english", "arabic":
	default:
		return Config{}, fmt.Errorf("MARHABA_INPUT_LANGUAGE must be one of auto|english|arabic")
	}

	if cfg.TranslateTimeout <= 0 {
		return Config{}, fmt.Errorf("MARHABA_TRANSLATE_TIMEOUT must be > 0")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("MARHABA_SAMPLE_RATE must be > 0")
	}
	if cfg.Channels <= 0 {
		return Config{}, fmt.Errorf("MARHABA_CHANNELS must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("MARHABA_POLL_INTERVAL must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
