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
	"gopkg.in/yaml.v3"
)

// Load builds the configuration. path may be empty, in which case only
// defaults, the .env file and environment variables are used. A path that
// does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from the environment variables shared with the
// web application.
func applyEnv(cfg *Config) error {
	setString("ENARGAS_URL", &cfg.Portal.URL)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("DATABASE_URL", &cfg.Database.URL)
	setString("SECRET_KEY", &cfg.Security.SecretKey)
	setString("ENCRYPTION_KEY", &cfg.Security.EncryptionKey)
	setString("RPA_DEBUG_DIR", &cfg.Debug.Dir)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("LOG_FILE", &cfg.Logging.File)

	if err := setBool("RPA_HEADLESS", &cfg.Browser.Headless); err != nil {
		return err
	}
	if err := setBool("RPA_DEBUG", &cfg.Debug.Enabled); err != nil {
		return err
	}
	if err := setInt("RPA_IDLE_SECONDS", &cfg.Browser.IdleSeconds); err != nil {
		return err
	}
	if err := setInt("RPA_COOLDOWN_SECONDS", &cfg.Browser.CooldownSeconds); err != nil {
		return err
	}
	if err := setDuration("RPA_LOGIN_TIMEOUT", &cfg.Portal.LoginTimeout); err != nil {
		return err
	}
	return setDuration("RPA_RESULT_TIMEOUT", &cfg.Portal.ResultTimeout)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setBool(key string, dst *bool) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean for %s: %q", key, v)
	}
	return nil
}

func setInt(key string, dst *int) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	*dst = n
	return nil
}

// setDuration accepts Go durations ("10s") or bare seconds ("10").
func setDuration(key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
