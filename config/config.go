// Package config loads runtime settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"library-lending/library"
)

// DefaultEnvFile is read when present; it never overrides variables that are
// already set.
const DefaultEnvFile = ".env.local"

const (
	envLogLevel     = "LIBRARY_LOG_LEVEL"
	envLogFormat    = "LIBRARY_LOG_FORMAT"
	envPasswordCost = "LIBRARY_PASSWORD_COST"
	envMaxBorrows   = "LIBRARY_MAX_BORROWS"
	envGraceDays    = "LIBRARY_GRACE_DAYS"
	envFinePerDay   = "LIBRARY_FINE_PER_DAY"
)

type Config struct {
	LogLevel     slog.Level
	LogFormat    string
	PasswordCost int
	Policy       library.Policy
}

// Default keeps the menu quiet (warnings only) and uses the default policy.
func Default() Config {
	return Config{
		LogLevel:     slog.LevelWarn,
		LogFormat:    "text",
		PasswordCost: bcrypt.DefaultCost,
		Policy:       library.DefaultPolicy(),
	}
}

// Load reads the given env files (missing files are skipped) and then builds
// the config from the environment.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv applies LIBRARY_* variables on top of Default.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := getEnv(envLogLevel); v != "" {
		if err := cfg.SetLogLevel(v); err != nil {
			return Config{}, err
		}
	}
	if v := getEnv(envLogFormat); v != "" {
		if err := cfg.SetLogFormat(v); err != nil {
			return Config{}, err
		}
	}

	var err error
	if cfg.PasswordCost, err = intEnv(envPasswordCost, cfg.PasswordCost, bcrypt.MinCost); err != nil {
		return Config{}, err
	}
	if cfg.PasswordCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("%s: must be at most %d", envPasswordCost, bcrypt.MaxCost)
	}
	if cfg.Policy.MaxActiveBorrows, err = intEnv(envMaxBorrows, cfg.Policy.MaxActiveBorrows, 1); err != nil {
		return Config{}, err
	}
	if cfg.Policy.GracePeriodDays, err = intEnv(envGraceDays, cfg.Policy.GracePeriodDays, 0); err != nil {
		return Config{}, err
	}
	if cfg.Policy.FinePerDay, err = intEnv(envFinePerDay, cfg.Policy.FinePerDay, 1); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) SetLogLevel(v string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return fmt.Errorf("log level %q: %w", v, err)
	}
	c.LogLevel = lvl
	return nil
}

func (c *Config) SetLogFormat(v string) error {
	switch f := strings.ToLower(strings.TrimSpace(v)); f {
	case "text", "json":
		c.LogFormat = f
		return nil
	default:
		return fmt.Errorf("log format %q: want text or json", v)
	}
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intEnv(key string, def, min int) (int, error) {
	v := getEnv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < min {
		return 0, fmt.Errorf("%s: must be at least %d, got %d", key, min, n)
	}
	return n, nil
}
