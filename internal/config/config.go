// Package config loads service settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdroute/internal/opt"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	// SQLitePath selects the SQLite store when DatabaseURL is empty.
	SQLitePath         string        `yaml:"sqlitePath"`
	RedisURL           string        `yaml:"redisUrl"`
	RateRPS            float64       `yaml:"rateRps"`
	RateBurst          int           `yaml:"rateBurst"`
	AuthMode           string        `yaml:"authMode"`
	AuthHMACSecret     string        `yaml:"authHmacSecret"`
	WebhookMaxAttempts int           `yaml:"webhookMaxAttempts"`
	LogLevel           string        `yaml:"logLevel"`
	SolveTimeout       time.Duration `yaml:"solveTimeout"`
	Solver             opt.Config    `yaml:"solver"`
}

func Default() Config {
	return Config{
		Port:               "8080",
		RateRPS:            5,
		RateBurst:          10,
		AuthMode:           "dev",
		WebhookMaxAttempts: 10,
		LogLevel:           "info",
		SolveTimeout:       2 * time.Minute,
		Solver:             opt.DefaultConfig(),
	}
}

// Load layers defaults, the YAML file at path (skipped when empty) and
// environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Solver.Validate(); err != nil {
		return cfg, fmt.Errorf("config: solver: %w", err)
	}
	if cfg.RateRPS <= 0 || cfg.RateBurst <= 0 {
		return cfg, fmt.Errorf("config: rate limit must be positive")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PORT":             &cfg.Port,
		"DATABASE_URL":     &cfg.DatabaseURL,
		"SQLITE_PATH":      &cfg.SQLitePath,
		"REDIS_URL":        &cfg.RedisURL,
		"AUTH_MODE":        &cfg.AuthMode,
		"AUTH_HMAC_SECRET": &cfg.AuthHMACSecret,
		"LOG_LEVEL":        &cfg.LogLevel,
	}
	for k, p := range str {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			*p = v
		}
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		cfg.RateRPS = f
	}
	ints := map[string]*int{
		"RATE_BURST":           &cfg.RateBurst,
		"WEBHOOK_MAX_ATTEMPTS": &cfg.WebhookMaxAttempts,
	}
	for k, p := range ints {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", k, err)
			}
			*p = n
		}
	}
	if v := os.Getenv("SOLVE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SOLVE_TIMEOUT: %w", err)
		}
		cfg.SolveTimeout = d
	}
	return nil
}
