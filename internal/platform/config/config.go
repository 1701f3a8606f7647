package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCommitTimeout     = 15 * time.Second
	DefaultGoalCommitTimeout = 8 * time.Second
	DefaultHistoryLimit      = 500
	DefaultTokenIssuer       = "habitsync"
)

type RemoteConfig struct {
	Addr        string        `yaml:"addr" env:"ADDR"`
	Token       string        `yaml:"token" env:"TOKEN"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

type LedgerConfig struct {
	ListenAddr  string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	DBPath      string `yaml:"db_path" env:"DB_PATH"`
	TokenSecret string `yaml:"token_secret" env:"TOKEN_SECRET"`
	TokenIssuer string `yaml:"token_issuer" env:"TOKEN_ISSUER"`
}

// Config is read from an optional YAML file and then overridden by
// HABITSYNC_* environment variables.
type Config struct {
	DataDir           string        `yaml:"data_dir" env:"DATA_DIR"`
	HistoryLimit      int           `yaml:"history_limit" env:"HISTORY_LIMIT"`
	CommitTimeout     time.Duration `yaml:"commit_timeout" env:"COMMIT_TIMEOUT"`
	GoalCommitTimeout time.Duration `yaml:"goal_commit_timeout" env:"GOAL_COMMIT_TIMEOUT"`
	DayBoundaryZone   string        `yaml:"day_boundary_zone" env:"DAY_BOUNDARY_ZONE"`
	LogLevel          string        `yaml:"log_level" env:"LOG_LEVEL"`
	OTelEndpoint      string        `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	Remote            RemoteConfig  `yaml:"remote" envPrefix:"REMOTE_"`
	Ledger            LedgerConfig  `yaml:"ledger" envPrefix:"LEDGER_"`
}

func defaults(dataDir string) Config {
	return Config{
		DataDir:           dataDir,
		HistoryLimit:      DefaultHistoryLimit,
		CommitTimeout:     DefaultCommitTimeout,
		GoalCommitTimeout: DefaultGoalCommitTimeout,
		LogLevel:          "info",
		Remote:            RemoteConfig{DialTimeout: 3 * time.Second},
		Ledger:            LedgerConfig{ListenAddr: "127.0.0.1:7420", TokenIssuer: DefaultTokenIssuer},
	}
}

// Load builds the configuration. path may be empty; a missing file is not
// an error. dataDir, when set, wins over both file and environment.
func Load(path, dataDir string) (Config, error) {
	cfg := defaults(".habitsync")
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config: %w", err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "HABITSYNC_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive")
	}
	if c.CommitTimeout <= 0 || c.GoalCommitTimeout <= 0 {
		return fmt.Errorf("commit timeouts must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the time zone used to decide calendar days for streaks.
// Empty means the device-local zone.
func (c Config) Location() (*time.Location, error) {
	if c.DayBoundaryZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DayBoundaryZone)
	if err != nil {
		return nil, fmt.Errorf("day_boundary_zone: %w", err)
	}
	return loc, nil
}

// Authenticated reports whether a durable remote identity is configured.
func (c Config) Authenticated() bool {
	return strings.TrimSpace(c.Remote.Addr) != "" && strings.TrimSpace(c.Remote.Token) != ""
}

func (c Config) GuestVaultPath() string {
	return filepath.Join(c.DataDir, "guest.json")
}

func (c Config) LedgerDBPath() string {
	if c.Ledger.DBPath != "" {
		return c.Ledger.DBPath
	}
	return filepath.Join(c.DataDir, "ledger.db")
}
