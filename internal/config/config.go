package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Identity   IdentityConfig   `toml:"identity"`
	Categories CategoriesConfig `toml:"categories"`
	TaskFields TaskFieldsConfig `toml:"task_fields"`
	Logging    LoggingConfig    `toml:"logging"`
}

type DatabaseConfig struct {
	Driver Driver `toml:"driver"`
	// Path is the sqlite database file, used when driver = "sqlite".
	Path string `toml:"path"`
	// DSN is the lib/pq connection string, used when driver = "postgres".
	DSN string `toml:"dsn"`
}

type IdentityConfig struct {
	// Mode is "local" for the single-user offline identity or "oauth" for
	// a browser sign-in against a hosted provider.
	Mode         string   `toml:"mode"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
	UserInfoURL  string   `toml:"user_info_url"`
	Scopes       []string `toml:"scopes"`
	RedirectPort string   `toml:"redirect_port"`
}

type CategoriesConfig struct {
	// SeedDefaults creates the starter categories on first run.
	SeedDefaults bool `toml:"seed_defaults"`
}

type TaskFieldsConfig struct {
	ShowPriority    bool `toml:"show_priority"`
	ShowDueDate     bool `toml:"show_due_date"`
	ShowTimeRange   bool `toml:"show_time_range"`
	ShowDescription bool `toml:"show_description"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	// DevFile mirrors logs to a file, useful while the TUI owns the
	// terminal.
	DevFile string `toml:"dev_file"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Identity: IdentityConfig{
			Mode:         "local",
			RedirectPort: "6789",
		},
		Categories: CategoriesConfig{
			SeedDefaults: true,
		},
		TaskFields: TaskFieldsConfig{
			ShowPriority:    true,
			ShowDueDate:     true,
			ShowTimeRange:   false,
			ShowDescription: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	switch strings.TrimSpace(strings.ToLower(c.Identity.Mode)) {
	case "", "local":
	case "oauth":
		if strings.TrimSpace(c.Identity.ClientID) == "" {
			return errors.New("identity.client_id is required for oauth mode")
		}
		if strings.TrimSpace(c.Identity.AuthURL) == "" || strings.TrimSpace(c.Identity.TokenURL) == "" {
			return errors.New("identity.auth_url and identity.token_url are required for oauth mode")
		}
		if strings.TrimSpace(c.Identity.UserInfoURL) == "" {
			return errors.New("identity.user_info_url is required for oauth mode")
		}
	default:
		return fmt.Errorf("invalid identity.mode: %q", c.Identity.Mode)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
