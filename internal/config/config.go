package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	NotesFile  string `yaml:"notes_file"`
	NotesWatch bool   `yaml:"notes_watch"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`

	DBDriver    string `yaml:"db_driver"`
	DatabaseURL string `yaml:"database_url"`
	DBMigrate   bool   `yaml:"db_migrate"`

	MaxOpenConns    int           `yaml:"db_max_open"`
	MaxIdleConns    int           `yaml:"db_max_idle"`
	ConnMaxLifetime time.Duration `yaml:"db_conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"db_conn_max_idle_time"`
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":3001",
		LogLevel:        "info",
		NotesFile:       "notes.json",
		JWTTTL:          24 * time.Hour,
		DBDriver:        "sqlite",
		DatabaseURL:     "directory.db",
		DBMigrate:       true,
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Load starts from defaults, applies the YAML file named by NOTES_CONFIG
// if set, then environment variables. Unparseable env values are ignored.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("NOTES_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.NotesFile = getenv("NOTES_FILE", cfg.NotesFile)
	cfg.NotesWatch = getenvBool("NOTES_WATCH", cfg.NotesWatch)
	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTTTL = getenvDuration("JWT_TTL", cfg.JWTTTL)
	cfg.DBDriver = getenv("DB_DRIVER", cfg.DBDriver)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMigrate = getenvBool("DB_MIGRATE", cfg.DBMigrate)
	cfg.MaxOpenConns = getenvInt("DB_MAX_OPEN", cfg.MaxOpenConns)
	cfg.MaxIdleConns = getenvInt("DB_MAX_IDLE", cfg.MaxIdleConns)
	cfg.ConnMaxLifetime = getenvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)
	cfg.ConnMaxIdleTime = getenvDuration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime)
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "pgx" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.NotesFile == "" {
		errs = append(errs, errors.New("NOTES_FILE is required"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
