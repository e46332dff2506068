package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// IANA time zone used to bucket orders into calendar days.
		TimeZone string `yaml:"time_zone" env:"TIME_ZONE" env-default:"UTC"`
		// Name of the group whose members may own orders.
		CustomerGroup string `yaml:"customer_group" env:"CUSTOMER_GROUP" env-default:"customers"`
		// Number of orders per page in list views.
		PageSize int `yaml:"page_size" env-default:"10"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		JWT        JWT        `yaml:"jwt"`
		Logger     Logger     `yaml:"logger"`
		RateLimit  RateLimit  `yaml:"rate_limit"`
		// Cost of the password to hash. Must be grater than 3.
		PasswordHashCost int `yaml:"password_hash_cost" env-default:"14"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"3"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"28"`
	}
	// Config for JWT session tokens.
	JWT struct {
		// JWT signing key.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY" env-required:"true"`
		// JWT expiration in hours.
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	}
	// Config for the Basic-auth API rate limiter.
	RateLimit struct {
		// One token is restored every interval.
		Interval time.Duration `yaml:"interval" env-default:"1s"`
		// Maximum burst per client.
		Burst int `yaml:"burst" env-default:"10"`
	}
)

// Resolved time zones by name.
var locations sync.Map

// Location returns the configured time zone, falling back to UTC.
// Each zone is loaded from the tz database once.
func (c *Config) Location() *time.Location {
	if loc, ok := locations.Load(c.TimeZone); ok {
		return loc.(*time.Location)
	}

	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	locations.Store(c.TimeZone, loc)

	return loc
}

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	var (
		configPath = flag.String("config", "./config/local.yml", "path to the config file")
		address    = flag.String("a", "", "server startup address")
		dsn        = flag.String("d", "", "server data source name")
	)
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Given flags take precedence.
	if *address != "" {
		cfg.HTTPServer.Address = *address
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}

	return cfg
}

// Load reads the configuration file and environment variables.
func Load(path string) (*Config, error) {
	// Check if file exists.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config

	// Load from YAML cfg file and environment variables.
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if cfg.JWT.SigningKey == "" {
		return nil, errors.New("jwt signing key is not set")
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}
	locations.Store(cfg.TimeZone, loc)

	return &cfg, nil
}
