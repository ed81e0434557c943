package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// Database: a SQLite file path or a postgres:// URL
	DBURL string

	// Session, persisted in the user config file
	CurrentUserName string

	// File paths
	ConfigPath   string
	FeedsCSVPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Processing settings
	WorkerCount    int
	Interval       time.Duration
	RequestTimeout time.Duration
	CycleTimeout   time.Duration

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults,
// overridden by environment variables where set.
func DefaultConfig() *Config {
	interval, _ := time.ParseDuration(DefaultInterval)
	requestTimeout, _ := time.ParseDuration(DefaultRequestTimeout)
	cycleTimeout, _ := time.ParseDuration(DefaultCycleTimeout)
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBURL:          GetEnvString("GATOR_DB_URL", DefaultDBURL),
		FeedsCSVPath:   DefaultFeedsCSVPath,
		ServerHost:     GetEnvString("GATOR_HOST", DefaultServerHost),
		ServerPort:     GetEnvInt("GATOR_PORT", DefaultServerPort),
		APIKey:         GetEnvString("GATOR_API_KEY", ""),
		WorkerCount:    GetEnvInt("GATOR_WORKER_COUNT", DefaultWorkerCount),
		Interval:       GetEnvDuration("GATOR_INTERVAL", interval),
		RequestTimeout: GetEnvDuration("GATOR_REQUEST_TIMEOUT", requestTimeout),
		CycleTimeout:   GetEnvDuration("GATOR_CYCLE_TIMEOUT", cycleTimeout),
		LogLevel:       GetEnvLogLevel("GATOR_LOG_LEVEL", logLevel),
	}
}

// Load reads .env (if any), applies defaults and merges the user config file.
// A missing config file is not an error; it is created on the first write.
func Load(configPath string) (*Config, error) {
	LoadDotEnv()

	cfg := DefaultConfig()
	if configPath == "" {
		path, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = path
	}
	cfg.ConfigPath = configPath

	file, err := ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if file != nil {
		if file.DBURL != "" {
			cfg.DBURL = file.DBURL
		}
		cfg.CurrentUserName = file.CurrentUserName
	}

	return cfg, nil
}

// SetUser records name as the current user in the config file. Only
// current_user_name changes; db_url keeps whatever the file already holds.
func (c *Config) SetUser(name string) error {
	file, err := ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	if file == nil {
		file = &File{}
	}
	file.CurrentUserName = name
	if err := WriteFile(c.ConfigPath, file); err != nil {
		return err
	}
	c.CurrentUserName = name
	return nil
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
