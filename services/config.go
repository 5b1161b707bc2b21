package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coxswain-cd/coxswain/logging"
)

const databaseFileName = "coxswain.db"

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default data directory following the XDG
// Base Directory specification.
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

func getDefaultDataDirWithEnv(env EnvProvider) string {
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "coxswain")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "coxswain")
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string
	DatabasePath string

	// Logging
	LogLevel     string
	ColorEnabled bool

	// HTTP server
	HTTPHost string
	HTTPPort int

	// Event ingestion
	PollInterval  time.Duration
	MaxPollEvents int

	// Demo/testing: register the built-in mock provider under this cloud id
	MockCloudID string

	env EnvProvider
}

// configFile is the YAML shape of an optional config file in the data
// directory.
type configFile struct {
	LogLevel      string `yaml:"log_level"`
	ColorEnabled  *bool  `yaml:"color_enabled"`
	HTTPHost      string `yaml:"http_host"`
	HTTPPort      int    `yaml:"http_port"`
	PollInterval  string `yaml:"poll_interval"`
	MaxPollEvents int    `yaml:"max_poll_events"`
	MockCloudID   string `yaml:"mock_cloud_id"`
}

// NewConfig creates a configuration from defaults, an optional
// config.yaml in the data directory, and environment variable overrides.
// A non-empty dataDir (CLI flag) wins over everything.
func NewConfig(dataDir string) (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, dataDir)
}

// NewConfigWithEnv creates a configuration with a custom environment
// provider (for testing).
func NewConfigWithEnv(env EnvProvider, dataDir string) (*Config, error) {
	return newConfigWithEnv(env, dataDir)
}

func newConfigWithEnv(env EnvProvider, cliDataDir string) (*Config, error) {
	c := &Config{env: env}

	c.setDefaults()

	if cliDataDir != "" {
		c.DataDir = cliDataDir
	} else if dir := env.Getenv("COXSWAIN_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}

	if err := c.loadFromFile(); err != nil {
		return nil, err
	}
	c.loadFromEnv()
	c.derivePaths()

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.HTTPHost = "127.0.0.1"
	c.HTTPPort = 4242
	c.PollInterval = 5 * time.Second
	c.MaxPollEvents = 500
}

func (c *Config) loadFromFile() error {
	path := filepath.Join(c.DataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.ColorEnabled != nil {
		c.ColorEnabled = *file.ColorEnabled
	}
	if file.HTTPHost != "" {
		c.HTTPHost = file.HTTPHost
	}
	if file.HTTPPort != 0 {
		c.HTTPPort = file.HTTPPort
	}
	if file.PollInterval != "" {
		interval, err := time.ParseDuration(file.PollInterval)
		if err != nil {
			return fmt.Errorf("parsing poll_interval in %s: %w", path, err)
		}
		c.PollInterval = interval
	}
	if file.MaxPollEvents != 0 {
		c.MaxPollEvents = file.MaxPollEvents
	}
	if file.MockCloudID != "" {
		c.MockCloudID = file.MockCloudID
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if level := c.env.Getenv("COXSWAIN_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if host := c.env.Getenv("COXSWAIN_HTTP_HOST"); host != "" {
		c.HTTPHost = host
	}
	if port := c.env.Getenv("COXSWAIN_HTTP_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			c.HTTPPort = parsed
		}
	}
	if interval := c.env.Getenv("COXSWAIN_POLL_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil {
			c.PollInterval = parsed
		}
	}
	if noColor := c.env.Getenv("NO_COLOR"); noColor != "" {
		c.ColorEnabled = false
	}
	if mockCloud := c.env.Getenv("COXSWAIN_MOCK_CLOUD_ID"); mockCloud != "" {
		c.MockCloudID = mockCloud
	}
}

func (c *Config) derivePaths() {
	c.DatabasePath = filepath.Join(c.DataDir, databaseFileName)
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is not set")
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxPollEvents <= 0 {
		return fmt.Errorf("max poll events must be positive, got %d", c.MaxPollEvents)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	for _, valid := range logging.ValidLogLevels() {
		if level == valid {
			return true
		}
	}
	return false
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}
