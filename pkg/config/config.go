package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gramops/pkg/models"
)

// Config holds all configuration options for the operation engine.
type Config struct {
	// Accounts configured inline; usually loaded from AccountsFile instead
	Accounts []models.Account `yaml:"accounts" json:"accounts"`

	// AccountsFile is a YAML file holding the account list
	AccountsFile string `yaml:"accounts_file" json:"accounts_file"`

	// Engine behavior
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Per-account daily quotas
	Quotas QuotaConfig `yaml:"quotas" json:"quotas"`

	// Persistence settings
	Store StoreConfig `yaml:"store" json:"store"`

	// Result export settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// EngineConfig holds executor behavior settings.
type EngineConfig struct {
	// CheckpointInterval is how many completed items between persisted
	// checkpoints; a crash loses at most this many items of progress
	CheckpointInterval int `yaml:"checkpoint_interval" json:"checkpoint_interval"`
	// MaxRetries is the transient-error budget before an operation fails
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// MaxFloodWait is the longest server-imposed wait the executor will sit
	// out on one account before switching to another
	MaxFloodWait time.Duration `yaml:"max_flood_wait" json:"max_flood_wait"`
	// NoAccountWait is the pause between retries when no account is eligible
	NoAccountWait time.Duration `yaml:"no_account_wait" json:"no_account_wait"`
	// NoAccountRetries bounds those retries before the operation stalls out
	NoAccountRetries int `yaml:"no_account_retries" json:"no_account_retries"`
	// CallTimeout is applied to every remote call in case the adapter hangs
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`
}

// RateLimitConfig selects and tunes the delay profile.
type RateLimitConfig struct {
	// Profile is the default named profile: stealth, normal, aggressive, fast
	Profile string `yaml:"profile" json:"profile"`
	// FloodWaitBuffer is added on top of server-mandated waits
	FloodWaitBuffer time.Duration `yaml:"flood_wait_buffer" json:"flood_wait_buffer"`
}

// QuotaConfig holds per-kind daily request limits per account.
type QuotaConfig struct {
	ScrapePerDay  int `yaml:"scrape_per_day" json:"scrape_per_day"`
	InvitePerDay  int `yaml:"invite_per_day" json:"invite_per_day"`
	MessagePerDay int `yaml:"message_per_day" json:"message_per_day"`
}

// ForKind returns the daily limit for an operation kind. Zero means unlimited.
func (q QuotaConfig) ForKind(kind models.OperationKind) int {
	switch kind {
	case models.KindScrape:
		return q.ScrapePerDay
	case models.KindInvite:
		return q.InvitePerDay
	case models.KindMessage:
		return q.MessagePerDay
	default:
		return 0
	}
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path to the SQLite database file
	Path string `yaml:"path" json:"path"`
}

// OutputConfig holds result export settings.
type OutputConfig struct {
	// Directory where scraped member files are written
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			CheckpointInterval: 5,
			MaxRetries:         5,
			MaxFloodWait:       10 * time.Minute,
			NoAccountWait:      30 * time.Second,
			NoAccountRetries:   10,
			CallTimeout:        2 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Profile:         "normal",
			FloodWaitBuffer: 5 * time.Second,
		},
		Quotas: QuotaConfig{
			ScrapePerDay:  200,
			InvitePerDay:  50,
			MessagePerDay: 40,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Output: OutputConfig{
			Directory: "./results",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gramops.db"
	}
	return filepath.Join(home, ".gramops", "gramops.db")
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if accountsFile := os.Getenv("GRAMOPS_ACCOUNTS_FILE"); accountsFile != "" {
		c.AccountsFile = accountsFile
	}
	if profile := os.Getenv("GRAMOPS_PROFILE"); profile != "" {
		c.RateLimit.Profile = profile
	}
	if dbPath := os.Getenv("GRAMOPS_DB_PATH"); dbPath != "" {
		c.Store.Path = dbPath
	}
	if outputDir := os.Getenv("GRAMOPS_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if logLevel := os.Getenv("GRAMOPS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if interval := os.Getenv("GRAMOPS_CHECKPOINT_INTERVAL"); interval != "" {
		if val, err := strconv.Atoi(interval); err == nil && val > 0 {
			c.Engine.CheckpointInterval = val
		}
	}
	if invites := os.Getenv("GRAMOPS_INVITES_PER_DAY"); invites != "" {
		if val, err := strconv.Atoi(invites); err == nil && val >= 0 {
			c.Quotas.InvitePerDay = val
		}
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".gramops.yaml",
		".gramops.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "gramops", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "gramops", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".gramops.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadAccounts resolves the final account list: inline accounts plus the
// contents of AccountsFile, if set.
func (c *Config) LoadAccounts() ([]models.Account, error) {
	accounts := make([]models.Account, len(c.Accounts))
	copy(accounts, c.Accounts)

	if c.AccountsFile != "" {
		data, err := os.ReadFile(c.AccountsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read accounts file: %w", err)
		}

		var fileAccounts struct {
			Accounts []models.Account `yaml:"accounts"`
		}
		if err := yaml.Unmarshal(data, &fileAccounts); err != nil {
			return nil, fmt.Errorf("failed to parse accounts file: %w", err)
		}
		accounts = append(accounts, fileAccounts.Accounts...)
	}

	seen := make(map[string]bool)
	for i := range accounts {
		if accounts[i].Name == "" {
			return nil, fmt.Errorf("account %d has no name", i)
		}
		if seen[accounts[i].Name] {
			return nil, fmt.Errorf("duplicate account name: %s", accounts[i].Name)
		}
		seen[accounts[i].Name] = true
	}

	return accounts, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.CheckpointInterval <= 0 {
		errs = append(errs, errors.New("checkpoint interval must be positive"))
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Engine.MaxFloodWait <= 0 {
		errs = append(errs, errors.New("max flood wait must be positive"))
	}
	if c.Engine.NoAccountWait <= 0 {
		errs = append(errs, errors.New("no-account wait must be positive"))
	}
	if c.Engine.NoAccountRetries <= 0 {
		errs = append(errs, errors.New("no-account retries must be positive"))
	}
	if c.Engine.CallTimeout <= 0 {
		errs = append(errs, errors.New("call timeout must be positive"))
	}

	// Profiles are validated here, at load time, not at each call site
	if _, err := ProfileByName(c.RateLimit.Profile); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit.FloodWaitBuffer < 0 {
		errs = append(errs, errors.New("flood wait buffer cannot be negative"))
	}

	if c.Quotas.ScrapePerDay < 0 || c.Quotas.InvitePerDay < 0 || c.Quotas.MessagePerDay < 0 {
		errs = append(errs, errors.New("daily quotas cannot be negative"))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Environment variables > .env file > Config file > Defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".gramops.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
