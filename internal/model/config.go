package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SchedulerConfig controls how often and how long accounts are polled.
type SchedulerConfig struct {
	// IntervalSec is how often the scheduler fires.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// CycleBudgetSec bounds a single account's cycle. An account that
	// exceeds it is abandoned for that cycle.
	CycleBudgetSec int `mapstructure:"cycle_budget_sec" yaml:"cycle_budget_sec"`

	// InitialLookbackMin is how far back the first poll of a new account
	// reaches.
	InitialLookbackMin int `mapstructure:"initial_lookback_min" yaml:"initial_lookback_min"`

	// MaxLookbackHours caps the search window after long outages.
	MaxLookbackHours int `mapstructure:"max_lookback_hours" yaml:"max_lookback_hours"`
}

// IMAPConfig holds connection timeouts and retry policy.
type IMAPConfig struct {
	DialTimeoutSec int    `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	OpTimeoutSec   int    `mapstructure:"op_timeout_sec" yaml:"op_timeout_sec"`
	Mailbox        string `mapstructure:"mailbox" yaml:"mailbox"`
	RetryDelaysSec []int  `mapstructure:"retry_delays_sec" yaml:"retry_delays_sec"`
}

// AIConfig holds settings for the AI classifier integration.
type AIConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	MaxTokens         int `mapstructure:"max_tokens" yaml:"max_tokens"`
	BehaviorMaxTokens int `mapstructure:"behavior_max_tokens" yaml:"behavior_max_tokens"`
	TimeoutSec        int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// DetailedWindow is how many recent emails keep full content in a
	// behavioral analysis prompt; SummaryWindow bounds the total.
	DetailedWindow   int `mapstructure:"detailed_window" yaml:"detailed_window"`
	SummaryWindow    int `mapstructure:"summary_window" yaml:"summary_window"`
	MaxContentLength int `mapstructure:"max_content_length" yaml:"max_content_length"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	IMAP      IMAPConfig      `mapstructure:"imap" yaml:"imap"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// Interval returns the scheduler interval.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// CycleBudget returns the per-account cycle budget.
func (c SchedulerConfig) CycleBudget() time.Duration {
	return time.Duration(c.CycleBudgetSec) * time.Second
}

// InitialLookback returns how far back a new watermark starts.
func (c SchedulerConfig) InitialLookback() time.Duration {
	return time.Duration(c.InitialLookbackMin) * time.Minute
}

// MaxLookback returns the cap on the search window.
func (c SchedulerConfig) MaxLookback() time.Duration {
	return time.Duration(c.MaxLookbackHours) * time.Hour
}

// RetryDelays converts the configured retry schedule to durations.
func (c IMAPConfig) RetryDelays() []time.Duration {
	delays := make([]time.Duration, 0, len(c.RetryDelaysSec))
	for _, s := range c.RetryDelaysSec {
		delays = append(delays, time.Duration(s)*time.Second)
	}
	return delays
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/leadmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultDatabasePath returns ~/.config/leadmail/leadmail.db.
func DefaultDatabasePath() string {
	return filepath.Join(configDir(), "leadmail.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "leadmail")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: DefaultDatabasePath()},
		Scheduler: SchedulerConfig{
			IntervalSec:        300,
			CycleBudgetSec:     600,
			InitialLookbackMin: 5,
			MaxLookbackHours:   24,
		},
		IMAP: IMAPConfig{
			DialTimeoutSec: 30,
			OpTimeoutSec:   30,
			Mailbox:        "INBOX",
			RetryDelaysSec: []int{5, 10, 20},
		},
		AI: AIConfig{
			Provider:          "anthropic",
			Model:             "claude-3-haiku-20240307",
			MaxTokens:         1000,
			BehaviorMaxTokens: 4000,
			TimeoutSec:        60,
			DetailedWindow:    20,
			SummaryWindow:     100,
			MaxContentLength:  500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEADMAIL")
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("scheduler.interval_sec", def.Scheduler.IntervalSec)
	v.SetDefault("scheduler.cycle_budget_sec", def.Scheduler.CycleBudgetSec)
	v.SetDefault("scheduler.initial_lookback_min", def.Scheduler.InitialLookbackMin)
	v.SetDefault("scheduler.max_lookback_hours", def.Scheduler.MaxLookbackHours)
	v.SetDefault("imap.dial_timeout_sec", def.IMAP.DialTimeoutSec)
	v.SetDefault("imap.op_timeout_sec", def.IMAP.OpTimeoutSec)
	v.SetDefault("imap.mailbox", def.IMAP.Mailbox)
	v.SetDefault("imap.retry_delays_sec", def.IMAP.RetryDelaysSec)
	v.SetDefault("ai.provider", def.AI.Provider)
	v.SetDefault("ai.model", def.AI.Model)
	v.SetDefault("ai.max_tokens", def.AI.MaxTokens)
	v.SetDefault("ai.behavior_max_tokens", def.AI.BehaviorMaxTokens)
	v.SetDefault("ai.timeout_sec", def.AI.TimeoutSec)
	v.SetDefault("ai.detailed_window", def.AI.DetailedWindow)
	v.SetDefault("ai.summary_window", def.AI.SummaryWindow)
	v.SetDefault("ai.max_content_length", def.AI.MaxContentLength)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Scheduler.IntervalSec <= 0 {
		return fmt.Errorf("scheduler.interval_sec must be positive")
	}
	if c.Scheduler.CycleBudgetSec <= 0 {
		return fmt.Errorf("scheduler.cycle_budget_sec must be positive")
	}
	if c.IMAP.OpTimeoutSec <= 0 || c.IMAP.DialTimeoutSec <= 0 {
		return fmt.Errorf("imap timeouts must be positive")
	}
	switch c.AI.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("imap", cfg.IMAP)
	v.Set("ai", cfg.AI)
	v.Set("logging", cfg.Logging)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
