// Package config handles loading and validating triage configuration.
// Supports YAML config files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultBackend        = "api"
	DefaultModel          = "gemini-2.5-flash"
	DefaultBatchSize      = 10
	DefaultTimeout        = "2m"
	DefaultAPIKeyEnv      = "API_KEY"
	FallbackAPIKeyEnv     = "GEMINI_API_KEY"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogPath        = "~/.local/share/triage/logs"
	DefaultDBPath         = "~/.local/share/triage/triage.db"
	DefaultSchedule       = "0 */2 * * *"
	DefaultNoticeTimeout  = "3s"
	ProjectConfigName     = "triage.yaml"
	globalConfigDirName   = "triage"
	globalConfigFileName  = "config.yaml"
	envPrefix             = "TRIAGE"
)

// Validation errors.
var (
	ErrInvalidBackend     = errors.New("gemini.backend must be 'api' or 'cli'")
	ErrInvalidBatchSize   = errors.New("gemini.batch_size must be between 1 and 100")
	ErrInvalidTimeout     = errors.New("gemini.timeout must be a positive duration")
	ErrInvalidConcurrency = errors.New("gemini.max_concurrency must not be negative")
	ErrInvalidTemperature = errors.New("gemini.temperature must be between 0 and 2")
	ErrInvalidLogLevel    = errors.New("logging.level must be debug, info, warn or error")
	ErrInvalidLogFormat   = errors.New("logging.format must be json or text")
	ErrInvalidCron        = errors.New("schedule.cron is not a valid cron expression")
	ErrInvalidInterval    = errors.New("schedule.interval must be a positive duration")
	ErrScheduleConflict   = errors.New("schedule.cron and schedule.interval are mutually exclusive")
	ErrInvalidNotice      = errors.New("ui.notice_timeout must be a positive duration")
	ErrMissingAPIKey      = errors.New("API key not set")
)

// Config holds all triage configuration.
type Config struct {
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	History  HistoryConfig  `mapstructure:"history"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	UI       UIConfig       `mapstructure:"ui"`
}

// GeminiConfig configures the scoring provider and batching.
type GeminiConfig struct {
	Backend        string  `mapstructure:"backend"` // api or cli
	Model          string  `mapstructure:"model"`
	BatchSize      int     `mapstructure:"batch_size"`
	Timeout        string  `mapstructure:"timeout"`         // whole-pass timeout
	MaxConcurrency int     `mapstructure:"max_concurrency"` // 0 = all batches at once
	Temperature    float64 `mapstructure:"temperature"`
	APIKeyEnv      string  `mapstructure:"api_key_env"`
	Endpoint       string  `mapstructure:"endpoint"` // override for proxies
	BinaryPath     string  `mapstructure:"binary_path"`
}

// SourcesConfig points at ticket and roster exports. Empty paths use the
// built-in seed data.
type SourcesConfig struct {
	Tasks      string `mapstructure:"tasks"`
	Associates string `mapstructure:"associates"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// ScheduleConfig configures recurring passes for the daemon. Cron and
// Interval are mutually exclusive; with neither set the daemon uses
// DefaultSchedule.
type ScheduleConfig struct {
	Cron     string        `mapstructure:"cron"`
	Interval string        `mapstructure:"interval"`
	Window   *WindowConfig `mapstructure:"window"`
}

// WindowConfig limits scheduled passes to a time-of-day range, e.g. business
// hours. End is exclusive; Start after End wraps midnight.
type WindowConfig struct {
	Start    string `mapstructure:"start"` // HH:MM
	End      string `mapstructure:"end"`
	Timezone string `mapstructure:"timezone"`
}

// UIConfig configures the dashboard.
type UIConfig struct {
	NoticeTimeout string `mapstructure:"notice_timeout"`
}

// GlobalConfigPath returns the path of the user-level config file.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", globalConfigDirName, globalConfigFileName)
}

// Load reads configuration from the current directory, the global config
// and the environment.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working dir: %w", err)
	}
	return LoadFromPaths(cwd, GlobalConfigPath())
}

// LoadFromPaths loads the global config at globalPath, then merges
// projectDir/triage.yaml on top. Missing files are skipped.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if globalPath != "" {
		if err := mergeFile(v, globalPath); err != nil {
			return nil, err
		}
	}
	if projectDir != "" {
		if err := mergeFile(v, filepath.Join(projectDir, ProjectConfigName)); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking config %s: %w", path, err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini.backend", DefaultBackend)
	v.SetDefault("gemini.model", DefaultModel)
	v.SetDefault("gemini.batch_size", DefaultBatchSize)
	v.SetDefault("gemini.timeout", DefaultTimeout)
	v.SetDefault("gemini.max_concurrency", 0)
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.api_key_env", DefaultAPIKeyEnv)
	v.SetDefault("gemini.endpoint", "")
	v.SetDefault("gemini.binary_path", "gemini")
	v.SetDefault("sources.tasks", "")
	v.SetDefault("sources.associates", "")
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", DefaultLogPath)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", DefaultDBPath)
	v.SetDefault("ui.notice_timeout", DefaultNoticeTimeout)
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	switch cfg.Gemini.Backend {
	case "", "api", "cli":
	default:
		return ErrInvalidBackend
	}
	if cfg.Gemini.BatchSize < 0 || cfg.Gemini.BatchSize > 100 {
		return ErrInvalidBatchSize
	}
	if cfg.Gemini.Timeout != "" {
		d, err := time.ParseDuration(cfg.Gemini.Timeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidTimeout, cfg.Gemini.Timeout)
		}
	}
	if cfg.Gemini.MaxConcurrency < 0 {
		return ErrInvalidConcurrency
	}
	if cfg.Gemini.Temperature < 0 || cfg.Gemini.Temperature > 2 {
		return ErrInvalidTemperature
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	}
	if cfg.Schedule.Interval != "" {
		if cfg.Schedule.Cron != "" {
			return ErrScheduleConflict
		}
		d, err := time.ParseDuration(cfg.Schedule.Interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidInterval, cfg.Schedule.Interval)
		}
	}
	if cfg.UI.NoticeTimeout != "" {
		d, err := time.ParseDuration(cfg.UI.NoticeTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidNotice, cfg.UI.NoticeTimeout)
		}
	}
	return nil
}

// PassTimeout returns the configured whole-pass timeout, or 0 for none.
func (c *Config) PassTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// NoticeTimeout returns how long the no-op notice stays on screen.
func (c *Config) NoticeTimeout() time.Duration {
	d, err := time.ParseDuration(c.UI.NoticeTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// EffectiveBatchSize returns the batch size, applying the default for 0.
func (c *Config) EffectiveBatchSize() int {
	if c.Gemini.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.Gemini.BatchSize
}

// APIKey resolves the provider credential from the environment. The
// configured variable is tried first, then GEMINI_API_KEY.
func (c *Config) APIKey() string {
	name := c.Gemini.APIKeyEnv
	if name == "" {
		name = DefaultAPIKeyEnv
	}
	if key := strings.TrimSpace(os.Getenv(name)); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(FallbackAPIKeyEnv))
}

// RequireAPIKey returns the credential or ErrMissingAPIKey. The cli backend
// authenticates through the gemini CLI itself and needs no key.
func (c *Config) RequireAPIKey() (string, error) {
	if c.Gemini.Backend == "cli" {
		return "", nil
	}
	key := c.APIKey()
	if key == "" {
		name := c.Gemini.APIKeyEnv
		if name == "" {
			name = DefaultAPIKeyEnv
		}
		return "", fmt.Errorf("%w: set %s (or %s)", ErrMissingAPIKey, name, FallbackAPIKeyEnv)
	}
	return key, nil
}

// ExpandedLogPath returns the log directory with ~ expanded.
func (c *Config) ExpandedLogPath() string {
	return expandPath(c.Logging.Path)
}

// ExpandedDBPath returns the history database path with ~ expanded.
func (c *Config) ExpandedDBPath() string {
	return expandPath(c.History.DBPath)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
