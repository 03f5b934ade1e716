package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/security"
)

// Config represents the application configuration
type Config struct {
	Scan       ScanConfig       `yaml:"scan"`
	Categories Categories       `yaml:"categories"`
	Trash      TrashConfig      `yaml:"trash"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// ScanConfig bounds discovery.
type ScanConfig struct {
	IncludeHidden        bool          `yaml:"include_hidden"`
	LargeFileThresholdMB int           `yaml:"large_file_threshold_mb"`
	MaxDepth             int           `yaml:"max_depth"`
	MaxFiles             int           `yaml:"max_files"`
	Concurrency          int           `yaml:"concurrency"`
	ExcludePatterns      []string      `yaml:"exclude_patterns"`
	AgeThresholds        AgeThresholds `yaml:"age_thresholds"`
}

// AgeThresholds defines age thresholds for different kinds (in days)
type AgeThresholds struct {
	Logs      int `yaml:"logs"`
	Downloads int `yaml:"downloads"`
	Temp      int `yaml:"temp"`
}

// Categories defines which scan categories are enabled
type Categories struct {
	Cache            bool `yaml:"cache"`
	Packages         bool `yaml:"packages"`
	Logs             bool `yaml:"logs"`
	FilesystemHealth bool `yaml:"filesystem_health"`
	StorageRecovery  bool `yaml:"storage_recovery"`
}

// TrashConfig controls the reversible deletion store.
type TrashConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
}

// MonitoringConfig controls periodic scans in daemon mode.
type MonitoringConfig struct {
	Enabled       bool `yaml:"enabled"`
	IntervalHours int  `yaml:"interval_hours"`
}

// DatabaseConfig locates the ledger and history database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`   // daemon log file
}

// SecurityConfig extends the built-in path policy.
type SecurityConfig struct {
	ProtectedPaths []string `yaml:"protected_paths"`
	ScanRoots      []string `yaml:"scan_roots"`
	DenyList       []string `yaml:"deny_list"`
}

// Enabled lists enabled category names in registry order.
func (c Categories) Enabled() []string {
	var out []string
	for _, e := range []struct {
		name string
		on   bool
	}{
		{"cache", c.Cache},
		{"packages", c.Packages},
		{"logs", c.Logs},
		{"filesystem_health", c.FilesystemHealth},
		{"storage_recovery", c.StorageRecovery},
	} {
		if e.on {
			out = append(out, e.name)
		}
	}
	return out
}

// Load loads configuration from a file. Missing files yield defaults and
// fields omitted from the file keep their default values.
func Load(configPath string) (*Config, error) {
	config := GetDefault()
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every problem Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error

	if !inSet(c.Scan.LargeFileThresholdMB, LargeFileThresholdsMB) {
		errs = append(errs, fmt.Errorf("scan.large_file_threshold_mb must be one of %v, got %d", LargeFileThresholdsMB, c.Scan.LargeFileThresholdMB))
	}
	if c.Trash.RetentionDays < MinRetentionDays || c.Trash.RetentionDays > MaxRetentionDays {
		errs = append(errs, fmt.Errorf("trash.retention_days must be in [%d,%d], got %d", MinRetentionDays, MaxRetentionDays, c.Trash.RetentionDays))
	}
	if c.Trash.MaxSizeMB < MinTrashSizeMB || c.Trash.MaxSizeMB > MaxTrashSizeMB {
		errs = append(errs, fmt.Errorf("trash.max_size_mb must be in [%d,%d], got %d", MinTrashSizeMB, MaxTrashSizeMB, c.Trash.MaxSizeMB))
	}
	if c.Monitoring.IntervalHours < 1 {
		errs = append(errs, fmt.Errorf("monitoring.interval_hours must be >= 1"))
	}

	a := c.Scan.AgeThresholds
	if a.Logs < 0 || a.Downloads < 0 || a.Temp < 0 {
		errs = append(errs, fmt.Errorf("scan.age_thresholds must be >= 0"))
	}
	if c.Scan.MaxDepth < 0 || c.Scan.MaxFiles < 0 || c.Scan.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("scan limits must be >= 0"))
	}

	for _, pattern := range c.Scan.ExcludePatterns {
		if err := security.ValidateGlobPattern(pattern); err != nil {
			errs = append(errs, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err))
		}
	}
	for _, path := range c.Security.ProtectedPaths {
		if !filepath.IsAbs(path) {
			errs = append(errs, fmt.Errorf("protected path must be absolute: %s", path))
		}
	}
	for _, path := range c.Security.ScanRoots {
		if !filepath.IsAbs(path) && !isHomeRelative(path) {
			errs = append(errs, fmt.Errorf("scan root must be absolute or ~/ relative: %s", path))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Normalize snaps and clamps numeric settings into their allowed ranges
// and fills unset values with defaults.
func (c *Config) Normalize() {
	d := GetDefault()

	c.Scan.LargeFileThresholdMB = SnapThreshold(c.Scan.LargeFileThresholdMB)
	c.Trash.RetentionDays = clamp(c.Trash.RetentionDays, MinRetentionDays, MaxRetentionDays)
	c.Trash.MaxSizeMB = clamp(c.Trash.MaxSizeMB, MinTrashSizeMB, MaxTrashSizeMB)
	if c.Monitoring.IntervalHours < 1 {
		c.Monitoring.IntervalHours = d.Monitoring.IntervalHours
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// SnapThreshold returns the allowed large-file threshold nearest to mb.
// Ties go to the smaller value.
func SnapThreshold(mb int) int {
	best := LargeFileThresholdsMB[0]
	for _, v := range LargeFileThresholdsMB[1:] {
		if abs(v-mb) < abs(best-mb) {
			best = v
		}
	}
	return best
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	dir, err := platform.AppConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists() (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(GetDefault(), configPath); err != nil {
			return "", err
		}
	}
	return configPath, nil
}

// ResolvePaths expands "~/" and fills empty trash, database and log paths
// with their XDG locations.
func (c *Config) ResolvePaths() error {
	for _, p := range []*string{&c.Trash.Dir, &c.Database.Path, &c.Logging.File} {
		if !isHomeRelative(*p) {
			continue
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		*p = filepath.Join(home, strings.TrimPrefix(*p, "~"))
	}
	if c.Trash.Dir == "" || c.Database.Path == "" {
		dataDir, err := platform.AppDataDir()
		if err != nil {
			return err
		}
		if c.Trash.Dir == "" {
			c.Trash.Dir = filepath.Join(dataDir, "trash")
		}
		if c.Database.Path == "" {
			c.Database.Path = filepath.Join(dataDir, "reclaim.db")
		}
	}
	if c.Logging.File == "" {
		stateDir, err := platform.AppStateDir()
		if err != nil {
			return err
		}
		c.Logging.File = filepath.Join(stateDir, "daemon.log")
	}
	return nil
}

func inSet(v int, set []int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func isHomeRelative(p string) bool {
	return p == "~" || strings.HasPrefix(p, "~/")
}
