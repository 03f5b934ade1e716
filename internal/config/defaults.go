package config

// Allowed ranges.
const (
	MinRetentionDays = 1
	MaxRetentionDays = 30
	MinTrashSizeMB   = 500
	MaxTrashSizeMB   = 5000
)

// LargeFileThresholdsMB are the selectable large-file thresholds.
var LargeFileThresholdsMB = []int{50, 100, 250, 500, 1000}

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Scan: ScanConfig{
			IncludeHidden:        false,
			LargeFileThresholdMB: 100,
			MaxDepth:             10,
			MaxFiles:             50000,
			Concurrency:          3,
			ExcludePatterns: []string{
				"*.keep",
				"node_modules",
				".git",
			},
			AgeThresholds: AgeThresholds{
				Logs:      7,  // plain .log files
				Downloads: 90, // untouched downloads
				Temp:      30, // orphaned temp files
			},
		},
		Categories: Categories{
			Cache:            true,
			Packages:         true,
			Logs:             true,
			FilesystemHealth: true,
			StorageRecovery:  true,
		},
		Trash: TrashConfig{
			RetentionDays: 7,
			MaxSizeMB:     1000,
		},
		Monitoring: MonitoringConfig{
			Enabled:       false,
			IntervalHours: 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Security: SecurityConfig{
			ProtectedPaths: []string{},
			ScanRoots:      []string{},
			DenyList:       []string{},
		},
	}
}
