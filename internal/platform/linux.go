package platform

import "path/filepath"

// getLinuxInfo returns platform-specific information for Linux
func getLinuxInfo(homeDir, username string) *Info {
	return &Info{
		OS:       Linux,
		HomeDir:  homeDir,
		Username: username,
		CacheDirs: []string{
			filepath.Join(homeDir, ".cache"),
		},
		CacheExtras: []NamedDir{
			{"trash", filepath.Join(homeDir, ".local/share/Trash")},
			{"thumbnails", filepath.Join(homeDir, ".thumbnails")},
			{"npm", filepath.Join(homeDir, ".npm/_cacache")},
			{"cargo", filepath.Join(homeDir, ".cargo/registry/cache")},
			{"gradle", filepath.Join(homeDir, ".gradle/caches")},
			{"maven", filepath.Join(homeDir, ".m2/repository")},
			{"yarn", filepath.Join(homeDir, ".yarn/cache")},
		},
		PackageCaches: []NamedDir{
			{"apt", "/var/cache/apt/archives"},
			{"pip", filepath.Join(homeDir, ".cache/pip")},
			{"npm", filepath.Join(homeDir, ".npm")},
		},
		LogDirs: []string{
			filepath.Join(homeDir, ".local/state"),
			filepath.Join(homeDir, ".local/share/logs"),
			"/var/log",
		},
		LogGlobs: []string{
			filepath.Join(homeDir, ".xsession-errors*"),
			filepath.Join(homeDir, ".cache/*/log*"),
		},
		TempDirNames: []string{"tmp", ".tmp", "temp", "Temp", "TEMP"},
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
	}
}
