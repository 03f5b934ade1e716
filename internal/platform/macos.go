package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:       MacOS,
		HomeDir:  homeDir,
		Username: username,
		CacheDirs: []string{
			filepath.Join(homeDir, "Library/Caches"),
			filepath.Join(homeDir, ".cache"),
		},
		CacheExtras: []NamedDir{
			{"trash", filepath.Join(homeDir, ".Trash")},
			{"xcode-derived-data", filepath.Join(homeDir, "Library/Developer/Xcode/DerivedData")},
			{"simulator", filepath.Join(homeDir, "Library/Developer/CoreSimulator/Caches")},
			{"cargo", filepath.Join(homeDir, ".cargo/registry/cache")},
			{"gradle", filepath.Join(homeDir, ".gradle/caches")},
			{"maven", filepath.Join(homeDir, ".m2/repository")},
			{"yarn", filepath.Join(homeDir, ".yarn/cache")},
		},
		PackageCaches: []NamedDir{
			{"homebrew", filepath.Join(homeDir, "Library/Caches/Homebrew")},
			{"pip", filepath.Join(homeDir, "Library/Caches/pip")},
			{"npm", filepath.Join(homeDir, ".npm")},
		},
		LogDirs: []string{
			filepath.Join(homeDir, "Library/Logs"),
		},
		TempDirNames: []string{"tmp", ".tmp", "temp", "Temp", "TEMP"},
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
	}
}
