package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

const appName = "reclaim"

// NamedDir is a well-known directory owned by a tool.
type NamedDir struct {
	Name string
	Path string
}

// Info contains platform-specific information and paths
type Info struct {
	OS       Platform
	HomeDir  string
	Username string

	// CacheDirs hold one cache per subdirectory.
	CacheDirs []string
	// CacheExtras are standalone cache directories outside CacheDirs.
	CacheExtras []NamedDir
	// PackageCaches are package manager download caches used when the
	// manager itself cannot be queried.
	PackageCaches []NamedDir
	LogDirs       []string
	// LogGlobs match individual log files such as ~/.xsession-errors.old.
	LogGlobs     []string
	TempDirNames []string
	DownloadsDir string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information for the current user.
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}
	return InfoFor(Detect(), currentUser.HomeDir, currentUser.Username)
}

// InfoFor builds Info for an explicit home directory.
func InfoFor(p Platform, homeDir, username string) (*Info, error) {
	switch p {
	case MacOS:
		return getMacOSInfo(homeDir, username), nil
	case Linux:
		return getLinuxInfo(homeDir, username), nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}

// GetUserConfigDir returns the user's config directory
func GetUserConfigDir() (string, error) {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return configDir, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config"), nil
}

// GetUserDataDir returns the XDG data directory.
func GetUserDataDir() (string, error) {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return dataDir, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// GetUserStateDir returns the XDG state directory.
func GetUserStateDir() (string, error) {
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		return stateDir, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state"), nil
}

// AppConfigDir is where reclaim keeps config.yaml.
func AppConfigDir() (string, error) {
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// AppDataDir holds the trash root and the database.
func AppDataDir() (string, error) {
	dir, err := GetUserDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// AppStateDir holds daemon logs.
func AppStateDir() (string, error) {
	dir, err := GetUserStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

func homeDir() (string, error) {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home, nil
	}
	currentUser, err := user.Current()
	if err != nil {
		return "", err
	}
	return currentUser.HomeDir, nil
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
