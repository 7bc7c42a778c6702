// Package platform holds the OS-specific path logic. Per-OS branching lives
// here, not scattered through the codebase.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultWorkDir picks the conventional per-user data directory:
//
//	Linux:   ~/.local/share/cycletimed
//	macOS:   ~/Library/Application Support/CycleTimed
//	Windows: %APPDATA%\CycleTimed
func DefaultWorkDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "CycleTimed")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "CycleTimed")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "cycletimed")
	}
}

// EnsureDir creates the directory and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
