package application

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "subbot"

	// UserAgent is sent on every outbound HTTP request
	UserAgent = "subbot/" + Version

	// Version is the release version reported by `subbot version`
	Version = "0.3.0"
)

// configDir is resolved once; scheduled passes may run without $HOME.
var configDir = sync.OnceValues(os.UserConfigDir)

// DefaultPath returns name inside the per-user subbot directory, or name
// itself (relative to the working directory) when the host has no user
// config directory.
func DefaultPath(name string) string {
	base, err := configDir()
	if err != nil {
		return name
	}

	return filepath.Join(base, AppName, name)
}
