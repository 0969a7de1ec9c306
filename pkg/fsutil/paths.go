package fsutil

import (
	"os"
	"path/filepath"
)

// AppName is used to namespace the local config directory.
const AppName = "apt-method"

// DefaultConfigPath returns the path to the local YAML defaults file
// consulted before the protocol's own Configuration message arrives.
// $APT_METHOD_CONFIG overrides it outright.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv("APT_METHOD_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName, "config.yaml"), nil
}
