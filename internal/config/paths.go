package config

import (
	"os"
	"path/filepath"
)

// UserConfigDir returns ~/.goexpect, creating nothing — callers decide
// whether to create it.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".goexpect"), nil
}

// DefaultConfigPath returns the user config file path, preferring an
// existing config.yaml over config.json, and falling back to config.json
// if neither exists yet (Manager.SaveUserConfig creates it there).
func DefaultConfigPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath, nil
	}
	return filepath.Join(dir, "config.json"), nil
}
