// Package config loads goexpect's ambient settings (expect timeout, lazy
// matching default, log level, escape sequence) from a layered JSON or
// YAML file: a project-local file (./.goexpect/config.{json,yaml}) overrides
// a user file (~/.goexpect/config.{json,yaml}), which overrides built-in
// defaults. Either encoding is accepted; the extension picks the decoder.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the merged, effective configuration.
type Config struct {
	ExpectTimeoutMS int    `json:"expect_timeout_ms,omitempty" yaml:"expect_timeout_ms,omitempty"`
	Lazy            bool   `json:"lazy,omitempty" yaml:"lazy,omitempty"`
	LogLevel        string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFile         string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	EscapeHex       string `json:"escape_hex,omitempty" yaml:"escape_hex,omitempty"` // e.g. "1d" for Ctrl-]
}

// ExpectTimeout returns the configured expect timeout, defaulting to 30s
// when unset.
func (c *Config) ExpectTimeout() time.Duration {
	if c.ExpectTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ExpectTimeoutMS) * time.Millisecond
}

func defaults() *Config {
	return &Config{
		ExpectTimeoutMS: 30000,
		Lazy:            false,
		LogLevel:        "info",
		EscapeHex:       "1d",
	}
}

// Manager loads and merges the user and project config layers.
type Manager struct {
	userConfig    *Config
	projectConfig *Config
	merged        *Config
}

func NewManager() *Manager {
	return &Manager{
		userConfig:    &Config{},
		projectConfig: &Config{},
		merged:        defaults(),
	}
}

// Load reads the user config (userConfigDir/config.{yaml,json}) and the
// project config (projectDir/.goexpect/config.{yaml,json}), merges them
// over the built-in defaults, and caches the result for Get.
func (m *Manager) Load(userConfigDir, projectDir string) error {
	if err := m.loadLayer(userConfigDir, "config", m.userConfig); err != nil {
		return err
	}
	if err := m.loadLayer(filepath.Join(projectDir, ".goexpect"), "config", m.projectConfig); err != nil {
		return err
	}
	m.merge()
	return nil
}

// loadLayer tries "<dir>/<base>.yaml" then "<dir>/<base>.json"; the first
// one found wins. Missing files are not an error — they simply leave dst
// at its zero value so defaults (or the other layer) apply.
func (m *Manager) loadLayer(dir, base string, dst *Config) error {
	yamlPath := filepath.Join(dir, base+".yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		return yaml.Unmarshal(data, dst)
	} else if !os.IsNotExist(err) {
		return err
	}

	jsonPath := filepath.Join(dir, base+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

func (m *Manager) merge() {
	d := defaults()
	m.merged = &Config{
		ExpectTimeoutMS: firstNonZeroInt(m.projectConfig.ExpectTimeoutMS, m.userConfig.ExpectTimeoutMS, d.ExpectTimeoutMS),
		Lazy:            m.projectConfig.Lazy || m.userConfig.Lazy,
		LogLevel:        firstNonEmpty(m.projectConfig.LogLevel, m.userConfig.LogLevel, d.LogLevel),
		LogFile:         firstNonEmpty(m.projectConfig.LogFile, m.userConfig.LogFile, d.LogFile),
		EscapeHex:       firstNonEmpty(m.projectConfig.EscapeHex, m.userConfig.EscapeHex, d.EscapeHex),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// Get returns the merged configuration.
func (m *Manager) Get() *Config {
	return m.merged
}

// SaveUserConfig writes the user-layer config as JSON under userConfigDir.
func (m *Manager) SaveUserConfig(userConfigDir string) error {
	if err := os.MkdirAll(userConfigDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.userConfig, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(userConfigDir, "config.json"), data, 0644)
}

// Watch watches the user and project config directories and invokes onChange
// (with the freshly reloaded config) whenever either config file is written.
// The returned *fsnotify.Watcher must be closed by the caller when done.
func (m *Manager) Watch(userConfigDir, projectDir string, onChange func(*Config)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{userConfigDir, filepath.Join(projectDir, ".goexpect")} {
		if _, err := os.Stat(dir); err == nil {
			if err := w.Add(dir); err != nil {
				w.Close()
				return nil, err
			}
		}
	}
	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Load(userConfigDir, projectDir); err == nil {
				onChange(m.Get())
			}
		}
	}()
	return w, nil
}
