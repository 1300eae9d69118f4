package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the user-editable configuration, loaded from a YAML file.
type Settings struct {
	// Model settings
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	// Browser settings
	Browser BrowserSettings `yaml:"browser"`

	// Permission settings
	Permissions PermissionSettings `yaml:"permissions"`

	// Network category overrides
	Network NetworkSettings `yaml:"network"`
}

// BrowserSettings configures how PagePilot reaches the browser.
type BrowserSettings struct {
	// DebugURL is the DevTools endpoint of a running browser,
	// e.g. ws://127.0.0.1:9222 or http://127.0.0.1:9222
	DebugURL string `yaml:"debug_url"`
}

// PermissionSettings configures the permission gate's policy knobs.
type PermissionSettings struct {
	// SkipAll disables permission checks entirely. All navigation is
	// allowed without prompting.
	SkipAll bool `yaml:"skip_all"`

	// ForcePrompt prompts on every gated navigation, ignoring stored
	// grants. Stored denies still apply.
	ForcePrompt bool `yaml:"force_prompt"`
}

// NetworkSettings configures the site category lookup: the classification
// service endpoint and glob-pattern local overrides.
type NetworkSettings struct {
	// CategoryEndpoint is the URL of the domain classification service.
	// Empty disables remote lookups; only the overrides below apply.
	CategoryEndpoint string `yaml:"category_endpoint"`

	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// DefaultSettings returns settings with sane defaults applied.
func DefaultSettings() *Settings {
	return &Settings{
		Model: "gpt-4o",
		Browser: BrowserSettings{
			DebugURL: "http://127.0.0.1:9222",
		},
	}
}

// DefaultSettingsPath returns the default settings file location,
// ~/.pagepilot/config.yaml.
func DefaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pagepilot", "config.yaml"), nil
}

// LoadSettings reads settings from the given path. A missing file is not an
// error; defaults are returned. If path is empty the default location is used.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		defaultPath, err := DefaultSettingsPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if settings.Model == "" {
		settings.Model = "gpt-4o"
	}
	if settings.Browser.DebugURL == "" {
		settings.Browser.DebugURL = "http://127.0.0.1:9222"
	}

	return settings, nil
}
