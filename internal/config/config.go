// Package config loads the YAML application config. Everything has a
// working default; a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Theme is the color palette handed to the TUI. Values are hex colors or
// ANSI color numbers, whatever the terminal profile supports.
type Theme struct {
	Accent    string `yaml:"accent"`
	User      string `yaml:"user"`
	Assistant string `yaml:"assistant"`
	Reasoning string `yaml:"reasoning"`
	Muted     string `yaml:"muted"`
	Error     string `yaml:"error"`
}

// Endpoints holds the per-backend base URLs. Empty means the backend's
// stock default.
type Endpoints struct {
	Ollama     string `yaml:"ollama"`
	OpenRouter string `yaml:"openrouter"`
	Anthropic  string `yaml:"anthropic"`
}

type Config struct {
	// SandboxPath is the SQLite file holding chats and presets.
	SandboxPath string `yaml:"sandbox_path"`
	// LogPath receives the JSON log; the terminal belongs to the TUI.
	LogPath   string    `yaml:"log_path"`
	Endpoints Endpoints `yaml:"endpoints"`
	Theme     Theme     `yaml:"theme"`
}

func Default() Config {
	return Config{
		Theme: Theme{
			Accent:    "212",
			User:      "39",
			Assistant: "78",
			Reasoning: "245",
			Muted:     "241",
			Error:     "203",
		},
	}
}

// Load reads the config file and applies environment overrides. A missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %q: %w", path, err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); v != "" {
		cfg.Endpoints.Ollama = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")); v != "" {
		cfg.Endpoints.OpenRouter = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.Endpoints.Anthropic = v
	}
	return cfg, nil
}

// DefaultConfigPath is where Load looks when no -config flag is given.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "inforno", "config.yaml")
}

// DefaultSandboxPath places the sandbox next to the config.
func DefaultSandboxPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	appDir := filepath.Join(dir, "inforno")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", fmt.Errorf("create %q: %w", appDir, err)
	}
	return filepath.Join(appDir, "info.rno"), nil
}
