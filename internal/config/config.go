/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"goshoppable/internal/history"
	applog "goshoppable/internal/log"
	"goshoppable/internal/telemetry"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type UIConfig struct {
	ViewportHeight float64  `yaml:"viewport_height"`
	Theme          string   `yaml:"theme"` // "system" | "light" | "dark"
	Recent         []string `yaml:"recent,omitempty"`
}

type EditorConfig struct {
	UndoDepth    int `yaml:"undo_depth"`
	UndoMaxBytes int `yaml:"undo_max_bytes"`
}

type DetectConfig struct {
	Backend        string `yaml:"backend"` // "ollama" | "graphql" | "none"
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	OrganizationID string `yaml:"organization_id"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	// The API token is not stored on disk; it lives in the OS keychain.
}

type HostConfig struct {
	Kind  string `yaml:"kind"` // "file" | "sqlite" | "postgres" | "http"
	Path  string `yaml:"path"`
	DSN   string `yaml:"dsn"`
	URL   string `yaml:"url"`
	Field string `yaml:"field"`
}

type AssetConfig struct {
	Endpoint string `yaml:"endpoint"`
	HubID    string `yaml:"hub_id"`
}

type BackupsConfig struct {
	Max int `yaml:"max"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	UI            UIConfig        `yaml:"ui"`
	Editor        EditorConfig    `yaml:"editor"`
	Detect        DetectConfig    `yaml:"detect"`
	Host          HostConfig      `yaml:"host"`
	Asset         AssetConfig     `yaml:"asset"`
	Backups       BackupsConfig   `yaml:"backups"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// MaxRecent bounds ui.recent.
const MaxRecent = 10

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		UI:            UIConfig{ViewportHeight: 458, Theme: "system"},
		Editor:        EditorConfig{UndoDepth: 200, UndoMaxBytes: 8 << 20},
		Detect:        DetectConfig{Backend: "none", Endpoint: "http://localhost:11434", Model: "llava", TimeoutMs: 31000},
		Host:          HostConfig{Kind: "file", Field: "default"},
		Backups:       BackupsConfig{Max: 20},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "GSI_CONFIG"

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "goshoppable", "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the API token from the keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, "", err
	}
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if err != nil {
		applog.WithComponent("config").Debug("token unavailable", "err", err)
	}
	return cfg, tok, nil
}

// LoadFrom reads path over the defaults and applies env overrides. A missing
// file is not an error; a malformed one is.
func LoadFrom(path string) (AppConfig, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// ReadFile is LoadFrom without env overrides; use it to edit the file.
func ReadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := SaveTo(path, cfg); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// AddRecent moves path to the front of ui.recent.
func (c *AppConfig) AddRecent(path string) {
	c.UI.Recent = slices.DeleteFunc(c.UI.Recent, func(p string) bool { return p == path })
	c.UI.Recent = append([]string{path}, c.UI.Recent...)
	if len(c.UI.Recent) > MaxRecent {
		c.UI.Recent = c.UI.Recent[:MaxRecent]
	}
}

func normalize(cfg *AppConfig) {
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Detect.Backend = strings.ToLower(strings.TrimSpace(cfg.Detect.Backend))
	cfg.Host.Kind = strings.ToLower(strings.TrimSpace(cfg.Host.Kind))
	if cfg.UI.ViewportHeight <= 0 {
		cfg.UI.ViewportHeight = Defaults().UI.ViewportHeight
	}
}

// LogOptions converts the logging section for applog.Init. Rotation comes
// from the environment.
func (c AppConfig) LogOptions() applog.Options {
	opts := applog.FromEnv()
	opts.Level = c.Logging.Level
	opts.Format = c.Logging.Format
	opts.AddSource = c.Logging.Source
	opts.File = c.Logging.File
	return opts
}

// History returns the undo limits.
func (e EditorConfig) History() history.Config {
	return history.Config{MaxDepth: e.UndoDepth, MaxBytes: e.UndoMaxBytes}
}

// Timeout returns the detection timeout; zero means the service default.
func (d DetectConfig) Timeout() time.Duration {
	if d.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// TelemetryConfig merges the file settings over the environment defaults.
func (c AppConfig) TelemetryConfig() telemetry.Config {
	tc := telemetry.FromEnv()
	tc.OptIn = tc.OptIn || c.Telemetry.OptIn
	if c.Telemetry.EventsURL != "" && tc.EventsURL == "" {
		tc.EventsURL = c.Telemetry.EventsURL
	}
	if c.Telemetry.CrashURL != "" && tc.CrashURL == "" {
		tc.CrashURL = c.Telemetry.CrashURL
	}
	return tc
}
