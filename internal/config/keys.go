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
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned for dotted keys that name no setting.
var ErrUnknownKey = errors.New("unknown config key")

// Env var names used as overrides.
const (
	EnvViewportHeight = "GSI_VIEWPORT_HEIGHT"
	EnvTheme          = "GSI_THEME"
	EnvUndoDepth      = "GSI_UNDO_DEPTH"
	EnvUndoMaxBytes   = "GSI_UNDO_MAX_BYTES"
	EnvDetectBackend  = "GSI_DETECT_BACKEND"
	EnvDetectEndpoint = "GSI_DETECT_ENDPOINT"
	EnvDetectModel    = "GSI_DETECT_MODEL"
	EnvDetectOrg      = "GSI_DETECT_ORG"
	EnvDetectTimeout  = "GSI_DETECT_TIMEOUT_MS"
	EnvHostKind       = "GSI_HOST_KIND"
	EnvHostPath       = "GSI_HOST_PATH"
	EnvHostDSN        = "GSI_HOST_DSN"
	EnvHostURL        = "GSI_HOST_URL"
	EnvHostField      = "GSI_HOST_FIELD"
	EnvAssetEndpoint  = "GSI_ASSET_ENDPOINT"
	EnvAssetHub       = "GSI_ASSET_HUB"
	EnvBackupsMax     = "GSI_BACKUPS_MAX"
	EnvTelemetryOptIn = "GSI_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GSI_LOG_LEVEL"
	EnvLogFormat = "GSI_LOG_FORMAT"
	EnvLogSource = "GSI_LOG_SOURCE"
	EnvLogFile   = "GSI_LOG_FILE"
)

type setting struct {
	env string
	get func(*AppConfig) string
	set func(*AppConfig, string) error
}

func str(p func(*AppConfig) *string) (func(*AppConfig) string, func(*AppConfig, string) error) {
	return func(c *AppConfig) string { return *p(c) },
		func(c *AppConfig, v string) error { *p(c) = strings.TrimSpace(v); return nil }
}

func lower(p func(*AppConfig) *string) (func(*AppConfig) string, func(*AppConfig, string) error) {
	return func(c *AppConfig) string { return *p(c) },
		func(c *AppConfig, v string) error { *p(c) = strings.ToLower(strings.TrimSpace(v)); return nil }
}

func integer(p func(*AppConfig) *int) (func(*AppConfig) string, func(*AppConfig, string) error) {
	return func(c *AppConfig) string { return strconv.Itoa(*p(c)) },
		func(c *AppConfig, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("not an integer: %q", v)
			}
			*p(c) = n
			return nil
		}
}

func boolean(p func(*AppConfig) *bool) (func(*AppConfig) string, func(*AppConfig, string) error) {
	return func(c *AppConfig) string { return strconv.FormatBool(*p(c)) },
		func(c *AppConfig, v string) error {
			lv := strings.ToLower(strings.TrimSpace(v))
			*p(c) = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
			return nil
		}
}

var settings = func() map[string]setting {
	m := map[string]setting{}
	add := func(key, env string, g func(*AppConfig) string, s func(*AppConfig, string) error) {
		m[key] = setting{env: env, get: g, set: s}
	}
	add("ui.viewport_height", EnvViewportHeight,
		func(c *AppConfig) string { return strconv.FormatFloat(c.UI.ViewportHeight, 'f', -1, 64) },
		func(c *AppConfig, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f <= 0 {
				return fmt.Errorf("not a positive number: %q", v)
			}
			c.UI.ViewportHeight = f
			return nil
		})
	g, s := lower(func(c *AppConfig) *string { return &c.UI.Theme })
	add("ui.theme", EnvTheme, g, s)
	g, s = integer(func(c *AppConfig) *int { return &c.Editor.UndoDepth })
	add("editor.undo_depth", EnvUndoDepth, g, s)
	g, s = integer(func(c *AppConfig) *int { return &c.Editor.UndoMaxBytes })
	add("editor.undo_max_bytes", EnvUndoMaxBytes, g, s)
	g, s = lower(func(c *AppConfig) *string { return &c.Detect.Backend })
	add("detect.backend", EnvDetectBackend, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Detect.Endpoint })
	add("detect.endpoint", EnvDetectEndpoint, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Detect.Model })
	add("detect.model", EnvDetectModel, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Detect.OrganizationID })
	add("detect.organization_id", EnvDetectOrg, g, s)
	g, s = integer(func(c *AppConfig) *int { return &c.Detect.TimeoutMs })
	add("detect.timeout_ms", EnvDetectTimeout, g, s)
	g, s = lower(func(c *AppConfig) *string { return &c.Host.Kind })
	add("host.kind", EnvHostKind, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Host.Path })
	add("host.path", EnvHostPath, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Host.DSN })
	add("host.dsn", EnvHostDSN, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Host.URL })
	add("host.url", EnvHostURL, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Host.Field })
	add("host.field", EnvHostField, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Asset.Endpoint })
	add("asset.endpoint", EnvAssetEndpoint, g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Asset.HubID })
	add("asset.hub_id", EnvAssetHub, g, s)
	g, s = integer(func(c *AppConfig) *int { return &c.Backups.Max })
	add("backups.max", EnvBackupsMax, g, s)
	gb, sb := boolean(func(c *AppConfig) *bool { return &c.Telemetry.OptIn })
	add("telemetry.opt_in", EnvTelemetryOptIn, gb, sb)
	g, s = str(func(c *AppConfig) *string { return &c.Telemetry.EventsURL })
	add("telemetry.events_url", "", g, s)
	g, s = str(func(c *AppConfig) *string { return &c.Telemetry.CrashURL })
	add("telemetry.crash_url", "", g, s)
	g, s = lower(func(c *AppConfig) *string { return &c.Logging.Level })
	add("logging.level", EnvLogLevel, g, s)
	g, s = lower(func(c *AppConfig) *string { return &c.Logging.Format })
	add("logging.format", EnvLogFormat, g, s)
	gb, sb = boolean(func(c *AppConfig) *bool { return &c.Logging.Source })
	add("logging.source", EnvLogSource, gb, sb)
	g, s = str(func(c *AppConfig) *string { return &c.Logging.File })
	add("logging.file", EnvLogFile, g, s)
	return m
}()

// Keys lists every settable dotted key, sorted.
func Keys() []string {
	out := make([]string, 0, len(settings))
	for k := range settings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the value of a dotted key such as "detect.backend".
func (c *AppConfig) Get(key string) (string, error) {
	st, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return st.get(c), nil
}

// Set parses value into the dotted key.
func (c *AppConfig) Set(key, value string) error {
	st, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := st.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func applyEnvOverrides(cfg *AppConfig) {
	for _, st := range settings {
		if st.env == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(st.env)); v != "" {
			_ = st.set(cfg, v)
		}
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	st, ok := settings[key]
	if !ok || st.env == "" {
		return "", false
	}
	if os.Getenv(st.env) != "" {
		return st.env, true
	}
	return "", false
}
