/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package config loads process-level configuration for the streaming core
// from environment variables. Each setting accepts a current key and,
// where one existed, a legacy key, with the current key taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config covers process level configuration for the streaming core.
type Config struct {
	Environment string

	BindIP   string
	BindPort int

	// PublishIP is the address advertised in URLs minted by the resolver.
	// Empty means auto-detect the primary outbound interface.
	PublishIP   string
	PublishPort int

	// TranscoderBin is the external codec process invoked by the
	// transcoder driver (e.g. "ffmpeg").
	TranscoderBin string

	MetricsBind string

	DefaultCrossfadeDurationS int

	// PlayerProfilesPath optionally points at a YAML file of per-player
	// defaults (output codec, channels, EQ, crossfade duration) so
	// operators aren't required to set one environment variable per
	// player. See internal/config/players.go.
	PlayerProfilesPath string

	// ListenerLogPath is the sqlite file the listenerlog service writes
	// job/subscriber audit events to. Empty disables the audit trail.
	ListenerLogPath string

	LegacyEnvWarnings []string
}

// bindPortRangeLow and bindPortRangeHigh bound BindPort, matching the
// external-interfaces port window; a BindPort left at 0 becomes
// bindPortRangeLow.
const (
	bindPortRangeLow  = 8096
	bindPortRangeHigh = 9200
)

// Load reads environment variables, applies defaults, and validates the
// result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:               getEnvAny([]string{"STREAMCORE_ENV", "RLM_ENV"}, "development"),
		BindIP:                    getEnvAny([]string{"STREAMCORE_BIND_IP", "RLM_BIND_IP"}, "0.0.0.0"),
		BindPort:                  getEnvIntAny([]string{"STREAMCORE_BIND_PORT", "RLM_BIND_PORT"}, 0),
		PublishIP:                 getEnvAny([]string{"STREAMCORE_PUBLISH_IP", "RLM_PUBLISH_IP"}, ""),
		PublishPort:               getEnvIntAny([]string{"STREAMCORE_PUBLISH_PORT", "RLM_PUBLISH_PORT"}, 0),
		TranscoderBin:             getEnvAny([]string{"STREAMCORE_TRANSCODER_BIN", "RLM_TRANSCODER_BIN"}, "ffmpeg"),
		MetricsBind:               getEnvAny([]string{"STREAMCORE_METRICS_BIND", "RLM_METRICS_BIND"}, "127.0.0.1:9000"),
		DefaultCrossfadeDurationS: getEnvIntAny([]string{"STREAMCORE_CROSSFADE_DURATION_S", "RLM_CROSSFADE_DURATION_S"}, 8),
		PlayerProfilesPath:        getEnvAny([]string{"STREAMCORE_PLAYER_PROFILES", "RLM_PLAYER_PROFILES"}, ""),
		ListenerLogPath:           getEnvAny([]string{"STREAMCORE_LISTENERLOG_PATH", "RLM_LISTENERLOG_PATH"}, ""),
	}

	if cfg.BindPort == 0 {
		cfg.BindPort = bindPortRangeLow
	}
	if cfg.BindPort < bindPortRangeLow || cfg.BindPort >= bindPortRangeHigh {
		return nil, fmt.Errorf("STREAMCORE_BIND_PORT %d out of range [%d, %d)", cfg.BindPort, bindPortRangeLow, bindPortRangeHigh)
	}
	if cfg.PublishPort == 0 {
		cfg.PublishPort = cfg.BindPort
	}
	if cfg.DefaultCrossfadeDurationS < 0 {
		return nil, fmt.Errorf("STREAMCORE_CROSSFADE_DURATION_S must be non-negative")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// BaseURL returns the public base URL "http://{ip}:{PublishPort}", the same
// form internal/resolver.New builds for its stream URLs. PublishIP must
// already be resolved by the caller (see internal/resolver) when left blank
// in Config.
func (c *Config) BaseURL(resolvedPublishIP string) string {
	return fmt.Sprintf("http://%s:%d", resolvedPublishIP, c.PublishPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":    "use STREAMCORE_ENV (or RLM_ENV)",
		"BIND_IP":        "use STREAMCORE_BIND_IP (or RLM_BIND_IP)",
		"BIND_PORT":      "use STREAMCORE_BIND_PORT (or RLM_BIND_PORT)",
		"TRANSCODER_BIN": "use STREAMCORE_TRANSCODER_BIN (or RLM_TRANSCODER_BIN)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from
// keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value
// from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value
// from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value
// from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
