/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputChannels enumerates the channel-remap modes a player can request.
type OutputChannels string

const (
	ChannelsStereo OutputChannels = "stereo"
	ChannelsLeft   OutputChannels = "left"
	ChannelsRight  OutputChannels = "right"
	ChannelsMono   OutputChannels = "mono"
)

// PlayerProfile holds the per-player defaults named in the external
// interfaces configuration entries: output codec, channel remap, a 3-band
// EQ, and a crossfade duration. CrossfadeDuration is loaded but not applied:
// flow streams take their crossfade duration from the PlayerQueue.
type PlayerProfile struct {
	PlayerID          string         `yaml:"player_id"`
	MaxSampleRateHz   int            `yaml:"max_sample_rate_hz"`
	Supports24Bit     bool           `yaml:"supports_24bit"`
	DisplayName       string         `yaml:"display_name"`
	OutputCodec       string         `yaml:"output_codec"`
	OutputChannels    OutputChannels `yaml:"output_channels"`
	EQBassDB          float64        `yaml:"eq_bass_db"`
	EQMidDB           float64        `yaml:"eq_mid_db"`
	EQTrebleDB        float64        `yaml:"eq_treble_db"`
	CrossfadeDuration int            `yaml:"crossfade_duration_s"`
}

// playerProfilesFile is the top-level shape of the YAML document pointed to
// by Config.PlayerProfilesPath.
type playerProfilesFile struct {
	Players []PlayerProfile `yaml:"players"`
}

// LoadPlayerProfiles reads the YAML file at path and returns profiles keyed
// by player id. A blank path is not an error; it yields an empty map so
// callers fall back to hard-coded defaults per player.
func LoadPlayerProfiles(path string) (map[string]PlayerProfile, error) {
	profiles := make(map[string]PlayerProfile)
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read player profiles %s: %w", path, err)
	}

	var doc playerProfilesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse player profiles %s: %w", path, err)
	}

	for _, p := range doc.Players {
		if p.PlayerID == "" {
			return nil, fmt.Errorf("player profile missing player_id in %s", path)
		}
		profiles[p.PlayerID] = p
	}
	return profiles, nil
}
