/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPlayerProfilesEmptyPath(t *testing.T) {
	profiles, err := LoadPlayerProfiles("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 0 {
		t.Fatalf("expected no profiles, got %d", len(profiles))
	}
}

func TestLoadPlayerProfilesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.yaml")
	doc := `
players:
  - player_id: kitchen
    max_sample_rate_hz: 48000
    supports_24bit: true
    output_codec: flac
    output_channels: stereo
    eq_bass_db: 2
    crossfade_duration_s: 5
  - player_id: patio
    max_sample_rate_hz: 44100
    supports_24bit: false
    output_codec: mp3
    output_channels: mono
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	profiles, err := LoadPlayerProfiles(path)
	if err != nil {
		t.Fatalf("load profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	kitchen, ok := profiles["kitchen"]
	if !ok {
		t.Fatal("expected kitchen profile")
	}
	if kitchen.CrossfadeDuration != 5 {
		t.Fatalf("unexpected crossfade duration: %d", kitchen.CrossfadeDuration)
	}
	if profiles["patio"].OutputChannels != ChannelsMono {
		t.Fatalf("unexpected output channels: %v", profiles["patio"].OutputChannels)
	}
}

func TestLoadPlayerProfilesRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.yaml")
	if err := os.WriteFile(path, []byte("players:\n  - output_codec: flac\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadPlayerProfiles(path); err == nil {
		t.Fatal("expected error for profile missing player_id")
	}
}
