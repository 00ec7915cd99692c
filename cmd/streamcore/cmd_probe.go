/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/config"
	"github.com/ripplehome/streamcore/internal/negotiate"
	"github.com/ripplehome/streamcore/internal/transcoder"
)

var (
	probeFmt           string
	probePlayerID      string
	probeMaxSampleRate int
	probe24Bit         bool
	probeChannels      string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Dry-run format negotiation and transcoder arguments for a player",
	Long: `Resolve an output format string against a player's capabilities and print
the transcoder command line that a streaming request would launch, without
starting a server or touching any media.

Examples:
  # What does a flac request resolve to for a 48kHz/16-bit player?
  streamcore probe --fmt flac --max-sample-rate 48000 --supports-24bit=false

  # Explicit PCM parameters in the URL win over player caps
  streamcore probe --fmt "pcm;rate=96000;bitrate=24;channels=2" --max-sample-rate 48000
`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeFmt, "fmt", "flac", "output format string as it would appear in a stream URL")
	probeCmd.Flags().StringVar(&probePlayerID, "player-id", "probe", "player id used when resolving a profile from STREAMCORE_PLAYER_PROFILES")
	probeCmd.Flags().IntVar(&probeMaxSampleRate, "max-sample-rate", 96000, "player's maximum supported sample rate in Hz")
	probeCmd.Flags().BoolVar(&probe24Bit, "supports-24bit", true, "whether the player supports 24-bit output")
	probeCmd.Flags().StringVar(&probeChannels, "channels", "stereo", "player output channels: stereo, left, right, or mono")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	player := audio.Player{
		ID:              probePlayerID,
		MaxSampleRateHz: probeMaxSampleRate,
		Supports24Bit:   probe24Bit,
		OutputChannels:  audio.OutputChannelsMode(probeChannels),
	}

	profiles, err := config.LoadPlayerProfiles(cfg.PlayerProfilesPath)
	if err != nil {
		return fmt.Errorf("load player profiles: %w", err)
	}
	if profile, ok := profiles[probePlayerID]; ok {
		player.MaxSampleRateHz = profile.MaxSampleRateHz
		player.Supports24Bit = profile.Supports24Bit
		player.OutputChannels = audio.OutputChannelsMode(profile.OutputChannels)
		player.EQBassDB = profile.EQBassDB
		player.EQMidDB = profile.EQMidDB
		player.EQTrebleDB = profile.EQTrebleDB
	}

	outputFormat, err := negotiate.ResolveOutputFormat(probeFmt, player, negotiate.FlowDefaultSampleRateHz, negotiate.FlowDefaultBitDepth)
	if err != nil {
		return fmt.Errorf("resolve output format: %w", err)
	}

	inputFormat := outputFormat
	if !inputFormat.ContentType.IsPCM() {
		inputFormat = audio.AudioFormat{
			ContentType:  audio.ContentPCM24,
			SampleRateHz: negotiate.FlowDefaultSampleRateHz,
			BitDepth:     negotiate.FlowDefaultBitDepth,
			Channels:     outputFormat.Channels,
		}
	}

	args, err := transcoder.BuildArgs(player, inputFormat, outputFormat)
	if err != nil {
		return fmt.Errorf("build transcoder args: %w", err)
	}

	fmt.Printf("requested fmt:    %s\n", probeFmt)
	fmt.Printf("resolved output:  %s\n", outputFormat)
	fmt.Printf("pcm input:        %s\n", inputFormat)
	fmt.Printf("transcoder argv:  %s %s\n", transcoder.DefaultBinary(cfg), strings.Join(args, " "))
	return nil
}
