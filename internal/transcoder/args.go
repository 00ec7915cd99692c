/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transcoder drives the external codec process: it builds the argv
// for a child that reads raw PCM on stdin and writes the negotiated output
// codec to stdout, and supervises that process's lifecycle with a
// rate-limited restart budget for unexpected exits.
package transcoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/config"
)

// eqBand describes one peaking-EQ band's center frequency and width.
type eqBand struct {
	centerHz float64
	widthHz  float64
}

var (
	bassBand   = eqBand{centerHz: 100, widthHz: 200}
	midBand    = eqBand{centerHz: 900, widthHz: 1800}
	trebleBand = eqBand{centerHz: 9000, widthHz: 18000}
)

// BuildArgs constructs the ffmpeg argv for transcoding raw PCM (inputFormat)
// on stdin into outputFormat on stdout, applying the player's EQ and
// channel-remap filters.
func BuildArgs(player audio.Player, inputFormat, outputFormat audio.AudioFormat) ([]string, error) {
	if !inputFormat.ContentType.IsPCM() {
		return nil, fmt.Errorf("transcoder: input format %q is not PCM", inputFormat.ContentType)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}

	inputCodec, err := pcmCodecName(inputFormat.BitDepth)
	if err != nil {
		return nil, err
	}
	args = append(args,
		"-f", inputCodec,
		"-ar", strconv.Itoa(inputFormat.SampleRateHz),
		"-ac", strconv.Itoa(inputFormat.Channels),
		"-i", "pipe:0",
	)

	filters := buildFilterChain(player)
	if filters != "" {
		args = append(args, "-af", filters)
	}

	outArgs, err := outputArgs(outputFormat)
	if err != nil {
		return nil, err
	}
	args = append(args, outArgs...)

	args = append(args, "-ac", strconv.Itoa(outputFormat.Channels))
	if outputFormat.ContentType.IsLossless() {
		args = append(args, "-ar", strconv.Itoa(outputFormat.SampleRateHz))
	}

	args = append(args, "pipe:1")
	return args, nil
}

// pcmCodecName maps a PCM bit depth to the ffmpeg raw-PCM format name for
// stdin framing (little-endian signed, matching internal/flow's encoding).
func pcmCodecName(bitDepth int) (string, error) {
	switch bitDepth {
	case 16:
		return "s16le", nil
	case 24:
		return "s24le", nil
	case 32:
		return "s32le", nil
	default:
		return "", fmt.Errorf("transcoder: unsupported PCM bit depth %d", bitDepth)
	}
}

// outputArgs selects the codec-specific container/compression arg set for
// the output side.
func outputArgs(outputFormat audio.AudioFormat) ([]string, error) {
	switch outputFormat.ContentType {
	case audio.ContentFLAC:
		return []string{"-f", "flac", "-compression_level", "0"}, nil
	case audio.ContentAAC:
		return []string{"-f", "adts", "-c:a", "aac", "-b:a", "320k"}, nil
	case audio.ContentMP3:
		return []string{"-f", "mp3", "-c:a", "mp3", "-b:a", "320k"}, nil
	case audio.ContentWAV:
		return []string{"-f", "wav"}, nil
	case audio.ContentPCM16, audio.ContentPCM24, audio.ContentPCM32:
		codec, err := pcmCodecName(outputFormat.BitDepth)
		if err != nil {
			return nil, err
		}
		return []string{"-f", codec}, nil
	default:
		return []string{"-f", string(outputFormat.ContentType)}, nil
	}
}

// buildFilterChain appends an ffmpeg audio filter graph for 3-band peaking
// EQ and/or channel remap, if the player's config calls for either. An
// empty return means no -af flag is needed.
func buildFilterChain(player audio.Player) string {
	var filters []string

	if player.EQBassDB != 0 {
		filters = append(filters, peakingEQFilter(bassBand, player.EQBassDB))
	}
	if player.EQMidDB != 0 {
		filters = append(filters, peakingEQFilter(midBand, player.EQMidDB))
	}
	if player.EQTrebleDB != 0 {
		filters = append(filters, peakingEQFilter(trebleBand, player.EQTrebleDB))
	}

	switch player.OutputChannels {
	case audio.ChannelsLeft:
		filters = append(filters, "pan=mono|c0=FL")
	case audio.ChannelsRight:
		filters = append(filters, "pan=mono|c0=FR")
	}

	return strings.Join(filters, ",")
}

// peakingEQFilter renders one ffmpeg "equalizer" filter invocation for a
// peaking band: frequency, width (as a Hz bandwidth), and gain in dB.
func peakingEQFilter(band eqBand, gainDB float64) string {
	return fmt.Sprintf("equalizer=f=%g:width_type=h:width=%g:g=%g", band.centerHz, band.widthHz, gainDB)
}

// DefaultBinary returns the configured transcoder binary name, falling
// back to "ffmpeg" if unset.
func DefaultBinary(cfg *config.Config) string {
	if cfg == nil || cfg.TranscoderBin == "" {
		return "ffmpeg"
	}
	return cfg.TranscoderBin
}
