/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package negotiate implements output-format negotiation: parsing an fmt
// string from a stream URL into an AudioFormat, clamping sample rate and
// bit depth to a player's capabilities.
package negotiate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ripplehome/streamcore/internal/audio"
)

// FlowDefaultSampleRateHz and FlowDefaultBitDepth are the flow generator's
// maximum-quality defaults.
const (
	FlowDefaultSampleRateHz = 96000
	FlowDefaultBitDepth     = 24
)

// ParsedFormat is the result of splitting a raw fmt URL suffix into its
// codec and semicolon-delimited key=value parameters.
type ParsedFormat struct {
	Codec  string
	Params map[string]string
}

// ParseFormatString splits "codec[;key=value;...]" into a ParsedFormat.
// Recognized keys are codec, rate, bitrate (bit depth), channels; unknown
// keys are retained in Params but ignored by ResolveOutputFormat.
func ParseFormatString(fmtStr string) (ParsedFormat, error) {
	if fmtStr == "" {
		return ParsedFormat{}, fmt.Errorf("negotiate: empty fmt string")
	}
	parts := strings.Split(fmtStr, ";")
	parsed := ParsedFormat{Codec: strings.ToLower(strings.TrimSpace(parts[0])), Params: make(map[string]string)}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		parsed.Params[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	return parsed, nil
}

// ResolveOutputFormat turns an fmt URL suffix into the AudioFormat a
// stream response will carry.
//
// The player-cap clamp applies only when fmtStr does NOT declare explicit
// PCM/WAV parameters: a URL that spells out
// "pcm;rate=...;bitrate=...;channels=..." wins outright, even against a
// lower-capability player.
func ResolveOutputFormat(fmtStr string, player audio.Player, defaultSampleRateHz, defaultBitDepth int) (audio.AudioFormat, error) {
	parsed, err := ParseFormatString(fmtStr)
	if err != nil {
		return audio.AudioFormat{}, err
	}

	isPCM := strings.HasPrefix(parsed.Codec, "pcm")
	isWAV := parsed.Codec == "wav"

	if isPCM || isWAV {
		return resolveDeclaredPCM(fmtStr, parsed, isWAV)
	}

	sampleRate := defaultSampleRateHz
	if player.MaxSampleRateHz > 0 && player.MaxSampleRateHz < sampleRate {
		sampleRate = player.MaxSampleRateHz
	}

	maxBitDepth := 16
	if player.Supports24Bit {
		maxBitDepth = 32
	}
	bitDepth := defaultBitDepth
	if bitDepth > maxBitDepth {
		bitDepth = maxBitDepth
	}

	channels := 2
	switch player.OutputChannels {
	case audio.ChannelsMono, audio.ChannelsLeft, audio.ChannelsRight:
		channels = 1
	}

	contentType, err := contentTypeForNonPCM(parsed.Codec)
	if err != nil {
		return audio.AudioFormat{}, err
	}

	return audio.AudioFormat{
		ContentType:     contentType,
		SampleRateHz:    sampleRate,
		BitDepth:        bitDepth,
		Channels:        channels,
		OutputFormatStr: fmtStr,
	}, nil
}

// resolveDeclaredPCM handles the PCM/WAV branch: the URL's own rate,
// bitrate (bit depth), and channels parameters are authoritative, with CD
// audio (44100/16/2) assumed for any parameter the URL omits.
func resolveDeclaredPCM(fmtStr string, parsed ParsedFormat, isWAV bool) (audio.AudioFormat, error) {
	sampleRate := 44100
	if v, ok := parsed.Params["rate"]; ok {
		parsedRate, err := strconv.Atoi(v)
		if err != nil {
			return audio.AudioFormat{}, fmt.Errorf("negotiate: invalid rate %q: %w", v, err)
		}
		sampleRate = parsedRate
	}

	bitDepth := 16
	if v, ok := parsed.Params["bitrate"]; ok {
		parsedBits, err := strconv.Atoi(v)
		if err != nil {
			return audio.AudioFormat{}, fmt.Errorf("negotiate: invalid bitrate %q: %w", v, err)
		}
		bitDepth = parsedBits
	}

	channels := 2
	if v, ok := parsed.Params["channels"]; ok {
		parsedChannels, err := strconv.Atoi(v)
		if err != nil {
			return audio.AudioFormat{}, fmt.Errorf("negotiate: invalid channels %q: %w", v, err)
		}
		channels = parsedChannels
	}

	contentType := audio.ContentWAV
	if !isWAV {
		ct, err := audio.PCMContentTypeForBitDepth(bitDepth)
		if err != nil {
			return audio.AudioFormat{}, err
		}
		contentType = ct
	}

	return audio.AudioFormat{
		ContentType:     contentType,
		SampleRateHz:    sampleRate,
		BitDepth:        bitDepth,
		Channels:        channels,
		OutputFormatStr: fmtStr,
	}, nil
}

func contentTypeForNonPCM(codec string) (audio.ContentType, error) {
	switch codec {
	case "flac":
		return audio.ContentFLAC, nil
	case "mp3":
		return audio.ContentMP3, nil
	case "aac":
		return audio.ContentAAC, nil
	default:
		return audio.ContentType(codec), nil
	}
}

// BuildOutputFormatStr renders an AudioFormat back into a fmt URL suffix,
// the inverse of ParseFormatString/ResolveOutputFormat for PCM/WAV
// formats.
func BuildOutputFormatStr(f audio.AudioFormat) string {
	return fmt.Sprintf("%s;rate=%d;bitrate=%d;channels=%d", f.ContentType, f.SampleRateHz, f.BitDepth, f.Channels)
}
