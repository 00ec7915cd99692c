/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audio holds the data model shared by the flow generator, the
// multi-client job, the HTTP streaming endpoints, and the transcoder
// driver: audio formats, stream details, and queue/player types.
package audio

import "fmt"

// ContentType is a tagged variant over the handful of codecs/containers this
// core negotiates and streams.
type ContentType string

const (
	ContentPCM16 ContentType = "pcm16"
	ContentPCM24 ContentType = "pcm24"
	ContentPCM32 ContentType = "pcm32"
	ContentFLAC  ContentType = "flac"
	ContentMP3   ContentType = "mp3"
	ContentAAC   ContentType = "aac"
	ContentWAV   ContentType = "wav"
)

// IsPCM reports whether ct is one of the raw PCM variants.
func (ct ContentType) IsPCM() bool {
	switch ct {
	case ContentPCM16, ContentPCM24, ContentPCM32:
		return true
	default:
		return false
	}
}

// IsLossless reports whether ct preserves full sample precision, which
// governs the ICY icy-metaint window and whether the transcoder driver
// passes an explicit sample rate through.
func (ct ContentType) IsLossless() bool {
	switch ct {
	case ContentPCM16, ContentPCM24, ContentPCM32, ContentFLAC, ContentWAV:
		return true
	default:
		return false
	}
}

// BitDepthFromPCM returns the bit depth implied by a PCM content type.
func BitDepthFromPCM(ct ContentType) (int, error) {
	switch ct {
	case ContentPCM16:
		return 16, nil
	case ContentPCM24:
		return 24, nil
	case ContentPCM32:
		return 32, nil
	default:
		return 0, fmt.Errorf("audio: %q is not a PCM content type", ct)
	}
}

// PCMContentTypeForBitDepth maps a raw bit depth back to a PCM content type,
// used by the format negotiator when a generic "pcm" fmt string supplies
// only a bitrate parameter.
func PCMContentTypeForBitDepth(bitDepth int) (ContentType, error) {
	switch bitDepth {
	case 16:
		return ContentPCM16, nil
	case 24:
		return ContentPCM24, nil
	case 32:
		return ContentPCM32, nil
	default:
		return "", fmt.Errorf("audio: unsupported PCM bit depth %d", bitDepth)
	}
}

// AudioFormat fully describes one PCM or encoded stream.
type AudioFormat struct {
	ContentType     ContentType
	SampleRateHz    int
	BitDepth        int
	Channels        int
	OutputFormatStr string // raw URL suffix, preserved for content negotiation
}

// SampleSize returns the PCM sample size in bytes per second of audio:
// sample_rate * (bit_depth/8) * channels.
func (f AudioFormat) SampleSize() int {
	return f.SampleRateHz * (f.BitDepth / 8) * f.Channels
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%s;rate=%d;bitrate=%d;channels=%d", f.ContentType, f.SampleRateHz, f.BitDepth, f.Channels)
}
