/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package flow

import (
	"encoding/binary"
	"math"
	"testing"
)

// pcm16Constant builds a buffer of numFrames stereo S16LE frames, every
// sample set to value.
func pcm16Constant(numFrames int, value int16) []byte {
	buf := make([]byte, numFrames*4)
	for i := 0; i < numFrames*2; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(value))
	}
	return buf
}

func TestEqualPowerCrossfadePreservesLength(t *testing.T) {
	fadein := pcm16Constant(100, 0)
	fadeout := pcm16Constant(100, 1000)

	out, err := equalPowerCrossfade(fadein, fadeout, 16, 2)
	if err != nil {
		t.Fatalf("crossfade: %v", err)
	}
	if len(out) != len(fadein) {
		t.Fatalf("expected %d bytes, got %d", len(fadein), len(out))
	}
}

func TestEqualPowerCrossfadeGainCurve(t *testing.T) {
	const frames = 200
	fadein := pcm16Constant(frames, 0)
	fadeout := pcm16Constant(frames, 16000)

	out, err := equalPowerCrossfade(fadein, fadeout, 16, 2)
	if err != nil {
		t.Fatalf("crossfade: %v", err)
	}

	// With a silent incoming track, the output is the outgoing signal
	// scaled by cos(theta): full scale at frame 0, decaying monotonically.
	first := int16(binary.LittleEndian.Uint16(out[0:2]))
	if delta := math.Abs(float64(first) - 16000); delta > 2 {
		t.Fatalf("frame 0 should carry the outgoing signal at unity gain, got %d", first)
	}

	prev := first
	for fi := 1; fi < frames; fi++ {
		s := int16(binary.LittleEndian.Uint16(out[fi*4 : fi*4+2]))
		if s > prev {
			t.Fatalf("fadeout gain increased at frame %d: %d -> %d", fi, prev, s)
		}
		prev = s
	}

	last := int16(binary.LittleEndian.Uint16(out[(frames-1)*4 : (frames-1)*4+2]))
	if float64(last) > 16000*0.05 {
		t.Fatalf("fadeout should be near silent by the final frame, got %d", last)
	}
}

func TestEqualPowerCrossfadeConstantPower(t *testing.T) {
	const frames = 128
	fadein := pcm16Constant(frames, 12000)
	fadeout := pcm16Constant(frames, 12000)

	out, err := equalPowerCrossfade(fadein, fadeout, 16, 2)
	if err != nil {
		t.Fatalf("crossfade: %v", err)
	}

	// sin+cos over [0, pi/2] peaks at sqrt(2); with two equal constant
	// inputs the mix must never exceed that envelope and never dip below
	// unity.
	for fi := 0; fi < frames; fi++ {
		s := float64(int16(binary.LittleEndian.Uint16(out[fi*4 : fi*4+2])))
		ratio := s / 12000
		if ratio < 0.99 || ratio > math.Sqrt2+0.01 {
			t.Fatalf("frame %d mix ratio %v outside [1, sqrt2]", fi, ratio)
		}
	}
}

func TestEqualPowerCrossfadeLengthMismatch(t *testing.T) {
	if _, err := equalPowerCrossfade(make([]byte, 8), make([]byte, 12), 16, 2); err == nil {
		t.Fatal("expected error for mismatched window lengths")
	}
}

func TestEqualPowerCrossfadeBadFrameAlignment(t *testing.T) {
	if _, err := equalPowerCrossfade(make([]byte, 6), make([]byte, 6), 16, 2); err == nil {
		t.Fatal("expected error for buffer not aligned to frame size")
	}
}

func TestEqualPowerCrossfade24Bit(t *testing.T) {
	// 24-bit little-endian frames, stereo: 6 bytes per frame.
	const frames = 50
	fadein := make([]byte, frames*6)
	fadeout := make([]byte, frames*6)
	for fi := 0; fi < frames; fi++ {
		for c := 0; c < 2; c++ {
			off := fi*6 + c*3
			v := int32(1 << 20)
			fadeout[off] = byte(v)
			fadeout[off+1] = byte(v >> 8)
			fadeout[off+2] = byte(v >> 16)
		}
	}

	out, err := equalPowerCrossfade(fadein, fadeout, 24, 2)
	if err != nil {
		t.Fatalf("crossfade: %v", err)
	}
	if len(out) != frames*6 {
		t.Fatalf("expected %d bytes, got %d", frames*6, len(out))
	}

	v := int32(out[0]) | int32(out[1])<<8 | int32(out[2])<<16
	if v&0x800000 != 0 {
		v |= ^0xFFFFFF
	}
	if delta := math.Abs(float64(v) - float64(1<<20)); delta > 16 {
		t.Fatalf("frame 0 should pass the outgoing 24-bit sample through at unity gain, got %d", v)
	}
}
