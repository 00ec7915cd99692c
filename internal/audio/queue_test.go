/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audio

import (
	"context"
	"errors"
	"testing"
)

func TestPreloadNextWalksQueueThenEmpties(t *testing.T) {
	items := []*QueueItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	q := NewPlayerQueue("q1", items, true)

	prev, next, crossfade, err := q.PreloadNext(context.Background())
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	if prev.ID != "a" || next.ID != "b" {
		t.Fatalf("first preload: prev=%s next=%s", prev.ID, next.ID)
	}
	if !crossfade {
		t.Fatal("crossfade-enabled queue must report use_crossfade")
	}

	prev, next, _, err = q.PreloadNext(context.Background())
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	if prev.ID != "b" || next.ID != "c" {
		t.Fatalf("second preload: prev=%s next=%s", prev.ID, next.ID)
	}

	if _, _, _, err = q.PreloadNext(context.Background()); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("want ErrQueueEmpty at end of queue, got %v", err)
	}
}

func TestQueueItemTitleFallbacks(t *testing.T) {
	item := &QueueItem{ID: "x"}
	if got := item.Title(); got != "Music Assistant" {
		t.Fatalf("empty item title: got %q", got)
	}

	item.Name = "Display Name"
	if got := item.Title(); got != "Display Name" {
		t.Fatalf("name fallback: got %q", got)
	}

	item.SetDetails(&StreamDetails{StreamTitle: "Artist - Song"})
	if got := item.Title(); got != "Artist - Song" {
		t.Fatalf("stream title should win: got %q", got)
	}
}

func TestAudioFormatSampleSize(t *testing.T) {
	f := AudioFormat{ContentType: ContentPCM24, SampleRateHz: 48000, BitDepth: 24, Channels: 2}
	if got := f.SampleSize(); got != 48000*3*2 {
		t.Fatalf("sample size: want %d, got %d", 48000*3*2, got)
	}
}

func TestContentTypeClassification(t *testing.T) {
	for _, ct := range []ContentType{ContentPCM16, ContentPCM24, ContentPCM32} {
		if !ct.IsPCM() {
			t.Fatalf("%s must classify as PCM", ct)
		}
		if !ct.IsLossless() {
			t.Fatalf("%s must classify as lossless", ct)
		}
	}
	if ContentFLAC.IsPCM() {
		t.Fatal("flac is not PCM")
	}
	if !ContentFLAC.IsLossless() {
		t.Fatal("flac is lossless")
	}
	if ContentMP3.IsLossless() || ContentAAC.IsLossless() {
		t.Fatal("mp3/aac are lossy")
	}
}

func TestPCMBitDepthRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24, 32} {
		ct, err := PCMContentTypeForBitDepth(depth)
		if err != nil {
			t.Fatalf("content type for %d: %v", depth, err)
		}
		back, err := BitDepthFromPCM(ct)
		if err != nil {
			t.Fatalf("bit depth for %s: %v", ct, err)
		}
		if back != depth {
			t.Fatalf("round trip %d -> %s -> %d", depth, ct, back)
		}
	}
	if _, err := PCMContentTypeForBitDepth(20); err == nil {
		t.Fatal("expected error for unsupported bit depth")
	}
	if _, err := BitDepthFromPCM(ContentMP3); err == nil {
		t.Fatal("expected error for non-PCM content type")
	}
}
