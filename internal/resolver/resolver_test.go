/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package resolver

import (
	"strings"
	"testing"
)

func TestSingleTrackURLWithSeekAndFadeIn(t *testing.T) {
	r := New("192.168.1.10", 8096)
	got := r.SingleTrackURL("q1", "item1", "flac", 30, true)
	want := "http://192.168.1.10:8096/q1/single/item1.flac?fade_in=1&seek_position=30"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestFlowURLWithoutParams(t *testing.T) {
	r := New("192.168.1.10", 8096)
	got := r.FlowURL("q1", "item1", "pcm;rate=96000;bitrate=24;channels=2", 0, false)
	if strings.Contains(got, "?") {
		t.Fatalf("expected no query string when seek/fade_in are zero values, got %s", got)
	}
}

func TestMultiClientURLShape(t *testing.T) {
	r := New("10.0.0.5", 9000)
	got := r.MultiClientURL("q1", "job1", "player1", "item1", "flac")
	want := "http://10.0.0.5:9000/q1/multi/job1/player1/item1.flac"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
