/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package fsprovider

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ripplehome/streamcore/internal/audio"
)

var fsTestFormat = audio.AudioFormat{
	ContentType:  audio.ContentPCM16,
	SampleRateHz: 1000,
	BitDepth:     16,
	Channels:     2,
}

func TestGetStreamDetailsMissingFile(t *testing.T) {
	p := New(t.TempDir(), fsTestFormat)
	_, err := p.GetStreamDetails(context.Background(), &audio.QueueItem{ID: "ghost"})
	if !errors.Is(err, audio.ErrMediaNotFound) {
		t.Fatalf("want ErrMediaNotFound, got %v", err)
	}
}

func TestGetMediaStreamSeeksByPCMOffset(t *testing.T) {
	root := t.TempDir()
	data := make([]byte, fsTestFormat.SampleSize()*3) // three seconds
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(root, "track.pcm"), data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p := New(root, fsTestFormat)
	details, err := p.GetStreamDetails(context.Background(), &audio.QueueItem{ID: "track"})
	if err != nil {
		t.Fatalf("details: %v", err)
	}

	stream, err := p.GetMediaStream(context.Background(), details, fsTestFormat, 1, false, false)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := fsTestFormat.SampleSize() * 2
	if len(got) != want {
		t.Fatalf("one-second seek should leave %d bytes, got %d", want, len(got))
	}
	if got[0] != data[fsTestFormat.SampleSize()] {
		t.Fatal("seek landed at the wrong byte offset")
	}
}
