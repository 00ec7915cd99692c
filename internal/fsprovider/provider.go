/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package fsprovider is a minimal filesystem-backed audio.Provider, the
// reference implementation used by cmd/streamcore's standalone "serve"
// mode and by tests; it is a stand-in, not a production media library.
// Each QueueItem's ID is the basename (without extension) of a raw PCM
// file under Root.
package fsprovider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ripplehome/streamcore/internal/audio"
)

// Provider serves raw PCM files from a directory, one file per queue item
// id, all sharing Format.
type Provider struct {
	Root   string
	Format audio.AudioFormat
}

// New constructs a filesystem-backed provider rooted at root, serving files
// assumed to already be raw PCM at format.
func New(root string, format audio.AudioFormat) *Provider {
	return &Provider{Root: root, Format: format}
}

func (p *Provider) path(itemID string) string {
	return filepath.Join(p.Root, itemID+".pcm")
}

// GetStreamDetails implements audio.Provider. It returns audio.ErrMediaNotFound
// if no file exists for item.ID.
func (p *Provider) GetStreamDetails(_ context.Context, item *audio.QueueItem) (*audio.StreamDetails, error) {
	path := p.path(item.ID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, audio.ErrMediaNotFound
		}
		return nil, fmt.Errorf("fsprovider: stat %s: %w", path, err)
	}
	return &audio.StreamDetails{URI: path, Format: p.Format}, nil
}

// GetMediaStream implements audio.Provider. Seek is applied as a byte
// offset computed from the PCM sample size; fadeIn and stripSilenceBegin
// are no-ops in this reference implementation.
func (p *Provider) GetMediaStream(_ context.Context, details *audio.StreamDetails, pcmFormat audio.AudioFormat, seekPositionS float64, _ bool, _ bool) (audio.PCMStream, error) {
	f, err := os.Open(details.URI)
	if err != nil {
		return nil, fmt.Errorf("fsprovider: open %s: %w", details.URI, err)
	}
	if seekPositionS > 0 {
		offset := int64(seekPositionS * float64(pcmFormat.SampleSize()))
		if _, err := f.Seek(offset, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("fsprovider: seek %s: %w", details.URI, err)
		}
	}
	return f, nil
}

var _ audio.Provider = (*Provider)(nil)
